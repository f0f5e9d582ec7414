// Package zip reads and writes ZIP archives in the classic PKWARE APPNOTE
// layout: single disk, 32-bit sizes, STORE or raw DEFLATE payloads, no
// encryption. It does not support ZIP64, spanned archives, or any other
// compression method.
package zip
