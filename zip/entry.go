package zip

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
)

// Entry is one archive member (spec.md §3). It owns exactly one local file
// header and either an origin descriptor pointing back at the archive's
// byte source (entries read from an existing archive, payload materialized
// lazily) or an already-materialized compressed payload (entries created
// in-memory via Archive.AddData).
type Entry struct {
	lfh   localFileHeader
	name  string
	extra []byte

	// origin, for entries read from an existing archive: the byte source
	// to pull the compressed payload from, and its offset within it.
	source        ByteSource
	payloadOffset int64

	// payload is the compressed bytes. Set immediately on ingest; filled
	// lazily on first ReadContent for origin entries.
	payload []byte
}

// Name returns the entry name exactly as stored; bytes are preserved, UTF-8
// is not enforced.
func (e *Entry) Name() string { return e.name }

// ModTime decomposes the entry's packed DOS date/time into a host timestamp
// (UTC, 2-second resolution), per spec.md §4.2.
func (e *Entry) ModTime() time.Time {
	year, month, day, hour, minute, second := unpackDOSDateTime(e.lfh.ModDate, e.lfh.ModTime)
	if year == 1980 && month == 0 && day == 0 {
		return time.Time{}
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
}

// CompressionMethod returns the method recorded in the local file header:
// Store (0) or Deflate (8).
func (e *Entry) CompressionMethod() uint16 { return e.lfh.CompressionMethod }

// CompressedSize returns the on-disk payload size.
func (e *Entry) CompressedSize() uint32 { return e.lfh.CompressedSize }

// UncompressedSize returns the decompressed payload size.
func (e *Entry) UncompressedSize() uint32 { return e.lfh.UncompressedSize }

// CRC32 returns the checksum of the decompressed payload, as recorded in
// the header.
func (e *Entry) CRC32() uint32 { return e.lfh.CRC32 }

// EncryptionMethod is always 0: this format subset never supports
// encryption (spec.md §1, §9).
func (e *Entry) EncryptionMethod() uint16 { return 0 }

// IsDirectory reports whether the entry's name ends with '/'.
func (e *Entry) IsDirectory() bool { return strings.HasSuffix(e.name, "/") }

// IsFile is the negation of IsDirectory.
func (e *Entry) IsFile() bool { return !e.IsDirectory() }

// ReadContent writes the decompressed payload to dst and returns the byte
// count, per spec.md §4.2's algorithm: materialize the compressed payload
// if needed, decompress per method, then verify CRC-32 before trusting the
// output.
func (e *Entry) ReadContent(dst io.Writer) (int64, error) {
	const op = "Entry.ReadContent"

	if err := e.ensurePayload(op); err != nil {
		return 0, err
	}

	var decompressed []byte
	switch e.lfh.CompressionMethod {
	case Store:
		decompressed = e.payload
	case Deflate:
		fr := flate.NewReader(bytes.NewReader(e.payload))
		defer fr.Close()
		var err error
		decompressed, err = io.ReadAll(fr)
		if err != nil {
			// A corrupt compressed payload can break the DEFLATE bitstream
			// itself rather than just changing a decoded literal; either
			// way the stored bytes are corrupt, not structurally wrong.
			return 0, newError(KindCorruption, op, "LFH", e.payloadOffset, err)
		}
	default:
		return 0, wrapf(KindUnsupported, op, "LFH", e.payloadOffset, "unsupported compression method %d", e.lfh.CompressionMethod)
	}

	if got := crc32IEEE(decompressed); got != e.lfh.CRC32 {
		return 0, wrapf(KindCorruption, op, "LFH", e.payloadOffset, "crc32 mismatch: got %#08x, want %#08x", got, e.lfh.CRC32)
	}

	n, err := dst.Write(decompressed)
	if err != nil {
		return int64(n), newError(KindIO, op, "", e.payloadOffset, err)
	}
	return int64(n), nil
}

// ensurePayload pulls the compressed bytes from the byte source on first
// use for entries read from an existing archive. A short read is fatal.
func (e *Entry) ensurePayload(op string) error {
	if e.payload != nil || e.lfh.UncompressedSize == 0 {
		return nil
	}
	if e.source == nil {
		return nil
	}
	buf := make([]byte, e.lfh.CompressedSize)
	if len(buf) > 0 {
		n, err := e.source.ReadAt(e.payloadOffset, Begin, buf)
		if err != nil {
			return newError(KindIO, op, "LFH", e.payloadOffset, err)
		}
		if n != len(buf) {
			return wrapf(KindStructural, op, "LFH", e.payloadOffset, "short read: got %d bytes, want %d", n, len(buf))
		}
	}
	e.payload = buf
	return nil
}

// WriteEntry emits the LFH fixed prefix, then name, extra field, and
// compressed payload, and returns the total bytes written (spec.md §4.2).
func (e *Entry) WriteEntry(dst io.Writer) (int64, error) {
	const op = "Entry.WriteEntry"
	if err := e.ensurePayload(op); err != nil {
		return 0, err
	}

	var total int64
	n, err := dst.Write(encodeLocalFileHeader(e.lfh))
	total += int64(n)
	if err != nil {
		return total, newError(KindIO, op, "LFH", -1, err)
	}

	n, err = dst.Write([]byte(e.name))
	total += int64(n)
	if err != nil {
		return total, newError(KindIO, op, "LFH", -1, err)
	}

	n, err = dst.Write(e.extra)
	total += int64(n)
	if err != nil {
		return total, newError(KindIO, op, "LFH", -1, err)
	}

	n, err = dst.Write(e.payload)
	total += int64(n)
	if err != nil {
		return total, newError(KindIO, op, "LFH", -1, err)
	}
	return total, nil
}

// newDataEntry builds an in-memory Entry for ingest: a directory entry
// (empty payload) always uses Store; a non-empty payload is compressed
// with raw DEFLATE immediately.
func newDataEntry(name string, data []byte, modTime time.Time) (*Entry, error) {
	isDir := strings.HasSuffix(name, "/")

	var (
		method           uint16 = Store
		payload          []byte
		crc              uint32
		uncompressedSize uint32
	)

	if !isDir && len(data) > 0 {
		crc = crc32IEEE(data)
		uncompressedSize = uint32(len(data))

		var buf bytes.Buffer
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, newError(KindIO, "Archive.AddData", "LFH", -1, err)
		}
		if _, err := fw.Write(data); err != nil {
			return nil, newError(KindIO, "Archive.AddData", "LFH", -1, err)
		}
		if err := fw.Close(); err != nil {
			return nil, newError(KindIO, "Archive.AddData", "LFH", -1, err)
		}
		payload = buf.Bytes()
		method = Deflate
	}

	date, t := uint16(0), uint16(0)
	if !modTime.IsZero() {
		date, t = packDOSDateTime(modTime.Year(), int(modTime.Month()), modTime.Day(),
			modTime.Hour(), modTime.Minute(), modTime.Second())
	}

	lfh := localFileHeader{
		VersionNeeded:     versionNeeded,
		Flags:             0,
		CompressionMethod: method,
		ModTime:           t,
		ModDate:           date,
		CRC32:             crc,
		CompressedSize:    uint32(len(payload)),
		UncompressedSize:  uncompressedSize,
		NameLength:        uint16(len(name)),
		ExtraLength:       0,
	}

	return &Entry{
		lfh:     lfh,
		name:    name,
		payload: payload,
	}, nil
}
