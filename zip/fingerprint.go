package zip

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a fast, non-cryptographic digest of the archive's
// central directory (name, CRC-32, and sizes of every entry, in order).
//
// This is a diagnostic handle for log correlation only — e.g. pairing a
// "wrote archive fp=..." line with a later "opened archive fp=..." line.
// It is never consulted for integrity; the CRC-32 per entry (§4.2) remains
// the sole correctness check, as spec.md requires.
func (a *Archive) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [4]byte
	for _, cd := range a.cds {
		h.Write([]byte(cd.name))
		binary.LittleEndian.PutUint32(buf[:], cd.header.CRC32)
		h.Write(buf[:])
		binary.LittleEndian.PutUint32(buf[:], cd.header.UncompressedSize)
		h.Write(buf[:])
		binary.LittleEndian.PutUint32(buf[:], cd.header.CompressedSize)
		h.Write(buf[:])
	}
	return h.Sum64()
}
