package zip

import (
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"go4.org/readerutil"
)

// Mode selects how Open (or OpenMemory) treats its source, per spec.md §4.3.
type Mode int

const (
	// ReadOnly parses an existing archive; AddData is rejected.
	ReadOnly Mode = iota
	// Write parses an existing archive and allows further additions.
	Write
	// New starts an empty archive; no parse is attempted.
	New
)

// maxEOCDCommentScan bounds the EOCD backward scan to the largest comment
// length the format allows (a uint16 field), per spec.md §8's EOCD-locator
// property: "longer comments need not" be found.
const maxEOCDCommentScan = int64(eocdSize + 65535)

// cdRecord is one central directory file header together with its
// variable-length tails, kept separate from the Entry it corresponds to
// per spec.md §3 (CDFH[i] and entries[i] are index-aligned but distinct
// records with independently-stored extra fields and a comment tail).
type cdRecord struct {
	header  centralDirHeader
	name    string
	extra   []byte
	comment string
}

// Archive is the top-level handle: it owns one EOCD, an ordered central
// directory, and one Entry per CDFH, index-aligned (spec.md §3).
type Archive struct {
	path    string
	mode    Mode
	source  ByteSource
	eocd    endOfCentralDir
	comment string
	cds     []cdRecord
	entries []*Entry
}

// New starts an empty archive ready to receive AddData calls.
func New() *Archive {
	return &Archive{mode: New}
}

// Open opens a file-backed archive. ReadOnly and Write both parse the
// existing central directory; New ignores the path and starts empty.
func Open(path string, mode Mode) (*Archive, error) {
	if mode == New {
		return &Archive{mode: New}, nil
	}
	source, err := newFileByteSource(path)
	if err != nil {
		return nil, err
	}
	a := &Archive{path: path, mode: mode, source: source}
	if err := a.parse(); err != nil {
		source.Close()
		return nil, err
	}
	return a, nil
}

// OpenMemory opens an in-memory archive from an owned copy of data. Write
// mode is rejected: in-memory sources may not be opened for writing
// (spec.md §4.3, §9).
func OpenMemory(data []byte, mode Mode) (*Archive, error) {
	if mode == Write {
		return nil, newError(KindUnsupported, "Archive.OpenMemory", "", -1,
			errors.New("writing an in-memory archive's backing source is not supported"))
	}
	if mode == New {
		return &Archive{mode: New}, nil
	}
	source := newMemoryByteSource(data)
	a := &Archive{mode: mode, source: source}
	if err := a.parse(); err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases the byte source, if any (spec.md §5: opening a
// file-backed archive opens the file once and releases it when the handle
// is destroyed).
func (a *Archive) Close() error {
	if a.source == nil {
		return nil
	}
	return a.source.Close()
}

// GetPath returns the path label, empty for in-memory or New archives.
func (a *Archive) GetPath() string { return a.path }

// IsEncrypted always reports false: this format subset never supports
// encryption (spec.md §1, §9).
func (a *Archive) IsEncrypted() bool { return false }

// SetComment sets the archive comment, emitted on the next WriteArchive.
func (a *Archive) SetComment(comment string) error {
	if len(comment) > 0xFFFF {
		return wrapf(KindInvalidArgument, "Archive.SetComment", "EOCD", -1, "comment too long: %d bytes", len(comment))
	}
	a.comment = comment
	return nil
}

// GetComment returns the archive comment.
func (a *Archive) GetComment() string { return a.comment }

// GetNumberOfEntries returns the number of entries (directories included).
func (a *Archive) GetNumberOfEntries() int { return len(a.entries) }

// GetEntries returns all entries, in central-directory order. The slice is
// a copy; the Entry pointers are shared with the archive.
func (a *Archive) GetEntries() []*Entry {
	out := make([]*Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// HasEntry performs a linear scan for an entry with the exact given name.
func (a *Archive) HasEntry(name string) bool {
	_, ok := a.GetEntry(name)
	return ok
}

// GetEntry performs a linear scan for an entry with the exact given name.
func (a *Archive) GetEntry(name string) (*Entry, bool) {
	for _, e := range a.entries {
		if e.name == name {
			return e, true
		}
	}
	return nil, false
}

// RenameEntry is declared but unsupported: it returns an error without
// mutating archive state (spec.md §9 Open Questions).
func (a *Archive) RenameEntry(name, newName string) error {
	return newError(KindUnsupported, "Archive.RenameEntry", "", -1, errors.New("rename is not supported"))
}

// AddFile is declared but unsupported: it returns an error without mutating
// archive state (spec.md §9 Open Questions).
func (a *Archive) AddFile(entryName, filePath string) error {
	return newError(KindUnsupported, "Archive.AddFile", "", -1, errors.New("file-backed ingestion is not supported"))
}

// AddEntry is declared but unsupported: it returns an error without
// mutating archive state (spec.md §9 Open Questions).
func (a *Archive) AddEntry(entryName string) error {
	return newError(KindUnsupported, "Archive.AddEntry", "", -1, errors.New("bare directory entry insertion is not supported"))
}

// AddData inserts one entry with the given payload. Intermediate path
// segments not yet present are synthesized as directory entries first
// (spec.md §4.3). modTime may be the zero value, which encodes as DOS 0
// (spec.md §4.2) and keeps output reproducible across calls, per
// SPEC_FULL.md's determinism note.
func (a *Archive) AddData(name string, data []byte, modTime time.Time) (*Entry, error) {
	const op = "Archive.AddData"
	if a.mode == ReadOnly {
		return nil, newError(KindUnsupported, op, "", -1, errors.New("archive is read-only"))
	}
	if path.IsAbs(name) {
		return nil, wrapf(KindInvalidArgument, op, "", -1, "absolute entry name %q", name)
	}

	segments := strings.Split(strings.Trim(name, "/"), "/")
	for i := 0; i < len(segments)-1; i++ {
		dirName := strings.Join(segments[:i+1], "/") + "/"
		if !a.HasEntry(dirName) {
			if err := a.newEntry(dirName, nil, modTime); err != nil {
				return nil, err
			}
		}
	}

	if err := a.newEntry(name, data, modTime); err != nil {
		return nil, err
	}
	return a.entries[len(a.entries)-1], nil
}

// newEntry appends one Entry and its corresponding CDFH, and updates the
// EOCD counters. It is the single insertion path for both synthesized
// directory entries and the caller's data entry, matching the original
// cppzip source's shared newEntry helper (see SPEC_FULL.md).
func (a *Archive) newEntry(name string, data []byte, modTime time.Time) error {
	entry, err := newDataEntry(name, data, modTime)
	if err != nil {
		return err
	}

	cd := cdRecord{
		name: name,
		header: centralDirHeader{
			VersionMadeBy:     versionNeeded,
			VersionNeeded:     versionNeeded,
			Flags:             entry.lfh.Flags,
			CompressionMethod: entry.lfh.CompressionMethod,
			ModTime:           entry.lfh.ModTime,
			ModDate:           entry.lfh.ModDate,
			CRC32:             entry.lfh.CRC32,
			CompressedSize:    entry.lfh.CompressedSize,
			UncompressedSize:  entry.lfh.UncompressedSize,
			NameLength:        uint16(len(name)),
		},
	}

	a.entries = append(a.entries, entry)
	a.cds = append(a.cds, cd)
	a.eocd.TotalEntries++
	a.eocd.EntriesThisDisk++
	return nil
}

// WriteArchive finalizes the archive to w: LFH+payload per entry, then the
// central directory with offsets backpatched, then the EOCD (spec.md
// §4.3). It returns the total number of bytes written.
func (a *Archive) WriteArchive(w io.Writer) (int64, error) {
	return a.writeArchive(NewSink(w))
}

// BuildReaderAt finalizes the archive into memory and exposes it as a
// readerutil.SizeReaderAt composed from the individual write fragments,
// without an extra full-archive copy (SPEC_FULL.md's domain-stack note).
func (a *Archive) BuildReaderAt() (readerutil.SizeReaderAt, error) {
	sink := newFragmentSink()
	if _, err := a.writeArchive(sink); err != nil {
		return nil, err
	}
	return sink.ReaderAt(), nil
}

func (a *Archive) writeArchive(sink Sink) (int64, error) {
	offsets := make([]int64, len(a.entries))
	for i, e := range a.entries {
		offsets[i] = sink.Offset()
		if _, err := e.WriteEntry(sink); err != nil {
			return sink.Offset(), err
		}
	}

	cdStart := sink.Offset()
	for i := range a.cds {
		cd := &a.cds[i]
		cd.header.LocalHeaderOffset = uint32(offsets[i])

		if _, err := sink.Write(encodeCentralDirHeader(cd.header)); err != nil {
			return sink.Offset(), err
		}
		if _, err := sink.Write([]byte(cd.name)); err != nil {
			return sink.Offset(), err
		}
		if _, err := sink.Write(cd.extra); err != nil {
			return sink.Offset(), err
		}
		if _, err := sink.Write([]byte(cd.comment)); err != nil {
			return sink.Offset(), err
		}
	}
	cdSize := sink.Offset() - cdStart

	a.eocd.CDOffset = uint32(cdStart)
	a.eocd.CDSize = uint32(cdSize)
	a.eocd.CommentLength = uint16(len(a.comment))

	if _, err := sink.Write(encodeEOCD(a.eocd)); err != nil {
		return sink.Offset(), err
	}
	if _, err := sink.Write([]byte(a.comment)); err != nil {
		return sink.Offset(), err
	}

	return sink.Offset(), nil
}

// parse locates the EOCD by backward scan, parses the central directory,
// and materializes one Entry per CDFH (spec.md §4.3).
func (a *Archive) parse() error {
	const op = "Archive.Open"

	eocdOffset, eocd, err := a.findEOCD()
	if err != nil {
		return err
	}
	if eocd.ThisDisk != 0 || eocd.DiskWithCD != 0 {
		return wrapf(KindUnsupported, op, "EOCD", eocdOffset, "multi-disk archive not supported")
	}

	comment := make([]byte, eocd.CommentLength)
	if len(comment) > 0 {
		n, err := a.source.ReadAt(eocdOffset+eocdSize, Begin, comment)
		if err != nil {
			return newError(KindIO, op, "EOCD", eocdOffset, err)
		}
		if n != len(comment) {
			return wrapf(KindStructural, op, "EOCD", eocdOffset, "short read of archive comment: got %d, want %d", n, len(comment))
		}
	}

	a.eocd = eocd
	a.comment = string(comment)

	if err := a.parseCentralDirectory(); err != nil {
		return err
	}
	return a.loadEntries()
}

// findEOCD implements the backward scan of spec.md §4.3: a 22-byte window
// starts at (end - 22) and steps one byte toward the start on each miss,
// until a match is found or the window no longer fits.
func (a *Archive) findEOCD() (int64, endOfCentralDir, error) {
	const op = "Archive.Open"

	size := a.source.Size()
	if size < eocdSize {
		return 0, endOfCentralDir{}, wrapf(KindStructural, op, "EOCD", -1, "archive too small: %d bytes", size)
	}

	maxScan := maxEOCDCommentScan
	if maxScan > size {
		maxScan = size
	}

	buf := make([]byte, eocdSize)
	for back := int64(eocdSize); back <= maxScan; back++ {
		n, err := a.source.ReadAt(-back, End, buf)
		if err != nil || n < eocdSize {
			continue
		}
		eocd, err := decodeEOCD(buf)
		if err != nil {
			continue
		}
		return size - back, eocd, nil
	}
	return 0, endOfCentralDir{}, wrapf(KindStructural, op, "EOCD", -1, "EOCD signature not found")
}

func (a *Archive) parseCentralDirectory() error {
	const op = "Archive.Open"

	cd := make([]byte, a.eocd.CDSize)
	if len(cd) > 0 {
		n, err := a.source.ReadAt(int64(a.eocd.CDOffset), Begin, cd)
		if err != nil {
			return newError(KindIO, op, "CDFH", int64(a.eocd.CDOffset), err)
		}
		if n != len(cd) {
			return wrapf(KindStructural, op, "CDFH", int64(a.eocd.CDOffset), "short read of central directory: got %d, want %d", n, len(cd))
		}
	}

	pos := 0
	a.cds = make([]cdRecord, 0, a.eocd.TotalEntries)
	for i := 0; i < int(a.eocd.TotalEntries); i++ {
		offset := int64(a.eocd.CDOffset) + int64(pos)
		if pos+centralDirHeaderSize > len(cd) {
			return wrapf(KindStructural, op, "CDFH", offset, "central directory truncated at entry %d", i)
		}
		h, err := decodeCentralDirHeader(cd[pos : pos+centralDirHeaderSize])
		if err != nil {
			return newError(KindStructural, op, "CDFH", offset, err)
		}
		pos += centralDirHeaderSize

		if h.DiskStart != 0 {
			return wrapf(KindUnsupported, op, "CDFH", offset, "multi-disk archive not supported")
		}

		tailLen := int(h.NameLength) + int(h.ExtraLength) + int(h.CommentLength)
		if pos+tailLen > len(cd) {
			return wrapf(KindStructural, op, "CDFH", offset, "central directory entry %d truncated", i)
		}
		name := string(cd[pos : pos+int(h.NameLength)])
		pos += int(h.NameLength)
		extra := append([]byte(nil), cd[pos:pos+int(h.ExtraLength)]...)
		pos += int(h.ExtraLength)
		comment := string(cd[pos : pos+int(h.CommentLength)])
		pos += int(h.CommentLength)

		a.cds = append(a.cds, cdRecord{header: h, name: name, extra: extra, comment: comment})
	}
	return nil
}

func (a *Archive) loadEntries() error {
	const op = "Archive.Open"

	a.entries = make([]*Entry, 0, len(a.cds))
	for i, cd := range a.cds {
		fixed := make([]byte, localFileHeaderSize)
		n, err := a.source.ReadAt(int64(cd.header.LocalHeaderOffset), Begin, fixed)
		if err != nil {
			return newError(KindIO, op, "LFH", int64(cd.header.LocalHeaderOffset), err)
		}
		if n != localFileHeaderSize {
			return wrapf(KindStructural, op, "LFH", int64(cd.header.LocalHeaderOffset), "short read of local file header at entry %d", i)
		}
		lfh, err := decodeLocalFileHeader(fixed)
		if err != nil {
			return newError(KindStructural, op, "LFH", int64(cd.header.LocalHeaderOffset), err)
		}

		extraOffset := int64(cd.header.LocalHeaderOffset) + localFileHeaderSize + int64(lfh.NameLength)
		var extra []byte
		if lfh.ExtraLength > 0 {
			extra = make([]byte, lfh.ExtraLength)
			n, err := a.source.ReadAt(extraOffset, Begin, extra)
			if err != nil {
				return newError(KindIO, op, "LFH", extraOffset, err)
			}
			if n != len(extra) {
				return wrapf(KindStructural, op, "LFH", extraOffset, "short read of local extra field at entry %d", i)
			}
		}
		payloadOffset := extraOffset + int64(lfh.ExtraLength)

		// The CDFH carries the authoritative sizes and CRC; the LFH copy
		// of the same fields can be stale with certain writers.
		lfh.CRC32 = cd.header.CRC32
		lfh.CompressedSize = cd.header.CompressedSize
		lfh.UncompressedSize = cd.header.UncompressedSize
		lfh.CompressionMethod = cd.header.CompressionMethod

		a.entries = append(a.entries, &Entry{
			lfh:           lfh,
			name:          cd.name,
			extra:         extra,
			source:        a.source,
			payloadOffset: payloadOffset,
		})
	}
	return nil
}
