package zip

import (
	"io"
	"os"
)

// Anchor selects the reference point a ByteSource read is relative to, per
// spec.md §6.
type Anchor int

const (
	Begin Anchor = iota
	Current
	End
)

// ByteSource is the byte-source adapter consumed by the core (spec.md §6):
// a callable that accepts an offset, an anchor, and a destination buffer,
// and returns the number of bytes actually transferred. Implementations
// maintain a logical cursor so that Anchor=Current with offset 0 reads
// immediately after the previous read.
type ByteSource interface {
	ReadAt(offset int64, anchor Anchor, dst []byte) (int, error)
	// Size reports the total number of bytes available from the source.
	Size() int64
	// Close releases any resource held by the source (e.g. an open file).
	Close() error
}

// fileByteSource adapts an *os.File, opened once for the lifetime of the
// Archive handle (spec.md §5).
type fileByteSource struct {
	f      *os.File
	size   int64
	cursor int64
}

func newFileByteSource(path string) (*fileByteSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(KindIO, "Open", "", -1, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, newError(KindIO, "Open", "", -1, err)
	}
	return &fileByteSource{f: f, size: info.Size()}, nil
}

func (s *fileByteSource) resolve(offset int64, anchor Anchor) int64 {
	switch anchor {
	case Begin:
		return offset
	case Current:
		return s.cursor + offset
	case End:
		return s.size + offset
	default:
		return offset
	}
}

func (s *fileByteSource) ReadAt(offset int64, anchor Anchor, dst []byte) (int, error) {
	pos := s.resolve(offset, anchor)
	if pos < 0 {
		pos = 0
	}
	n, err := s.f.ReadAt(dst, pos)
	s.cursor = pos + int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	if err != nil && err != io.EOF {
		return n, newError(KindIO, "ByteSource.ReadAt", "", pos, err)
	}
	return n, nil
}

func (s *fileByteSource) Size() int64 { return s.size }
func (s *fileByteSource) Close() error {
	return s.f.Close()
}

// memoryByteSource adapts an owned copy of an in-memory byte slice. The
// caller's buffer may be freed immediately after construction (spec.md §5).
type memoryByteSource struct {
	data   []byte
	cursor int64
}

func newMemoryByteSource(data []byte) *memoryByteSource {
	owned := make([]byte, len(data))
	copy(owned, data)
	return &memoryByteSource{data: owned}
}

func (s *memoryByteSource) resolve(offset int64, anchor Anchor) int64 {
	switch anchor {
	case Begin:
		return offset
	case Current:
		return s.cursor + offset
	case End:
		return int64(len(s.data)) + offset
	default:
		return offset
	}
}

func (s *memoryByteSource) ReadAt(offset int64, anchor Anchor, dst []byte) (int, error) {
	pos := s.resolve(offset, anchor)
	if pos < 0 {
		pos = 0
	}
	if pos >= int64(len(s.data)) {
		s.cursor = pos
		return 0, newError(KindIO, "ByteSource.ReadAt", "", pos, io.EOF)
	}
	n := copy(dst, s.data[pos:])
	s.cursor = pos + int64(n)
	return n, nil
}

func (s *memoryByteSource) Size() int64 { return int64(len(s.data)) }
func (s *memoryByteSource) Close() error { return nil }

// Sink is the byte sink adapter consumed for writing (spec.md §6): it
// supports sequential byte append and reports its current logical byte
// count so offsets can be recorded as they're emitted.
type Sink interface {
	io.Writer
	// Offset reports the number of bytes written so far.
	Offset() int64
}

// countingSink wraps an io.Writer, the common pattern the teacher's own
// ZipWriter used for bookkeeping offsets as records are emitted.
type countingSink struct {
	w      io.Writer
	offset int64
}

// NewSink adapts an arbitrary io.Writer (a file, a bytes.Buffer, ...) into a
// Sink for Archive.WriteArchive.
func NewSink(w io.Writer) Sink {
	return &countingSink{w: w}
}

func (s *countingSink) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.offset += int64(n)
	if err != nil {
		return n, newError(KindIO, "Sink.Write", "", s.offset, err)
	}
	return n, nil
}

func (s *countingSink) Offset() int64 { return s.offset }
