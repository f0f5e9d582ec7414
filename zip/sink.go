package zip

import (
	"bytes"
	"io"

	"go4.org/readerutil"
)

// fragmentSink is a Sink that also remembers each write as a separate
// fragment, so the written bytes can be exposed as a single io.ReaderAt
// without a second full-archive copy. This is the same composition
// go4.org/readerutil gives martin-sucha-zipserve's own test fixtures: an
// archive built out of independently-sized parts.
type fragmentSink struct {
	fragments [][]byte
	offset    int64
}

func newFragmentSink() *fragmentSink {
	return &fragmentSink{}
}

func (s *fragmentSink) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	s.fragments = append(s.fragments, cp)
	s.offset += int64(len(p))
	return len(p), nil
}

func (s *fragmentSink) Offset() int64 { return s.offset }

// ReaderAt composes the recorded fragments into a single readerutil.SizeReaderAt.
func (s *fragmentSink) ReaderAt() readerutil.SizeReaderAt {
	parts := make([]readerutil.SizeReaderAt, len(s.fragments))
	for i, f := range s.fragments {
		parts[i] = bytes.NewReader(f)
	}
	return readerutil.NewMultiReaderAt(parts...)
}

var _ io.Writer = (*fragmentSink)(nil)
