package testutil

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"fv-go/internal/fv"
)

// StubSource is a scripted fv.Source backed by an in-memory byte slice.
// The Fail* fields make individual capabilities return errors, so tests can
// engineer sources that are unreadable, fail mid-copy, or refuse deletion.
type StubSource struct {
	Name  string
	Data  []byte
	Total int64 // reported size; defaults to len(Data) when zero

	FailName   error
	FailOpen   error
	FailRemove error

	// FailCopyAfter makes the reader error after that many bytes when > 0,
	// simulating an I/O failure partway through a copy.
	FailCopyAfter int

	mu      sync.Mutex
	removed bool
}

func (s *StubSource) DisplayName() (string, error) {
	if s.FailName != nil {
		return "", s.FailName
	}
	return s.Name, nil
}

func (s *StubSource) Size() int64 {
	if s.Total != 0 {
		return s.Total
	}
	return int64(len(s.Data))
}

func (s *StubSource) Open() (io.ReadCloser, error) {
	if s.FailOpen != nil {
		return nil, s.FailOpen
	}
	if s.FailCopyAfter > 0 {
		return io.NopCloser(&failingReader{
			r:         bytes.NewReader(s.Data),
			failAfter: s.FailCopyAfter,
		}), nil
	}
	return io.NopCloser(bytes.NewReader(s.Data)), nil
}

func (s *StubSource) Remove() error {
	if s.FailRemove != nil {
		return s.FailRemove
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = true
	return nil
}

// Removed reports whether Remove succeeded.
func (s *StubSource) Removed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removed
}

// failingReader returns bytes until failAfter is reached, then errors.
type failingReader struct {
	r         io.Reader
	failAfter int
	read      int
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.read >= f.failAfter {
		return 0, errors.New("simulated read failure")
	}
	if remaining := f.failAfter - f.read; len(p) > remaining {
		p = p[:remaining]
	}
	n, err := f.r.Read(p)
	f.read += n
	return n, err
}

// Compile-time check that StubSource implements fv.Source.
var _ fv.Source = (*StubSource)(nil)
