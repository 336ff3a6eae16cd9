// Package byteio provides the thread-safe random-access byte sources that
// every format backend reads from: a file-backed source and an in-memory
// source, plus a cursor adapter for libraries that insist on a stream
// interface (archive/zip, ion readers).
package byteio

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Source is a stateless, concurrency-safe random-access byte provider.
// ReadAt never advances any internal position and may be called concurrently
// by multiple goroutines or shared across multiple Books reading the same
// underlying file.
type Source interface {
	// Len returns the total number of bytes available.
	Len() int64
	// ReadAt returns exactly n bytes starting at off, or an error if the
	// range is out of bounds or the underlying I/O fails.
	ReadAt(off int64, n int) ([]byte, error)
}

// memSource is a Source backed by an in-memory byte slice.
type memSource struct {
	data []byte
}

// NewMemSource wraps data (not copied) as a Source.
func NewMemSource(data []byte) Source {
	return &memSource{data: data}
}

func (m *memSource) Len() int64 { return int64(len(m.data)) }

func (m *memSource) ReadAt(off int64, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+int64(n) > int64(len(m.data)) {
		return nil, fmt.Errorf("byteio: read [%d,%d) out of bounds (len=%d)", off, off+int64(n), len(m.data))
	}
	return m.data[off : off+int64(n)], nil
}

// fileSource is a Source backed by an *os.File using positional reads, safe
// for concurrent use since os.File.ReadAt does not share a cursor.
type fileSource struct {
	f    *os.File
	size int64
	mu   sync.Mutex // guards Close only; ReadAt itself needs no lock
}

// OpenFile opens path for random-access reading.
func OpenFile(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("byteio: open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("byteio: stat %s: %w", path, err)
	}
	return &fileSource{f: f, size: fi.Size()}, nil
}

func (s *fileSource) Len() int64 { return s.size }

func (s *fileSource) ReadAt(off int64, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+int64(n) > s.size {
		return nil, fmt.Errorf("byteio: read [%d,%d) out of bounds (len=%d)", off, off+int64(n), s.size)
	}
	buf := make([]byte, n)
	if _, err := s.f.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, fmt.Errorf("byteio: read at %d: %w", off, err)
	}
	return buf, nil
}

// Close releases the underlying file handle, if any. Safe to call on a
// memory-backed Source (no-op).
func Close(s Source) error {
	if fs, ok := s.(*fileSource); ok {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		return fs.f.Close()
	}
	return nil
}
