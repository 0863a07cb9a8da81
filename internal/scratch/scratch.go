// Package scratch provides the short-lived byte sinks one exchange writes
// raw header bytes and verbose protocol output into.
package scratch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/multierr"
)

// Buffer kinds.
const (
	KindHeaders = "headers"
	KindVerbose = "verbose"
)

// ErrClosed is returned by operations on a released buffer.
var ErrClosed = errors.New("scratch buffer closed")

// Buffer is a rewindable sink. Writes may arrive from transport goroutines,
// so implementations are safe for concurrent use.
type Buffer interface {
	io.Writer
	io.Closer
	// Rewind moves the read position back to the start.
	Rewind() error
	// ReadAll returns everything written so far, from the read position.
	ReadAll() ([]byte, error)
	Kind() string
}

// Allocator hands out buffers.
type Allocator interface {
	Allocate(kind string) (Buffer, error)
}

// Memory allocates in-memory buffers.
type Memory struct{}

// Allocate never fails.
func (Memory) Allocate(kind string) (Buffer, error) {
	return &memBuffer{kind: kind}, nil
}

type memBuffer struct {
	mu     sync.Mutex
	kind   string
	buf    bytes.Buffer
	offset int
	closed bool
}

func (b *memBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, ErrClosed
	}
	return b.buf.Write(p)
}

func (b *memBuffer) Rewind() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.offset = 0
	return nil
}

func (b *memBuffer) ReadAll() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	data := b.buf.Bytes()[b.offset:]
	b.offset = b.buf.Len()
	return bytes.Clone(data), nil
}

func (b *memBuffer) Kind() string { return b.kind }

func (b *memBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.buf.Reset()
	return nil
}

// TempFile allocates file-backed buffers under Dir (os.TempDir when
// empty). The file is removed on Close.
type TempFile struct {
	Dir string
}

// Allocate creates the backing file.
func (t TempFile) Allocate(kind string) (Buffer, error) {
	f, err := os.CreateTemp(t.Dir, "curlx-"+kind+"-*")
	if err != nil {
		return nil, fmt.Errorf("create %s scratch file: %w", kind, err)
	}
	return &fileBuffer{kind: kind, f: f}, nil
}

type fileBuffer struct {
	mu     sync.Mutex
	kind   string
	f      *os.File
	read   int64
	closed bool
}

func (b *fileBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, ErrClosed
	}
	if _, err := b.f.Seek(0, io.SeekEnd); err != nil {
		return 0, err
	}
	return b.f.Write(p)
}

func (b *fileBuffer) Rewind() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.read = 0
	return nil
}

func (b *fileBuffer) ReadAll() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if _, err := b.f.Seek(b.read, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(b.f)
	if err != nil {
		return nil, err
	}
	b.read += int64(len(data))
	return data, nil
}

func (b *fileBuffer) Kind() string { return b.kind }

func (b *fileBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	name := b.f.Name()
	return multierr.Combine(b.f.Close(), os.Remove(name))
}
