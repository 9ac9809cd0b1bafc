package artifact

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Candidate is a file offered for selection.
type Candidate interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

type fileCandidate struct {
	path string
	size int64
}

// FileCandidate stats path and returns a candidate backed by the file on disk.
func FileCandidate(path string) (Candidate, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &fileCandidate{path: path, size: fi.Size()}, nil
}

func (f *fileCandidate) Name() string { return filepath.Base(f.path) }
func (f *fileCandidate) Size() int64  { return f.size }

func (f *fileCandidate) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

type bytesCandidate struct {
	name string
	data []byte
}

// BytesCandidate wraps an in-memory artifact.
func BytesCandidate(name string, data []byte) Candidate {
	return &bytesCandidate{name: name, data: data}
}

func (b *bytesCandidate) Name() string { return b.name }
func (b *bytesCandidate) Size() int64  { return int64(len(b.data)) }

func (b *bytesCandidate) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}
