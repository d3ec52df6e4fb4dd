//go:build !unix

package mmap

import (
	"io"
	"os"
)

// mapFile reads the file into memory on platforms without mmap. Writable
// regions are written back on flush.
func mapFile(f *os.File, size int, writable bool) ([]byte, func() error, func() error, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, int64(size)), data); err != nil {
		return nil, nil, nil, err
	}

	if !writable {
		return data, noop, noop, nil
	}

	path := f.Name()
	flush := func() error {
		return os.WriteFile(path, data, 0o644)
	}

	return data, flush, noop, nil
}
