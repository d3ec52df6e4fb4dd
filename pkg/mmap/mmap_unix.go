//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

func mapFile(f *os.File, size int, writable bool) ([]byte, func() error, func() error, error) {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, nil, err
	}

	flush := func() error {
		if !writable {
			return nil
		}
		return unix.Msync(data, unix.MS_SYNC)
	}
	free := func() error {
		return unix.Munmap(data)
	}

	return data, flush, free, nil
}
