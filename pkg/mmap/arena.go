// Package mmap owns the memory mappings that back on-disk segments.
//
// Every mapping belongs to an Arena. Mapped bytes may only be touched while
// the arena is open: Region.View and Arena.Borrow hold a shared lock for the
// duration of the callback and fail with dberrors.ErrArenaClosed afterwards,
// so Close never unmaps memory that a reader is still looking at.
package mmap

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"segdb/pkg/dberrors"
)

// ErrReleased is returned by View on a region that was released on its own,
// before the arena was closed.
var ErrReleased = errors.New("segdb: mapping released")

type Arena struct {
	mu      sync.RWMutex
	closed  bool
	regions map[*Region]struct{}
}

func NewArena() *Arena {
	return &Arena{regions: make(map[*Region]struct{})}
}

// Region is one mapped file.
type Region struct {
	arena    *Arena
	path     string
	data     []byte
	flush    func() error
	free     func() error
	released bool
}

func noop() error { return nil }

// Map maps the whole file at path read-only. The file handle is closed
// before Map returns; the mapping stays valid until release.
func (a *Arena) Map(path string) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return a.mapFile(f, st.Size(), false)
}

// MapWritable creates or truncates path to size bytes and maps it
// read-write. Writes become durable after Sync.
func (a *Arena) MapWritable(path string, size int64) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := f.Truncate(size); err != nil {
		return nil, fmt.Errorf("failed to size %s: %w", path, err)
	}

	return a.mapFile(f, size, true)
}

func (a *Arena) mapFile(f *os.File, size int64, writable bool) (*Region, error) {
	if size < 0 || size > math.MaxInt {
		return nil, fmt.Errorf("%w: %s has unmappable size %d", dberrors.ErrInvalidArgument, f.Name(), size)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, dberrors.ErrArenaClosed
	}

	r := &Region{arena: a, path: f.Name(), flush: noop, free: noop}
	if size > 0 {
		data, flush, free, err := mapFile(f, int(size), writable)
		if err != nil {
			return nil, fmt.Errorf("failed to map %s: %w", f.Name(), err)
		}
		r.data, r.flush, r.free = data, flush, free
	}

	a.regions[r] = struct{}{}
	return r, nil
}

// Borrow runs fn while holding the arena open. fn may use Region.Bytes of
// any region of this arena but must not call Borrow or View itself.
func (a *Arena) Borrow(fn func() error) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return dberrors.ErrArenaClosed
	}
	return fn()
}

// Release unmaps a single region ahead of Close.
func (a *Arena) Release(r *Region) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || r.released {
		return nil
	}
	return a.release(r)
}

func (a *Arena) release(r *Region) error {
	delete(a.regions, r)
	r.released = true
	r.data = nil

	if err := r.free(); err != nil {
		return fmt.Errorf("failed to unmap %s: %w", r.path, err)
	}
	return nil
}

// Close unmaps every region. Closing a closed arena is a no-op.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	for r := range a.regions {
		if err := a.release(r); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Regions is the number of live mappings.
func (a *Arena) Regions() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.regions)
}

func (a *Arena) Closed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.closed
}

// Len is the mapped size in bytes.
func (r *Region) Len() int {
	return len(r.data)
}

func (r *Region) Path() string {
	return r.path
}

// Bytes exposes the mapping without liveness checks. Only valid inside
// Arena.Borrow of the owning arena.
func (r *Region) Bytes() []byte {
	return r.data
}

// View runs fn over the mapped bytes if the region is still live. The slice
// must not be retained after fn returns.
func (r *Region) View(fn func([]byte) error) error {
	r.arena.mu.RLock()
	defer r.arena.mu.RUnlock()

	if r.arena.closed {
		return dberrors.ErrArenaClosed
	}
	if r.released {
		return ErrReleased
	}
	return fn(r.data)
}

// Sync flushes a writable mapping to its file.
func (r *Region) Sync() error {
	return r.View(func([]byte) error {
		return r.flush()
	})
}
