package segment

import (
	"fmt"
	"sort"
	"sync/atomic"

	"segdb/pkg/dberrors"
	"segdb/pkg/mmap"
	"segdb/pkg/types"
)

type Options struct {
	// BloomFPRate of 0 disables the bloom filter.
	BloomFPRate float64
}

// Segment is a read-only, memory mapped view of one segment file.
type Segment struct {
	id     types.SeqN
	path   string
	size   int64
	arena  *mmap.Arena
	region *mmap.Region

	// owner reference plus one per reader that pinned the segment
	refs atomic.Int64

	// record start offsets in key order
	offsets []int64
	bloom   *Bloom
}

// Open maps the file at path and indexes its records. A file whose records
// run past its end or whose keys are not strictly increasing is rejected
// with dberrors.ErrCorrupted.
func Open(arena *mmap.Arena, path string, id types.SeqN, opts Options) (*Segment, error) {
	region, err := arena.Map(path)
	if err != nil {
		return nil, err
	}

	s := &Segment{
		id:     id,
		path:   path,
		size:   int64(region.Len()),
		arena:  arena,
		region: region,
	}
	s.refs.Store(1)

	err = region.View(func(span []byte) error {
		return s.index(span, opts)
	})
	if err != nil {
		_ = arena.Release(region)
		return nil, fmt.Errorf("segment %s: %w", path, err)
	}

	return s, nil
}

func (s *Segment) index(span []byte, opts Options) error {
	var prev types.Key
	for off := int64(0); off < int64(len(span)); {
		e, next, err := Decode(span, off)
		if err != nil {
			return err
		}
		if len(s.offsets) > 0 && types.Compare(prev, e.Key) >= 0 {
			return fmt.Errorf("%w: key %q at offset %d is not greater than %q", dberrors.ErrCorrupted, e.Key, off, prev)
		}

		s.offsets = append(s.offsets, off)
		prev = e.Key
		off = next
	}

	if opts.BloomFPRate > 0 && len(s.offsets) > 0 {
		s.bloom = NewBloom(len(s.offsets), opts.BloomFPRate)
		for _, off := range s.offsets {
			s.bloom.Add(keyAt(span, off))
		}
	}

	return nil
}

func (s *Segment) ID() types.SeqN { return s.id }

func (s *Segment) Path() string { return s.path }

// Len is the number of records, tombstones included.
func (s *Segment) Len() int { return len(s.offsets) }

// Size is the file size in bytes.
func (s *Segment) Size() int64 { return s.size }

// Ref pins the mapping. Every Ref must be matched by one Unref.
func (s *Segment) Ref() { s.refs.Add(1) }

// Unref drops a reference and unmaps the segment when it was the last one.
// The reference taken by Open belongs to whoever owns the segment. Unref
// must not be called inside Borrow or View of the arena.
func (s *Segment) Unref() error {
	n := s.refs.Add(-1)
	switch {
	case n > 0:
		return nil
	case n < 0:
		panic("segment: Unref without matching Ref")
	}

	if err := s.arena.Release(s.region); err != nil {
		return fmt.Errorf("segment %s: %w", s.path, err)
	}
	return nil
}

// Mapped reports whether the segment still holds its mapping.
func (s *Segment) Mapped() bool { return s.refs.Load() > 0 }

// search returns the index of the first record with key >= key.
func (s *Segment) search(span []byte, key types.Key) int {
	return sort.Search(len(s.offsets), func(i int) bool {
		return types.Compare(keyAt(span, s.offsets[i]), key) >= 0
	})
}

// Get looks key up by binary search. The returned entry is a copy and stays
// valid after the arena is closed.
func (s *Segment) Get(key types.Key) (types.Entry, bool, error) {
	if s.bloom != nil && !s.bloom.MayContain(key) {
		return types.Entry{}, false, nil
	}

	var (
		found types.Entry
		ok    bool
	)
	err := s.region.View(func(span []byte) error {
		i := s.search(span, key)
		if i == len(s.offsets) {
			return nil
		}

		e, _, err := Decode(span, s.offsets[i])
		if err != nil {
			return err
		}
		if types.Compare(e.Key, key) == 0 {
			found, ok = e.Clone(), true
		}
		return nil
	})
	if err != nil {
		return types.Entry{}, false, fmt.Errorf("segment %s: %w", s.path, err)
	}

	return found, ok, nil
}

// Cursor walks the records with from <= key < to (nil bounds are open).
// Cursor and every Cursor method read mapped memory without liveness
// checks: call them only inside Borrow of the segment's arena.
func (s *Segment) Cursor(from, to types.Key) *Cursor {
	c := &Cursor{s: s, to: to}
	if from != nil {
		c.i = s.search(s.region.Bytes(), from)
	}
	return c
}

type Cursor struct {
	s  *Segment
	i  int
	to types.Key
}

func (c *Cursor) Valid() bool {
	if c.i >= len(c.s.offsets) {
		return false
	}
	return c.to == nil || types.Compare(c.Key(), c.to) < 0
}

func (c *Cursor) Next() { c.i++ }

// Key aliases mapped memory.
func (c *Cursor) Key() types.Key {
	return keyAt(c.s.region.Bytes(), c.s.offsets[c.i])
}

// Entry aliases mapped memory.
func (c *Cursor) Entry() (types.Entry, error) {
	e, _, err := Decode(c.s.region.Bytes(), c.s.offsets[c.i])
	return e, err
}
