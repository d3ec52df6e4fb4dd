package storage

import (
	"container/heap"
	"errors"

	"segdb/pkg/iterator"
	"segdb/pkg/mmap"
	"segdb/pkg/segment"
	"segdb/pkg/types"
)

// source is one sorted input of a merge: the write buffer or one segment.
type source struct {
	// higher rank is newer; the buffer outranks every segment
	rank int
	buf  iterator.Iterator
	cur  *segment.Cursor
}

func (s *source) valid() bool {
	if s.buf != nil {
		return s.buf.Valid()
	}
	return s.cur.Valid()
}

func (s *source) key() types.Key {
	if s.buf != nil {
		return s.buf.Key()
	}
	return s.cur.Key()
}

func (s *source) entry() (types.Entry, error) {
	if s.buf != nil {
		return s.buf.Entry(), nil
	}
	return s.cur.Entry()
}

func (s *source) next() error {
	if s.buf != nil {
		s.buf.Next()
		return s.buf.Err()
	}
	s.cur.Next()
	return nil
}

// sourceHeap keeps the smallest key on top, newest source first on ties.
type sourceHeap []*source

func (h sourceHeap) Len() int { return len(h) }

func (h sourceHeap) Less(i, j int) bool {
	if c := types.Compare(h[i].key(), h[j].key()); c != 0 {
		return c < 0
	}
	return h[i].rank > h[j].rank
}

func (h sourceHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *sourceHeap) Push(x any) { *h = append(*h, x.(*source)) }

func (h *sourceHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// mergeIterator is a k-way merge of the write buffer and a set of segments.
// Every step runs inside an arena borrow, so an iterator that outlives the
// arena stops with dberrors.ErrArenaClosed instead of touching unmapped
// memory. Entries taken from segments are copied before being exposed.
//
// The iterator owns one reference on every segment it merges and drops them
// once it is exhausted, fails or is closed.
type mergeIterator struct {
	arena *mmap.Arena
	buf   iterator.Iterator
	segs  []*segment.Segment
	h     sourceHeap

	cur   types.Entry
	valid bool
	err   error
}

var _ iterator.Iterator = (*mergeIterator)(nil)

// newMergeIterator merges buf (may be nil) over segs, oldest segment first.
// buf must already be limited to [from, to). segs must be pinned, the
// iterator takes over those references.
func newMergeIterator(arena *mmap.Arena, buf iterator.Iterator, segs []*segment.Segment, from, to types.Key) *mergeIterator {
	it := &mergeIterator{arena: arena, buf: buf, segs: segs}

	err := arena.Borrow(func() error {
		for i, seg := range segs {
			c := seg.Cursor(from, to)
			if c.Valid() {
				it.h = append(it.h, &source{rank: i, cur: c})
			}
		}
		if buf != nil {
			if err := buf.Err(); err != nil {
				return err
			}
			if buf.Valid() {
				it.h = append(it.h, &source{rank: len(segs), buf: buf})
			}
		}

		heap.Init(&it.h)
		return it.advance()
	})
	if err != nil {
		it.fail(err)
	}
	if !it.valid {
		it.unpin()
	}

	return it
}

// advance moves to the next visible entry. Every source positioned on the
// winning key is stepped past it, and tombstones are consumed but never
// emitted.
func (it *mergeIterator) advance() error {
	for it.h.Len() > 0 {
		winner := it.h[0]
		key := winner.key()

		e, err := winner.entry()
		if err != nil {
			return err
		}
		if winner.cur != nil && !e.Tombstone {
			e = e.Clone()
		}

		for it.h.Len() > 0 && types.Compare(it.h[0].key(), key) == 0 {
			s := it.h[0]
			if err := s.next(); err != nil {
				return err
			}
			if s.valid() {
				heap.Fix(&it.h, 0)
			} else {
				heap.Pop(&it.h)
			}
		}

		if e.Tombstone {
			continue
		}

		it.cur, it.valid = e, true
		return nil
	}

	it.cur, it.valid = types.Entry{}, false
	return nil
}

func (it *mergeIterator) fail(err error) {
	it.err = err
	it.cur, it.valid = types.Entry{}, false
	it.h = nil
}

func (it *mergeIterator) Valid() bool { return it.valid }

func (it *mergeIterator) Next() {
	if !it.valid {
		return
	}
	if err := it.arena.Borrow(it.advance); err != nil {
		it.fail(err)
	}
	if !it.valid {
		it.unpin()
	}
}

// unpin drops the segment references. It runs outside Borrow because the
// last reference unmaps the segment.
func (it *mergeIterator) unpin() {
	var errs []error
	for _, seg := range it.segs {
		errs = append(errs, seg.Unref())
	}
	it.segs = nil

	if err := errors.Join(errs...); err != nil {
		it.err = errors.Join(it.err, err)
	}
}

func (it *mergeIterator) Key() types.Key     { return it.cur.Key }
func (it *mergeIterator) Value() types.Value { return it.cur.Value }
func (it *mergeIterator) Entry() types.Entry { return it.cur }
func (it *mergeIterator) Err() error         { return it.err }

func (it *mergeIterator) Close() error {
	it.valid = false
	it.h = nil
	it.unpin()
	if it.buf != nil {
		return it.buf.Close()
	}
	return nil
}
