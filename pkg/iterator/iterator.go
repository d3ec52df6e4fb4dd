package iterator

import (
	"iter"

	"segdb/pkg/types"
)

// Iterator walks a sorted sequence of entries once, front to back.
// A fresh iterator is already positioned on its first entry.
type Iterator interface {
	// Valid reports whether the iterator points to an entry.
	Valid() bool
	// Next advances to the next entry.
	Next()
	// Key returns the current key.
	Key() types.Key
	// Value returns the current value.
	Value() types.Value
	// Entry returns the current entry.
	Entry() types.Entry
	// Err returns the error that stopped the iteration, if any.
	Err() error
	// Close releases resources.
	Close() error
}

// Pull adapts a push sequence into an Iterator. The sequence is only
// advanced on demand.
func Pull(seq iter.Seq[types.Entry]) Iterator {
	next, stop := iter.Pull(seq)
	it := &pullIterator{next: next, stop: stop}
	it.Next()
	return it
}

type pullIterator struct {
	next func() (types.Entry, bool)
	stop func()
	cur  types.Entry
	ok   bool
}

func (it *pullIterator) Valid() bool { return it.ok }

func (it *pullIterator) Next() {
	it.cur, it.ok = it.next()
}

func (it *pullIterator) Key() types.Key     { return it.cur.Key }
func (it *pullIterator) Value() types.Value { return it.cur.Value }
func (it *pullIterator) Entry() types.Entry { return it.cur }
func (it *pullIterator) Err() error         { return nil }

func (it *pullIterator) Close() error {
	it.stop()
	it.ok = false
	return nil
}

// Empty returns an iterator with no entries.
func Empty() Iterator { return errIterator{} }

// Error returns an exhausted iterator that reports err.
func Error(err error) Iterator { return errIterator{err: err} }

type errIterator struct{ err error }

func (errIterator) Valid() bool        { return false }
func (errIterator) Next()              {}
func (errIterator) Key() types.Key     { return nil }
func (errIterator) Value() types.Value { return nil }
func (errIterator) Entry() types.Entry { return types.Entry{} }
func (it errIterator) Err() error      { return it.err }
func (errIterator) Close() error       { return nil }

// Collect drains it into a slice and closes it.
func Collect(it Iterator) ([]types.Entry, error) {
	defer it.Close()

	var out []types.Entry
	for ; it.Valid(); it.Next() {
		out = append(out, it.Entry())
	}
	return out, it.Err()
}

// InRange reports whether from <= key < to, nil bounds being open.
func InRange(key, from, to types.Key) bool {
	if from != nil && types.Compare(key, from) < 0 {
		return false
	}
	return to == nil || types.Compare(key, to) < 0
}
