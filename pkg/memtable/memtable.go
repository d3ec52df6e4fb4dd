package memtable

import (
	"fmt"
	"sync/atomic"

	"github.com/zhangyunhao116/skipmap"

	"segdb/pkg/config"
	"segdb/pkg/dberrors"
	"segdb/pkg/iterator"
	"segdb/pkg/types"
)

// Table is the sorted write buffer. Implementations are safe for concurrent
// use without external locking.
type Table interface {
	// Upsert inserts e or replaces the entry stored under e.Key.
	Upsert(e types.Entry)
	// Get returns the entry for key. A tombstone is returned as found.
	Get(key types.Key) (types.Entry, bool)
	// Scan iterates over from <= key < to. A nil bound is open.
	Scan(from, to types.Key) iterator.Iterator
	// Sorted returns every entry in key order.
	Sorted() []types.Entry
	Len() int
	// SizeBytes approximates the encoded size of the buffer.
	SizeBytes() int64
}

const lenFieldsSize = 8 + 8

// FromConfig builds the Table selected by cfg.Kind.
func FromConfig(cfg config.MemtableConfig) (Table, error) {
	switch cfg.Kind {
	case config.MemtableSkipMap, "":
		return New(), nil
	case config.MemtableBTree:
		return NewBTree(cfg.BTreeDegree), nil
	default:
		return nil, fmt.Errorf("%w: unknown memtable kind %q", dberrors.ErrInvalidConfig, cfg.Kind)
	}
}

type concurrentMap = skipmap.FuncMap[[]byte, types.Entry]

// Memtable is a lock-free skip list keyed by types.Compare.
type Memtable struct {
	m *concurrentMap
	// grows on every upsert, overwrites included
	size atomic.Int64
}

var _ Table = (*Memtable)(nil)

func New() *Memtable {
	return &Memtable{
		m: skipmap.NewFunc[[]byte, types.Entry](types.Less),
	}
}

func (mt *Memtable) Upsert(e types.Entry) {
	e = e.Clone()
	mt.m.Store(e.Key, e)
	mt.size.Add(entrySize(e))
}

func (mt *Memtable) Get(key types.Key) (types.Entry, bool) {
	return mt.m.Load(key)
}

func (mt *Memtable) Scan(from, to types.Key) iterator.Iterator {
	return iterator.Pull(func(yield func(types.Entry) bool) {
		mt.m.Range(func(k []byte, e types.Entry) bool {
			if iterator.InRange(k, from, to) {
				return yield(e)
			}
			// keys ascend: once past to nothing else matches
			return to == nil || types.Compare(k, to) < 0
		})
	})
}

func (mt *Memtable) Sorted() []types.Entry {
	result := make([]types.Entry, 0, mt.m.Len())
	mt.m.Range(func(_ []byte, e types.Entry) bool {
		result = append(result, e)
		return true
	})

	return result
}

func (mt *Memtable) Len() int {
	return mt.m.Len()
}

func (mt *Memtable) SizeBytes() int64 {
	return mt.size.Load()
}

func entrySize(e types.Entry) int64 {
	return int64(lenFieldsSize + len(e.Key) + len(e.Value))
}
