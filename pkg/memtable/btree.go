package memtable

import (
	"sync"

	"github.com/google/btree"

	"segdb/pkg/iterator"
	"segdb/pkg/types"
)

const DefaultBTreeDegree = 32

// BTree is a mutex guarded B-tree. Scans work on a copy-on-write clone, so
// a long scan does not hold the lock.
type BTree struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[types.Entry]
	size int64
}

var _ Table = (*BTree)(nil)

func NewBTree(degree int) *BTree {
	if degree < 2 {
		degree = DefaultBTreeDegree
	}
	return &BTree{
		tree: btree.NewG[types.Entry](degree, func(a, b types.Entry) bool {
			return types.Less(a.Key, b.Key)
		}),
	}
}

func (bt *BTree) Upsert(e types.Entry) {
	e = e.Clone()

	bt.mu.Lock()
	defer bt.mu.Unlock()

	if old, replaced := bt.tree.ReplaceOrInsert(e); replaced {
		bt.size -= entrySize(old)
	}
	bt.size += entrySize(e)
}

func (bt *BTree) Get(key types.Key) (types.Entry, bool) {
	bt.mu.RLock()
	defer bt.mu.RUnlock()

	return bt.tree.Get(types.Entry{Key: key})
}

func (bt *BTree) snapshot() *btree.BTreeG[types.Entry] {
	// Clone must not run concurrently with writers
	bt.mu.Lock()
	defer bt.mu.Unlock()

	return bt.tree.Clone()
}

func (bt *BTree) Scan(from, to types.Key) iterator.Iterator {
	snap := bt.snapshot()

	return iterator.Pull(func(yield func(types.Entry) bool) {
		visit := func(e types.Entry) bool {
			if !iterator.InRange(e.Key, from, to) {
				return false
			}
			return yield(e)
		}

		if from == nil {
			snap.Ascend(visit)
			return
		}
		snap.AscendGreaterOrEqual(types.Entry{Key: from}, visit)
	})
}

func (bt *BTree) Sorted() []types.Entry {
	snap := bt.snapshot()

	result := make([]types.Entry, 0, snap.Len())
	snap.Ascend(func(e types.Entry) bool {
		result = append(result, e)
		return true
	})

	return result
}

func (bt *BTree) Len() int {
	bt.mu.RLock()
	defer bt.mu.RUnlock()

	return bt.tree.Len()
}

func (bt *BTree) SizeBytes() int64 {
	bt.mu.RLock()
	defer bt.mu.RUnlock()

	return bt.size
}
