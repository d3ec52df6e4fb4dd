package batch

import "segdb/pkg/types"

// WriteBatch groups multiple mutations atomically.
type WriteBatch interface {
	Put(key types.Key, value types.Value)
	Delete(key types.Key)
	Clear()
	Count() int
	Entries() []types.Entry
}

// Batch is a WriteBatch that records mutations in order. Keys and values
// are copied, so callers may reuse their buffers.
type Batch struct {
	entries []types.Entry
}

var _ WriteBatch = (*Batch)(nil)

func New() *Batch {
	return &Batch{}
}

func (b *Batch) Put(key types.Key, value types.Value) {
	b.entries = append(b.entries, types.Put(key, value).Clone())
}

func (b *Batch) Delete(key types.Key) {
	b.entries = append(b.entries, types.Delete(key).Clone())
}

func (b *Batch) Clear() {
	clear(b.entries)
	b.entries = b.entries[:0]
}

func (b *Batch) Count() int {
	return len(b.entries)
}

// Entries returns the recorded mutations, later ones last.
func (b *Batch) Entries() []types.Entry {
	return b.entries
}
