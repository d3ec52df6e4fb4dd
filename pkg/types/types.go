package types

// Key is an immutable byte slice type alias used for clarity.
type Key = []byte

// Value is an immutable byte slice type alias used for clarity.
type Value = []byte

// SeqN orders segments by creation; a larger number is newer.
type SeqN = uint64

// Entry is a key with either a value or a tombstone.
// A tombstone is not the same thing as a zero-length value.
type Entry struct {
	Key       Key
	Value     Value
	Tombstone bool
}

// Put builds a value entry.
func Put(k Key, v Value) Entry {
	if v == nil {
		v = Value{}
	}
	return Entry{Key: k, Value: v}
}

// Delete builds a tombstone for k.
func Delete(k Key) Entry {
	return Entry{Key: k, Tombstone: true}
}

// Clone returns an entry that shares no memory with e.
func (e Entry) Clone() Entry {
	out := Entry{
		Key:       append(Key{}, e.Key...),
		Tombstone: e.Tombstone,
	}
	if !e.Tombstone {
		out.Value = append(Value{}, e.Value...)
	}
	return out
}
