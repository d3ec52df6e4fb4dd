package segment

import (
	"encoding/binary"
	"fmt"

	"segdb/pkg/dberrors"
	"segdb/pkg/types"
)

// Record layout, repeated until the end of the file:
//
//	keyLen   uint64, little endian
//	valueLen int64,  little endian, -1 for a tombstone
//	key      keyLen bytes
//	value    valueLen bytes, absent for a tombstone
//
// There is no header, padding or checksum.
const (
	lenFieldSize     = 8
	recordHeaderSize = 2 * lenFieldSize

	tombstoneLen int64 = -1
)

var order = binary.LittleEndian

// RecordSize is the encoded size of e.
func RecordSize(e types.Entry) int64 {
	size := int64(recordHeaderSize + len(e.Key))
	if !e.Tombstone {
		size += int64(len(e.Value))
	}
	return size
}

// Size is the encoded size of a run of entries.
func Size(entries []types.Entry) int64 {
	var total int64
	for _, e := range entries {
		total += RecordSize(e)
	}
	return total
}

// EncodeTo writes entries into dst and returns the number of bytes written.
func EncodeTo(dst []byte, entries []types.Entry) (int64, error) {
	var off int64
	for _, e := range entries {
		if off+RecordSize(e) > int64(len(dst)) {
			return off, fmt.Errorf("%w: record %q does not fit into %d bytes", dberrors.ErrInvalidArgument, e.Key, len(dst))
		}

		order.PutUint64(dst[off:], uint64(len(e.Key)))
		off += lenFieldSize

		valueLen := tombstoneLen
		if !e.Tombstone {
			valueLen = int64(len(e.Value))
		}
		order.PutUint64(dst[off:], uint64(valueLen))
		off += lenFieldSize

		off += int64(copy(dst[off:], e.Key))
		if !e.Tombstone {
			off += int64(copy(dst[off:], e.Value))
		}
	}

	return off, nil
}

// Decode reads the record starting at off. The returned entry aliases span.
func Decode(span []byte, off int64) (types.Entry, int64, error) {
	size := int64(len(span))
	if off < 0 || off+recordHeaderSize > size {
		return types.Entry{}, off, fmt.Errorf("%w: record header at offset %d exceeds %d bytes", dberrors.ErrCorrupted, off, size)
	}

	keyLen := order.Uint64(span[off:])
	valueLen := int64(order.Uint64(span[off+lenFieldSize:]))
	off += recordHeaderSize

	remaining := size - off
	if keyLen > uint64(remaining) {
		return types.Entry{}, off, fmt.Errorf("%w: key length %d at offset %d exceeds %d remaining bytes", dberrors.ErrCorrupted, keyLen, off, remaining)
	}
	keyEnd := off + int64(keyLen)
	e := types.Entry{Key: span[off:keyEnd:keyEnd]}
	remaining -= int64(keyLen)

	switch {
	case valueLen == tombstoneLen:
		e.Tombstone = true
		return e, keyEnd, nil
	case valueLen < 0 || valueLen > remaining:
		return types.Entry{}, off, fmt.Errorf("%w: value length %d at offset %d exceeds %d remaining bytes", dberrors.ErrCorrupted, valueLen, keyEnd, remaining)
	}

	valueEnd := keyEnd + valueLen
	e.Value = span[keyEnd:valueEnd:valueEnd]
	return e, valueEnd, nil
}

// keyAt reads the key of a record already validated by Decode.
func keyAt(span []byte, off int64) types.Key {
	keyLen := int64(order.Uint64(span[off:]))
	start := off + recordHeaderSize
	return span[start : start+keyLen : start+keyLen]
}
