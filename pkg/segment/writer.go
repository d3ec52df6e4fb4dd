package segment

import (
	"errors"
	"fmt"
	"os"

	"segdb/pkg/dberrors"
	"segdb/pkg/mmap"
	"segdb/pkg/types"
)

const TmpSuffix = ".tmp"

// Write stores entries as a segment file at path. Entries must be sorted by
// key without duplicates. The file is built under path+TmpSuffix through a
// transient read-write mapping and renamed into place once synced, so path
// is either absent, the old file, or complete.
func Write(arena *mmap.Arena, path string, entries []types.Entry) (size int64, err error) {
	for i := 1; i < len(entries); i++ {
		if types.Compare(entries[i-1].Key, entries[i].Key) >= 0 {
			return 0, fmt.Errorf("%w: keys %q and %q are not strictly increasing", dberrors.ErrInvalidArgument, entries[i-1].Key, entries[i].Key)
		}
	}

	tmp := path + TmpSuffix
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	size = Size(entries)
	region, err := arena.MapWritable(tmp, size)
	if err != nil {
		return 0, err
	}

	err = region.View(func(dst []byte) error {
		_, err := EncodeTo(dst, entries)
		return err
	})
	if err == nil {
		err = region.Sync()
	}
	if releaseErr := arena.Release(region); err == nil {
		err = releaseErr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to encode segment %s: %w", path, err)
	}

	if err := syncFile(tmp); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, fmt.Errorf("failed to install segment %s: %w", path, err)
	}

	return size, nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s for sync: %w", path, err)
	}
	return errors.Join(f.Sync(), f.Close())
}
