package store

import (
	"fmt"

	"segdb/pkg/memtable"
)

// flush writes the buffer out and swaps in an empty one. Callers hold s.mu
// exclusively, so no upsert can land in the buffer being written.
func (s *Store) flush() error {
	if s.mt.Len() == 0 {
		return nil
	}

	snapshot := s.mt.Sorted()
	if err := s.disk.Save(snapshot); err != nil {
		return fmt.Errorf("failed to flush memtable: %w", err)
	}

	fresh, err := memtable.FromConfig(s.cfg.Memtable)
	if err != nil {
		return err
	}
	s.mt = fresh

	s.log.Debug("memtable flushed", "entries", len(snapshot))
	return nil
}

// flushIfFull flushes unless a concurrent writer already did.
func (s *Store) flushIfFull() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.mt.SizeBytes() < s.cfg.Memtable.FlushThresholdBytes {
		return nil
	}
	return s.flush()
}
