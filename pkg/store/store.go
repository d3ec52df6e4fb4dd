// Package store is the storage engine: a sorted in-memory write buffer in
// front of immutable memory mapped segments.
//
// Writes only touch the buffer. Reads consult the buffer first and then the
// segments, newest first. The buffer reaches disk on Flush, Compact, Close,
// or automatically once it grows past the configured threshold. Writes
// accepted since the last flush are lost if the process dies.
package store

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"

	"segdb/pkg/batch"
	"segdb/pkg/config"
	"segdb/pkg/dberrors"
	"segdb/pkg/iterator"
	"segdb/pkg/memtable"
	"segdb/pkg/mmap"
	"segdb/pkg/storage"
	"segdb/pkg/types"
)

type Store struct {
	// shared by reads and upserts, exclusive for flush, compaction and close
	mu     sync.RWMutex
	closed bool

	cfg   config.Config
	log   *slog.Logger
	arena *mmap.Arena
	disk  *storage.Disk
	mt    memtable.Table
}

type Option func(*Store)

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// Open recovers the store rooted at cfg.Persistence.RootPath, creating the
// directory if needed.
func Open(cfg config.Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		cfg:   cfg,
		log:   slog.Default(),
		arena: mmap.NewArena(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mt, err := memtable.FromConfig(cfg.Memtable)
	if err != nil {
		return nil, err
	}
	s.mt = mt

	disk, err := storage.Open(cfg.Persistence.RootPath, s.arena, storage.Options{
		Mode:        cfg.Persistence.Mode,
		BloomFPRate: cfg.Persistence.BloomFilter.FPRate,
		Logger:      s.log,
	})
	if err != nil {
		_ = s.arena.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	s.disk = disk

	s.log.Info("store opened",
		"path", cfg.Persistence.RootPath,
		"mode", cfg.Persistence.Mode,
		"memtable", cfg.Memtable.Kind,
	)
	return s, nil
}

// Upsert stores e in the write buffer. If the buffer has grown past the
// flush threshold it is flushed before Upsert returns; a flush error is
// returned but the write itself stays in the buffer.
func (s *Store) Upsert(e types.Entry) error {
	return s.apply(e)
}

// Write applies every mutation of wb in order. No flush runs in the middle
// of a batch, so the whole batch reaches the same segment.
func (s *Store) Write(wb batch.WriteBatch) error {
	if wb.Count() == 0 {
		return nil
	}
	return s.apply(wb.Entries()...)
}

func (s *Store) apply(entries ...types.Entry) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return dberrors.ErrClosed
	}

	for _, e := range entries {
		s.mt.Upsert(e)
	}
	threshold := s.cfg.Memtable.FlushThresholdBytes
	full := threshold > 0 && s.mt.SizeBytes() >= threshold
	s.mu.RUnlock()

	if full {
		return s.flushIfFull()
	}
	return nil
}

func (s *Store) Put(key types.Key, value types.Value) error {
	return s.Upsert(types.Put(key, value))
}

func (s *Store) Delete(key types.Key) error {
	return s.Upsert(types.Delete(key))
}

// Get returns the visible entry for key. Deleted keys are reported as not
// found. The returned slices must not be modified.
func (s *Store) Get(key types.Key) (types.Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return types.Entry{}, false, dberrors.ErrClosed
	}

	// first check memtable
	if e, ok := s.mt.Get(key); ok {
		if e.Tombstone {
			return types.Entry{}, false, nil
		}
		return e, true, nil
	}

	e, ok, err := s.disk.Get(key)
	if err != nil {
		return types.Entry{}, false, fmt.Errorf("failed to get from storage: %w", err)
	}
	if !ok || e.Tombstone {
		return types.Entry{}, false, nil
	}

	return e, true, nil
}

// Scan iterates over the visible entries with from <= key < to in key
// order. A nil bound is open, so Scan(nil, nil) is a full scan. The set of
// segments is fixed when the iterator is created; writes made to the buffer
// afterwards may or may not be seen. The iterator fails with
// dberrors.ErrArenaClosed if the store is closed under it.
func (s *Store) Scan(from, to types.Key) iterator.Iterator {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return iterator.Error(dberrors.ErrClosed)
	}

	from, to = bytes.Clone(from), bytes.Clone(to)
	return s.disk.Range(s.mt.Scan(from, to), from, to)
}

// Flush persists the write buffer and starts a new one.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return dberrors.ErrClosed
	}
	return s.flush()
}

// Compact flushes the buffer and merges all segments into one.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return dberrors.ErrClosed
	}
	if err := s.flush(); err != nil {
		return err
	}
	if err := s.disk.Compact(); err != nil {
		return fmt.Errorf("failed to compact storage: %w", err)
	}
	return nil
}

// Close flushes the buffer and releases every mapping. If the flush fails
// the store stays open, so Close can be retried without losing writes.
// Closing a closed store is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.arena.Closed() {
		return nil
	}

	if err := s.flush(); err != nil {
		return err
	}

	s.closed = true
	if err := s.arena.Close(); err != nil {
		return fmt.Errorf("failed to release mappings: %w", err)
	}

	s.log.Info("store closed", "path", s.cfg.Persistence.RootPath)
	return nil
}

type Stats struct {
	MemtableEntries int
	MemtableBytes   int64
	Disk            storage.Stats
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		MemtableEntries: s.mt.Len(),
		MemtableBytes:   s.mt.SizeBytes(),
		Disk:            s.disk.Stats(),
	}
}
