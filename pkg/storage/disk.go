// Package storage manages the on-disk segments of a store and merges them
// with the write buffer into one sorted view.
//
// Two layouts are supported. In multi mode every flush adds a new segment
// named after its sequence number and newer segments shadow older ones. In
// single mode the directory holds one table file that is rewritten as the
// union of its previous contents and the flushed buffer.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"segdb/pkg/clock"
	"segdb/pkg/config"
	"segdb/pkg/dberrors"
	"segdb/pkg/iterator"
	"segdb/pkg/mmap"
	"segdb/pkg/segment"
	"segdb/pkg/types"
)

const (
	SegmentExt = ".seg"
	// TableFile is the only file of a single mode store. In multi mode it is
	// picked up as the oldest segment.
	TableFile = "table" + SegmentExt
)

type Options struct {
	Mode        string
	BloomFPRate float64
	Logger      *slog.Logger
}

type Disk struct {
	// held exclusively by Save and Compact, shared by readers taking a
	// snapshot of segments
	mu sync.RWMutex

	dir   string
	arena *mmap.Arena
	opts  Options
	log   *slog.Logger
	seq   *clock.AtomicClock

	// oldest first; replaced, never mutated in place. Disk owns one
	// reference on each and drops it when the segment is retired.
	segments []*segment.Segment
}

// SegmentStats describes one live segment.
type SegmentStats struct {
	ID      types.SeqN
	Path    string
	Records int
	Bytes   int64
}

type Stats struct {
	Segments []SegmentStats
	Records  int
	Bytes    int64
	// Mappings counts live memory mappings, including retired segments
	// still pinned by open scans.
	Mappings int
}

// SegmentFileName is the file name of the multi mode segment with sequence id.
func SegmentFileName(id types.SeqN) string {
	return fmt.Sprintf("%020d%s", id, SegmentExt)
}

// Open creates dir if needed and recovers the segments found in it.
func Open(dir string, arena *mmap.Arena, opts Options) (*Disk, error) {
	if opts.Mode == "" {
		opts.Mode = config.ModeMulti
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	d := &Disk{
		dir:   dir,
		arena: arena,
		opts:  opts,
		log:   opts.Logger.With("dir", dir, "mode", opts.Mode),
		seq:   clock.NewAtomic(0),
	}

	var err error
	switch opts.Mode {
	case config.ModeMulti:
		err = d.recoverMulti()
	case config.ModeSingle:
		err = d.recoverSingle()
	default:
		err = fmt.Errorf("%w: unknown persistence mode %q", dberrors.ErrInvalidConfig, opts.Mode)
	}
	if err != nil {
		return nil, err
	}

	d.log.Info("storage recovered", "segments", len(d.segments), "last_seq", d.seq.Val())
	return d, nil
}

type segmentFile struct {
	id   types.SeqN
	path string
}

// listSegments removes leftovers of interrupted writes and returns the
// numbered segment files ordered by sequence number.
func (d *Disk) listSegments() ([]segmentFile, error) {
	dirEntries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var files []segmentFile
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() {
			continue
		}

		if strings.HasSuffix(name, segment.TmpSuffix) {
			d.log.Warn("removing unfinished segment", "file", name)
			if err := os.Remove(filepath.Join(d.dir, name)); err != nil {
				return nil, fmt.Errorf("failed to remove %s: %w", name, err)
			}
			continue
		}

		if name == TableFile || !strings.HasSuffix(name, SegmentExt) {
			continue
		}

		id, err := strconv.ParseUint(strings.TrimSuffix(name, SegmentExt), 10, 64)
		if err != nil {
			d.log.Warn("skipping file with unexpected name", "file", name)
			continue
		}
		files = append(files, segmentFile{id: id, path: filepath.Join(d.dir, name)})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].id < files[j].id })
	return files, nil
}

func (d *Disk) segmentOptions() segment.Options {
	return segment.Options{BloomFPRate: d.opts.BloomFPRate}
}

func (d *Disk) recoverMulti() error {
	files, err := d.listSegments()
	if err != nil {
		return err
	}

	// a table left behind by single mode sorts before every numbered segment
	tablePath := filepath.Join(d.dir, TableFile)
	if _, err := os.Stat(tablePath); err == nil {
		files = append([]segmentFile{{id: 0, path: tablePath}}, files...)
	}

	for _, f := range files {
		seg, err := segment.Open(d.arena, f.path, f.id, d.segmentOptions())
		if err != nil {
			return fmt.Errorf("failed to recover segment: %w", err)
		}
		d.segments = append(d.segments, seg)
		d.seq.Observe(f.id)

		d.log.Debug("segment recovered", "segment", f.path, "records", seg.Len(), "bytes", seg.Size())
	}

	return nil
}

func (d *Disk) recoverSingle() error {
	files, err := d.listSegments()
	if err != nil {
		return err
	}
	if len(files) > 0 {
		return fmt.Errorf("%w: %s holds %d numbered segments, single mode needs a lone %s",
			dberrors.ErrInvalidConfig, d.dir, len(files), TableFile)
	}

	seg, err := segment.Open(d.arena, filepath.Join(d.dir, TableFile), 0, d.segmentOptions())
	switch {
	case err == nil:
		d.segments = []*segment.Segment{seg}
	case errors.Is(err, dberrors.ErrCorrupted):
		return fmt.Errorf("failed to recover table: %w", err)
	default:
		d.log.Warn("table unavailable, starting empty", "error", err)
	}

	return nil
}

func (d *Disk) snapshot() []*segment.Segment {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.segments
}

// acquire returns the live segments, each pinned once. The caller must
// unpin them.
func (d *Disk) acquire() []*segment.Segment {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return pin(d.segments)
}

func pin(segs []*segment.Segment) []*segment.Segment {
	for _, seg := range segs {
		seg.Ref()
	}
	return segs
}

func unpin(segs []*segment.Segment) error {
	var errs []error
	for _, seg := range segs {
		errs = append(errs, seg.Unref())
	}
	return errors.Join(errs...)
}

// retire drops the ownership of segments replaced by a rewrite or a
// compaction. Segments pinned by running scans stay mapped until the last
// scan lets go.
func (d *Disk) retire(old []*segment.Segment) error {
	if err := unpin(old); err != nil {
		return fmt.Errorf("failed to unmap retired segments: %w", err)
	}
	return nil
}

// Get returns the newest entry stored for key. Tombstones are returned as
// found so that the caller stops looking.
func (d *Disk) Get(key types.Key) (_ types.Entry, _ bool, err error) {
	segs := d.acquire()
	defer func() {
		err = errors.Join(err, unpin(segs))
	}()

	for i := len(segs) - 1; i >= 0; i-- {
		e, ok, err := segs[i].Get(key)
		if err != nil {
			return types.Entry{}, false, err
		}
		if ok {
			return e, true, nil
		}
	}

	return types.Entry{}, false, nil
}

// Range merges buf (entries already limited to [from, to), newest data)
// with every segment. Keys come out ascending and unique, tombstones are
// applied and dropped. buf may be nil.
func (d *Disk) Range(buf iterator.Iterator, from, to types.Key) iterator.Iterator {
	return newMergeIterator(d.arena, buf, d.acquire(), from, to)
}

// Save persists a sorted run of buffer entries.
func (d *Disk) Save(entries []types.Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.opts.Mode == config.ModeSingle {
		return d.rewriteTable(entries)
	}

	if len(entries) == 0 {
		return nil
	}

	seg, err := d.writeSegment(d.seq.Next(), entries)
	if err != nil {
		return err
	}

	d.segments = append(slices.Clip(d.segments), seg)
	return nil
}

func (d *Disk) writeSegment(id types.SeqN, entries []types.Entry) (*segment.Segment, error) {
	path := filepath.Join(d.dir, SegmentFileName(id))

	size, err := segment.Write(d.arena, path, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to write segment: %w", err)
	}

	seg, err := segment.Open(d.arena, path, id, d.segmentOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open written segment: %w", err)
	}

	d.log.Info("segment written", "segment", path, "records", len(entries), "bytes", size)
	return seg, nil
}

// rewriteTable replaces the table with the union of its contents and
// entries. Nothing older than the table exists, so tombstones are dropped.
// The previous table is unmapped as soon as no running scan holds it.
func (d *Disk) rewriteTable(entries []types.Entry) error {
	merged, err := iterator.Collect(
		newMergeIterator(d.arena, iterator.Pull(slices.Values(entries)), pin(d.segments), nil, nil),
	)
	if err != nil {
		return fmt.Errorf("failed to merge table: %w", err)
	}

	path := filepath.Join(d.dir, TableFile)
	size, err := segment.Write(d.arena, path, merged)
	if err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}

	seg, err := segment.Open(d.arena, path, 0, d.segmentOptions())
	if err != nil {
		return fmt.Errorf("failed to open written table: %w", err)
	}

	old := d.segments
	d.segments = []*segment.Segment{seg}
	d.log.Info("table rewritten", "records", len(merged), "bytes", size)

	return d.retire(old)
}

// Compact merges every segment into one, dropping shadowed entries and
// tombstones, and deletes the files it replaced.
func (d *Disk) Compact() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.opts.Mode == config.ModeSingle {
		return d.rewriteTable(nil)
	}

	old := d.segments
	if len(old) == 0 {
		return nil
	}

	merged, err := iterator.Collect(newMergeIterator(d.arena, nil, pin(old), nil, nil))
	if err != nil {
		return fmt.Errorf("failed to merge segments: %w", err)
	}

	var compacted []*segment.Segment
	if len(merged) > 0 {
		seg, err := d.writeSegment(d.seq.Next(), merged)
		if err != nil {
			return err
		}
		compacted = []*segment.Segment{seg}
	}
	d.segments = compacted

	// pinned mappings of the removed files stay readable
	errs := []error{d.retire(old)}
	for _, seg := range old {
		if err := os.Remove(seg.Path()); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove compacted segment: %w", err))
		}
	}

	d.log.Info("segments compacted", "from", len(old), "records", len(merged))
	return errors.Join(errs...)
}

func (d *Disk) Stats() Stats {
	var st Stats
	for _, seg := range d.snapshot() {
		st.Segments = append(st.Segments, SegmentStats{
			ID:      seg.ID(),
			Path:    seg.Path(),
			Records: seg.Len(),
			Bytes:   seg.Size(),
		})
		st.Records += seg.Len()
		st.Bytes += seg.Size()
	}
	st.Mappings = d.arena.Regions()
	return st
}
