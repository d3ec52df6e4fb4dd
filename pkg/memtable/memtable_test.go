package memtable

import (
	"fmt"
	"sync"
	"testing"

	"segdb/pkg/config"
	"segdb/pkg/iterator"
	"segdb/pkg/types"
)

func forEachTable(t *testing.T, fn func(t *testing.T, tbl Table)) {
	t.Helper()
	for _, kind := range []string{config.MemtableSkipMap, config.MemtableBTree} {
		t.Run(kind, func(t *testing.T) {
			tbl, err := FromConfig(config.MemtableConfig{Kind: kind, BTreeDegree: 4})
			if err != nil {
				t.Fatalf("FromConfig failed: %v", err)
			}
			fn(t, tbl)
		})
	}
}

func keys(t *testing.T, it iterator.Iterator) []string {
	t.Helper()
	entries, err := iterator.Collect(it)
	if err != nil {
		t.Fatalf("iteration failed: %v", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, string(e.Key))
	}
	return out
}

func TestTable_UpsertGet(t *testing.T) {
	forEachTable(t, func(t *testing.T, tbl Table) {
		tbl.Upsert(types.Put([]byte("k"), []byte("v1")))
		tbl.Upsert(types.Put([]byte("k"), []byte("v2")))

		e, ok := tbl.Get([]byte("k"))
		if !ok || string(e.Value) != "v2" {
			t.Fatalf("Get = %+v, %v; want v2", e, ok)
		}
		if tbl.Len() != 1 {
			t.Fatalf("Len = %d, want 1", tbl.Len())
		}

		if _, ok := tbl.Get([]byte("missing")); ok {
			t.Fatal("missing key reported as present")
		}
	})
}

func TestTable_Tombstone(t *testing.T) {
	forEachTable(t, func(t *testing.T, tbl Table) {
		tbl.Upsert(types.Put([]byte("k"), []byte("v")))
		tbl.Upsert(types.Delete([]byte("k")))

		e, ok := tbl.Get([]byte("k"))
		if !ok || !e.Tombstone {
			t.Fatalf("expected tombstone, got %+v, %v", e, ok)
		}

		tbl.Upsert(types.Put([]byte("empty"), nil))
		e, ok = tbl.Get([]byte("empty"))
		if !ok || e.Tombstone || e.Value == nil || len(e.Value) != 0 {
			t.Fatalf("empty value must differ from tombstone: %+v", e)
		}
	})
}

func TestTable_CopiesCallerSlices(t *testing.T) {
	forEachTable(t, func(t *testing.T, tbl Table) {
		k, v := []byte("key"), []byte("val")
		tbl.Upsert(types.Put(k, v))
		k[0], v[0] = 'X', 'X'

		e, ok := tbl.Get([]byte("key"))
		if !ok || string(e.Value) != "val" {
			t.Fatalf("stored entry changed with caller slices: %+v", e)
		}
	})
}

func TestTable_Scan(t *testing.T) {
	forEachTable(t, func(t *testing.T, tbl Table) {
		for _, k := range []string{"d", "a", "c", "", "b", "ab"} {
			tbl.Upsert(types.Put([]byte(k), []byte(k)))
		}

		tests := []struct {
			name     string
			from, to []byte
			want     []string
		}{
			{"unbounded", nil, nil, []string{"", "a", "ab", "b", "c", "d"}},
			{"lower inclusive", []byte("b"), nil, []string{"b", "c", "d"}},
			{"upper exclusive", nil, []byte("b"), []string{"", "a", "ab"}},
			{"both", []byte("a"), []byte("c"), []string{"a", "ab", "b"}},
			{"empty upper bound", nil, []byte{}, []string{}},
			{"empty range", []byte("c"), []byte("c"), []string{}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got := keys(t, tbl.Scan(tt.from, tt.to))
				if fmt.Sprint(got) != fmt.Sprint(tt.want) {
					t.Fatalf("Scan(%q, %q) = %q, want %q", tt.from, tt.to, got, tt.want)
				}
			})
		}
	})
}

func TestTable_SortedIncludesTombstones(t *testing.T) {
	forEachTable(t, func(t *testing.T, tbl Table) {
		tbl.Upsert(types.Put([]byte("b"), []byte("2")))
		tbl.Upsert(types.Delete([]byte("a")))

		sorted := tbl.Sorted()
		if len(sorted) != 2 || string(sorted[0].Key) != "a" || !sorted[0].Tombstone {
			t.Fatalf("unexpected snapshot: %+v", sorted)
		}
		if tbl.SizeBytes() <= 0 {
			t.Fatalf("SizeBytes = %d", tbl.SizeBytes())
		}
	})
}

func TestTable_ConcurrentUpserts(t *testing.T) {
	forEachTable(t, func(t *testing.T, tbl Table) {
		const workers, perWorker = 8, 500

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					k := []byte(fmt.Sprintf("w%02d-%04d", w, i))
					tbl.Upsert(types.Put(k, k))
					if _, ok := tbl.Get(k); !ok {
						t.Errorf("own write %s not visible", k)
						return
					}
				}
			}(w)
		}

		// readers run alongside the writers
		for r := 0; r < 2; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				entries, err := iterator.Collect(tbl.Scan(nil, nil))
				if err != nil {
					t.Errorf("scan failed: %v", err)
					return
				}
				for i := 1; i < len(entries); i++ {
					if types.Compare(entries[i-1].Key, entries[i].Key) >= 0 {
						t.Errorf("scan out of order: %q then %q", entries[i-1].Key, entries[i].Key)
						return
					}
				}
			}()
		}
		wg.Wait()

		if tbl.Len() != workers*perWorker {
			t.Fatalf("Len = %d, want %d", tbl.Len(), workers*perWorker)
		}
	})
}

func BenchmarkMemtableUpsert(b *testing.B) {
	mt := New()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		k := []byte(fmt.Sprintf("key-%d", i))
		mt.Upsert(types.Put(k, k))
	}
}
