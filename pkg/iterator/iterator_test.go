package iterator

import (
	"errors"
	"testing"

	"segdb/pkg/types"
)

func entries(keys ...string) []types.Entry {
	out := make([]types.Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, types.Put([]byte(k), []byte("v-"+k)))
	}
	return out
}

func seqOf(es []types.Entry) func(func(types.Entry) bool) {
	return func(yield func(types.Entry) bool) {
		for _, e := range es {
			if !yield(e) {
				return
			}
		}
	}
}

func TestPull(t *testing.T) {
	got, err := Collect(Pull(seqOf(entries("a", "b", "c"))))
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(got) != 3 || string(got[2].Key) != "c" || string(got[2].Value) != "v-c" {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestPull_CloseEarly(t *testing.T) {
	stopped := false
	seq := func(yield func(types.Entry) bool) {
		defer func() { stopped = true }()
		for _, e := range entries("a", "b", "c") {
			if !yield(e) {
				return
			}
		}
	}

	it := Pull(seq)
	if !it.Valid() || string(it.Key()) != "a" {
		t.Fatalf("expected to start at a")
	}
	if err := it.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if it.Valid() {
		t.Fatal("closed iterator must not be valid")
	}
	if !stopped {
		t.Fatal("Close must stop the underlying sequence")
	}
}

func TestErrorIterator(t *testing.T) {
	boom := errors.New("boom")
	got, err := Collect(Error(boom))
	if !errors.Is(err, boom) || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
	if got, err := Collect(Empty()); err != nil || len(got) != 0 {
		t.Fatalf("empty iterator: %v, %v", got, err)
	}
}

func TestInRange(t *testing.T) {
	tests := []struct {
		key, from, to []byte
		want          bool
	}{
		{[]byte("b"), nil, nil, true},
		{[]byte("a"), []byte("a"), []byte("b"), true},
		{[]byte("b"), []byte("a"), []byte("b"), false},
		{[]byte("a"), []byte("b"), nil, false},
		{[]byte{}, []byte{}, nil, true},
		{[]byte{}, nil, []byte{}, false},
	}
	for _, tt := range tests {
		if got := InRange(tt.key, tt.from, tt.to); got != tt.want {
			t.Fatalf("InRange(%q, %q, %q) = %v, want %v", tt.key, tt.from, tt.to, got, tt.want)
		}
	}
}
