package types

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b []byte
		want int
	}{
		{"both empty", nil, []byte{}, 0},
		{"empty before anything", []byte{}, []byte{0}, -1},
		{"equal", []byte("abc"), []byte("abc"), 0},
		{"prefix is smaller", []byte("ab"), []byte("abc"), -1},
		{"longer is larger", []byte("abc"), []byte("ab"), 1},
		{"first difference decides", []byte("abz"), []byte("ac"), -1},
		{"bytes are unsigned", []byte{0x7f}, []byte{0x80}, -1},
		{"high byte", []byte{0xff}, []byte{0x00, 0x00}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Fatalf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := Compare(tt.b, tt.a); got != -tt.want {
				t.Fatalf("Compare(%q, %q) = %d, want %d", tt.b, tt.a, got, -tt.want)
			}
		})
	}
}

func TestMismatch(t *testing.T) {
	if got := Mismatch([]byte("abc"), []byte("abc")); got != -1 {
		t.Fatalf("equal: got %d", got)
	}
	if got := Mismatch([]byte("ab"), []byte("abc")); got != 2 {
		t.Fatalf("prefix: got %d", got)
	}
	if got := Mismatch([]byte("xbc"), []byte("abc")); got != 0 {
		t.Fatalf("first byte: got %d", got)
	}
}

func randomBytes(rng *rand.Rand) []byte {
	b := make([]byte, rng.Intn(4))
	for i := range b {
		// small alphabet so that prefixes and ties are common
		b[i] = byte(rng.Intn(3)) * 0x7f
	}
	return b
}

func TestCompare_TotalOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 5000; i++ {
		a, b, c := randomBytes(rng), randomBytes(rng), randomBytes(rng)

		ab := Compare(a, b)
		if ab != bytes.Compare(a, b) {
			t.Fatalf("Compare(%x, %x) = %d, bytes.Compare disagrees", a, b, ab)
		}
		if Compare(b, a) != -ab {
			t.Fatalf("antisymmetry broken for %x, %x", a, b)
		}
		if Compare(a, a) != 0 {
			t.Fatalf("reflexivity broken for %x", a)
		}
		if ab < 0 && Compare(b, c) < 0 && Compare(a, c) >= 0 {
			t.Fatalf("transitivity broken for %x < %x < %x", a, b, c)
		}
	}
}

func TestEntryClone(t *testing.T) {
	e := Put([]byte("k"), []byte("v"))
	c := e.Clone()
	e.Key[0] = 'x'
	e.Value[0] = 'y'
	if string(c.Key) != "k" || string(c.Value) != "v" {
		t.Fatalf("clone shares memory: %q=%q", c.Key, c.Value)
	}

	d := Delete([]byte("k")).Clone()
	if !d.Tombstone || d.Value != nil {
		t.Fatalf("tombstone clone = %+v", d)
	}

	if empty := Put([]byte("k"), nil); empty.Value == nil || empty.Tombstone {
		t.Fatalf("empty value must stay a value: %+v", empty)
	}
}
