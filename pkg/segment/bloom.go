package segment

import (
	"hash/fnv"
	"math"
)

// Bloom is a fixed-size bloom filter built once when a segment is opened.
type Bloom struct {
	bits   []uint64
	size   uint64
	hashes int
}

// NewBloom sizes a filter for expectedItems keys at the given false positive
// rate.
func NewBloom(expectedItems int, falsePositiveRate float64) *Bloom {
	size := optimalSize(expectedItems, falsePositiveRate)
	return &Bloom{
		bits:   make([]uint64, (size+63)/64),
		size:   size,
		hashes: optimalHashCount(expectedItems, size),
	}
}

func (bf *Bloom) Add(key []byte) {
	h1, h2 := hashPair(key)
	for i := 0; i < bf.hashes; i++ {
		idx := (h1 + uint64(i)*h2) % bf.size
		bf.bits[idx/64] |= 1 << (idx % 64)
	}
}

// MayContain reports false only for keys that were never added.
func (bf *Bloom) MayContain(key []byte) bool {
	h1, h2 := hashPair(key)
	for i := 0; i < bf.hashes; i++ {
		idx := (h1 + uint64(i)*h2) % bf.size
		if bf.bits[idx/64]&(1<<(idx%64)) == 0 {
			return false
		}
	}
	return true
}

// double hashing over one 64-bit FNV-1a sum
func hashPair(key []byte) (uint64, uint64) {
	h := fnv.New64a()
	h.Write(key)
	sum := h.Sum64()
	return sum & math.MaxUint32, sum>>32 | 1
}

// m = -(n * ln(p)) / (ln(2)^2)
func optimalSize(expectedItems int, falsePositiveRate float64) uint64 {
	n := float64(max(expectedItems, 1))
	m := -n * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)
	return uint64(max(m, 64))
}

// k = (m/n) * ln(2)
func optimalHashCount(expectedItems int, size uint64) int {
	k := int(float64(size) / float64(max(expectedItems, 1)) * math.Ln2)
	return min(max(k, 1), 16)
}
