package types

// Mismatch returns the first index at which a and b differ, or -1 if they are
// equal. When one is a strict prefix of the other the length of the shorter
// one is returned.
func Mismatch(a, b []byte) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	if len(a) == len(b) {
		return -1
	}
	return n
}

// Compare orders byte sequences by unsigned byte value, a prefix sorting
// before any longer sequence. It agrees with bytes.Compare.
func Compare(a, b []byte) int {
	i := Mismatch(a, b)
	switch {
	case i < 0:
		return 0
	case i == len(a):
		return -1
	case i == len(b):
		return 1
	case a[i] < b[i]:
		return -1
	default:
		return 1
	}
}

// Less reports whether a sorts before b.
func Less(a, b []byte) bool {
	return Compare(a, b) < 0
}
