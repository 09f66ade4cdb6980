package indexing

// recordSearcher answers membership queries against a sorted operand using an
// eytzinger (breadth-first) layout, which keeps the hot top levels of the
// implicit search tree in the same cache lines.
type recordSearcher struct {
	layout []uint64
}

func newRecordSearcher(sorted []Record) recordSearcher {
	keys := make([]uint64, len(sorted))
	for i, r := range sorted {
		keys[i] = r.key()
	}
	return recordSearcher{layout: BuildEytzinger(keys)}
}

func (rs recordSearcher) contains(r Record) bool {
	return EytzingerContains(rs.layout, r.key())
}

// BuildEytzinger lays out sorted keys in eytzinger order.
// Reference: "Eytzinger Layout" (in-order to breadth-first array mapping for cache efficiency).
func BuildEytzinger(sorted []uint64) []uint64 {
	n := len(sorted)
	layout := make([]uint64, n)
	pos := 0
	var dfs func(i int)
	dfs = func(i int) {
		if i > n {
			return
		}
		dfs(i << 1)
		layout[i-1] = sorted[pos]
		pos++
		dfs((i << 1) | 1)
	}
	dfs(1)
	return layout
}

// EytzingerLowerBound returns the layout index of the first key >= x, or -1
// when every key is smaller.
func EytzingerLowerBound(a []uint64, x uint64) int {
	i := 1
	n := len(a)
	for i <= n {
		if a[i-1] < x {
			i = (i << 1) | 1
		} else {
			i = i << 1
		}
	}
	// strip the trailing right turns plus the final left turn
	for i&1 == 1 {
		i >>= 1
	}
	i >>= 1
	if i == 0 {
		return -1
	}
	return i - 1
}

// EytzingerContains reports whether x is one of the laid out keys.
func EytzingerContains(a []uint64, x uint64) bool {
	j := EytzingerLowerBound(a, x)
	return j >= 0 && a[j] == x
}
