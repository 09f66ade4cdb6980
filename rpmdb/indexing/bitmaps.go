package indexing

import (
	roaring "github.com/RoaringBitmap/roaring"
)

// Headers returns the distinct header instances of s as a bitmap.
func (s *Set) Headers() *roaring.Bitmap {
	bm := roaring.New()
	if s == nil {
		return bm
	}
	for _, r := range s.recs {
		bm.Add(r.HeaderNum)
	}
	return bm
}

// KeepHeaders drops every record whose header is not in bm. It returns true
// when nothing was removed.
func (s *Set) KeepHeaders(bm *roaring.Bitmap) bool {
	if s.Count() == 0 {
		return true
	}
	num := len(s.recs)
	to := 0
	for _, r := range s.recs {
		if bm == nil || !bm.Contains(r.HeaderNum) {
			continue
		}
		s.recs[to] = r
		to++
	}
	s.recs = s.recs[:to]
	return to == num
}

// AndHeaders returns the headers present in every set.
func AndHeaders(sets ...*Set) *roaring.Bitmap {
	if len(sets) == 0 {
		return roaring.New()
	}
	// copy first
	res := sets[0].Headers()
	for _, s := range sets[1:] {
		res.And(s.Headers())
	}
	return res
}

// OrHeaders returns the headers present in any set.
func OrHeaders(sets ...*Set) *roaring.Bitmap {
	res := roaring.New()
	for _, s := range sets {
		res.Or(s.Headers())
	}
	return res
}
