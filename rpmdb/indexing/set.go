package indexing

import (
	"slices"

	"github.com/rpm-software-management/rpm-sub016/rpmdb/common"
)

// New returns an empty set with room for at least sizeHint records.
func New(sizeHint int) *Set {
	s := &Set{}
	if sizeHint > 0 {
		_ = s.Grow(sizeHint)
	}
	return s
}

// FromRecords builds a set holding a copy of recs.
func FromRecords(recs []Record) *Set {
	s := New(len(recs))
	_ = s.Append(recs, false)
	return s
}

// Grow ensures room for n more records. Capacity doubles from a base of 16
// and never shrinks.
func (s *Set) Grow(n int) error {
	if s == nil || n <= 0 {
		return nil
	}
	need := len(s.recs) + n
	if need > MaxRecords || need < 0 {
		return common.WrapError(common.ErrResourceExhausted, "index set of %d records cannot grow by %d", len(s.recs), n)
	}
	if need <= cap(s.recs) {
		return nil
	}
	c := max(cap(s.recs), baseCapacity)
	for c < need {
		c *= 2
	}
	c = min(c, MaxRecords)
	grown := make([]Record, len(s.recs), c)
	copy(grown, s.recs)
	s.recs = grown
	return nil
}

// Count returns the number of records.
func (s *Set) Count() int {
	if s == nil {
		return 0
	}
	return len(s.recs)
}

// Cap returns the allocated capacity.
func (s *Set) Cap() int {
	if s == nil {
		return 0
	}
	return cap(s.recs)
}

// Offset returns the header instance of record i, or 0 when there is no
// record i.
func (s *Set) Offset(i int) uint32 {
	if i < 0 || i >= s.Count() {
		return 0
	}
	return s.recs[i].HeaderNum
}

// FileNumber returns the tag position of record i, or 0 when there is no
// record i.
func (s *Set) FileNumber(i int) uint32 {
	if i < 0 || i >= s.Count() {
		return 0
	}
	return s.recs[i].TagNum
}

// Records returns a copy of the records.
func (s *Set) Records() []Record {
	if s == nil {
		return nil
	}
	return slices.Clone(s.recs)
}

// Clone returns an independent copy of s.
func (s *Set) Clone() *Set {
	if s == nil {
		return nil
	}
	return FromRecords(s.recs)
}

// Free drops the records and returns nil for assignment back to the caller's
// variable.
func (s *Set) Free() *Set {
	if s != nil {
		s.recs = nil
	}
	return nil
}

// Sort orders records by (HeaderNum, TagNum).
func (s *Set) Sort() {
	if s.Count() > 1 {
		slices.SortFunc(s.recs, compareRecords)
	}
}

// MergeSort orders records like Sort using a stable merge-based sort, which
// is the better choice when the set already holds long sorted runs, such as
// many hits sharing one header.
func (s *Set) MergeSort() {
	if s.Count() > 1 {
		slices.SortStableFunc(s.recs, compareRecords)
	}
}

// Uniq sorts the set unless sorted is true, then keeps only the first record
// for each HeaderNum.
func (s *Set) Uniq(sorted bool) {
	if s.Count() < 2 {
		return
	}
	if !sorted {
		s.Sort()
	}
	to := 1
	for from := 1; from < len(s.recs); from++ {
		if s.recs[from].HeaderNum == s.recs[to-1].HeaderNum {
			continue
		}
		s.recs[to] = s.recs[from]
		to++
	}
	s.recs = s.recs[:to]
}

// Append adds recs to the set, sorting afterwards when sortAfter is set.
func (s *Set) Append(recs []Record, sortAfter bool) error {
	if s == nil || len(recs) == 0 {
		return nil
	}
	if err := s.Grow(len(recs)); err != nil {
		return err
	}
	s.recs = append(s.recs, recs...)
	if sortAfter {
		s.Sort()
	}
	return nil
}

// AppendSet adds every record of o.
func (s *Set) AppendSet(o *Set, sortAfter bool) error {
	if o == nil {
		return nil
	}
	return s.Append(o.recs, sortAfter)
}

// AppendOne adds a single record.
func (s *Set) AppendOne(headerNum, tagNum uint32, sortAfter bool) error {
	return s.Append([]Record{{HeaderNum: headerNum, TagNum: tagNum}}, sortAfter)
}

// Prune removes every record that also appears in recs, keeping the relative
// order of the survivors. recs is sorted in place unless sorted is true.
// It returns true when nothing was removed.
func (s *Set) Prune(recs []Record, sorted bool) bool {
	if s.Count() == 0 || len(recs) == 0 {
		return true
	}
	if !sorted {
		slices.SortFunc(recs, compareRecords)
	}
	return s.retain(newRecordSearcher(recs), false)
}

// PruneSet removes the records of o from s (subtraction).
func (s *Set) PruneSet(o *Set) bool {
	if s.Count() == 0 || o.Count() == 0 {
		return true
	}
	return s.Prune(o.Records(), false)
}

// FilterSet keeps only the records of s that also appear in o
// (intersection). It returns true when nothing was removed.
func (s *Set) FilterSet(o *Set) bool {
	if s.Count() == 0 {
		return true
	}
	if o.Count() == 0 {
		s.recs = s.recs[:0]
		return false
	}
	recs := o.Records()
	slices.SortFunc(recs, compareRecords)
	return s.retain(newRecordSearcher(recs), true)
}

// retain compacts s in place, keeping records whose membership in the
// operand equals keep.
func (s *Set) retain(in recordSearcher, keep bool) bool {
	num := len(s.recs)
	to := 0
	for from := 0; from < num; from++ {
		if in.contains(s.recs[from]) != keep {
			continue
		}
		if from != to {
			s.recs[to] = s.recs[from]
		}
		to++
	}
	s.recs = s.recs[:to]
	return to == num
}
