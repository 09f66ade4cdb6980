// Package indexing holds the set algebra used to combine secondary-index
// query results: ordered (header, tag) hits, header bitmaps, and the packed
// form index values take in a store.
package indexing

import "math"

// Record is one index hit: a header instance and the position of the matching
// value inside a multi-valued tag of that header.
type Record struct {
	HeaderNum uint32
	TagNum    uint32
}

// key packs a record into a single ordered integer for searching.
func (r Record) key() uint64 {
	return uint64(r.HeaderNum)<<32 | uint64(r.TagNum)
}

func compareRecords(a, b Record) int {
	switch {
	case a.HeaderNum < b.HeaderNum:
		return -1
	case a.HeaderNum > b.HeaderNum:
		return 1
	case a.TagNum < b.TagNum:
		return -1
	case a.TagNum > b.TagNum:
		return 1
	}
	return 0
}

const (
	// baseCapacity is the first allocation of a growing set.
	baseCapacity = 16

	// MaxRecords bounds a single set. Growing past it fails with
	// common.ErrResourceExhausted.
	MaxRecords = math.MaxInt32
)

// Set is an ordered collection of index hits owned by a single query.
// A nil *Set behaves as an empty set for every read and is left alone by
// every mutation.
type Set struct {
	recs []Record
}
