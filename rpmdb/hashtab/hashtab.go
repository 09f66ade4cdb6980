// Package hashtab implements a chained multimap with a fixed bucket count.
//
// A Table never rehashes. The bucket count chosen at creation time stays for
// the table's lifetime, so callers size tables from the load they expect
// (for instance twice the number of files in a transaction). An undersized
// table still works but degrades toward linear chain scans.
//
// Tables are not safe for concurrent mutation.
package hashtab

import (
	"github.com/rpm-software-management/rpm-sub016/rpmdb/common"
)

// HashFunc maps a key to a bucket selector.
type HashFunc[K any] func(key K) uint64

// EqualFunc reports whether two keys are the same entry.
type EqualFunc[K any] func(a, b K) bool

type entry[K, V any] struct {
	key    K
	values []V
	next   *entry[K, V]
}

// Table is a multi-valued hash table: adding a key twice accumulates values.
type Table[K, V any] struct {
	buckets    []*entry[K, V]
	hash       HashFunc[K]
	eq         EqualFunc[K]
	cloneKey   func(K) K
	freeData   func(V)
	maxEntries int
	entries    int
	values     int
}

// Option configures ownership policy for a Table.
type Option[K, V any] func(*Table[K, V])

// WithKeyCopy makes the table store a private copy of every new key.
// Without it the table keeps the caller's key as given.
func WithKeyCopy[K, V any](clone func(K) K) Option[K, V] {
	return func(t *Table[K, V]) { t.cloneKey = clone }
}

// WithFreeData marks values as owned by the table; free is called on each
// value when the table is freed.
func WithFreeData[K, V any](free func(V)) Option[K, V] {
	return func(t *Table[K, V]) { t.freeData = free }
}

// WithMaxEntries bounds the number of distinct keys. Zero means unbounded.
func WithMaxEntries[K, V any](n int) Option[K, V] {
	return func(t *Table[K, V]) { t.maxEntries = n }
}

// New creates a table with a fixed number of buckets.
func New[K, V any](buckets int, hash HashFunc[K], eq EqualFunc[K], opts ...Option[K, V]) *Table[K, V] {
	if buckets <= 0 {
		buckets = 1
	}
	t := &Table[K, V]{
		buckets: make([]*entry[K, V], buckets),
		hash:    hash,
		eq:      eq,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Table[K, V]) bucket(key K) int {
	return int(t.hash(key) % uint64(len(t.buckets)))
}

func (t *Table[K, V]) find(key K) *entry[K, V] {
	for e := t.buckets[t.bucket(key)]; e != nil; e = e.next {
		if t.eq(e.key, key) {
			return e
		}
	}
	return nil
}

// Add appends value to the entry for key, creating the entry on first use.
func (t *Table[K, V]) Add(key K, value V) error {
	if e := t.find(key); e != nil {
		e.values = append(e.values, value)
		t.values++
		return nil
	}
	if t.maxEntries > 0 && t.entries >= t.maxEntries {
		return common.WrapError(common.ErrResourceExhausted, "hash table holds %d entries", t.entries)
	}

	b := t.bucket(key)
	if t.cloneKey != nil {
		key = t.cloneKey(key)
	}
	t.buckets[b] = &entry[K, V]{key: key, values: []V{value}, next: t.buckets[b]}
	t.entries++
	t.values++
	return nil
}

// Has reports whether key has an entry.
func (t *Table[K, V]) Has(key K) bool {
	return t.find(key) != nil
}

// Get returns the values stored under key in insertion order and the key as
// the table stores it. A missing key returns ok == false.
func (t *Table[K, V]) Get(key K) (values []V, stored K, ok bool) {
	e := t.find(key)
	if e == nil {
		return nil, stored, false
	}
	return e.values, e.key, true
}

// Each calls fn for every entry until fn returns false. Order follows bucket
// layout and carries no meaning.
func (t *Table[K, V]) Each(fn func(key K, values []V) bool) {
	for _, head := range t.buckets {
		for e := head; e != nil; e = e.next {
			if !fn(e.key, e.values) {
				return
			}
		}
	}
}

// Len returns the number of distinct keys.
func (t *Table[K, V]) Len() int { return t.entries }

// Buckets returns the fixed bucket count.
func (t *Table[K, V]) Buckets() int { return len(t.buckets) }

// Free releases every entry, handing owned values to the free func. The
// table is empty afterwards and can be reused.
func (t *Table[K, V]) Free() {
	for i, head := range t.buckets {
		for e := head; e != nil; e = e.next {
			if t.freeData != nil {
				for _, v := range e.values {
					t.freeData(v)
				}
			}
			e.values = nil
		}
		t.buckets[i] = nil
	}
	t.entries = 0
	t.values = 0
}

// Stats describes how keys are spread over buckets.
//   - Entries is the number of distinct keys
//   - Values is the total number of values over all keys
//   - LongestChain is the longest bucket chain
//   - BucketDistribution is the chain length of each bucket
type Stats struct {
	Entries            int
	Values             int
	LongestChain       int
	BucketDistribution []int
}

// Stats walks the table and reports its current distribution.
func (t *Table[K, V]) Stats() Stats {
	st := Stats{
		Entries:            t.entries,
		Values:             t.values,
		BucketDistribution: make([]int, len(t.buckets)),
	}
	for i, head := range t.buckets {
		n := 0
		for e := head; e != nil; e = e.next {
			n++
		}
		st.BucketDistribution[i] = n
		st.LongestChain = max(st.LongestChain, n)
	}
	return st
}
