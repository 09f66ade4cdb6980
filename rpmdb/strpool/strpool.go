// Package strpool interns strings to small integer ids.
//
// Fingerprinting a package resolves the same directory and base names over and
// over; interning them once lets later calls hash and compare a uint32 instead
// of the string. Strings are kept in a patricia tree so callers can also ask
// for every interned string under a prefix (all directories below /usr, say).
//
// A Pool is not safe for concurrent mutation.
package strpool

import (
	"github.com/armon/go-radix"
)

// ID identifies an interned string. The zero ID is never assigned.
type ID uint32

// None is the id of no string.
const None ID = 0

// Pool maps strings to IDs and back.
type Pool struct {
	tree *radix.Tree
	rev  []string
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{
		tree: radix.New(),
		rev:  []string{""}, // slot 0 is None
	}
}

// Intern returns the id for s, assigning the next id on first sight.
func (p *Pool) Intern(s string) ID {
	if v, ok := p.tree.Get(s); ok {
		return v.(ID)
	}
	id := ID(len(p.rev))
	p.rev = append(p.rev, s)
	p.tree.Insert(s, id)
	return id
}

// Find returns the id for s without interning it.
func (p *Pool) Find(s string) (ID, bool) {
	v, ok := p.tree.Get(s)
	if !ok {
		return None, false
	}
	return v.(ID), true
}

// Lookup returns the string for id.
func (p *Pool) Lookup(id ID) (string, bool) {
	if id == None || int(id) >= len(p.rev) {
		return "", false
	}
	return p.rev[id], true
}

// MustLookup is Lookup for ids known to come from this pool.
func (p *Pool) MustLookup(id ID) string {
	s, ok := p.Lookup(id)
	if !ok {
		panic("strpool: id out of range")
	}
	return s
}

// WithPrefix returns the ids of every interned string starting with prefix,
// in lexical order.
func (p *Pool) WithPrefix(prefix string) []ID {
	var ids []ID
	p.tree.WalkPrefix(prefix, func(_ string, v interface{}) bool {
		ids = append(ids, v.(ID))
		return false
	})
	return ids
}

// Len returns the number of interned strings.
func (p *Pool) Len() int {
	return p.tree.Len()
}
