package fprint

import (
	"encoding/binary"
	"slices"
	"strings"

	"github.com/rpm-software-management/rpm-sub016/rpmdb/common"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/hashtab"

	"github.com/cespare/xxhash"
)

// Element is one package of a transaction, seen through its file list.
type Element interface {
	FileCount() int
	DirName(i int) string
	BaseName(i int) string
}

// TransactionSet yields the elements whose files are fingerprinted together.
type TransactionSet interface {
	Elements() []Element
}

// Elements adapts a plain slice to TransactionSet.
type Elements []Element

func (e Elements) Elements() []Element { return e }

// FFIRecord points at one file of one transaction element.
type FFIRecord struct {
	Element      Element
	ElementIndex int
	FileIndex    int
}

// Conflict is a file identity owned by more than one element.
type Conflict struct {
	Path    string
	Records []FFIRecord
}

// Populate fingerprints every file of every element in ts and records which
// elements own each identity. fileCountHint sizes the table; a non-positive
// hint counts the files first. Populating again replaces the previous result.
func (c *Cache) Populate(ts TransactionSet, fileCountHint int) error {
	elems := ts.Elements()
	if fileCountHint <= 0 {
		for _, e := range elems {
			fileCountHint += e.FileCount()
		}
	}
	if c.fps != nil {
		c.fps.Free()
	}
	c.fps = hashtab.New[identity, FFIRecord](max(fileCountHint*2, 1), hashIdentity, eqIdentity,
		hashtab.WithMaxEntries[identity, FFIRecord](c.maxFps))

	for ei, e := range elems {
		n := e.FileCount()
		for fi := range n {
			fp := c.Lookup(e.DirName(fi), e.BaseName(fi))
			rec := FFIRecord{Element: e, ElementIndex: ei, FileIndex: fi}
			if err := c.fps.Add(c.identity(fp), rec); err != nil {
				c.log.Error().Err(err).
					Int("element", ei).
					Int("file", fi).
					Msg("fingerprint table full")
				return common.WrapError(err, "populating fingerprints of element %d", ei)
			}
		}
		c.log.Debug().Int("element", ei).Int("files", n).Msg("populated element")
	}
	return nil
}

// Records returns every populated file sharing fp's identity, in population
// order. It returns nil before Populate or for a stale fingerprint.
func (c *Cache) Records(fp Fingerprint) []FFIRecord {
	if c.fps == nil || c.stale(fp) {
		return nil
	}
	recs, _, ok := c.fps.Get(c.identity(fp))
	if !ok {
		return nil
	}
	return slices.Clone(recs)
}

// Conflicts lists the identities claimed by at least two different elements,
// sorted by the path of their first owner.
func (c *Cache) Conflicts() []Conflict {
	if c.fps == nil {
		return nil
	}
	var out []Conflict
	c.fps.Each(func(_ identity, recs []FFIRecord) bool {
		first := recs[0].ElementIndex
		shared := slices.ContainsFunc(recs[1:], func(r FFIRecord) bool {
			return r.ElementIndex != first
		})
		if shared {
			r := recs[0]
			out = append(out, Conflict{
				Path:    joinPath(r.Element.DirName(r.FileIndex), r.Element.BaseName(r.FileIndex)),
				Records: slices.Clone(recs),
			})
		}
		return true
	})
	slices.SortFunc(out, func(a, b Conflict) int { return strings.Compare(a.Path, b.Path) })
	return out
}

// Len returns the number of distinct identities populated.
func (c *Cache) Len() int {
	if c.fps == nil {
		return 0
	}
	return c.fps.Len()
}

func joinPath(dir, base string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + base
	}
	return dir + "/" + base
}

func hashIdentity(id identity) uint64 {
	var buf [20]byte
	binary.LittleEndian.PutUint64(buf[0:], id.dev)
	binary.LittleEndian.PutUint64(buf[8:], id.ino)
	binary.LittleEndian.PutUint32(buf[16:], uint32(id.baseName))

	d := xxhash.New()
	_, _ = d.Write(buf[:])
	_, _ = d.Write([]byte(id.real))
	_, _ = d.Write([]byte{0})
	_, _ = d.Write([]byte(id.subDir))
	return d.Sum64()
}

func eqIdentity(a, b identity) bool { return a == b }
