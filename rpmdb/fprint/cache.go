// Package fprint canonicalizes (directory, base name) pairs into file
// identities that survive symlinks, bind mounts, and directories that do not
// exist yet.
//
// A Fingerprint names the nearest existing ancestor directory by device and
// inode, plus the path below it that is still missing. Two fingerprints are
// equal when those identities match, whatever path spelled them. Probing is
// cached per directory, so the many files of one directory pay for it once.
//
// Errors lean one way: a directory that cannot be probed is treated as
// missing, which can make two names for one file look different but never
// makes two different files look the same.
//
// A Cache is not safe for concurrent use. Fingerprints refer into the cache
// that made them and go stale when it is freed.
package fprint

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rpm-software-management/rpm-sub016/rpmdb/common"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/fsprobe"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/hashtab"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/strpool"

	"github.com/ZanzyTHEbar/assert-lib"
	"github.com/rs/zerolog"
)

// generations hands every cache lifetime a distinct stamp.
var generations atomic.Uint64

// noDir marks a fingerprint that refers to no directory record.
const noDir int32 = -1

// dirRecord is the resolved identity of one directory name.
type dirRecord struct {
	name   strpool.ID
	dev    uint64
	ino    uint64
	real   string // resolved path, compared only when the probe has no inode numbers
	subDir string
}

// Fingerprint identifies a file independently of the path that named it.
type Fingerprint struct {
	dir      int32
	gen      uint64
	BaseName strpool.ID
	SubDir   string
}

// identity is the comparable form of a fingerprint.
type identity struct {
	dev      uint64
	ino      uint64
	real     string
	subDir   string
	baseName strpool.ID
}

// Cache resolves and remembers directory identities.
type Cache struct {
	pool    *strpool.Pool
	probe   fsprobe.Probe
	root    string
	cwd     string
	log     zerolog.Logger
	asserts *assert.AssertHandler

	sizeHint int
	maxFps   int
	dirs     *hashtab.Table[strpool.ID, int32]
	records  []dirRecord
	fps      *hashtab.Table[identity, FFIRecord]
	gen      uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithRoot probes paths below root instead of the system root. Symlinks
// below root resolve as if root were "/", absolute targets included.
func WithRoot(root string) Option {
	return func(c *Cache) {
		if abs, err := filepath.Abs(root); err == nil && root != "" {
			root = abs
		}
		c.root = root
	}
}

// WithWorkingDir sets the directory relative names are resolved against.
func WithWorkingDir(cwd string) Option {
	return func(c *Cache) { c.cwd = canonicalize(cwd, "/") }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// WithAssertHandler turns stale fingerprint use into an assertion failure.
func WithAssertHandler(h *assert.AssertHandler) Option {
	return func(c *Cache) { c.asserts = h }
}

// WithMaxFingerprints bounds the number of distinct fingerprints Populate
// may record.
func WithMaxFingerprints(n int) Option {
	return func(c *Cache) { c.maxFps = n }
}

// NewCache creates a cache sized for roughly sizeHint directories. A nil pool
// or probe gets a fresh pool or the real filesystem.
func NewCache(sizeHint int, pool *strpool.Pool, probe fsprobe.Probe, opts ...Option) *Cache {
	if pool == nil {
		pool = strpool.New()
	}
	if probe == nil {
		probe = fsprobe.NewOS()
	}
	c := &Cache{
		pool:     pool,
		probe:    probe,
		root:     "/",
		cwd:      "/",
		log:      zerolog.Nop(),
		sizeHint: max(sizeHint, 1),
	}
	if wd, err := os.Getwd(); err == nil {
		c.cwd = canonicalize(wd, "/")
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reset()
	return c
}

func (c *Cache) reset() {
	c.dirs = hashtab.New[strpool.ID, int32](c.sizeHint*2, hashID, eqID)
	c.records = c.records[:0]
	c.fps = nil
	c.gen = generations.Add(1)
}

// Pool returns the string pool the cache interns names in.
func (c *Cache) Pool() *strpool.Pool { return c.pool }

// Free drops every directory record and populated fingerprint. Fingerprints
// made before the call are stale afterwards; the cache itself stays usable.
func (c *Cache) Free() {
	c.dirs.Free()
	if c.fps != nil {
		c.fps.Free()
	}
	c.records = nil
	c.reset()
}

// Lookup fingerprints baseName inside dirName.
func (c *Cache) Lookup(dirName, baseName string) Fingerprint {
	return c.LookupID(c.pool.Intern(dirName), c.pool.Intern(baseName))
}

// LookupPath fingerprints a full file path.
func (c *Cache) LookupPath(path string) Fingerprint {
	dir, base := splitPath(path)
	return c.Lookup(dir, base)
}

// LookupID fingerprints pre-interned names. Ids that are not in the cache's
// pool yield a fingerprint equal to nothing.
func (c *Cache) LookupID(dirID, baseID strpool.ID) Fingerprint {
	_, dirOK := c.pool.Lookup(dirID)
	_, baseOK := c.pool.Lookup(baseID)
	if !dirOK || !baseOK {
		c.log.Warn().
			Uint32("dir_id", uint32(dirID)).
			Uint32("base_id", uint32(baseID)).
			Msg("fingerprint lookup with unknown string id")
		return c.invalid()
	}
	idx := c.directory(dirID)
	return Fingerprint{
		dir:      idx,
		gen:      c.gen,
		BaseName: baseID,
		SubDir:   c.records[idx].subDir,
	}
}

// LookupList fingerprints a package file list in compressed form: file i is
// baseNames[i] inside dirNames[dirIndexes[i]]. Entries with an out of range
// directory index get a fingerprint equal to nothing.
func (c *Cache) LookupList(dirNames, baseNames []string, dirIndexes []uint32) []Fingerprint {
	dirIDs := make([]strpool.ID, len(dirNames))
	for i, dn := range dirNames {
		dirIDs[i] = c.pool.Intern(dn)
	}
	fps := make([]Fingerprint, len(baseNames))
	for i, bn := range baseNames {
		if i >= len(dirIndexes) || int(dirIndexes[i]) >= len(dirIDs) {
			c.log.Warn().Int("file", i).Msg("file list entry has no directory")
			fps[i] = c.invalid()
			continue
		}
		fps[i] = c.LookupID(dirIDs[dirIndexes[i]], c.pool.Intern(bn))
	}
	return fps
}

// directory returns the arena index of the record for dirID, resolving it on
// first use.
func (c *Cache) directory(dirID strpool.ID) int32 {
	if idx, _, ok := c.dirs.Get(dirID); ok {
		DirCacheLookups.WithLabelValues("hit").Inc()
		return idx[0]
	}
	DirCacheLookups.WithLabelValues("miss").Inc()

	rec := c.resolve(c.pool.MustLookup(dirID))
	rec.name = dirID
	idx := int32(len(c.records))
	c.records = append(c.records, rec)
	// the directory table is unbounded, Add cannot fail
	_ = c.dirs.Add(dirID, idx)
	return idx
}

// resolve walks up from dirName to the nearest existing directory.
func (c *Cache) resolve(dirName string) dirRecord {
	clean := canonicalize(dirName, c.cwd)
	for cur := clean; cur != ""; cur = parent(cur) {
		ProbeCalls.Inc()
		info, probed, err := fsprobe.Stat(c.probe, c.root, cur)
		if err != nil {
			if !fsprobe.IsNotFound(err) {
				ProbeFailures.Inc()
				c.log.Warn().Err(err).Str("dir", cur).Str("probed", probed).Msg("probe failed, treating directory as missing")
			}
			continue
		}
		if !info.IsDir {
			continue
		}

		rec := dirRecord{dev: info.Dev, ino: info.Ino, subDir: remainder(clean, cur)}
		if info.Ino == 0 {
			rec.real = probed
		}
		c.log.Debug().
			Str("dir", clean).
			Str("found", cur).
			Str("subdir", rec.subDir).
			Msg("resolved directory identity")
		return rec
	}

	c.log.Debug().Str("dir", clean).Msg("no ancestor directory exists")
	return dirRecord{subDir: remainder(clean, "/")}
}

// invalid is the fingerprint of a lookup that named nothing. It belongs to
// the current generation, so it is rejected without tripping the stale
// assertion.
func (c *Cache) invalid() Fingerprint {
	return Fingerprint{dir: noDir, gen: c.gen}
}

func (c *Cache) stale(fp Fingerprint) bool {
	if fp.dir == noDir && fp.gen == c.gen {
		return true
	}
	bad := fp.gen != c.gen || int(fp.dir) >= len(c.records) || fp.dir < 0
	if bad && c.asserts != nil {
		c.asserts.Assert(context.Background(), false, "fingerprint used after its cache was freed", "gen", fp.gen)
	}
	return bad
}

func (c *Cache) identity(fp Fingerprint) identity {
	rec := c.records[fp.dir]
	return identity{
		dev:      rec.dev,
		ino:      rec.ino,
		real:     rec.real,
		subDir:   fp.SubDir,
		baseName: fp.BaseName,
	}
}

// Identity returns the comparable identity of fp. A fingerprint of an
// unknown id is ErrInvalidArgument, one from a freed cache ErrStaleFingerprint.
func (c *Cache) Identity(fp Fingerprint) (dev, ino uint64, subDir string, err error) {
	if fp.dir == noDir && fp.gen == c.gen {
		return 0, 0, "", common.ErrInvalidArgument
	}
	if c.stale(fp) {
		return 0, 0, "", common.ErrStaleFingerprint
	}
	id := c.identity(fp)
	return id.dev, id.ino, id.subDir, nil
}

// Equal reports whether a and b identify the same file. Stale fingerprints
// are never equal to anything.
func (c *Cache) Equal(a, b Fingerprint) bool {
	if c.stale(a) || c.stale(b) {
		return false
	}
	if a.BaseName != b.BaseName || a.SubDir != b.SubDir {
		return false
	}
	if a.dir == b.dir {
		return true
	}
	return c.identity(a) == c.identity(b)
}

// Dir returns the canonical directory fp was looked up in, which may differ
// from the directory of an equal fingerprint.
func (c *Cache) Dir(fp Fingerprint) string {
	if c.stale(fp) {
		return ""
	}
	return canonicalize(c.pool.MustLookup(c.records[fp.dir].name), c.cwd)
}

// Base returns the base name of fp.
func (c *Cache) Base(fp Fingerprint) string {
	base, _ := c.pool.Lookup(fp.BaseName)
	return base
}

// Path rebuilds a displayable path for fp from Dir and Base.
func (c *Cache) Path(fp Fingerprint) string {
	dir := c.Dir(fp)
	switch dir {
	case "":
		return ""
	case "/":
		return "/" + c.Base(fp)
	}
	return dir + "/" + c.Base(fp)
}

func hashID(id strpool.ID) uint64 { return hashtab.Uint32Hash(uint32(id)) }

func eqID(a, b strpool.ID) bool { return a == b }
