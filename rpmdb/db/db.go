// Package db is the package database handle: it keeps installed headers and
// their secondary indexes in a store and answers identity queries over them.
//
// A DB is meant for one goroutine at a time, like the caches it hands out.
// Only FindFpList reads the store from several goroutines, and stores allow
// that.
package db

import (
	"context"
	"errors"

	internal "github.com/rpm-software-management/rpm-sub016/rpmdb"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/common"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/config"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/fprint"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/fsprobe"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/header"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/indexing"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/label"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/store"

	"github.com/ZanzyTHEbar/assert-lib"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	ignore "github.com/sabhiram/go-gitignore"
)

// DB is an open package database.
type DB struct {
	st      store.Store
	log     zerolog.Logger
	asserts *assert.AssertHandler
	probe   fsprobe.Probe
	headers *lru.Cache[uint32, *header.Header]
	matcher *label.Matcher
	skip    *ignore.GitIgnore

	headerCacheSize     int
	indexSizeHint       int
	fpSizeHint          int
	fpRoot              string
	workers             int
	backtrackOnFiltered bool

	closed bool
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(d *DB) { d.log = log }
}

// WithAssertHandler enables invariant assertions in the handle and in the
// fingerprint caches it creates.
func WithAssertHandler(h *assert.AssertHandler) Option {
	return func(d *DB) { d.asserts = h }
}

// WithProbe replaces the filesystem probe used for fingerprints.
func WithProbe(p fsprobe.Probe) Option {
	return func(d *DB) { d.probe = p }
}

// WithHeaderCacheSize bounds the decoded header cache. Zero disables it.
func WithHeaderCacheSize(n int) Option {
	return func(d *DB) { d.headerCacheSize = n }
}

// WithIndexSizeHint sizes the index sets built while adding headers.
func WithIndexSizeHint(n int) Option {
	return func(d *DB) { d.indexSizeHint = n }
}

// WithFingerprintSizeHint sizes the fingerprint caches FindFpList creates.
func WithFingerprintSizeHint(n int) Option {
	return func(d *DB) { d.fpSizeHint = n }
}

// WithFingerprintRoot resolves installed file paths below root.
func WithFingerprintRoot(root string) Option {
	return func(d *DB) { d.fpRoot = root }
}

// WithSkipDirs excludes directories from FindFpList. Patterns use gitignore
// syntax and are matched against directory paths with a trailing slash.
func WithSkipDirs(patterns ...string) Option {
	return func(d *DB) {
		if len(patterns) == 0 {
			d.skip = nil
			return
		}
		d.skip = ignore.CompileIgnoreLines(patterns...)
	}
}

// WithWorkers bounds the goroutines FindFpList reads the store with.
func WithWorkers(n int) Option {
	return func(d *DB) { d.workers = n }
}

// WithBacktrackOnFiltered is passed through to the label matcher.
func WithBacktrackOnFiltered(on bool) Option {
	return func(d *DB) { d.backtrackOnFiltered = on }
}

// New wraps an open store.
func New(st store.Store, opts ...Option) (*DB, error) {
	d := &DB{
		st:              st,
		log:             zerolog.Nop(),
		probe:           fsprobe.NewOS(),
		headerCacheSize: internal.DefaultHeaderCache,
		indexSizeHint:   internal.DefaultIndexSizeHint,
		fpSizeHint:      internal.DefaultFpSizeHint,
		fpRoot:          internal.DefaultFingerprintFS,
		workers:         internal.DefaultLookupWorkers,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers < 1 {
		d.workers = 1
	}
	if d.headerCacheSize > 0 {
		cache, err := lru.New[uint32, *header.Header](d.headerCacheSize)
		if err != nil {
			return nil, common.WrapError(err, "creating header cache")
		}
		d.headers = cache
	}
	d.matcher = label.New(labelIndex{d},
		label.WithLogger(d.log),
		label.WithBacktrackOnFiltered(d.backtrackOnFiltered))
	return d, nil
}

// Open opens the store cfg selects and wraps it. Options given here override
// the configured ones.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*DB, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := internal.GetLeveledLogger(cfg.Log.Level).With().Str("component", "rpmdb").Logger()

	var st store.Store
	var err error
	switch cfg.Database.Backend {
	case config.BackendMemory:
		st = store.NewMemStore()
	case config.BackendPebble:
		st, err = store.OpenPebble(cfg.Database.Path, nil)
	case config.BackendLibSQL:
		st, err = store.OpenSQL(ctx, cfg.Database.DSN)
	}
	if err != nil {
		return nil, common.LogAndWrapError(log, err, zerolog.ErrorLevel, "opening %s database", cfg.Database.Backend)
	}
	log.Info().Str("backend", cfg.Database.Backend).Msg("database opened")

	base := []Option{
		WithLogger(log),
		WithHeaderCacheSize(cfg.Database.HeaderCacheSize),
		WithIndexSizeHint(cfg.Index.SizeHint),
		WithFingerprintSizeHint(cfg.Fingerprint.SizeHint),
		WithFingerprintRoot(cfg.Fingerprint.Root),
		WithSkipDirs(cfg.Fingerprint.SkipDirs...),
		WithWorkers(cfg.Fingerprint.Workers),
		WithBacktrackOnFiltered(cfg.Label.BacktrackOnFiltered),
	}
	d, err := New(st, append(base, opts...)...)
	if err != nil {
		st.Close()
		return nil, err
	}
	return d, nil
}

// ID returns the database cookie, stable across reopenings.
func (d *DB) ID(ctx context.Context) (uuid.UUID, error) {
	if d.closed {
		return uuid.Nil, common.ErrClosed
	}
	return d.st.Cookie(ctx)
}

// Close closes the store. Closing twice is a no-op.
func (d *DB) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.headers != nil {
		d.headers.Purge()
	}
	return d.st.Close()
}

// Header reads and decodes header instance num. A blob that does not decode
// is reported as common.ErrCorrupt.
func (d *DB) Header(ctx context.Context, num uint32) (*header.Header, error) {
	if d.closed {
		return nil, common.ErrClosed
	}
	if d.headers != nil {
		if h, ok := d.headers.Get(num); ok {
			HeaderCacheLookups.WithLabelValues("hit").Inc()
			return h, nil
		}
		HeaderCacheLookups.WithLabelValues("miss").Inc()
	}

	blob, err := d.st.Header(ctx, num)
	if err != nil {
		return nil, common.WrapError(err, "reading header %d", num)
	}
	h, err := header.Unmarshal(blob)
	if err != nil {
		return nil, common.LogAndWrapError(d.log, err, zerolog.ErrorLevel, "decoding header %d", num)
	}
	if d.headers != nil {
		d.headers.Add(num, h)
	}
	return h, nil
}

// NewFingerprintCache creates a cache configured like the ones the handle
// uses, for callers that fingerprint transaction files before FindFpList.
func (d *DB) NewFingerprintCache(sizeHint int) *fprint.Cache {
	if sizeHint <= 0 {
		sizeHint = d.fpSizeHint
	}
	opts := []fprint.Option{
		fprint.WithRoot(d.fpRoot),
		fprint.WithLogger(d.log),
	}
	if d.asserts != nil {
		opts = append(opts, fprint.WithAssertHandler(d.asserts))
	}
	return fprint.NewCache(sizeHint, nil, d.probe, opts...)
}

// labelIndex presents the handle to the label matcher.
type labelIndex struct{ d *DB }

func (l labelIndex) Lookup(ctx context.Context, tag header.Tag, key string) (*indexing.Set, error) {
	return l.d.Lookup(ctx, tag, key)
}

func (l labelIndex) Header(ctx context.Context, num uint32) (header.Accessor, error) {
	h, err := l.d.Header(ctx, num)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// FindByLabel resolves a name[-version[-release]] label.
func (d *DB) FindByLabel(ctx context.Context, lbl string) (label.Result, error) {
	if d.closed {
		return label.Result{}, common.ErrClosed
	}
	return d.matcher.FindByLabel(ctx, lbl)
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
