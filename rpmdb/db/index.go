package db

import (
	"context"

	"github.com/rpm-software-management/rpm-sub016/rpmdb/common"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/header"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/indexing"

	"github.com/RoaringBitmap/roaring"
	"github.com/rs/zerolog"
)

// IndexedTags are the tags Add maintains a secondary index for.
var IndexedTags = []header.Tag{
	header.TagName,
	header.TagBaseNames,
	header.TagProvideName,
	header.TagRequireName,
}

// indexEntry is the set of positions one header contributes to one key.
type indexEntry struct {
	key  string
	recs []indexing.Record
}

// indexEntries groups the values of tag in h by key, in order of first
// appearance. Each record carries the value's position in the tag.
func indexEntries(num uint32, h *header.Header, tag header.Tag) []indexEntry {
	vals := h.Strings(tag)
	var out []indexEntry
	at := make(map[string]int, len(vals))
	for i, v := range vals {
		rec := indexing.Record{HeaderNum: num, TagNum: uint32(i)}
		if j, ok := at[v]; ok {
			out[j].recs = append(out[j].recs, rec)
			continue
		}
		at[v] = len(out)
		out = append(out, indexEntry{key: v, recs: []indexing.Record{rec}})
	}
	return out
}

// Add stores h as a new instance and indexes it. It returns the instance
// number.
func (d *DB) Add(ctx context.Context, h *header.Header) (uint32, error) {
	if d.closed {
		return 0, common.ErrClosed
	}
	num, err := d.st.NextInstance(ctx)
	if err != nil {
		return 0, common.WrapError(err, "allocating header instance")
	}
	if err := d.st.PutHeader(ctx, num, header.Marshal(h)); err != nil {
		return 0, common.WrapError(err, "storing header %d", num)
	}

	for _, tag := range IndexedTags {
		for _, e := range indexEntries(num, h, tag) {
			set, err := d.st.Get(ctx, tag, []byte(e.key))
			switch {
			case isNotFound(err):
				set = indexing.New(d.indexSizeHint)
			case err != nil:
				return num, common.LogAndWrapError(d.log, err, zerolog.ErrorLevel, "reading %s index for %q", tag, e.key)
			}
			if err := set.Append(e.recs, true); err != nil {
				return num, common.WrapError(err, "growing %s index for %q", tag, e.key)
			}
			if err := d.st.Put(ctx, tag, []byte(e.key), set); err != nil {
				return num, common.LogAndWrapError(d.log, err, zerolog.ErrorLevel, "writing %s index for %q", tag, e.key)
			}
		}
	}
	if d.headers != nil {
		d.headers.Add(num, h)
	}
	d.log.Debug().Uint32("num", num).Str("nevra", h.NEVRA()).Msg("header added")
	return num, nil
}

// Remove drops header instance num and every index record pointing at it.
// Keys left without records are deleted.
func (d *DB) Remove(ctx context.Context, num uint32) error {
	h, err := d.Header(ctx, num)
	if err != nil {
		return err
	}

	for _, tag := range IndexedTags {
		for _, e := range indexEntries(num, h, tag) {
			set, err := d.st.Get(ctx, tag, []byte(e.key))
			if isNotFound(err) {
				d.log.Warn().Stringer("tag", tag).Str("key", e.key).Uint32("num", num).Msg("index key already gone")
				continue
			}
			if err != nil {
				return common.LogAndWrapError(d.log, err, zerolog.ErrorLevel, "reading %s index for %q", tag, e.key)
			}
			if set.Prune(e.recs, true) {
				d.log.Warn().Stringer("tag", tag).Str("key", e.key).Uint32("num", num).Msg("header missing from index")
				continue
			}
			if err := d.st.Put(ctx, tag, []byte(e.key), set); err != nil {
				return common.LogAndWrapError(d.log, err, zerolog.ErrorLevel, "writing %s index for %q", tag, e.key)
			}
		}
	}

	if err := d.st.DeleteHeader(ctx, num); err != nil {
		return common.WrapError(err, "deleting header %d", num)
	}
	if d.headers != nil {
		d.headers.Remove(num)
	}
	d.log.Debug().Uint32("num", num).Str("nevra", h.NEVRA()).Msg("header removed")
	return nil
}

// Lookup returns the index hits for key. A miss is common.ErrNotFound.
func (d *DB) Lookup(ctx context.Context, tag header.Tag, key string) (*indexing.Set, error) {
	if d.closed {
		return nil, common.ErrClosed
	}
	set, err := d.st.Get(ctx, tag, []byte(key))
	switch {
	case err == nil:
		IndexLookups.WithLabelValues(tag.String(), "hit").Inc()
	case isNotFound(err):
		IndexLookups.WithLabelValues(tag.String(), "miss").Inc()
	default:
		IndexLookups.WithLabelValues(tag.String(), "error").Inc()
		return nil, common.LogAndWrapError(d.log, err, zerolog.ErrorLevel, "error getting %q records from %s index", key, tag)
	}
	return set, err
}

// CountPackages returns how many installed instances are named name.
func (d *DB) CountPackages(ctx context.Context, name string) (int, error) {
	set, err := d.Lookup(ctx, header.TagName, name)
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return set.Count(), nil
}

// WhatProvidesAll returns the headers that provide every one of names.
func (d *DB) WhatProvidesAll(ctx context.Context, names ...string) (*roaring.Bitmap, error) {
	sets := make([]*indexing.Set, 0, len(names))
	for _, name := range names {
		set, err := d.Lookup(ctx, header.TagProvideName, name)
		if isNotFound(err) {
			return roaring.New(), nil
		}
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return indexing.AndHeaders(sets...), nil
}
