package db

import (
	"context"
	"slices"

	"github.com/rpm-software-management/rpm-sub016/rpmdb/common"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/fprint"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/header"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/indexing"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// fileHit is one installed file that shares a base name with query
// fingerprint fpNum.
type fileHit struct {
	rec   indexing.Record
	fpNum int
}

// FindByFile returns the (header, file index) records of installed files
// that are the same file as path, however either side spells it. A path no
// package owns is common.ErrNotFound.
func (d *DB) FindByFile(ctx context.Context, path string) (*indexing.Set, error) {
	if d.closed {
		return nil, common.ErrClosed
	}
	cache := d.NewFingerprintCache(20)
	defer cache.Free()

	fps := []fprint.Fingerprint{cache.LookupPath(path)}
	matches, err := d.findFps(ctx, cache, fps, false)
	if err != nil {
		return nil, err
	}
	if matches[0].Count() == 0 {
		return nil, common.WrapError(common.ErrNotFound, "no package owns %q", path)
	}
	return matches[0], nil
}

// FindFpList matches every fingerprint in fps, made by cache, against the
// installed file lists. The result holds one set per fingerprint, empty when
// nothing installed is the same file. Fingerprints in skipped directories
// get an empty set without being looked up.
func (d *DB) FindFpList(ctx context.Context, cache *fprint.Cache, fps []fprint.Fingerprint) ([]*indexing.Set, error) {
	if d.closed {
		return nil, common.ErrClosed
	}
	return d.findFps(ctx, cache, fps, true)
}

func (d *DB) findFps(ctx context.Context, cache *fprint.Cache, fps []fprint.Fingerprint, skip bool) ([]*indexing.Set, error) {
	matches := make([]*indexing.Set, len(fps))
	for i := range matches {
		matches[i] = indexing.New(0)
	}

	hits, err := d.basenameHits(ctx, cache, fps, skip)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return matches, nil
	}
	slices.SortFunc(hits, func(a, b fileHit) int {
		switch {
		case a.rec.HeaderNum != b.rec.HeaderNum:
			return cmpUint32(a.rec.HeaderNum, b.rec.HeaderNum)
		case a.rec.TagNum != b.rec.TagNum:
			return cmpUint32(a.rec.TagNum, b.rec.TagNum)
		}
		return a.fpNum - b.fpNum
	})

	headers, err := d.fetchHeaders(ctx, hits)
	if err != nil {
		return nil, err
	}

	// hits are grouped by header, fingerprint each installed file list once
	for start := 0; start < len(hits); {
		num := hits[start].rec.HeaderNum
		end := start
		for end < len(hits) && hits[end].rec.HeaderNum == num {
			end++
		}
		group := hits[start:end]
		start = end

		h := headers[num]
		if h == nil {
			continue
		}
		var valid []fileHit
		var bases []string
		var dirIdx []uint32
		for _, hit := range group {
			fileNum := int(hit.rec.TagNum)
			if fileNum >= h.FileCount() || fileNum >= len(h.DirIndexes) {
				d.log.Warn().Uint32("num", num).Int("file", fileNum).Msg("basename index points past the file list")
				continue
			}
			valid = append(valid, hit)
			bases = append(bases, h.BaseNames[fileNum])
			dirIdx = append(dirIdx, h.DirIndexes[fileNum])
		}
		installed := cache.LookupList(h.DirNames, bases, dirIdx)
		for i, hit := range valid {
			if !cache.Equal(installed[i], fps[hit.fpNum]) {
				continue
			}
			if err := matches[hit.fpNum].AppendOne(num, hit.rec.TagNum, false); err != nil {
				return nil, common.WrapError(err, "collecting matches")
			}
		}
	}
	return matches, nil
}

// basenameHits reads the base name index once per distinct base name and
// pairs every hit with the fingerprints asking for that name.
func (d *DB) basenameHits(ctx context.Context, cache *fprint.Cache, fps []fprint.Fingerprint, skip bool) ([]fileHit, error) {
	var names []string
	nameOf := make([]int, len(fps))
	seen := make(map[string]int, len(fps))
	for i, fp := range fps {
		nameOf[i] = -1
		dir := cache.Dir(fp)
		if dir == "" || skip && d.skipped(dir) {
			continue
		}
		base := cache.Base(fp)
		j, ok := seen[base]
		if !ok {
			j = len(names)
			seen[base] = j
			names = append(names, base)
		}
		nameOf[i] = j
	}
	if len(names) == 0 {
		return nil, nil
	}

	sets := make([]*indexing.Set, len(names))
	p := pool.New().WithMaxGoroutines(d.workers).WithContext(ctx).WithCancelOnError()
	for j, name := range names {
		p.Go(func(ctx context.Context) error {
			set, err := d.Lookup(ctx, header.TagBaseNames, name)
			if isNotFound(err) {
				return nil
			}
			sets[j] = set
			return err
		})
	}
	if err := p.Wait(); err != nil {
		return nil, common.LogAndWrapError(d.log, err, zerolog.ErrorLevel, "looking up %d base names", len(names))
	}

	var hits []fileHit
	for i, j := range nameOf {
		if j < 0 || sets[j] == nil {
			continue
		}
		for _, rec := range sets[j].Records() {
			hits = append(hits, fileHit{rec: rec, fpNum: i})
		}
	}
	return hits, nil
}

// fetchHeaders reads every header hits refer to. Headers the index points at
// but the store no longer has are left out with a warning.
func (d *DB) fetchHeaders(ctx context.Context, hits []fileHit) (map[uint32]*header.Header, error) {
	var nums []uint32
	for _, hit := range hits {
		if n := len(nums); n == 0 || nums[n-1] != hit.rec.HeaderNum {
			nums = append(nums, hit.rec.HeaderNum)
		}
	}

	got := make([]*header.Header, len(nums))
	p := pool.New().WithMaxGoroutines(d.workers).WithContext(ctx).WithCancelOnError()
	for i, num := range nums {
		p.Go(func(ctx context.Context) error {
			h, err := d.Header(ctx, num)
			if isNotFound(err) {
				d.log.Warn().Uint32("num", num).Msg("basename index points at missing header")
				return nil
			}
			got[i] = h
			return err
		})
	}
	if err := p.Wait(); err != nil {
		return nil, common.LogAndWrapError(d.log, err, zerolog.ErrorLevel, "reading %d headers", len(nums))
	}

	headers := make(map[uint32]*header.Header, len(nums))
	for i, num := range nums {
		headers[num] = got[i]
	}
	return headers, nil
}

// skipped reports whether dir matches a skip pattern.
func (d *DB) skipped(dir string) bool {
	if d.skip == nil || dir == "" {
		return false
	}
	if dir != "/" {
		dir += "/"
	}
	return d.skip.MatchesPath(dir)
}

func cmpUint32(a, b uint32) int {
	if a < b {
		return -1
	}
	return 1
}
