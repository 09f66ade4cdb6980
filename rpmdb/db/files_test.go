//go:build unix

package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rpm-software-management/rpm-sub016/rpmdb/common"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/fprint"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/indexing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// installedTree builds a root where /usr/lib is a symlink to /usr/lib64 and
// installs two packages into a database resolving files below it.
func installedTree(t *testing.T, opts ...Option) (*DB, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr", "lib64"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr", "share", "doc", "glibc"), 0o755))
	require.NoError(t, os.Symlink("lib64", filepath.Join(root, "usr", "lib")))

	d, _ := newDB(t, append([]Option{WithFingerprintRoot(root)}, opts...)...)
	ctx := context.Background()
	_, err := d.Add(ctx, pkg("glibc", "2.39", "1",
		"/usr/lib/libc.so",
		"/usr/share/doc/glibc/README",
		"/opt/glibc/bin/ldd",
	))
	require.NoError(t, err)
	_, err = d.Add(ctx, pkg("other", "1", "1",
		"/usr/share/libc.so",
		"/usr/share/doc/other/README",
	))
	require.NoError(t, err)
	return d, root
}

func TestFindByFile(t *testing.T) {
	ctx := context.Background()
	d, _ := installedTree(t)

	tests := []struct {
		name string
		path string
		want []indexing.Record
	}{
		{"SameSpelling", "/usr/lib/libc.so", []indexing.Record{{HeaderNum: 1, TagNum: 0}}},
		{"ThroughSymlink", "/usr/lib64/libc.so", []indexing.Record{{HeaderNum: 1, TagNum: 0}}},
		{"UncleanPath", "/usr//lib64/./libc.so", []indexing.Record{{HeaderNum: 1, TagNum: 0}}},
		{"OtherDirectory", "/usr/share/libc.so", []indexing.Record{{HeaderNum: 2, TagNum: 0}}},
		{"MissingDirectories", "/opt/glibc/bin/ldd", []indexing.Record{{HeaderNum: 1, TagNum: 2}}},
		{"SharedBaseName", "/usr/share/doc/glibc/README", []indexing.Record{{HeaderNum: 1, TagNum: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := d.FindByFile(ctx, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, set.Records())
		})
	}

	t.Run("NotOwned", func(t *testing.T) {
		for _, p := range []string{"/usr/lib64/libm.so", "/usr/lib64/README", "/opt/other/bin/ldd"} {
			_, err := d.FindByFile(ctx, p)
			assert.ErrorIs(t, err, common.ErrNotFound, p)
			assert.Equal(t, common.StatusNotFound, common.StatusOf(err))
		}
	})
}

func TestFindByFileMissingHeader(t *testing.T) {
	ctx := context.Background()
	d, _ := installedTree(t, WithHeaderCacheSize(0))
	require.NoError(t, d.st.DeleteHeader(ctx, 1))

	_, err := d.FindByFile(ctx, "/usr/lib/libc.so")
	assert.ErrorIs(t, err, common.ErrNotFound)

	set, err := d.FindByFile(ctx, "/usr/share/libc.so")
	require.NoError(t, err)
	assert.Equal(t, 1, set.Count())
}

func TestFindFpList(t *testing.T) {
	ctx := context.Background()
	paths := []string{
		"/usr/lib64/libc.so",
		"/usr/share/doc/glibc/README",
		"/usr/share/doc/other/README",
		"/nowhere/libc.so",
	}
	lookup := func(d *DB) (*fprint.Cache, []fprint.Fingerprint) {
		cache := d.NewFingerprintCache(0)
		t.Cleanup(cache.Free)
		fps := make([]fprint.Fingerprint, len(paths))
		for i, p := range paths {
			fps[i] = cache.LookupPath(p)
		}
		return cache, fps
	}

	t.Run("AllDirectories", func(t *testing.T) {
		d, _ := installedTree(t, WithWorkers(2))
		cache, fps := lookup(d)

		matches, err := d.FindFpList(ctx, cache, fps)
		require.NoError(t, err)
		require.Len(t, matches, len(paths))
		assert.Equal(t, []indexing.Record{{HeaderNum: 1, TagNum: 0}}, matches[0].Records())
		assert.Equal(t, []indexing.Record{{HeaderNum: 1, TagNum: 1}}, matches[1].Records())
		assert.Equal(t, []indexing.Record{{HeaderNum: 2, TagNum: 1}}, matches[2].Records())
		assert.Zero(t, matches[3].Count())
	})

	t.Run("SkipDirs", func(t *testing.T) {
		d, _ := installedTree(t, WithSkipDirs("/usr/share/doc/"))
		cache, fps := lookup(d)

		matches, err := d.FindFpList(ctx, cache, fps)
		require.NoError(t, err)
		assert.Equal(t, 1, matches[0].Count())
		assert.Zero(t, matches[1].Count())
		assert.Zero(t, matches[2].Count())
	})

	t.Run("Empty", func(t *testing.T) {
		d, _ := installedTree(t)
		cache := d.NewFingerprintCache(0)
		defer cache.Free()

		matches, err := d.FindFpList(ctx, cache, nil)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestFindFpListPopulated(t *testing.T) {
	// the transaction side fingerprints its files through Populate, the
	// installed side is matched in the same cache
	ctx := context.Background()
	d, _ := installedTree(t)
	cache := d.NewFingerprintCache(0)
	defer cache.Free()

	incoming := pkg("glibc", "2.40", "1", "/usr/lib64/libc.so", "/usr/share/doc/glibc/NEWS")
	require.NoError(t, cache.Populate(fprint.Elements{incoming}, 0))

	fps := cache.LookupList(incoming.DirNames, incoming.BaseNames, incoming.DirIndexes)
	matches, err := d.FindFpList(ctx, cache, fps)
	require.NoError(t, err)
	assert.Equal(t, []indexing.Record{{HeaderNum: 1, TagNum: 0}}, matches[0].Records())
	assert.Zero(t, matches[1].Count())

	recs := cache.Records(fps[0])
	require.Len(t, recs, 1)
	assert.Equal(t, 0, recs[0].FileIndex)
}
