package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rpm-software-management/rpm-sub016/rpmdb/common"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/header"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/indexing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// StoreTestSuite runs the Store contract against one backend.
type StoreTestSuite struct {
	suite.Suite
	open  func(t *testing.T) Store
	store Store
	ctx   context.Context
}

func (s *StoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.open(s.T())
}

func (s *StoreTestSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

func TestMemStoreSuite(t *testing.T) {
	suite.Run(t, &StoreTestSuite{open: func(*testing.T) Store { return NewMemStore() }})
}

func TestPebbleStoreSuite(t *testing.T) {
	suite.Run(t, &StoreTestSuite{open: func(t *testing.T) Store {
		st, err := OpenPebble("db", &pebble.Options{FS: vfs.NewMem()})
		require.NoError(t, err)
		return st
	}})
}

func TestSQLStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("libsql store needs the native driver")
	}
	suite.Run(t, &StoreTestSuite{open: func(t *testing.T) Store {
		dsn := "file:" + filepath.Join(t.TempDir(), "rpmdb.sqlite")
		st, err := OpenSQL(context.Background(), dsn)
		require.NoError(t, err)
		return st
	}})
}

func (s *StoreTestSuite) TestIndexRoundTrip() {
	t := s.T()
	set := indexing.FromRecords([]indexing.Record{{HeaderNum: 1, TagNum: 0}, {HeaderNum: 7, TagNum: 3}})

	require.NoError(t, s.store.Put(s.ctx, header.TagBaseNames, []byte("libc.so.6"), set))

	got, err := s.store.Get(s.ctx, header.TagBaseNames, []byte("libc.so.6"))
	require.NoError(t, err)
	assert.Equal(t, set.Records(), got.Records())

	// same key under another tag is a different entry
	_, err = s.store.Get(s.ctx, header.TagName, []byte("libc.so.6"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func (s *StoreTestSuite) TestIndexOverwriteAndDelete() {
	t := s.T()
	key := []byte("bash")
	require.NoError(t, s.store.Put(s.ctx, header.TagName, key, indexing.FromRecords([]indexing.Record{{HeaderNum: 1}})))
	require.NoError(t, s.store.Put(s.ctx, header.TagName, key, indexing.FromRecords([]indexing.Record{{HeaderNum: 2}})))

	got, err := s.store.Get(s.ctx, header.TagName, key)
	require.NoError(t, err)
	assert.Equal(t, []indexing.Record{{HeaderNum: 2}}, got.Records())

	require.NoError(t, s.store.Delete(s.ctx, header.TagName, key))
	_, err = s.store.Get(s.ctx, header.TagName, key)
	assert.ErrorIs(t, err, common.ErrNotFound)

	// deleting a missing key is not an error
	assert.NoError(t, s.store.Delete(s.ctx, header.TagName, key))
}

func (s *StoreTestSuite) TestEmptySetRemovesKey() {
	t := s.T()
	key := []byte("zsh")
	require.NoError(t, s.store.Put(s.ctx, header.TagName, key, indexing.FromRecords([]indexing.Record{{HeaderNum: 4}})))
	require.NoError(t, s.store.Put(s.ctx, header.TagName, key, indexing.New(0)))

	_, err := s.store.Get(s.ctx, header.TagName, key)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, common.StatusNotFound, common.StatusOf(err))
}

func (s *StoreTestSuite) TestHeaders() {
	t := s.T()
	_, err := s.store.Header(s.ctx, 1)
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, s.store.PutHeader(s.ctx, 1, []byte("blob-1")))
	blob, err := s.store.Header(s.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("blob-1"), blob)

	require.NoError(t, s.store.DeleteHeader(s.ctx, 1))
	_, err = s.store.Header(s.ctx, 1)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func (s *StoreTestSuite) TestNextInstance() {
	t := s.T()
	seen := make(map[uint32]bool)
	for range 5 {
		n, err := s.store.NextInstance(s.ctx)
		require.NoError(t, err)
		assert.NotZero(t, n)
		assert.False(t, seen[n], "instance %d handed out twice", n)
		seen[n] = true
	}
}

func (s *StoreTestSuite) TestCookie() {
	t := s.T()
	a, err := s.store.Cookie(s.ctx)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, a)

	b, err := s.store.Cookie(s.ctx)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func (s *StoreTestSuite) TestConcurrentReads() {
	t := s.T()
	set := indexing.FromRecords([]indexing.Record{{HeaderNum: 3, TagNum: 1}})
	require.NoError(t, s.store.Put(s.ctx, header.TagProvideName, []byte("sh"), set))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Get(s.ctx, header.TagProvideName, []byte("sh"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestPebbleReopen(t *testing.T) {
	ctx := context.Background()
	fs := vfs.NewMem()

	st, err := OpenPebble("db", &pebble.Options{FS: fs})
	require.NoError(t, err)
	cookie, err := st.Cookie(ctx)
	require.NoError(t, err)
	first, err := st.NextInstance(ctx)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = OpenPebble("db", &pebble.Options{FS: fs})
	require.NoError(t, err)
	defer st.Close()

	again, err := st.Cookie(ctx)
	require.NoError(t, err)
	assert.Equal(t, cookie, again)

	second, err := st.NextInstance(ctx)
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
}

func TestCorruptIndexValue(t *testing.T) {
	ctx := context.Background()
	st, err := OpenPebble("db", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.db.Set(indexKeyBytes(header.TagName, []byte("bad")), []byte{1, 2, 3}, WriteOptions))
	_, err = st.Get(ctx, header.TagName, []byte("bad"))
	assert.ErrorIs(t, err, common.ErrCorrupt)
}

func TestMemStoreClosed(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()
	require.NoError(t, st.Close())

	_, err := st.Get(ctx, header.TagName, []byte("x"))
	assert.ErrorIs(t, err, common.ErrClosed)
	_, err = st.NextInstance(ctx)
	assert.ErrorIs(t, err, common.ErrClosed)
}
