package hashtab

import (
	"fmt"
	"testing"

	"github.com/rpm-software-management/rpm-sub016/rpmdb/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"MultiValuedInsertionOrder", testTableMultiValued},
		{"AbsentKey", testTableAbsentKey},
		{"SingleBucketChains", testTableSingleBucket},
		{"KeyCopyPolicy", testTableKeyCopy},
		{"KeyBorrowPolicy", testTableKeyBorrow},
		{"FreeOwnedValues", testTableFreeOwned},
		{"MaxEntries", testTableMaxEntries},
		{"Stats", testTableStats},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func testTableMultiValued(t *testing.T) {
	tab := New[string, string](16, StringHash, StringEqual)

	assert.False(t, tab.Has("bar"), "bar must be absent before any insert")

	require.NoError(t, tab.Add("foo", "A"))
	require.NoError(t, tab.Add("foo", "B"))

	values, stored, ok := tab.Get("foo")
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B"}, values)
	assert.Equal(t, "foo", stored)
	assert.Equal(t, 1, tab.Len())
	assert.False(t, tab.Has("bar"))
}

func testTableAbsentKey(t *testing.T) {
	tab := New[uint32, int](4, Uint32Hash, Uint32Equal)

	values, stored, ok := tab.Get(99)
	assert.False(t, ok)
	assert.Nil(t, values)
	assert.Zero(t, stored)
}

func testTableSingleBucket(t *testing.T) {
	// Every key collides; lookups must still be exact.
	tab := New[string, int](0, StringHash, StringEqual)
	require.Equal(t, 1, tab.Buckets())

	for i := 0; i < 50; i++ {
		require.NoError(t, tab.Add(fmt.Sprintf("k%d", i), i))
	}
	for i := 0; i < 50; i++ {
		values, _, ok := tab.Get(fmt.Sprintf("k%d", i))
		require.True(t, ok)
		assert.Equal(t, []int{i}, values)
	}
	assert.Equal(t, 50, tab.Stats().LongestChain)
}

func testTableKeyCopy(t *testing.T) {
	tab := New[[]byte, int](8, BytesHash, BytesEqual, WithKeyCopy[[]byte, int](BytesClone))

	key := []byte("usr")
	require.NoError(t, tab.Add(key, 1))
	key[0] = 'x'

	assert.True(t, tab.Has([]byte("usr")), "copied key must survive caller mutation")
	assert.False(t, tab.Has([]byte("xsr")))
}

func testTableKeyBorrow(t *testing.T) {
	tab := New[[]byte, int](1, func([]byte) uint64 { return 0 }, BytesEqual)

	key := []byte("usr")
	require.NoError(t, tab.Add(key, 1))
	key[0] = 'x'

	_, stored, ok := tab.Get([]byte("xsr"))
	require.True(t, ok, "borrowed key reflects caller mutation")
	assert.Equal(t, "xsr", string(stored))
}

func testTableFreeOwned(t *testing.T) {
	var freed []int
	tab := New[string, int](4, StringHash, StringEqual,
		WithFreeData[string, int](func(v int) { freed = append(freed, v) }))

	require.NoError(t, tab.Add("a", 1))
	require.NoError(t, tab.Add("a", 2))
	require.NoError(t, tab.Add("b", 3))

	tab.Free()
	assert.ElementsMatch(t, []int{1, 2, 3}, freed)
	assert.Zero(t, tab.Len())
	assert.False(t, tab.Has("a"))

	// Borrowed values are never handed to anyone.
	borrowed := New[string, int](4, StringHash, StringEqual)
	require.NoError(t, borrowed.Add("a", 1))
	borrowed.Free()
	assert.Len(t, freed, 3)
}

func testTableMaxEntries(t *testing.T) {
	tab := New[string, int](4, StringHash, StringEqual, WithMaxEntries[string, int](2))

	require.NoError(t, tab.Add("a", 1))
	require.NoError(t, tab.Add("b", 1))
	require.NoError(t, tab.Add("a", 2), "existing keys still accept values")

	err := tab.Add("c", 1)
	assert.ErrorIs(t, err, common.ErrResourceExhausted)
	assert.Equal(t, common.StatusFail, common.StatusOf(err))
}

func testTableStats(t *testing.T) {
	tab := New[uint32, string](8, Uint32Hash, Uint32Equal)
	for i := uint32(0); i < 20; i++ {
		require.NoError(t, tab.Add(i%10, "v"))
	}

	st := tab.Stats()
	assert.Equal(t, 10, st.Entries)
	assert.Equal(t, 20, st.Values)
	assert.Len(t, st.BucketDistribution, 8)

	total := 0
	for _, n := range st.BucketDistribution {
		total += n
	}
	assert.Equal(t, 10, total)

	seen := 0
	tab.Each(func(key uint32, values []string) bool {
		assert.Len(t, values, 2)
		seen++
		return true
	})
	assert.Equal(t, 10, seen)
}
