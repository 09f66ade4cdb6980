package indexing

import (
	"encoding/binary"
	"testing"

	"github.com/rpm-software-management/rpm-sub016/rpmdb/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec(t *testing.T) {
	s := FromRecords(recs(1, 2, 0x01020304, 7))

	t.Run("PairBigEndian", func(t *testing.T) {
		data, err := Encode(s, PairLen, binary.BigEndian)
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, 2, 1, 2, 3, 4, 0, 0, 0, 7}, data)

		back, err := Decode(data, PairLen, binary.BigEndian)
		require.NoError(t, err)
		assert.Equal(t, s.Records(), back.Records())
	})

	t.Run("HeaderOnlyDropsTag", func(t *testing.T) {
		data, err := Encode(s, HeaderLen, binary.LittleEndian)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 0, 0, 0, 4, 3, 2, 1}, data)

		back, err := Decode(data, HeaderLen, binary.LittleEndian)
		require.NoError(t, err)
		assert.Equal(t, recs(1, 0, 0x01020304, 0), back.Records())
	})

	t.Run("Empty", func(t *testing.T) {
		data, err := Encode(nil, PairLen, binary.BigEndian)
		require.NoError(t, err)
		assert.Nil(t, data)

		back, err := Decode(nil, PairLen, binary.BigEndian)
		require.NoError(t, err)
		assert.Zero(t, back.Count())
	})

	t.Run("TruncatedIsCorrupt", func(t *testing.T) {
		_, err := Decode([]byte{0, 0, 0, 1, 0}, PairLen, binary.BigEndian)
		assert.ErrorIs(t, err, common.ErrCorrupt)
	})

	t.Run("BadRecordLength", func(t *testing.T) {
		_, err := Encode(s, 3, binary.BigEndian)
		assert.ErrorIs(t, err, common.ErrInvalidArgument)
		_, err = Decode(nil, 16, binary.BigEndian)
		assert.ErrorIs(t, err, common.ErrInvalidArgument)
	})
}
