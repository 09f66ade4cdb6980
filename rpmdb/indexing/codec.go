package indexing

import (
	"encoding/binary"
	"fmt"

	"github.com/rpm-software-management/rpm-sub016/rpmdb/common"
)

// Record lengths of the packed on-store form.
const (
	// PairLen stores HeaderNum followed by TagNum.
	PairLen = 8
	// HeaderLen stores HeaderNum only; TagNum decodes as zero.
	HeaderLen = 4
)

// Encode packs s into its on-store form. An empty set encodes to nil.
// Format: Count() records of recLen bytes, each [u32 HeaderNum] or
// [u32 HeaderNum][u32 TagNum] in the given byte order.
func Encode(s *Set, recLen int, order binary.ByteOrder) ([]byte, error) {
	if recLen != PairLen && recLen != HeaderLen {
		return nil, fmt.Errorf("record length %d: %w", recLen, common.ErrInvalidArgument)
	}
	n := s.Count()
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n*recLen)
	off := 0
	for _, r := range s.recs {
		order.PutUint32(buf[off:], r.HeaderNum)
		if recLen == PairLen {
			order.PutUint32(buf[off+4:], r.TagNum)
		}
		off += recLen
	}
	return buf, nil
}

// Decode unpacks data written by Encode. A nil or empty buffer decodes to an
// empty set. A buffer that is not a whole number of records is corrupt.
func Decode(data []byte, recLen int, order binary.ByteOrder) (*Set, error) {
	if recLen != PairLen && recLen != HeaderLen {
		return nil, fmt.Errorf("record length %d: %w", recLen, common.ErrInvalidArgument)
	}
	if len(data)%recLen != 0 {
		return nil, common.Corruptf("index value of %d bytes is not a multiple of %d", len(data), recLen)
	}
	n := len(data) / recLen
	s := New(n)
	for off := 0; off < len(data); off += recLen {
		r := Record{HeaderNum: order.Uint32(data[off:])}
		if recLen == PairLen {
			r.TagNum = order.Uint32(data[off+4:])
		}
		s.recs = append(s.recs, r)
	}
	return s, nil
}
