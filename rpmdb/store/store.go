// Package store persists installed headers and the secondary indexes that
// point into them.
//
// Index values are packed index sets: 8-byte (header, tag position) records
// in big-endian order, so the raw bytes of every backend look the same.
package store

import (
	"context"
	"encoding/binary"

	"github.com/rpm-software-management/rpm-sub016/rpmdb/header"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/indexing"

	"github.com/google/uuid"
)

// Store is the key-value collaborator of the database handle.
//
// Misses are reported as common.ErrNotFound. Putting an empty set removes
// the key. Implementations are safe for concurrent reads.
type Store interface {
	Get(ctx context.Context, tag header.Tag, key []byte) (*indexing.Set, error)
	Put(ctx context.Context, tag header.Tag, key []byte, set *indexing.Set) error
	Delete(ctx context.Context, tag header.Tag, key []byte) error

	Header(ctx context.Context, num uint32) ([]byte, error)
	PutHeader(ctx context.Context, num uint32, blob []byte) error
	DeleteHeader(ctx context.Context, num uint32) error

	// NextInstance allocates a header instance number. Numbers start at 1
	// and are never reused.
	NextInstance(ctx context.Context) (uint32, error)
	// Cookie identifies the database across reopenings.
	Cookie(ctx context.Context) (uuid.UUID, error)

	Close() error
}

// byteOrder is the order of packed index values.
var byteOrder = binary.BigEndian

func encodeSet(s *indexing.Set) ([]byte, error) {
	return indexing.Encode(s, indexing.PairLen, byteOrder)
}

func decodeSet(data []byte) (*indexing.Set, error) {
	return indexing.Decode(data, indexing.PairLen, byteOrder)
}

var (
	_ Store = (*MemStore)(nil)
	_ Store = (*PebbleStore)(nil)
	_ Store = (*SQLStore)(nil)
)
