package store

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/rpm-software-management/rpm-sub016/rpmdb/common"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/header"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/indexing"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
)

// Key prefixes of the pebble keyspace.
const (
	prefixHeader = 'h' // h + be32 instance
	prefixIndex  = 'i' // i + be32 tag + key
	prefixMeta   = 'm' // m + name
)

var (
	metaNext   = []byte{prefixMeta, 'n', 'e', 'x', 't'}
	metaCookie = []byte{prefixMeta, 'c', 'o', 'o', 'k', 'i', 'e'}
)

// WriteOptions applies to every pebble write.
var WriteOptions = pebble.Sync

// PebbleStore keeps headers and indexes in a pebble LSM.
type PebbleStore struct {
	db *pebble.DB
	// mu serializes instance allocation; pebble itself needs no locking
	mu     sync.Mutex
	cookie uuid.UUID
}

// OpenPebble opens or creates a pebble store in dir. opts may be nil; tests
// pass an in-memory filesystem through it.
func OpenPebble(dir string, opts *pebble.Options) (*PebbleStore, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, common.WrapError(err, "opening pebble store at %s", dir)
	}
	s := &PebbleStore{db: db}

	raw, err := s.get(metaCookie)
	switch {
	case errors.Is(err, common.ErrNotFound):
		s.cookie = uuid.New()
		err = db.Set(metaCookie, s.cookie[:], WriteOptions)
	case err == nil:
		s.cookie, err = uuid.FromBytes(raw)
	}
	if err != nil {
		_ = db.Close()
		return nil, common.WrapError(err, "reading database cookie")
	}
	return s, nil
}

// get copies the value of key out of pebble.
func (s *PebbleStore) get(key []byte) ([]byte, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

func indexKeyBytes(tag header.Tag, key []byte) []byte {
	k := make([]byte, 0, 5+len(key))
	k = append(k, prefixIndex)
	k = binary.BigEndian.AppendUint32(k, uint32(tag))
	return append(k, key...)
}

func headerKeyBytes(num uint32) []byte {
	return binary.BigEndian.AppendUint32([]byte{prefixHeader}, num)
}

func (s *PebbleStore) Get(_ context.Context, tag header.Tag, key []byte) (*indexing.Set, error) {
	data, err := s.get(indexKeyBytes(tag, key))
	if err != nil {
		return nil, err
	}
	return decodeSet(data)
}

func (s *PebbleStore) Put(ctx context.Context, tag header.Tag, key []byte, set *indexing.Set) error {
	if set.Count() == 0 {
		return s.Delete(ctx, tag, key)
	}
	data, err := encodeSet(set)
	if err != nil {
		return err
	}
	return s.db.Set(indexKeyBytes(tag, key), data, WriteOptions)
}

func (s *PebbleStore) Delete(_ context.Context, tag header.Tag, key []byte) error {
	return s.db.Delete(indexKeyBytes(tag, key), WriteOptions)
}

func (s *PebbleStore) Header(_ context.Context, num uint32) ([]byte, error) {
	return s.get(headerKeyBytes(num))
}

func (s *PebbleStore) PutHeader(_ context.Context, num uint32, blob []byte) error {
	return s.db.Set(headerKeyBytes(num), blob, WriteOptions)
}

func (s *PebbleStore) DeleteHeader(_ context.Context, num uint32) error {
	return s.db.Delete(headerKeyBytes(num), WriteOptions)
}

func (s *PebbleStore) NextInstance(_ context.Context) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := uint32(1)
	raw, err := s.get(metaNext)
	switch {
	case err == nil && len(raw) == 4:
		next = binary.BigEndian.Uint32(raw)
	case err == nil:
		return 0, common.Corruptf("instance counter of %d bytes", len(raw))
	case !errors.Is(err, common.ErrNotFound):
		return 0, err
	}
	if next == 0 {
		return 0, common.WrapError(common.ErrResourceExhausted, "header instance numbers")
	}
	if err := s.db.Set(metaNext, binary.BigEndian.AppendUint32(nil, next+1), WriteOptions); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *PebbleStore) Cookie(context.Context) (uuid.UUID, error) {
	return s.cookie, nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
