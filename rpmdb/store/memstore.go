package store

import (
	"context"
	"sync"

	"github.com/rpm-software-management/rpm-sub016/rpmdb/common"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/header"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/indexing"

	"github.com/google/uuid"
)

type indexKey struct {
	tag header.Tag
	key string
}

// MemStore keeps everything in process memory.
type MemStore struct {
	mu      sync.RWMutex
	indexes map[indexKey][]byte
	headers map[uint32][]byte
	next    uint32
	cookie  uuid.UUID
	closed  bool
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		indexes: make(map[indexKey][]byte),
		headers: make(map[uint32][]byte),
		next:    1,
		cookie:  uuid.New(),
	}
}

func (m *MemStore) Get(_ context.Context, tag header.Tag, key []byte) (*indexing.Set, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, common.ErrClosed
	}
	data, ok := m.indexes[indexKey{tag, string(key)}]
	if !ok {
		return nil, common.ErrNotFound
	}
	return decodeSet(data)
}

func (m *MemStore) Put(ctx context.Context, tag header.Tag, key []byte, set *indexing.Set) error {
	if set.Count() == 0 {
		return m.Delete(ctx, tag, key)
	}
	data, err := encodeSet(set)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return common.ErrClosed
	}
	m.indexes[indexKey{tag, string(key)}] = data
	return nil
}

func (m *MemStore) Delete(_ context.Context, tag header.Tag, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return common.ErrClosed
	}
	delete(m.indexes, indexKey{tag, string(key)})
	return nil
}

func (m *MemStore) Header(_ context.Context, num uint32) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, common.ErrClosed
	}
	blob, ok := m.headers[num]
	if !ok {
		return nil, common.ErrNotFound
	}
	return append([]byte(nil), blob...), nil
}

func (m *MemStore) PutHeader(_ context.Context, num uint32, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return common.ErrClosed
	}
	m.headers[num] = append([]byte(nil), blob...)
	return nil
}

func (m *MemStore) DeleteHeader(_ context.Context, num uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return common.ErrClosed
	}
	delete(m.headers, num)
	return nil
}

func (m *MemStore) NextInstance(_ context.Context) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, common.ErrClosed
	}
	if m.next == 0 {
		return 0, common.WrapError(common.ErrResourceExhausted, "header instance numbers")
	}
	n := m.next
	m.next++
	return n, nil
}

func (m *MemStore) Cookie(_ context.Context) (uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return uuid.Nil, common.ErrClosed
	}
	return m.cookie, nil
}

func (m *MemStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.indexes = nil
	m.headers = nil
	return nil
}
