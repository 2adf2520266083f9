package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data []byte
	info ObjectInfo
}

// MemoryStore keeps objects in process memory. It backs tests and the "memory" backend.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

// Put stores a private copy of data.
func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) (ObjectInfo, error) {
	key, err := CleanKey(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, ErrUnavailable.Wrap(err)
	}

	buf := append([]byte(nil), data...)
	sum := md5.Sum(buf)
	info := ObjectInfo{
		Key:          key,
		Size:         int64(len(buf)),
		ETag:         hex.EncodeToString(sum[:]),
		ContentType:  opts.ContentType,
		LastModified: m.now(),
	}

	m.mu.Lock()
	m.objects[key] = memoryObject{data: buf, info: info}
	m.mu.Unlock()
	return info, nil
}

// Get returns a copy of the stored bytes.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrUnavailable.Wrap(err)
	}

	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotExist
	}
	return append([]byte(nil), obj.data...), nil
}

// List returns objects under prefix in key order.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ObjectInfo
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, obj.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Len reports how many objects are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
