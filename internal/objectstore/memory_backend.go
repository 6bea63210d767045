package objectstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
)

// notFoundErr is a sentinel backend error implementing the NotFound()
// marker Gateway checks for.
type notFoundErr struct{ key string }

func (e *notFoundErr) Error() string { return "not found: " + e.key }
func (e *notFoundErr) NotFound() bool { return true }

type memObject struct {
	body        []byte
	contentType string
	tags        map[string]string
}

// MemoryBackend is an in-process Backend implementation used for tests and
// local development. Production deployments plug in a real object-store
// SDK behind the same Backend interface.
type MemoryBackend struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*memObject
}

// NewMemoryBackend constructs an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{buckets: map[string]map[string]*memObject{}}
}

func (m *MemoryBackend) bucketMap(bucket string) map[string]*memObject {
	b, ok := m.buckets[bucket]
	if !ok {
		b = map[string]*memObject{}
		m.buckets[bucket] = b
	}
	return b
}

func (m *MemoryBackend) Get(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.bucketMap(bucket)[key]
	if !ok {
		return nil, &notFoundErr{key: key}
	}
	out := make([]byte, len(obj.body))
	copy(out, obj.body)
	return out, nil
}

func (m *MemoryBackend) Put(_ context.Context, bucket, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(body))
	copy(cp, body)
	m.bucketMap(bucket)[key] = &memObject{body: cp, contentType: contentType, tags: map[string]string{}}
	return nil
}

func (m *MemoryBackend) Head(_ context.Context, bucket, key string) (*ObjectMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.bucketMap(bucket)[key]
	if !ok {
		return nil, &notFoundErr{key: key}
	}
	sum := md5.Sum(obj.body)
	return &ObjectMeta{
		Key:         key,
		Size:        int64(len(obj.body)),
		ETag:        hex.EncodeToString(sum[:]),
		ContentType: obj.contentType,
		Tags:        obj.tags,
	}, nil
}

func (m *MemoryBackend) List(_ context.Context, bucket, prefix, _ string) ([]string, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.bucketMap(bucket) {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, "", nil
}

func (m *MemoryBackend) Tag(_ context.Context, bucket, key string, tags map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.bucketMap(bucket)[key]
	if !ok {
		return &notFoundErr{key: key}
	}
	for k, v := range tags {
		obj.tags[k] = v
	}
	return nil
}

func (m *MemoryBackend) GetTags(_ context.Context, bucket, key string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.bucketMap(bucket)[key]
	if !ok {
		return nil, &notFoundErr{key: key}
	}
	out := make(map[string]string, len(obj.tags))
	for k, v := range obj.tags {
		out[k] = v
	}
	return out, nil
}
