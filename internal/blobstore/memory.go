package blobstore

import (
	"context"
	"strings"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStore keeps blobs in process. URLs point at baseURL + "/mock-storage/",
// which the API serves through Open.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]memoryObject
}

// NewMemoryStore creates an empty store whose URLs are rooted at baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]memoryObject),
	}
}

func (m *MemoryStore) Upload(_ context.Context, data []byte, filename, namespace, contentType string) (Object, error) {
	name := ObjectName(namespace, filename)

	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.objects[name] = memoryObject{data: buf, contentType: contentType}
	m.mu.Unlock()

	return Object{Name: name, URL: m.baseURL + "/mock-storage/" + name}, nil
}

func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.objects, name)
	m.mu.Unlock()
	return nil
}

// Open returns a copy of the object's bytes and its content type.
func (m *MemoryStore) Open(_ context.Context, name string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[name]
	if !ok {
		return nil, "", ErrNotFound
	}
	buf := make([]byte, len(obj.data))
	copy(buf, obj.data)
	return buf, obj.contentType, nil
}

// Len reports how many objects are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
