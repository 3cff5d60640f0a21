package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MemoryStore is a map-backed Store for tests and local runs. State lives in
// the instance; nothing is shared between stores.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string][]byte)}
}

func (m *MemoryStore) collection(name string) map[string][]byte {
	c, ok := m.collections[name]
	if !ok {
		c = make(map[string][]byte)
		m.collections[name] = c
	}
	return c
}

func (m *MemoryStore) Get(_ context.Context, collection, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Data: clone(data)}, nil
}

func (m *MemoryStore) Set(_ context.Context, collection, id string, data json.RawMessage) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("setting %s/%s: invalid JSON", collection, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.collection(collection)[id] = clone(data)
	return nil
}

func (m *MemoryStore) Add(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	id := uuid.New().String()
	if err := m.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (m *MemoryStore) Update(_ context.Context, collection, id string, fields map[string]any) error {
	if err := checkFields(fields); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}

	updated := clone(data)
	for field, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encoding field %s: %w", field, err)
		}
		updated, err = sjson.SetRawBytes(updated, field, raw)
		if err != nil {
			return fmt.Errorf("setting field %s: %w", field, err)
		}
	}

	m.collections[collection][id] = updated
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.collections[collection], id)
	return nil
}

func (m *MemoryStore) Query(_ context.Context, collection string, filter Filter, limit int) ([]Document, error) {
	if err := checkField(filter.Field); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]Document, 0)
	for _, id := range sortedIDs(m.collections[collection]) {
		data := m.collections[collection][id]
		if !matches(data, filter) {
			continue
		}
		docs = append(docs, Document{ID: id, Data: clone(data)})
		if limit > 0 && len(docs) == limit {
			break
		}
	}
	return docs, nil
}

func (m *MemoryStore) All(_ context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]Document, 0, len(m.collections[collection]))
	for _, id := range sortedIDs(m.collections[collection]) {
		docs = append(docs, Document{ID: id, Data: clone(m.collections[collection][id])})
	}
	return docs, nil
}

func (m *MemoryStore) CreateUnique(_ context.Context, collection, id string, unique Filter, data json.RawMessage) (string, error) {
	if err := checkField(unique.Field); err != nil {
		return "", err
	}
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("creating in %s: invalid JSON", collection)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)
	for _, existing := range c {
		if matches(existing, unique) {
			return "", ErrConflict
		}
	}

	if id == "" {
		id = uuid.New().String()
	} else if _, taken := c[id]; taken {
		return "", ErrDuplicateID
	}

	c[id] = clone(data)
	return id, nil
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func matches(data []byte, filter Filter) bool {
	res := gjson.GetBytes(data, filter.Field)
	return res.Type == gjson.String && res.Str == filter.Value
}

func sortedIDs(c map[string][]byte) []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
