package build

import (
	"context"
	"strings"
	"sync"

	afscgap "github.com/schmidtdse/afscgap-go"
)

// memStore is a minimal in-memory Store for exercising the ingestion,
// join, and main-index logic without a real backing object store.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Fetch(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, afscgap.ErrObjectNotFound
	}
	return data, nil
}

func (m *memStore) List(ctx context.Context, prefix, suffix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for path := range m.objects {
		if strings.HasPrefix(path, prefix) && strings.HasSuffix(path, suffix) {
			out = append(out, path)
		}
	}
	return out, nil
}

func (m *memStore) Put(ctx context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = data
	return nil
}

func (m *memStore) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}
