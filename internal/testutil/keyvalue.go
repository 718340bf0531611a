package testutil

import (
	"sync"

	"fv-go/internal/fv"
)

// MemoryKeyValue is an in-memory fv.KeyValue for tests. Safe for concurrent use.
type MemoryKeyValue struct {
	mu   sync.Mutex
	data map[string][]byte

	// FailPuts makes every Put return this error when non-nil.
	FailPuts error
}

func NewMemoryKeyValue() *MemoryKeyValue {
	return &MemoryKeyValue{data: make(map[string][]byte)}
}

func (m *MemoryKeyValue) Put(key string, value []byte) error {
	if m.FailPuts != nil {
		return m.FailPuts
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[key] = cp
	return nil
}

func (m *MemoryKeyValue) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	if !ok {
		return nil, fv.ErrKeyNotFound
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, nil
}

func (m *MemoryKeyValue) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryKeyValue) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Compile-time check that MemoryKeyValue implements fv.KeyValue.
var _ fv.KeyValue = (*MemoryKeyValue)(nil)
