package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Override represents a setting override that is persisted to the SQLite database.
type Override struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

func newOverride(key, value string) *Override {
	return &Override{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
}

// MemoryStore keeps overrides in memory only, for tests and throwaway sessions.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemory() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Keys returns the stored keys in order.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.values))
	for key := range m.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// SetJSON stores `value` JSON encoded.
func SetJSON(ctx context.Context, s Store, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal override '%s': %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}

// GetJSON decodes the stored value into `out` and returns false if the key is not set.
func GetJSON(ctx context.Context, s Store, key string, out interface{}) (bool, error) {
	value, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	err = json.Unmarshal([]byte(value), out)
	if err != nil {
		return false, fmt.Errorf("unmarshal override '%s': %w", key, err)
	}
	return true, nil
}
