package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrUnavailable marks a backend that cannot be read or written at all.
var ErrUnavailable = errors.New("local storage unavailable")

// KV is the device-local key/value storage all persisted client state lives in.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// KeyLister is implemented by backends that can enumerate keys.
type KeyLister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// setIfAbsenter is implemented by backends that can do an atomic insert-if-missing.
type setIfAbsenter interface {
	SetIfAbsent(ctx context.Context, key, value string) (bool, error)
}

// MemoryKV is an in-process KV. Fail makes every call return ErrUnavailable.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]string

	Fail bool
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: map[string]string{}}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return "", false, ErrUnavailable
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return ErrUnavailable
	}
	if m.data == nil {
		m.data = map[string]string{}
	}
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return ErrUnavailable
	}
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) SetIfAbsent(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return false, ErrUnavailable
	}
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	if m.data == nil {
		m.data = map[string]string{}
	}
	m.data[key] = value
	return true, nil
}

// Keys returns the stored keys starting with prefix, sorted.
func (m *MemoryKV) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return nil, ErrUnavailable
	}
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}
