package backend

import (
	"context"
	"sync"
)

// Memory is an in-process Adapter for tests and local runs. Failures can be
// injected per operation with SetFailure.
type Memory struct {
	name     string
	mu       sync.Mutex
	values   map[string]string
	failures map[string]error
	calls    map[string]int
}

// NewMemory creates an empty in-memory adapter
func NewMemory(name string) *Memory {
	return &Memory{
		name:     name,
		values:   make(map[string]string),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// Name returns the adapter name
func (m *Memory) Name() string {
	return m.name
}

// SetFailure makes op (get, set, get_all or set_all) fail with err. A nil
// err clears the failure.
func (m *Memory) SetFailure(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Calls returns how many times op was invoked
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *Memory) begin(op string) error {
	m.calls[op]++
	if err, ok := m.failures[op]; ok {
		return Unavailable(m.name, op, err)
	}
	return nil
}

func (m *Memory) Get(_ context.Context, key, def string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("get"); err != nil {
		return def, err
	}
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return def, nil
}

func (m *Memory) Set(_ context.Context, key string, value any) (bool, error) {
	v, err := SafeValue(value)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("set"); err != nil {
		return false, err
	}
	m.values[key] = v
	return true, nil
}

func (m *Memory) GetAll(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("get_all"); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) SetAll(ctx context.Context, data map[string]any) (bool, error) {
	m.mu.Lock()
	err := m.begin("set_all")
	m.mu.Unlock()
	if err != nil {
		return false, err
	}
	return SetEach(ctx, m.name, data, m.Set)
}
