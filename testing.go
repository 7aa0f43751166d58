package gpukv

import (
	"sync"

	"github.com/segevido/gpukv/internal/interfaces"
)

// MockBackend is an in-memory interfaces.Backend that tracks call counts,
// for use in tests of code built on top of a Store without depending on
// the backend package's real implementations.
type MockBackend struct {
	mu     sync.Mutex
	data   map[string][]byte
	closed bool

	OpenCalls   int
	CloseCalls  int
	DeleteCalls int
	PutCalls    int
	GetCalls    int
	DeleteOps   int

	// FailPut, when set, is returned by Put instead of 0 for every call.
	FailPut int
}

// NewMockBackend returns an empty MockBackend.
func NewMockBackend() *MockBackend {
	return &MockBackend{data: make(map[string][]byte)}
}

func (m *MockBackend) OpenDB() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpenCalls++
	m.closed = false
	return nil
}

func (m *MockBackend) CloseDB() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	m.closed = true
	return nil
}

func (m *MockBackend) DeleteDB() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	m.data = make(map[string][]byte)
	return nil
}

func (m *MockBackend) Put(key []byte, val []byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++
	if m.FailPut != 0 {
		return m.FailPut
	}
	m.data[string(key)] = append([]byte(nil), val...)
	return 0
}

func (m *MockBackend) Get(key []byte, dst []byte) (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	v, ok := m.data[string(key)]
	if !ok {
		return 0, 5
	}
	return copy(dst, v), 0
}

func (m *MockBackend) Delete(key []byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteOps++
	if _, ok := m.data[string(key)]; !ok {
		return 5
	}
	delete(m.data, string(key))
	return 0
}

var _ interfaces.Backend = (*MockBackend)(nil)
