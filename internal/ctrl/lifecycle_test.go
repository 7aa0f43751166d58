package ctrl

import (
	"sync"
	"testing"

	"github.com/segevido/gpukv/internal/wire"
)

type stubBackend struct {
	mu       sync.Mutex
	data     map[string][]byte
	opened   bool
	closed   bool
	deleted  bool
	openErr  error
	putCalls int
}

func newStubBackend() *stubBackend { return &stubBackend{data: make(map[string][]byte)} }

func (b *stubBackend) OpenDB() error {
	b.opened = true
	return b.openErr
}
func (b *stubBackend) CloseDB() error  { b.closed = true; return nil }
func (b *stubBackend) DeleteDB() error { b.deleted = true; return nil }

func (b *stubBackend) Put(key, val []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putCalls++
	b.data[string(key)] = append([]byte(nil), val...)
	return 0
}

func (b *stubBackend) Get(key, dst []byte) (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[string(key)]
	if !ok {
		return 0, 5
	}
	return copy(dst, v), 0
}

func (b *stubBackend) Delete(key []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data[string(key)]; !ok {
		return 5
	}
	delete(b.data, string(key))
	return 0
}

func testParams(backend *stubBackend) Params {
	return Params{
		NumBlocks:    2,
		QueueSize:    8,
		MaxValueSize: 16,
		MaxKeySize:   8,
		MaxNumKeys:   4,
		Backend:      backend,
	}
}

func TestParams_ValidateRejectsBadGeometry(t *testing.T) {
	backend := newStubBackend()
	cases := []Params{
		{NumBlocks: 0, QueueSize: 8, MaxValueSize: 16, MaxKeySize: 8, MaxNumKeys: 4, Backend: backend},
		{NumBlocks: 1, QueueSize: 8, MaxValueSize: 16, MaxKeySize: 8, MaxNumKeys: 0, Backend: backend},
		{NumBlocks: 1, QueueSize: 2, MaxValueSize: 16, MaxKeySize: 8, MaxNumKeys: 4, Backend: backend},
		{NumBlocks: 1, QueueSize: 8, MaxValueSize: 0, MaxKeySize: 8, MaxNumKeys: 4, Backend: backend},
		{NumBlocks: 1, QueueSize: 8, MaxValueSize: 16, MaxKeySize: 0, MaxNumKeys: 4, Backend: backend},
		{NumBlocks: 1, QueueSize: 8, MaxValueSize: 16, MaxKeySize: 8, MaxNumKeys: 4, Backend: nil},
	}
	for i, p := range cases {
		if err := p.Validate(); err == nil {
			t.Errorf("case %d: expected validation error, got nil", i)
		}
	}
}

func TestLifecycle_StartStopDelete(t *testing.T) {
	backend := newStubBackend()
	lc, err := New(testParams(backend))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !backend.opened {
		t.Error("New should have called OpenDB")
	}
	if lc.NumBlocks() != 2 {
		t.Fatalf("NumBlocks() = %d, want 2", lc.NumBlocks())
	}

	if err := lc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if lc.State() != StateRunning {
		t.Fatalf("state = %v, want Running", lc.State())
	}

	if err := lc.Start(); err == nil {
		t.Error("second Start should fail")
	}

	block := lc.Block(0)
	key := []byte{0, 0, 0, 0, 0, 0, 0, 1}
	val := []byte("0123456789abcdef")
	block.SQ.PushPut(1, [][]byte{key}, 8, [][]byte{val}, 16, false)
	status := make([]wire.KVStatus, 1)
	backendStatus := make([]int, 1)
	block.CQ.PopDefault(status, backendStatus, 1)
	if status[0] != wire.StatusSuccess {
		t.Fatalf("PUT via block 0 status = %v, want SUCCESS", status[0])
	}

	if err := lc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if lc.State() != StateStopped {
		t.Fatalf("state after Stop = %v, want Stopped", lc.State())
	}

	// Stop is idempotent.
	if err := lc.Stop(); err != nil {
		t.Fatalf("second Stop should be a no-op, got error: %v", err)
	}

	if err := lc.Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !backend.deleted {
		t.Error("Delete should have called backend.DeleteDB")
	}
	if !backend.closed {
		t.Error("Delete should have called backend.CloseDB")
	}
}

func TestLifecycle_DeleteWhileRunningFails(t *testing.T) {
	backend := newStubBackend()
	lc, err := New(testParams(backend))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := lc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer lc.Stop()

	if err := lc.Delete(); err == nil {
		t.Error("Delete while Running should fail")
	}
}
