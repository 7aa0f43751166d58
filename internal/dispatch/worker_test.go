package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/JekaMas/workerpool"

	"github.com/segevido/gpukv/internal/async"
	"github.com/segevido/gpukv/internal/queue"
	"github.com/segevido/gpukv/internal/wire"
)

// memBackend is a minimal interfaces.Backend for worker tests.
type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemBackend() *memBackend { return &memBackend{data: make(map[string][]byte)} }

func (b *memBackend) OpenDB() error   { return nil }
func (b *memBackend) CloseDB() error  { return nil }
func (b *memBackend) DeleteDB() error { return nil }

func (b *memBackend) Put(key, val []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[string(key)] = append([]byte(nil), val...)
	return 0
}

func (b *memBackend) Get(key, dst []byte) (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[string(key)]
	if !ok {
		return 0, 5
	}
	n := copy(dst, v)
	return n, 0
}

func (b *memBackend) Delete(key []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data[string(key)]; !ok {
		return 5
	}
	delete(b.data, string(key))
	return 0
}

func newTestWorker(t *testing.T, backend *memBackend, pool *workerpool.WorkerPool) (*Worker, *queue.SubmissionQueue, *queue.CompletionQueue) {
	t.Helper()
	const queueSize, maxKeySize, maxNumKeys, maxValueSize = 8, 8, 4, 16
	sqBank := queue.NewDataBank(queueSize, maxValueSize)
	cqBank := queue.NewDataBank(queueSize, maxValueSize)
	sq := queue.NewSubmissionQueue(queueSize, maxKeySize, maxNumKeys, sqBank)
	cq := queue.NewCompletionQueue(queueSize, maxNumKeys, cqBank)

	w := New(Config{
		BlockIndex: 0,
		SQ:         sq,
		CQ:         cq,
		Backend:    backend,
		Tickets:    async.NewTable(),
		Background: pool,
	})
	return w, sq, cq
}

func TestWorker_PutThenGetRoundTrip(t *testing.T) {
	backend := newMemBackend()
	pool := workerpool.New(2)
	defer pool.StopWait()
	w, sq, cq := newTestWorker(t, backend, pool)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()

	key := []byte{0, 0, 0, 0, 0, 0, 0, 1}
	val := []byte("0123456789abcdef")
	if !sq.PushPut(1, [][]byte{key}, 8, [][]byte{val}, 16, false) {
		t.Fatal("PushPut failed")
	}
	status := make([]wire.KVStatus, 1)
	backendStatus := make([]int, 1)
	cq.PopDefault(status, backendStatus, 1)
	if status[0] != wire.StatusSuccess {
		t.Fatalf("PUT status = %v, want SUCCESS", status[0])
	}

	if !sq.PushGet(2, [][]byte{key}, 8, 16, false) {
		t.Fatal("PushGet failed")
	}
	buf := make([]byte, 16)
	cq.PopGet([][]byte{buf}, 16, status, backendStatus, 1)
	if status[0] != wire.StatusSuccess {
		t.Fatalf("GET status = %v, want SUCCESS", status[0])
	}
	if string(buf) != string(val) {
		t.Fatalf("GET value = %q, want %q", buf, val)
	}

	sq.PushNoData(3, wire.CmdExit, 0)
	cq.PopNoResMsg()
	cancel()
	<-done
}

func TestWorker_GetOnAbsentKeyReturnsNonExist(t *testing.T) {
	backend := newMemBackend()
	pool := workerpool.New(2)
	defer pool.StopWait()
	w, sq, cq := newTestWorker(t, backend, pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()

	key := []byte{0, 0, 0, 0, 0, 0, 0, 9}
	sq.PushGet(1, [][]byte{key}, 8, 16, false)
	status := make([]wire.KVStatus, 1)
	backendStatus := make([]int, 1)
	buf := make([]byte, 16)
	cq.PopGet([][]byte{buf}, 16, status, backendStatus, 1)
	if status[0] != wire.StatusNonExist {
		t.Fatalf("status = %v, want NON_EXIST", status[0])
	}

	sq.PushNoData(2, wire.CmdExit, 0)
	cq.PopNoResMsg()
	cancel()
	<-done
}

func TestWorker_AsyncGetInitiateThenFinalize(t *testing.T) {
	backend := newMemBackend()
	key := []byte{0, 0, 0, 0, 0, 0, 0, 5}
	backend.Put(key, []byte("async-value-here"))

	pool := workerpool.New(2)
	defer pool.StopWait()
	w, sq, cq := newTestWorker(t, backend, pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()

	sq.PushAsyncGetInitiate(1, [][]byte{key}, 8, 16)
	ticket := cq.PopAsyncGetInit()

	sq.PushNoData(2, wire.CmdAsyncGetFinalize, ticket)
	status := make([]wire.KVStatus, 1)
	backendStatus := make([]int, 1)
	buf := make([]byte, 16)

	resultCh := make(chan struct{})
	go func() {
		cq.PopGet([][]byte{buf}, 16, status, backendStatus, 1)
		close(resultCh)
	}()

	select {
	case <-resultCh:
	case <-time.After(2 * time.Second):
		t.Fatal("ASYNC_GET_FINALIZE did not complete")
	}

	if status[0] != wire.StatusSuccess {
		t.Fatalf("async GET status = %v, want SUCCESS", status[0])
	}
	if string(buf) != "async-value-here" {
		t.Fatalf("async GET value = %q", buf)
	}

	sq.PushNoData(3, wire.CmdExit, 0)
	cq.PopNoResMsg()
	cancel()
	<-done
}

func TestWorker_AsyncGetFinalizeRecoversBatchSizeFromTicket(t *testing.T) {
	backend := newMemBackend()
	keys := [][]byte{
		{0, 0, 0, 0, 0, 0, 0, 1},
		{0, 0, 0, 0, 0, 0, 0, 2},
		{0, 0, 0, 0, 0, 0, 0, 3},
	}
	vals := []string{"first-value-here", "second-value-her", "third-value-here"}
	for i, k := range keys {
		backend.Put(k, []byte(vals[i]))
	}

	pool := workerpool.New(2)
	defer pool.StopWait()
	w, sq, cq := newTestWorker(t, backend, pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()

	sq.PushAsyncGetInitiate(1, keys, 8, 16)
	ticket := cq.PopAsyncGetInit()

	sq.PushNoData(2, wire.CmdAsyncGetFinalize, ticket)
	status := make([]wire.KVStatus, len(keys))
	backendStatus := make([]int, len(keys))
	bufs := make([][]byte, len(keys))
	for i := range bufs {
		bufs[i] = make([]byte, 16)
	}

	resultCh := make(chan struct{})
	go func() {
		cq.PopGet(bufs, 16, status, backendStatus, uint32(len(keys)))
		close(resultCh)
	}()

	select {
	case <-resultCh:
	case <-time.After(2 * time.Second):
		t.Fatal("ASYNC_GET_FINALIZE did not complete")
	}

	for i := range keys {
		if status[i] != wire.StatusSuccess {
			t.Fatalf("async GET status[%d] = %v, want SUCCESS", i, status[i])
		}
		if string(bufs[i]) != vals[i] {
			t.Fatalf("async GET value[%d] = %q, want %q", i, bufs[i], vals[i])
		}
	}

	sq.PushNoData(3, wire.CmdExit, 0)
	cq.PopNoResMsg()
	cancel()
	<-done
}
