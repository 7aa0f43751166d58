package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/segevido/gpukv/internal/wire"
)

func newTestCQ(queueSize, maxNumKeys, maxValueSize uint32) *CompletionQueue {
	bank := NewDataBank(queueSize, maxValueSize)
	return NewCompletionQueue(queueSize, maxNumKeys, bank)
}

func TestCompletionQueue_GetRoundTrip(t *testing.T) {
	cq := newTestCQ(4, 4, 16)

	idx := cq.ReserveForPush(1)
	copy(cq.ValueBank().Slot(idx), []byte("helloworld______"))
	resp := wire.NewResponseMessage(4)
	resp.Cmd = wire.CmdGet
	resp.IncrementSize = 1
	resp.KVStatus[0] = wire.StatusSuccess
	resp.BackendStatus[0] = 0
	cq.Publish(idx, resp)

	buf := make([]byte, 16)
	status := make([]wire.KVStatus, 1)
	backend := make([]int, 1)
	cq.PopGet([][]byte{buf}, 16, status, backend, 1)

	if string(buf) != "helloworld______" {
		t.Errorf("got %q, want helloworld______", buf)
	}
	if status[0] != wire.StatusSuccess {
		t.Errorf("status = %v, want SUCCESS", status[0])
	}
}

func TestCompletionQueue_AsyncTicketIsTailSnapshot(t *testing.T) {
	cq := newTestCQ(8, 4, 16)

	// Publish two ordinary responses first so tail has advanced.
	for i := 0; i < 2; i++ {
		idx := cq.ReserveForPush(1)
		resp := wire.NewResponseMessage(4)
		resp.IncrementSize = 1
		cq.Publish(idx, resp)
		cq.PopNoResMsg()
	}

	initiateIdx := cq.ReserveForPush(1)
	wantTicket := initiateIdx
	resp := wire.NewResponseMessage(4)
	resp.Cmd = wire.CmdAsyncGetInitiate
	resp.IncrementSize = 1
	resp.Ticket = wantTicket
	cq.Publish(initiateIdx, resp)

	gotTicket := cq.PopAsyncGetInit()
	if gotTicket != wantTicket {
		t.Errorf("ticket = %d, want %d (CQ tail snapshot at initiation)", gotTicket, wantTicket)
	}
}

func TestCompletionQueue_SPSCQueueInvariant(t *testing.T) {
	const queueSize = 16
	const total = 2000
	cq := newTestCQ(queueSize, 1, 8)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() { // producer (host dispatcher)
		defer wg.Done()
		for i := 0; i < total; i++ {
			idx := cq.ReserveForPush(1)
			resp := wire.NewResponseMessage(1)
			resp.IncrementSize = 1
			resp.RequestID = uint64(i)
			cq.Publish(idx, resp)
		}
	}()

	go func() { // consumer (accelerator)
		defer wg.Done()
		for i := 0; i < total; i++ {
			cq.PopNoResMsg()
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("producer/consumer did not complete, possible deadlock or lost update")
	}

	if occ := cq.Occupied(); occ != 0 {
		t.Errorf("queue not drained: occupied = %d", occ)
	}
}
