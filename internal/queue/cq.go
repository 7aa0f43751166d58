package queue

import (
	"sync/atomic"

	"github.com/segevido/gpukv/internal/wire"
)

// cqSlot mirrors sqSlot on the completion side: only the leading slot of a
// batch carries a meaningful response header.
type cqSlot struct {
	header wire.ResponseMessage
}

// CompletionQueue is the accelerator-resident, host-producer /
// accelerator-consumer ring of response descriptors (spec.md §3/§4.3).
type CompletionQueue struct {
	head atomic.Uint32
	tail atomic.Uint32

	queueSize  uint32
	maxNumKeys uint32

	slots []cqSlot
	bank  *DataBank // paired device databank for GET payloads
}

// NewCompletionQueue constructs an empty ring of queueSize slots, each
// able to report up to maxNumKeys per-key statuses, paired with bank for
// GET payload delivery.
func NewCompletionQueue(queueSize, maxNumKeys uint32, bank *DataBank) *CompletionQueue {
	slots := make([]cqSlot, queueSize)
	for i := range slots {
		slots[i].header = wire.NewResponseMessage(int(maxNumKeys))
	}
	return &CompletionQueue{
		queueSize:  queueSize,
		maxNumKeys: maxNumKeys,
		slots:      slots,
		bank:       bank,
	}
}

func (cq *CompletionQueue) QueueSize() uint32 { return cq.queueSize }

// Occupied returns the current number of published, unclaimed slots.
func (cq *CompletionQueue) Occupied() uint32 {
	return cq.tail.Load() - cq.head.Load()
}

func (cq *CompletionQueue) reserve(batchSize uint32) (start uint32, ok bool) {
	if batchSize == 0 {
		return 0, false
	}
	tail := cq.tail.Load()
	head := cq.head.Load()
	if tail-head+batchSize-1 >= cq.queueSize {
		return 0, false
	}
	return tail, true
}

// ValueBank exposes the paired device databank so the dispatcher can write
// GET results by ring index before publishing.
func (cq *CompletionQueue) ValueBank() *DataBank { return cq.bank }

// ReserveForPush is used by the host dispatcher: it blocks (via SpinHost)
// until batchSize slots are free, returning the leading index the caller
// should write GET payloads into before calling Publish.
func (cq *CompletionQueue) ReserveForPush(batchSize uint32) uint32 {
	var start uint32
	SpinHost(func() bool {
		s, ok := cq.reserve(batchSize)
		if !ok {
			return false
		}
		start = s
		return true
	})
	return start
}

// Publish writes the response header into the leading slot and releases
// the new tail, making the batch visible to the accelerator consumer.
func (cq *CompletionQueue) Publish(start uint32, resp wire.ResponseMessage) {
	cq.slots[start%cq.queueSize].header = resp
	cq.tail.Store(start + resp.IncrementSize)
}

// tryPop is the shared accelerator-side consume step: snapshot head and
// tail, report false if nothing is published (callers busy-wait on it),
// otherwise read the leading slot and return it without yet advancing
// head — callers copy out payload first, then call advance.
func (cq *CompletionQueue) tryPop() (idx uint32, resp wire.ResponseMessage, ok bool) {
	head := cq.head.Load()
	tail := cq.tail.Load()
	if head == tail {
		return 0, wire.ResponseMessage{}, false
	}
	return head, cq.slots[head%cq.queueSize].header, true
}

func (cq *CompletionQueue) advance(head uint32, incrementSize uint32) {
	cq.head.Store(head + incrementSize)
}

// PopGet busy-waits for a response, bulk-copies the device databank slab
// into userBuffs, copies per-key status into status/backendStatus, and
// advances head. n is the expected batch size (caller-known).
func (cq *CompletionQueue) PopGet(userBuffs [][]byte, buffSize uint32, status []wire.KVStatus, backendStatus []int, n uint32) {
	var idx uint32
	var resp wire.ResponseMessage
	SpinAccelerator(func() bool {
		i, r, ok := cq.tryPop()
		if !ok {
			return false
		}
		idx, resp = i, r
		return true
	})
	for i := uint32(0); i < n; i++ {
		src := cq.bank.Slot(idx + i)
		copy(userBuffs[i], src[:buffSize])
		status[i] = resp.KVStatus[i]
		backendStatus[i] = resp.BackendStatus[i]
	}
	cq.advance(idx, resp.IncrementSize)
}

// PopDefault is the status-only variant for PUT/DELETE: no payload bank
// copy, just per-key status.
func (cq *CompletionQueue) PopDefault(status []wire.KVStatus, backendStatus []int, n uint32) {
	var idx uint32
	var resp wire.ResponseMessage
	SpinAccelerator(func() bool {
		i, r, ok := cq.tryPop()
		if !ok {
			return false
		}
		idx, resp = i, r
		return true
	})
	for i := uint32(0); i < n; i++ {
		status[i] = resp.KVStatus[i]
		backendStatus[i] = resp.BackendStatus[i]
	}
	cq.advance(idx, resp.IncrementSize)
}

// PopNoResMsg drains a response (such as EXIT's) without touching any
// status arrays or payloads. ASYNC_GET_FINALIZE responses carry per-key
// statuses and values and are read with PopGet.
func (cq *CompletionQueue) PopNoResMsg() {
	var idx uint32
	var resp wire.ResponseMessage
	SpinAccelerator(func() bool {
		i, r, ok := cq.tryPop()
		if !ok {
			return false
		}
		idx, resp = i, r
		return true
	})
	cq.advance(idx, resp.IncrementSize)
}

// PopAsyncGetInit reads the ticket written by ASYNC_GET_INITIATE's empty
// response — by invariant 5 of spec.md §3, equal to the CQ tail the host
// observed at initiation — and advances head.
func (cq *CompletionQueue) PopAsyncGetInit() uint32 {
	var idx uint32
	var resp wire.ResponseMessage
	SpinAccelerator(func() bool {
		i, r, ok := cq.tryPop()
		if !ok {
			return false
		}
		idx, resp = i, r
		return true
	})
	cq.advance(idx, resp.IncrementSize)
	return resp.Ticket
}
