package queue

import (
	"sync/atomic"

	"github.com/segevido/gpukv/internal/wire"
)

// slot is the fixed-size per-index storage backing a SubmissionQueue ring.
// Only the slot at a batch's leading index carries a meaningful header;
// every slot in the batch — leading or not — carries its own key, per
// spec.md §4.2 ("a host DataBank... plus an aligned key buffer per slot").
type sqSlot struct {
	header wire.RequestMessage
	key    []byte // fixed maxKeySize capacity, first header.KeySize bytes valid
}

// SubmissionQueue is the host-resident, accelerator-producer /
// host-consumer ring of fixed-size request descriptors described in
// spec.md §3/§4.2. head and tail are monotonically increasing counters;
// occupancy is tail-head and is addressed modulo queueSize.
type SubmissionQueue struct {
	head atomic.Uint32
	tail atomic.Uint32

	queueSize  uint32
	maxKeySize uint32
	maxNumKeys uint32

	slots []sqSlot
	bank  *DataBank // paired host databank for PUT payloads
}

// NewSubmissionQueue constructs an empty ring of queueSize slots, each
// able to hold a key up to maxKeySize bytes, paired with bank for PUT
// payload delivery.
func NewSubmissionQueue(queueSize, maxKeySize, maxNumKeys uint32, bank *DataBank) *SubmissionQueue {
	slots := make([]sqSlot, queueSize)
	keyBuf := make([]byte, uint64(queueSize)*uint64(maxKeySize))
	for i := range slots {
		off := uint64(i) * uint64(maxKeySize)
		slots[i].key = keyBuf[off : off+uint64(maxKeySize)]
	}
	return &SubmissionQueue{
		queueSize:  queueSize,
		maxKeySize: maxKeySize,
		maxNumKeys: maxNumKeys,
		slots:      slots,
		bank:       bank,
	}
}

// QueueSize returns the ring's fixed depth.
func (sq *SubmissionQueue) QueueSize() uint32 { return sq.queueSize }

// Occupied returns the current number of published, unclaimed slots.
// Useful for Stats(); not used on the hot path.
func (sq *SubmissionQueue) Occupied() uint32 {
	return sq.tail.Load() - sq.head.Load()
}

// reserve implements the capacity check and slot fan-out shared by every
// push variant: invariant 2 of spec.md §3 — an increment of size k
// requires tail-head+k-1 < queueSize — checked against a tail snapshot
// taken before head, then re-validated is unnecessary because only this
// producer ever advances tail.
func (sq *SubmissionQueue) reserve(batchSize uint32) (start uint32, ok bool) {
	if batchSize == 0 || batchSize > sq.maxNumKeys {
		return 0, false
	}
	tail := sq.tail.Load()
	head := sq.head.Load()
	if tail-head+batchSize-1 >= sq.queueSize {
		return 0, false
	}
	return tail, true
}

func (sq *SubmissionQueue) fillKeys(start uint32, keys [][]byte, keySize uint32) {
	for i, k := range keys {
		slot := &sq.slots[(start+uint32(i))%sq.queueSize]
		copy(slot.key, k[:keySize])
	}
}

// publish writes the batch descriptor into the leading slot and releases
// the new tail value, making the whole batch visible to the host consumer
// atomically (spec.md §5: "the entire batch publishes atomically").
func (sq *SubmissionQueue) publish(start uint32, header wire.RequestMessage) {
	leading := &sq.slots[start%sq.queueSize]
	leading.header = header
	sq.tail.Store(start + header.IncrementSize)
}

// PushPut reserves batchSize slots, copies keys into their slots and
// values into the paired host databank at the same modular index, then
// publishes. Returns false without mutating state if capacity is
// unavailable (spec.md §4.2).
func (sq *SubmissionQueue) PushPut(requestID uint64, keys [][]byte, keySize uint32, values [][]byte, buffSize uint32, multi bool) bool {
	batchSize := uint32(len(keys))
	start, ok := sq.reserve(batchSize)
	if !ok {
		return false
	}
	sq.fillKeys(start, keys, keySize)
	for i, v := range values {
		dst := sq.bank.Slot(start + uint32(i))
		copy(dst, v[:buffSize])
	}
	cmd := wire.CmdPut
	if multi {
		cmd = wire.CmdMultiPut
	}
	sq.publish(start, wire.RequestMessage{
		Cmd:           cmd,
		RequestID:     requestID,
		IncrementSize: batchSize,
		KeySize:       keySize,
		BuffSize:      buffSize,
	})
	return true
}

// PushGet is the symmetric read-side variant of PushPut: no payload is
// copied in (the host writes the result into the device databank on the
// completion side).
func (sq *SubmissionQueue) PushGet(requestID uint64, keys [][]byte, keySize uint32, buffSize uint32, multi bool) bool {
	batchSize := uint32(len(keys))
	start, ok := sq.reserve(batchSize)
	if !ok {
		return false
	}
	sq.fillKeys(start, keys, keySize)
	cmd := wire.CmdGet
	if multi {
		cmd = wire.CmdMultiGet
	}
	sq.publish(start, wire.RequestMessage{
		Cmd:           cmd,
		RequestID:     requestID,
		IncrementSize: batchSize,
		KeySize:       keySize,
		BuffSize:      buffSize,
	})
	return true
}

// PushAsyncGetInitiate publishes a GET batch tagged so the dispatcher
// spawns it on the background executor instead of running it inline
// (spec.md §4.5/§4.6).
func (sq *SubmissionQueue) PushAsyncGetInitiate(requestID uint64, keys [][]byte, keySize uint32, buffSize uint32) bool {
	batchSize := uint32(len(keys))
	start, ok := sq.reserve(batchSize)
	if !ok {
		return false
	}
	sq.fillKeys(start, keys, keySize)
	sq.publish(start, wire.RequestMessage{
		Cmd:           wire.CmdAsyncGetInitiate,
		RequestID:     requestID,
		IncrementSize: batchSize,
		KeySize:       keySize,
		BuffSize:      buffSize,
	})
	return true
}

// PushDelete publishes a single-key delete.
func (sq *SubmissionQueue) PushDelete(requestID uint64, key []byte, keySize uint32) bool {
	start, ok := sq.reserve(1)
	if !ok {
		return false
	}
	sq.fillKeys(start, [][]byte{key}, keySize)
	sq.publish(start, wire.RequestMessage{
		Cmd:           wire.CmdDelete,
		RequestID:     requestID,
		IncrementSize: 1,
		KeySize:       keySize,
	})
	return true
}

// PushNoData publishes a header-only, keyless request: EXIT or
// ASYNC_GET_FINALIZE. ticket is meaningful only for ASYNC_GET_FINALIZE.
func (sq *SubmissionQueue) PushNoData(requestID uint64, cmd wire.Cmd, ticket uint32) bool {
	start, ok := sq.reserve(1)
	if !ok {
		return false
	}
	sq.publish(start, wire.RequestMessage{
		Cmd:           cmd,
		RequestID:     requestID,
		IncrementSize: 1,
		Ticket:        ticket,
	})
	return true
}

// Pop is the host-side consumer operation: on non-empty, it returns the
// leading slot index and the decoded header, advancing head by the
// header's IncrementSize with release ordering. Returns false if the
// queue is empty; the dispatcher loop retries via SpinHost.
func (sq *SubmissionQueue) Pop() (idx uint32, header wire.RequestMessage, ok bool) {
	head := sq.head.Load()
	tail := sq.tail.Load()
	if head == tail {
		return 0, wire.RequestMessage{}, false
	}
	leading := &sq.slots[head%sq.queueSize]
	header = leading.header
	sq.head.Store(head + header.IncrementSize)
	return head, header, true
}

// KeyAt returns the raw key bytes stored at ring index i, truncated to
// keySize (the batch-wide key length carried on the leading slot's
// header).
func (sq *SubmissionQueue) KeyAt(i uint32, keySize uint32) []byte {
	return sq.slots[i%sq.queueSize].key[:keySize]
}

// ValueBank exposes the paired host databank so the dispatcher can read
// PUT payloads by ring index.
func (sq *SubmissionQueue) ValueBank() *DataBank { return sq.bank }
