package queue

import (
	"sync/atomic"

	"github.com/segevido/gpukv/internal/wire"
)

// BlockResources is the per-block scratch state of spec.md §3/§4: a
// monotonic request-id counter (mutated only by the block's lead
// goroutine, per spec.md §5 — duplicates across blocks are tolerated),
// status scratch arrays sized for the store's maxNumKeys, reused across
// single-key calls so they don't need to allocate a one-element slice per
// KVPut/KVGet/KVDelete, and the block's outstanding-ticket count for the
// async GET admission guard of spec.md §9.
type BlockResources struct {
	requestID        atomic.Uint64
	outstandingAsync atomic.Int64

	scratchStatus  []wire.KVStatus
	scratchBackend []int
}

// NewBlockResources allocates scratch arrays sized for maxNumKeys.
func NewBlockResources(maxNumKeys uint32) *BlockResources {
	return &BlockResources{
		scratchStatus:  make([]wire.KVStatus, maxNumKeys),
		scratchBackend: make([]int, maxNumKeys),
	}
}

// NextRequestID returns the next strictly increasing request id for this
// block.
func (r *BlockResources) NextRequestID() uint64 {
	return r.requestID.Add(1)
}

// Scratch returns status/backend-status slices of length n, reusing the
// block's preallocated arrays without clearing them, to avoid a hot-path allocation
// for single-key operations.
func (r *BlockResources) Scratch(n int) ([]wire.KVStatus, []int) {
	return r.scratchStatus[:n], r.scratchBackend[:n]
}

// TryReserveAsyncTicket increments the block's outstanding-ticket count
// and reports whether it fit under max, per spec.md §9's "refuse Initiate
// when the ticket table for the block is full" guard. A max of 0 means
// unbounded.
func (r *BlockResources) TryReserveAsyncTicket(max uint32) bool {
	if max == 0 {
		r.outstandingAsync.Add(1)
		return true
	}
	for {
		cur := r.outstandingAsync.Load()
		if cur >= int64(max) {
			return false
		}
		if r.outstandingAsync.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// ReleaseAsyncTicket decrements the block's outstanding-ticket count, once
// a ticket has been finalized (or its Initiate never reached the queue).
func (r *BlockResources) ReleaseAsyncTicket() {
	r.outstandingAsync.Add(-1)
}
