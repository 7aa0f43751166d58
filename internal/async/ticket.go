// Package async implements the host-side async GET pipeline of spec.md
// §4.6: a ticket table mapping the CQ-tail snapshot taken at
// ASYNC_GET_INITIATE to an in-flight Future, carried through to
// ASYNC_GET_FINALIZE.
package async

import (
	"sync"

	"github.com/segevido/gpukv/internal/wire"
)

// State is a Future's position in the ISSUED -> RUNNING -> READY ->
// CONSUMED state machine of spec.md §4.6.
type State uint8

const (
	StateIssued State = iota
	StateRunning
	StateReady
	StateConsumed
)

func (s State) String() string {
	switch s {
	case StateIssued:
		return "ISSUED"
	case StateRunning:
		return "RUNNING"
	case StateReady:
		return "READY"
	case StateConsumed:
		return "CONSUMED"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of a background GET, staged until the matching
// ASYNC_GET_FINALIZE call retrieves it.
type Result struct {
	Status        []wire.KVStatus
	BackendStatus []int
	Values        [][]byte // one scratch buffer per key, owned by the Future until Consume
}

// Future is one in-flight async GET. Transitions are driven by exactly
// two callers per spec.md §5 concurrency model: the background executor
// goroutine (Issued -> Running -> Ready) and the finalizing block's
// dispatcher worker (Ready -> Consumed). A mutex guards state and result
// because, unlike the SQ/CQ rings, there is no single-producer/single-
// consumer discipline here — Finalize may arrive before the background
// goroutine has published its result.
type Future struct {
	mu     sync.Mutex
	cond   *sync.Cond
	state  State
	result Result
}

// NewFuture returns a Future in the Issued state.
func NewFuture() *Future {
	f := &Future{state: StateIssued}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// MarkRunning transitions Issued -> Running once the background executor
// has dequeued the work item.
func (f *Future) MarkRunning() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateRunning
}

// Complete transitions Running -> Ready and stores the finished result,
// waking any Finalize call blocked in Await.
func (f *Future) Complete(res Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.result = res
	f.state = StateReady
	f.cond.Broadcast()
}

// Await blocks until the Future reaches Ready, per spec.md §4.6:
// "ASYNC_GET_FINALIZE for a ticket whose background fetch has not yet
// completed blocks the calling block's dispatcher worker, it does not
// fail." It then transitions Ready -> Consumed and returns the result.
// Calling Await twice on the same Future is a programming error — the
// ticket table removes the entry on first Finalize, per §9's OQ(a)
// resolution — and will deadlock since no second Complete call follows.
func (f *Future) Await() Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.state != StateReady {
		f.cond.Wait()
	}
	f.state = StateConsumed
	return f.result
}

// State returns the Future's current state, for diagnostics/Stats only.
func (f *Future) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Table is the concurrent ticket -> Future map of spec.md §4.6, keyed by
// the CQ tail snapshot ASYNC_GET_INITIATE returned as the ticket
// (invariant 5 of §3). Each block's dispatcher worker owns its own Table,
// since tickets are per-block CQ tail values. Uses per-key fine-grained
// locking via sync.Map rather than a single mutex guarding a plain map.
type Table struct {
	entries sync.Map // uint32 ticket -> *Future
}

// NewTable returns an empty ticket table.
func NewTable() *Table {
	return &Table{}
}

// Issue registers a new Future under ticket, returning it. Ticket
// collisions (the same CQ-tail value issued twice before either is
// finalized) cannot occur in a well-formed system: the CQ tail strictly
// increases between any two INITIATE calls on the same queue. Issue
// overwrites silently rather than panicking, since a stale leftover entry
// from a prior EXIT/teardown cycle is more plausible than a genuine
// collision.
func (t *Table) Issue(ticket uint32) *Future {
	f := NewFuture()
	t.entries.Store(ticket, f)
	return f
}

// Lookup returns the Future registered under ticket, or nil if no such
// ticket is outstanding. (The dispatcher answers a FINALIZE on an unknown
// ticket with a single FAIL status.)
func (t *Table) Lookup(ticket uint32) *Future {
	v, ok := t.entries.Load(ticket)
	if !ok {
		return nil
	}
	return v.(*Future)
}

// Finalize removes ticket from the table and returns its Future, or nil
// if the ticket is unknown. The table is the single source of truth for
// "has this ticket been finalized" — removal happens here, at the start
// of finalization, not when the background fetch completes, so a ticket
// can never be finalized twice even if Await is somehow called from two
// goroutines.
func (t *Table) Finalize(ticket uint32) *Future {
	v, ok := t.entries.LoadAndDelete(ticket)
	if !ok {
		return nil
	}
	return v.(*Future)
}

// Len reports the number of outstanding (issued but not yet finalized)
// tickets, for diagnostics.
func (t *Table) Len() int {
	n := 0
	t.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
