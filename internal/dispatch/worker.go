// Package dispatch implements the host-side per-block worker loop of
// spec.md §4.5: pop a request off a block's SubmissionQueue, run it
// against the backend, push the response onto the block's
// CompletionQueue. One Worker owns exactly one block's pair of queues,
// matching the one-producer/one-consumer discipline of §5.
package dispatch

import (
	"context"
	"runtime"
	"time"

	"github.com/JekaMas/workerpool"
	"golang.org/x/sys/unix"

	"github.com/segevido/gpukv/internal/async"
	"github.com/segevido/gpukv/internal/interfaces"
	"github.com/segevido/gpukv/internal/queue"
	"github.com/segevido/gpukv/internal/wire"
)

// Config configures a single block's Worker.
type Config struct {
	BlockIndex  int
	SQ          *queue.SubmissionQueue
	CQ          *queue.CompletionQueue
	Backend     interfaces.Backend
	Logger      interfaces.Logger
	Observer    interfaces.Observer // may be nil
	Tickets     *async.Table
	Background  *workerpool.WorkerPool // shared across all blocks, backs async GET
	CPUAffinity []int                  // optional; nil disables pinning
}

// Worker drains one block's SubmissionQueue and answers onto its
// CompletionQueue. Run is intended to be launched as its own goroutine,
// pinned to an OS thread for the lifetime of the block, mirroring the
// one-thread-per-queue discipline a real io_uring consumer needs.
type Worker struct {
	cfg Config
}

// New returns a Worker for the given block configuration.
func New(cfg Config) *Worker {
	return &Worker{cfg: cfg}
}

// Run pins the calling goroutine to an OS thread (and, if CPUAffinity is
// set, to a specific CPU via round-robin assignment on BlockIndex), then
// loops popping requests until it processes an EXIT command. It returns
// when the block has been told to stop.
func (w *Worker) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if len(w.cfg.CPUAffinity) > 0 {
		cpu := w.cfg.CPUAffinity[w.cfg.BlockIndex%len(w.cfg.CPUAffinity)]
		var mask unix.CPUSet
		mask.Set(cpu)
		if err := unix.SchedSetaffinity(0, &mask); err != nil && w.cfg.Logger != nil {
			w.cfg.Logger.Warnf("failed to set CPU affinity to %d: %v", cpu, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		idx, header, ok := w.cfg.SQ.Pop()
		if !ok {
			queue.SpinHost(func() bool {
				select {
				case <-ctx.Done():
					return true
				default:
				}
				idx, header, ok = w.cfg.SQ.Pop()
				return ok
			})
			if !ok {
				return // ctx cancelled while waiting, no request to process
			}
		}

		if header.Cmd == wire.CmdExit {
			w.respondExit()
			return
		}

		w.process(idx, header)
	}
}

func (w *Worker) process(idx uint32, header wire.RequestMessage) {
	switch header.Cmd {
	case wire.CmdPut, wire.CmdMultiPut:
		w.handlePut(idx, header)
	case wire.CmdGet, wire.CmdMultiGet:
		w.handleGet(idx, header)
	case wire.CmdDelete:
		w.handleDelete(idx, header)
	case wire.CmdAsyncGetInitiate:
		w.handleAsyncInitiate(idx, header)
	case wire.CmdAsyncGetFinalize:
		w.handleAsyncFinalize(idx, header)
	}
}

func (w *Worker) handlePut(idx uint32, header wire.RequestMessage) {
	n := header.IncrementSize
	status := make([]wire.KVStatus, n)
	backendStatus := make([]int, n)

	for i := uint32(0); i < n; i++ {
		key := w.cfg.SQ.KeyAt(idx+i, header.KeySize)
		val := w.cfg.SQ.ValueBank().Slot(idx + i)

		start := time.Now()
		code := w.cfg.Backend.Put(key, val)
		elapsed := uint64(time.Since(start).Nanoseconds())

		status[i] = wire.DecodeBackendStatus(code)
		backendStatus[i] = code
		if status[i] == wire.StatusFail && w.cfg.Logger != nil {
			w.cfg.Logger.Warnf("PUT failed, request %d, backend code %d", header.RequestID, code)
		}
		if w.cfg.Observer != nil {
			w.cfg.Observer.ObservePut(uint64(len(val)), elapsed, status[i] == wire.StatusSuccess)
		}
	}

	cqIdx := w.cfg.CQ.ReserveForPush(n)
	resp := wire.NewResponseMessage(int(n))
	resp.Cmd = header.Cmd
	resp.RequestID = header.RequestID
	resp.IncrementSize = n
	copy(resp.KVStatus, status)
	copy(resp.BackendStatus, backendStatus)
	w.cfg.CQ.Publish(cqIdx, resp)
	w.cfg.notifyQueueDepth()
}

func (w *Worker) handleGet(idx uint32, header wire.RequestMessage) {
	n := header.IncrementSize
	status := make([]wire.KVStatus, n)
	backendStatus := make([]int, n)

	cqIdx := w.cfg.CQ.ReserveForPush(n)

	for i := uint32(0); i < n; i++ {
		key := w.cfg.SQ.KeyAt(idx+i, header.KeySize)
		dst := w.cfg.CQ.ValueBank().Slot(cqIdx + i)

		start := time.Now()
		nread, code := w.cfg.Backend.Get(key, dst)
		elapsed := uint64(time.Since(start).Nanoseconds())

		status[i] = wire.DecodeBackendStatus(code)
		backendStatus[i] = code
		if status[i] == wire.StatusFail && w.cfg.Logger != nil {
			w.cfg.Logger.Warnf("GET failed, request %d, backend code %d", header.RequestID, code)
		}
		if w.cfg.Observer != nil {
			w.cfg.Observer.ObserveGet(uint64(nread), elapsed, status[i] == wire.StatusSuccess)
		}
	}

	resp := wire.NewResponseMessage(int(n))
	resp.Cmd = header.Cmd
	resp.RequestID = header.RequestID
	resp.IncrementSize = n
	copy(resp.KVStatus, status)
	copy(resp.BackendStatus, backendStatus)
	w.cfg.CQ.Publish(cqIdx, resp)
	w.cfg.notifyQueueDepth()
}

func (w *Worker) handleDelete(idx uint32, header wire.RequestMessage) {
	key := w.cfg.SQ.KeyAt(idx, header.KeySize)

	start := time.Now()
	code := w.cfg.Backend.Delete(key)
	elapsed := uint64(time.Since(start).Nanoseconds())

	status := wire.DecodeBackendStatus(code)
	if status == wire.StatusFail && w.cfg.Logger != nil {
		w.cfg.Logger.Warnf("DELETE failed, request %d, backend code %d", header.RequestID, code)
	}
	if w.cfg.Observer != nil {
		w.cfg.Observer.ObserveDelete(elapsed, status == wire.StatusSuccess)
	}

	cqIdx := w.cfg.CQ.ReserveForPush(1)
	resp := wire.NewResponseMessage(1)
	resp.Cmd = header.Cmd
	resp.RequestID = header.RequestID
	resp.IncrementSize = 1
	resp.KVStatus[0] = status
	resp.BackendStatus[0] = code
	w.cfg.CQ.Publish(cqIdx, resp)
	w.cfg.notifyQueueDepth()
}

// handleAsyncInitiate reserves the CQ slot the ticket will be minted
// from (invariant 5 of spec.md §3: the ticket equals the CQ tail
// observed at initiation), registers a Future under that ticket, and
// hands the actual backend fetches to the shared background pool so the
// block's dispatcher loop isn't blocked waiting on them.
func (w *Worker) handleAsyncInitiate(idx uint32, header wire.RequestMessage) {
	n := header.IncrementSize
	keys := make([][]byte, n)
	for i := uint32(0); i < n; i++ {
		k := w.cfg.SQ.KeyAt(idx+i, header.KeySize)
		keys[i] = append([]byte(nil), k...) // copy: the SQ slot is reused once popped
	}

	cqIdx := w.cfg.CQ.ReserveForPush(1)
	ticket := cqIdx
	future := w.cfg.Tickets.Issue(ticket)

	w.cfg.Background.Submit(func() {
		future.MarkRunning()
		status := make([]wire.KVStatus, n)
		backendStatus := make([]int, n)
		values := make([][]byte, n)
		for i := uint32(0); i < n; i++ {
			buf := queue.GetBuffer(header.BuffSize)
			start := time.Now()
			nread, code := w.cfg.Backend.Get(keys[i], buf)
			elapsed := uint64(time.Since(start).Nanoseconds())
			status[i] = wire.DecodeBackendStatus(code)
			backendStatus[i] = code
			values[i] = buf[:nread]
			if w.cfg.Observer != nil {
				w.cfg.Observer.ObserveGet(uint64(nread), elapsed, status[i] == wire.StatusSuccess)
			}
		}
		future.Complete(async.Result{Status: status, BackendStatus: backendStatus, Values: values})
	})

	resp := wire.NewResponseMessage(0)
	resp.Cmd = wire.CmdAsyncGetInitiate
	resp.RequestID = header.RequestID
	resp.IncrementSize = 1
	resp.Ticket = ticket
	w.cfg.CQ.Publish(cqIdx, resp)
	w.cfg.notifyQueueDepth()
}

// handleAsyncFinalize blocks the worker until the ticket's Future is
// Ready (spec.md §4.6: finalize on a not-yet-complete ticket blocks, it
// does not fail), then returns the staged result and releases the
// scratch buffers it borrowed from the pool.
//
// header.IncrementSize is never the batch size here: pushNoData always
// publishes a FINALIZE request with batchSize 1 (spec.md §4.2), since the
// wire protocol carries the original key count only once, at INITIATE
// time. The real size lives in the Future's staged Result, sized to the
// INITIATE batch in handleAsyncInitiate, so the known-ticket path awaits
// it before sizing anything. An unknown ticket has no batch size to
// recover at all; that path reports a single FAIL slot, matching the one
// slot header.IncrementSize actually describes.
func (w *Worker) handleAsyncFinalize(idx uint32, header wire.RequestMessage) {
	future := w.cfg.Tickets.Finalize(header.Ticket)

	if future == nil {
		if w.cfg.Logger != nil {
			w.cfg.Logger.Warnf("ASYNC_GET_FINALIZE on unknown ticket %d, request %d", header.Ticket, header.RequestID)
		}
		cqIdx := w.cfg.CQ.ReserveForPush(1)
		resp := wire.NewResponseMessage(1)
		resp.Cmd = wire.CmdAsyncGetFinalize
		resp.RequestID = header.RequestID
		resp.IncrementSize = 1
		resp.KVStatus[0] = wire.StatusFail
		resp.BackendStatus[0] = -1
		w.cfg.CQ.Publish(cqIdx, resp)
		w.cfg.notifyQueueDepth()
		return
	}

	res := future.Await()
	n := uint32(len(res.Status))
	status := make([]wire.KVStatus, n)
	backendStatus := make([]int, n)

	cqIdx := w.cfg.CQ.ReserveForPush(n)
	for i := uint32(0); i < n; i++ {
		status[i] = res.Status[i]
		backendStatus[i] = res.BackendStatus[i]
		dst := w.cfg.CQ.ValueBank().Slot(cqIdx + i)
		copy(dst, res.Values[i])
		queue.PutBuffer(res.Values[i])
	}

	resp := wire.NewResponseMessage(int(n))
	resp.Cmd = wire.CmdAsyncGetFinalize
	resp.RequestID = header.RequestID
	resp.IncrementSize = n
	copy(resp.KVStatus, status)
	copy(resp.BackendStatus, backendStatus)
	w.cfg.CQ.Publish(cqIdx, resp)
	w.cfg.notifyQueueDepth()
}

func (w *Worker) respondExit() {
	cqIdx := w.cfg.CQ.ReserveForPush(1)
	resp := wire.NewResponseMessage(1)
	resp.Cmd = wire.CmdExit
	resp.IncrementSize = 1
	w.cfg.CQ.Publish(cqIdx, resp)
}

func (c Config) notifyQueueDepth() {
	if c.Observer != nil {
		c.Observer.ObserveQueueDepth(c.BlockIndex, c.SQ.Occupied())
	}
}
