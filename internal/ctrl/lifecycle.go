// Package ctrl implements the store's lifecycle state machine: geometry
// validation at construction, worker startup, graceful EXIT-driven
// shutdown, and backend teardown. It plays the role the original
// device-control plane (ADD_DEV/START_DEV/STOP_DEV/DEL_DEV) played for a
// kernel-backed block device, but drives in-process goroutines instead of
// netlink/ioctl calls to a driver.
package ctrl

import (
	"context"
	"sync"

	"github.com/JekaMas/workerpool"
	"github.com/cockroachdb/errors"

	"github.com/segevido/gpukv/internal/async"
	"github.com/segevido/gpukv/internal/dispatch"
	"github.com/segevido/gpukv/internal/interfaces"
	"github.com/segevido/gpukv/internal/logging"
	"github.com/segevido/gpukv/internal/queue"
	"github.com/segevido/gpukv/internal/wire"
)

// State is the lifecycle's current phase.
type State int

const (
	StateInit State = iota
	StateRunning
	StateStopped
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	case StateDeleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}

// Params is the validated construction-time geometry of spec.md §4.1/§7.
type Params struct {
	NumBlocks    int
	QueueSize    uint32
	MaxValueSize uint32
	MaxKeySize   uint32
	MaxNumKeys   uint32
	Backend      interfaces.Backend
	Logger       *logging.Logger     // wrapped per block with logging.ForBlock before reaching a dispatch.Worker
	Observer     interfaces.Observer // may be nil
	CPUAffinity  []int               // may be nil
}

// Validate enforces the fatal-error geometry constraints of spec.md §7:
// maxNumKeys < 1, queueSize < maxNumKeys, maxValueSize < 1, maxKeySize < 1
// are all construction-time failures, not runtime KVStatus outcomes.
func (p Params) Validate() error {
	if p.NumBlocks < 1 {
		return errors.Newf("numBlocks must be >= 1, got %d", p.NumBlocks)
	}
	if p.MaxNumKeys < 1 {
		return errors.Newf("maxNumKeys must be >= 1, got %d", p.MaxNumKeys)
	}
	if p.QueueSize < p.MaxNumKeys {
		return errors.Newf("queueSize (%d) must be >= maxNumKeys (%d)", p.QueueSize, p.MaxNumKeys)
	}
	if p.MaxValueSize < 1 {
		return errors.Newf("maxValueSize must be >= 1, got %d", p.MaxValueSize)
	}
	if p.MaxKeySize < 1 {
		return errors.Newf("maxKeySize must be >= 1, got %d", p.MaxKeySize)
	}
	if p.Backend == nil {
		return errors.New("backend must not be nil")
	}
	return nil
}

// Block bundles one block's paired queues with the worker that drains
// them, so the lifecycle can address a block by index.
type Block struct {
	SQ *queue.SubmissionQueue
	CQ *queue.CompletionQueue
}

// Lifecycle owns construction, startup, and teardown of every block's
// queue pair and dispatcher worker, plus the backend handle and shared
// background pool they run against. Each block's worker gets its own
// ticket table at Start.
type Lifecycle struct {
	mu     sync.Mutex
	state  State
	params Params

	blocks []Block
	pool   *workerpool.WorkerPool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates params and allocates (but does not start) every block's
// queue pair. Allocation failure — params failing Validate, or the
// backend's OpenDB call failing — is returned directly; the caller should
// treat either as fatal per spec.md §7.
func New(params Params) (*Lifecycle, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid geometry")
	}

	if err := params.Backend.OpenDB(); err != nil {
		return nil, errors.Wrap(err, "backend open failed")
	}

	blocks := make([]Block, params.NumBlocks)
	for i := range blocks {
		sqBank := queue.NewDataBank(params.QueueSize, params.MaxValueSize)
		cqBank := queue.NewDataBank(params.QueueSize, params.MaxValueSize)
		blocks[i] = Block{
			SQ: queue.NewSubmissionQueue(params.QueueSize, params.MaxKeySize, params.MaxNumKeys, sqBank),
			CQ: queue.NewCompletionQueue(params.QueueSize, params.MaxNumKeys, cqBank),
		}
	}

	return &Lifecycle{
		state:  StateInit,
		params: params,
		blocks: blocks,
		pool:   workerpool.New(params.NumBlocks),
	}, nil
}

// Start launches one dispatcher worker goroutine per block. Calling Start
// twice, or calling it after Stop/Delete, is a programming error and
// returns an error rather than double-launching workers.
func (l *Lifecycle) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateInit {
		return errors.Newf("cannot start from state %s", l.state)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel

	for i, b := range l.blocks {
		var blockLogger interfaces.Logger
		if l.params.Logger != nil {
			blockLogger = logging.ForBlock(l.params.Logger, i)
		}
		worker := dispatch.New(dispatch.Config{
			BlockIndex:  i,
			SQ:          b.SQ,
			CQ:          b.CQ,
			Backend:     l.params.Backend,
			Logger:      blockLogger,
			Observer:    l.params.Observer,
			Tickets:     async.NewTable(), // per block: tickets are CQ tail values, which repeat across blocks
			Background:  l.pool,
			CPUAffinity: l.params.CPUAffinity,
		})
		l.wg.Add(1)
		go func(w *dispatch.Worker) {
			defer l.wg.Done()
			w.Run(ctx)
		}(worker)
	}

	l.state = StateRunning
	return nil
}

// Block returns the queue pair for blockIndex, for the store's
// accelerator-facing API to push requests onto and pop responses from.
func (l *Lifecycle) Block(blockIndex int) Block {
	return l.blocks[blockIndex]
}

// NumBlocks returns the configured block count.
func (l *Lifecycle) NumBlocks() int { return len(l.blocks) }

// State returns the lifecycle's current phase.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Stop pushes an EXIT request onto every block's SubmissionQueue, waits
// for every dispatcher worker to observe it and return, then cancels the
// shared context and drains the background pool. Idempotent: calling Stop
// from any state other than Running is a no-op.
func (l *Lifecycle) Stop() error {
	l.mu.Lock()
	if l.state != StateRunning {
		l.mu.Unlock()
		return nil
	}
	l.state = StateStopped
	l.mu.Unlock()

	for _, b := range l.blocks {
		queue.SpinHost(func() bool {
			return b.SQ.PushNoData(0, wire.CmdExit, 0)
		})
		b.CQ.PopNoResMsg()
	}

	l.wg.Wait()
	l.cancel()
	l.pool.StopWait()
	return nil
}

// Delete calls the backend's DeleteDB, releasing the underlying storage.
// The lifecycle must already be Stopped (or never Started). Delete is
// terminal: the Lifecycle cannot be restarted afterward.
func (l *Lifecycle) Delete() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateRunning {
		return errors.New("cannot delete while running; call Stop first")
	}
	if l.state == StateDeleted {
		return nil
	}
	l.state = StateDeleted
	if err := l.params.Backend.DeleteDB(); err != nil {
		return errors.Wrap(err, "backend delete failed")
	}
	return l.params.Backend.CloseDB()
}

// Close releases the backend handle without deleting its data, for a
// clean-shutdown path that preserves the store for reopening later.
func (l *Lifecycle) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateDeleted {
		return nil
	}
	return l.params.Backend.CloseDB()
}
