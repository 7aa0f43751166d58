// Package gpukv implements a GPU-initiated key-value access layer: a
// fixed number of "blocks" (simulated accelerator thread blocks, one
// goroutine each in this implementation) each drive a lock-free
// submission/completion queue pair against a host-side dispatcher, which
// forwards requests to a pluggable storage backend. See doc.go for the
// package-level overview.
package gpukv

import (
	"fmt"

	"github.com/segevido/gpukv/internal/ctrl"
	"github.com/segevido/gpukv/internal/logging"
	"github.com/segevido/gpukv/internal/queue"
	"github.com/segevido/gpukv/internal/wire"
)

// Store is the driver-level handle described in spec.md §6: one per
// backend instance, owning numBlocks independent queue pairs and the
// dispatcher workers that drain them. The accelerator-callable methods
// below (KVPut, KVGet, ...) are safe to call concurrently from different
// blocks but, per §5, a single block's calls must be serialized by its
// caller — each block owns one SubmissionQueue producer and one
// CompletionQueue consumer.
type Store struct {
	lc      *ctrl.Lifecycle
	logger  *logging.Logger
	metrics *Metrics
	res     []*queue.BlockResources // one per block, owns the request-id counter and status scratch

	maxOutstandingAsyncGets uint32
}

// NewStore validates cfg, opens the backend, allocates every block's
// queue pair, and starts its dispatcher worker. Returns a *Error wrapping
// ErrCodeInvalidGeometry or ErrCodeBackendOpenFailed on failure, per
// spec.md §7.
func NewStore(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Op: "NewStore", BlockIndex: -1, Code: ErrCodeInvalidGeometry, Msg: err.Error(), Inner: err}
	}

	var log *logging.Logger
	if l, ok := cfg.Logger.(*logging.Logger); ok {
		log = l
	} else {
		log = logging.Default()
	}

	metrics := NewMetrics()
	observer := NewMetricsObserver(metrics)

	lc, err := ctrl.New(ctrl.Params{
		NumBlocks:    cfg.NumBlocks,
		QueueSize:    cfg.QueueSize,
		MaxValueSize: cfg.MaxValueSize,
		MaxKeySize:   cfg.MaxKeySize,
		MaxNumKeys:   cfg.MaxNumKeys,
		Backend:      cfg.Backend,
		Logger:       log,
		Observer:     observer,
		CPUAffinity:  cfg.CPUAffinity,
	})
	if err != nil {
		return nil, &Error{Op: "NewStore", BlockIndex: -1, Code: ErrCodeBackendOpenFailed, Msg: err.Error(), Inner: err}
	}

	if err := lc.Start(); err != nil {
		return nil, WrapError("NewStore", err)
	}

	res := make([]*queue.BlockResources, cfg.NumBlocks)
	for i := range res {
		res[i] = queue.NewBlockResources(cfg.MaxNumKeys)
	}

	return &Store{
		lc:                      lc,
		logger:                  log,
		metrics:                 metrics,
		res:                     res,
		maxOutstandingAsyncGets: cfg.resolvedMaxOutstandingAsyncGets(),
	}, nil
}

func (s *Store) blockPair(blockIndex int) (*queue.SubmissionQueue, *queue.CompletionQueue, *queue.BlockResources, error) {
	if blockIndex < 0 || blockIndex >= s.lc.NumBlocks() {
		return nil, nil, nil, &Error{Op: "block", BlockIndex: blockIndex, Code: ErrCodeInvalidGeometry, Msg: fmt.Sprintf("block index %d out of range [0,%d)", blockIndex, s.lc.NumBlocks())}
	}
	b := s.lc.Block(blockIndex)
	return b.SQ, b.CQ, s.res[blockIndex], nil
}

// KVPut stores a single key/value pair from blockIndex's caller. It
// blocks (via bounded spin, per spec.md §5) until the submission queue
// has room, then blocks until the dispatcher's response arrives. The
// request id is generated internally: one strictly increasing counter
// per block, per spec.md §3's invariant 4.
func (s *Store) KVPut(blockIndex int, key []byte, value []byte) (wire.KVStatus, error) {
	sq, cq, res, err := s.blockPair(blockIndex)
	if err != nil {
		return wire.StatusFail, err
	}
	reqID := res.NextRequestID()
	queue.SpinHost(func() bool {
		return sq.PushPut(reqID, [][]byte{key}, uint32(len(key)), [][]byte{value}, uint32(len(value)), false)
	})
	status, backendStatus := res.Scratch(1)
	cq.PopDefault(status, backendStatus, 1)
	return status[0], nil
}

// KVMultiPut stores a batch of key/value pairs in one round trip. All
// keys must share keySize and all values must share valueSize, per
// spec.md §4.2's fixed-slot layout.
func (s *Store) KVMultiPut(blockIndex int, keys [][]byte, values [][]byte) ([]wire.KVStatus, error) {
	sq, cq, res, err := s.blockPair(blockIndex)
	if err != nil {
		return nil, err
	}
	reqID := res.NextRequestID()
	n := uint32(len(keys))
	keySize, valSize := uint32(0), uint32(0)
	if n > 0 {
		keySize, valSize = uint32(len(keys[0])), uint32(len(values[0]))
	}
	queue.SpinHost(func() bool {
		return sq.PushPut(reqID, keys, keySize, values, valSize, true)
	})
	status, backendStatus := res.Scratch(int(n))
	cq.PopDefault(status, backendStatus, n)
	out := make([]wire.KVStatus, n)
	copy(out, status)
	return out, nil
}

// KVGet reads a single key into dst, returning the number of bytes
// written and the per-key status.
func (s *Store) KVGet(blockIndex int, key []byte, dst []byte) (int, wire.KVStatus, error) {
	sq, cq, res, err := s.blockPair(blockIndex)
	if err != nil {
		return 0, wire.StatusFail, err
	}
	reqID := res.NextRequestID()
	queue.SpinHost(func() bool {
		return sq.PushGet(reqID, [][]byte{key}, uint32(len(key)), uint32(len(dst)), false)
	})
	status, backendStatus := res.Scratch(1)
	cq.PopGet([][]byte{dst}, uint32(len(dst)), status, backendStatus, 1)
	n := len(dst)
	if status[0] != wire.StatusSuccess {
		n = 0
	}
	return n, status[0], nil
}

// KVMultiGet reads a batch of keys, one destination buffer per key.
func (s *Store) KVMultiGet(blockIndex int, keys [][]byte, dsts [][]byte) ([]wire.KVStatus, error) {
	sq, cq, res, err := s.blockPair(blockIndex)
	if err != nil {
		return nil, err
	}
	reqID := res.NextRequestID()
	n := uint32(len(keys))
	keySize, valSize := uint32(0), uint32(0)
	if n > 0 {
		keySize, valSize = uint32(len(keys[0])), uint32(len(dsts[0]))
	}
	queue.SpinHost(func() bool {
		return sq.PushGet(reqID, keys, keySize, valSize, true)
	})
	status, backendStatus := res.Scratch(int(n))
	cq.PopGet(dsts, valSize, status, backendStatus, n)
	out := make([]wire.KVStatus, n)
	copy(out, status)
	return out, nil
}

// KVDelete removes a single key.
func (s *Store) KVDelete(blockIndex int, key []byte) (wire.KVStatus, error) {
	sq, cq, res, err := s.blockPair(blockIndex)
	if err != nil {
		return wire.StatusFail, err
	}
	reqID := res.NextRequestID()
	queue.SpinHost(func() bool {
		return sq.PushDelete(reqID, key, uint32(len(key)))
	})
	status, backendStatus := res.Scratch(1)
	cq.PopDefault(status, backendStatus, 1)
	return status[0], nil
}

// KVAsyncGetInitiate starts a background fetch for a batch of keys and
// returns a ticket identifying it, per spec.md §4.6. The ticket must be
// passed to a later KVAsyncGetFinalize call on the same block.
//
// Refuses the request with ErrCodeTicketTableFull, without touching the
// submission queue, once blockIndex already has
// MaxOutstandingAsyncGets tickets issued and not yet finalized, per
// spec.md §9's ticket-reuse-hazard guard.
func (s *Store) KVAsyncGetInitiate(blockIndex int, keys [][]byte, valueSize uint32) (uint32, error) {
	sq, cq, res, err := s.blockPair(blockIndex)
	if err != nil {
		return 0, err
	}
	if !res.TryReserveAsyncTicket(s.maxOutstandingAsyncGets) {
		return 0, NewBlockError("KVAsyncGetInitiate", blockIndex, ErrCodeTicketTableFull, fmt.Sprintf("already has %d outstanding async GETs", s.maxOutstandingAsyncGets))
	}
	reqID := res.NextRequestID()
	n := uint32(len(keys))
	keySize := uint32(0)
	if n > 0 {
		keySize = uint32(len(keys[0]))
	}
	queue.SpinHost(func() bool {
		return sq.PushAsyncGetInitiate(reqID, keys, keySize, valueSize)
	})
	ticket := cq.PopAsyncGetInit()
	s.metrics.RecordAsyncInitiate()
	return ticket, nil
}

// KVAsyncGetFinalize blocks until the background fetch for ticket
// completes, then copies results into dsts. Always releases the block's
// outstanding-ticket slot reserved by KVAsyncGetInitiate, even when ticket
// turns out to be unknown to the dispatcher.
func (s *Store) KVAsyncGetFinalize(blockIndex int, ticket uint32, dsts [][]byte) ([]wire.KVStatus, error) {
	sq, cq, res, err := s.blockPair(blockIndex)
	if err != nil {
		return nil, err
	}
	defer res.ReleaseAsyncTicket()
	reqID := res.NextRequestID()
	n := uint32(len(dsts))
	valSize := uint32(0)
	if n > 0 {
		valSize = uint32(len(dsts[0]))
	}
	queue.SpinHost(func() bool {
		return sq.PushNoData(reqID, wire.CmdAsyncGetFinalize, ticket)
	})
	status, backendStatus := res.Scratch(int(n))
	cq.PopGet(dsts, valSize, status, backendStatus, n)
	s.metrics.RecordAsyncFinalize()
	out := make([]wire.KVStatus, n)
	copy(out, status)
	return out, nil
}

// KVExit tells blockIndex's dispatcher worker to stop, draining its
// response so callers that poll the completion queue directly observe
// the EXIT acknowledgement. Most callers should use Close or DeleteDB
// instead, which exit every block and join their workers.
func (s *Store) KVExit(blockIndex int) error {
	sq, cq, res, err := s.blockPair(blockIndex)
	if err != nil {
		return err
	}
	reqID := res.NextRequestID()
	queue.SpinHost(func() bool {
		return sq.PushNoData(reqID, wire.CmdExit, 0)
	})
	cq.PopNoResMsg()
	return nil
}

// Stats returns a point-in-time snapshot of the store's metrics.
func (s *Store) Stats() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// NumBlocks returns the number of blocks this store was configured with.
func (s *Store) NumBlocks() int {
	return s.lc.NumBlocks()
}

// Close stops every block's dispatcher worker and releases the backend
// handle without deleting its data.
func (s *Store) Close() error {
	if err := s.lc.Stop(); err != nil {
		return WrapError("Close", err)
	}
	s.metrics.Stop()
	if err := s.lc.Close(); err != nil {
		return WrapError("Close", err)
	}
	return nil
}

// DeleteDB stops every block's dispatcher worker and permanently removes
// the backend's underlying storage.
func (s *Store) DeleteDB() error {
	if err := s.lc.Stop(); err != nil {
		return WrapError("DeleteDB", err)
	}
	s.metrics.Stop()
	if err := s.lc.Delete(); err != nil {
		return WrapError("DeleteDB", err)
	}
	return nil
}
