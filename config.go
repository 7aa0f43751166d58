package gpukv

import (
	"fmt"

	"github.com/segevido/gpukv/internal/constants"
	"github.com/segevido/gpukv/internal/interfaces"
)

// Config is the store's construction-time geometry, mirroring spec.md
// §4.1's DeviceParams-equivalent: everything that must be fixed before
// the first block's queue pair is allocated. Config is consumed only by
// NewStore; environment variables like QUEUE_SIZE and DB_IDENTIFY are
// read by cmd/gpukv-demo's outermost CLI layer and turned into Config
// fields there, never read by this package directly.
type Config struct {
	NumBlocks    int
	QueueSize    uint32
	MaxValueSize uint32
	MaxKeySize   uint32
	MaxNumKeys   uint32
	Backend      interfaces.Backend
	Logger       interfaces.Logger
	CPUAffinity  []int

	// MaxOutstandingAsyncGets bounds the number of ASYNC_GET_INITIATE
	// calls a block may have pending (issued but not yet finalized) at
	// once, per spec.md §9's ticket-reuse-hazard guard. Zero means derive
	// it from QueueSize/MaxNumKeys, the same ratio the guard's own sizing
	// rule (queueSize >= maxOutstandingAsyncGets * batchSize) assumes.
	MaxOutstandingAsyncGets uint32
}

// resolvedMaxOutstandingAsyncGets returns MaxOutstandingAsyncGets, or the
// QueueSize/MaxNumKeys default when it is unset.
func (c Config) resolvedMaxOutstandingAsyncGets() uint32 {
	if c.MaxOutstandingAsyncGets > 0 {
		return c.MaxOutstandingAsyncGets
	}
	if c.MaxNumKeys == 0 {
		return 0
	}
	n := c.QueueSize / c.MaxNumKeys
	if n == 0 {
		n = 1
	}
	return n
}

// DefaultConfig returns a Config with the package's default geometry for
// the given backend. Callers override fields before calling NewStore.
func DefaultConfig(backend interfaces.Backend) Config {
	return Config{
		NumBlocks:    1,
		QueueSize:    constants.DefaultQueueSize,
		MaxValueSize: constants.DefaultMaxValueSize,
		MaxKeySize:   constants.DefaultMaxKeySize,
		MaxNumKeys:   constants.DefaultMaxNumKeys,
		Backend:      backend,
	}
}

// Validate enforces the fatal-error geometry constraints of spec.md §7.
func (c Config) Validate() error {
	if c.NumBlocks < 1 {
		return fmt.Errorf("numBlocks must be >= 1, got %d", c.NumBlocks)
	}
	if c.MaxNumKeys < 1 {
		return fmt.Errorf("maxNumKeys must be >= 1, got %d", c.MaxNumKeys)
	}
	if c.QueueSize < c.MaxNumKeys {
		return fmt.Errorf("queueSize (%d) must be >= maxNumKeys (%d)", c.QueueSize, c.MaxNumKeys)
	}
	if c.MaxValueSize < 1 {
		return fmt.Errorf("maxValueSize must be >= 1, got %d", c.MaxValueSize)
	}
	if c.MaxKeySize < 1 {
		return fmt.Errorf("maxKeySize must be >= 1, got %d", c.MaxKeySize)
	}
	if c.Backend == nil {
		return fmt.Errorf("backend must not be nil")
	}
	return nil
}
