// Package constants holds geometry defaults and environment variable names
// shared across the store, dispatcher, and queue packages.
package constants

import "time"

// Default queue/store geometry
const (
	// DefaultQueueSize is the default ring depth per block when QUEUE_SIZE
	// is not set and the caller does not override it explicitly.
	DefaultQueueSize = 64

	// DefaultMaxValueSize is the default payload slab size per slot (4KB).
	DefaultMaxValueSize = 4096

	// DefaultMaxKeySize is the default inline key size per slot.
	DefaultMaxKeySize = 64

	// DefaultMaxNumKeys is the default max batch length accepted by a
	// single accelerator-side call.
	DefaultMaxNumKeys = 32
)

// Environment variable names consulted only by the outermost CLI layer
// (cmd/gpukv-demo), never by the Store constructor itself.
const (
	// EnvQueueSize overrides the per-block ring depth.
	EnvQueueSize = "QUEUE_SIZE"

	// EnvDBIdentify selects the persistent backend's identity token
	// (for the pebble backend, its data directory).
	EnvDBIdentify = "DB_IDENTIFY"
)

// Host-side busy-wait backoff, per the design note in spec.md §9: the
// accelerator side must spin (no scheduler to suspend a warp on), but the
// host side should spin briefly then sleep to free CPU cycles rather than
// spin forever or introduce a condition variable on the hot path.
const (
	// HostSpinIterations is how many consecutive empty polls the host
	// worker performs before backing off to sleeping.
	HostSpinIterations = 256

	// HostBackoffDelay is the sleep duration once the spin budget above
	// is exhausted.
	HostBackoffDelay = 50 * time.Microsecond
)
