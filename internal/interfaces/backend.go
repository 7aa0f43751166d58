// Package interfaces provides internal interface definitions for gpukv.
// These are separate from the public package to avoid circular imports
// between the store package and internal packages that must reference the
// backend abstraction.
package interfaces

// Backend is the pluggable key-value engine the dispatcher calls, per
// spec.md §6. OpenDB/CloseDB/DeleteDB manage the handle's lifecycle;
// Put/Get/Delete carry byte-exact key/value payloads. Implementations must
// be safe for concurrent use: every block's dispatcher worker and the
// shared background pool (async GET) call into the same Backend at once.
// Keys within one synchronous batch are processed one after another by
// that block's worker, not in parallel.
type Backend interface {
	OpenDB() error
	CloseDB() error
	DeleteDB() error

	// Put stores val under key. Returns a backend status code in the
	// space documented on DecodeBackendStatus (0 = OK, 5 = not-found,
	// other = error). Put never returns 5.
	Put(key []byte, val []byte) int

	// Get copies the value for key into dst, truncated/short on cap,
	// and reports the number of bytes copied. Returns 5 if key is absent.
	Get(key []byte, dst []byte) (n int, code int)

	// Delete removes key. Returns 5 if key was absent.
	Delete(key []byte) int
}

// Logger is the logging sink the dispatcher and store write through.
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Observer receives per-operation metrics. Implementations must be
// thread-safe: methods are called concurrently from every block's
// dispatcher worker and from thread-pool tasks.
type Observer interface {
	ObservePut(bytes uint64, latencyNs uint64, success bool)
	ObserveGet(bytes uint64, latencyNs uint64, success bool)
	ObserveDelete(latencyNs uint64, success bool)
	ObserveQueueDepth(blockIndex int, depth uint32)
}
