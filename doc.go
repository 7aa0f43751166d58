// Package gpukv provides a GPU-initiated key-value access layer on top of
// a pluggable storage backend.
//
// The system is modeled on an accelerator with a fixed number of thread
// blocks, each independently issuing PUT/GET/DELETE/async-GET requests
// through a lock-free submission queue (SQ) and reading results off a
// paired completion queue (CQ), while a host-side dispatcher drains those
// queues and calls into the backend. This implementation simulates each
// thread block as one goroutine; see the introduction of SPEC_FULL.md
// for how the original per-thread cooperative semantics
// collapse onto that model.
//
// NewStore constructs and starts a Store against a given backend and
// geometry (block count, queue depth, max key/value sizes). Each
// accelerator-facing method — KVPut, KVGet, KVDelete,
// KVAsyncGetInitiate/Finalize — takes a blockIndex identifying which
// block's queue pair to use; callers must serialize calls from the same
// block themselves, matching the single-producer/single-consumer
// discipline of the underlying rings.
package gpukv
