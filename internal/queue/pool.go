package queue

import "sync"

// Scratch buffer pool for dispatcher-side backend calls.
//
// Synchronous Put and Get values are read from or written into a slot's
// databank region directly. But an async GET needs a staging buffer per
// key passed to the backend (backend.Get writes into it on the background
// pool, and ASYNC_GET_FINALIZE later copies the result into the device
// databank), and that staging buffer's size is driven by the request's
// value size, not a compile-time constant. Bucket sizes here are tuned for typical KV payloads (well
// under the multi-hundred-KB block-I/O sizes this pattern was originally
// tuned for) to keep the common case allocation-free without wasting much
// memory on a 64-byte key's value.
//
// Uses *[]byte pattern to avoid sync.Pool interface allocation overhead.
const (
	size1k  = 1 * 1024
	size4k  = 4 * 1024
	size16k = 16 * 1024
	size64k = 64 * 1024
)

var globalPool = struct {
	pool1k  sync.Pool
	pool4k  sync.Pool
	pool16k sync.Pool
	pool64k sync.Pool
}{
	pool1k:  sync.Pool{New: func() any { b := make([]byte, size1k); return &b }},
	pool4k:  sync.Pool{New: func() any { b := make([]byte, size4k); return &b }},
	pool16k: sync.Pool{New: func() any { b := make([]byte, size16k); return &b }},
	pool64k: sync.Pool{New: func() any { b := make([]byte, size64k); return &b }},
}

// GetBuffer returns a pooled buffer of at least the requested size.
// Caller must call PutBuffer when done. Requests larger than the largest
// bucket allocate directly and are not pooled.
func GetBuffer(size uint32) []byte {
	switch {
	case size <= size1k:
		return (*globalPool.pool1k.Get().(*[]byte))[:size]
	case size <= size4k:
		return (*globalPool.pool4k.Get().(*[]byte))[:size]
	case size <= size16k:
		return (*globalPool.pool16k.Get().(*[]byte))[:size]
	case size <= size64k:
		return (*globalPool.pool64k.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// PutBuffer returns a buffer to the pool. Buffers with non-standard
// capacity (the size>64k fallback, or a caller-supplied slice) are simply
// dropped.
func PutBuffer(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size1k:
		globalPool.pool1k.Put(&buf)
	case size4k:
		globalPool.pool4k.Put(&buf)
	case size16k:
		globalPool.pool16k.Put(&buf)
	case size64k:
		globalPool.pool64k.Put(&buf)
	}
}
