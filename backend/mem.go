// Package backend provides gpukv backend implementations: an in-memory
// sharded map and a persistent pebble-backed store, both satisfying
// interfaces.Backend.
package backend

import (
	"hash/fnv"
	"sync"

	"github.com/segevido/gpukv/internal/interfaces"
)

// numShards controls lock granularity for the in-memory backend. Sized
// for many concurrent block dispatcher workers hitting unrelated keys;
// a single shard per key would serialize every Put/Get/Delete across
// all blocks, defeating the concurrency this backend exists to support.
const numShards = 64

// Memory is a RAM-only interfaces.Backend. Unlike the original's
// offset-addressed shards (a byte range always maps to the same shard),
// this backend shards by hash of key, since keys here are opaque blobs
// with no natural linear ordering.
type Memory struct {
	shards [numShards]memShard
}

type memShard struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	m := &Memory{}
	for i := range m.shards {
		m.shards[i].data = make(map[string][]byte)
	}
	return m
}

func (m *Memory) shardFor(key []byte) *memShard {
	h := fnv.New32a()
	h.Write(key)
	return &m.shards[h.Sum32()%numShards]
}

// OpenDB is a no-op: the in-memory backend has no handle to acquire.
func (m *Memory) OpenDB() error { return nil }

// CloseDB is a no-op: nothing to release.
func (m *Memory) CloseDB() error { return nil }

// DeleteDB discards every shard's contents.
func (m *Memory) DeleteDB() error {
	for i := range m.shards {
		m.shards[i].mu.Lock()
		m.shards[i].data = make(map[string][]byte)
		m.shards[i].mu.Unlock()
	}
	return nil
}

// Put overwrites unconditionally and always reports success, so a
// double-insert of the same key behaves identically to the pebble
// backend's native overwrite semantics (the in-memory and persistent
// reference backends must agree for the same call sequence).
func (m *Memory) Put(key []byte, val []byte) int {
	shard := m.shardFor(key)
	shard.mu.Lock()
	shard.data[string(key)] = append([]byte(nil), val...)
	shard.mu.Unlock()
	return 0
}

// Get copies the stored value into dst, truncating to dst's capacity,
// and returns 5 if key is absent.
func (m *Memory) Get(key []byte, dst []byte) (int, int) {
	shard := m.shardFor(key)
	shard.mu.RLock()
	v, ok := shard.data[string(key)]
	shard.mu.RUnlock()
	if !ok {
		return 0, 5
	}
	return copy(dst, v), 0
}

// Delete removes key, returning 5 if it was absent.
func (m *Memory) Delete(key []byte) int {
	shard := m.shardFor(key)
	shard.mu.Lock()
	_, ok := shard.data[string(key)]
	delete(shard.data, string(key))
	shard.mu.Unlock()
	if !ok {
		return 5
	}
	return 0
}

var _ interfaces.Backend = (*Memory)(nil)
