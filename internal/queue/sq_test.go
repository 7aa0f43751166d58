package queue

import (
	"testing"

	"github.com/segevido/gpukv/internal/wire"
)

func newTestSQ(queueSize, maxKeySize, maxNumKeys, maxValueSize uint32) *SubmissionQueue {
	bank := NewDataBank(queueSize, maxValueSize)
	return NewSubmissionQueue(queueSize, maxKeySize, maxNumKeys, bank)
}

func TestSubmissionQueue_PushPopRoundTrip(t *testing.T) {
	sq := newTestSQ(4, 4, 4, 16)

	key := []byte{0, 0, 0, 1}
	val := []byte("helloworld______") // 16 bytes
	ok := sq.PushPut(1, [][]byte{key}, 4, [][]byte{val[:16]}, 16, false)
	if !ok {
		t.Fatal("PushPut failed on empty queue")
	}

	idx, header, ok := sq.Pop()
	if !ok {
		t.Fatal("Pop returned false after a successful push")
	}
	if header.Cmd != wire.CmdPut || header.RequestID != 1 || header.IncrementSize != 1 {
		t.Errorf("unexpected header: %+v", header)
	}
	if got := string(sq.KeyAt(idx, 4)); got != string(key) {
		t.Errorf("key round-trip mismatch: got %q want %q", got, key)
	}
	if got := string(sq.ValueBank().Slot(idx)); got != string(val[:16]) {
		t.Errorf("value round-trip mismatch: got %q want %q", got, val[:16])
	}
}

func TestSubmissionQueue_Backpressure(t *testing.T) {
	sq := newTestSQ(2, 4, 4, 16)
	key := []byte{0, 0, 0, 1}

	if !sq.PushDelete(1, key, 4) {
		t.Fatal("first push should succeed")
	}
	if !sq.PushDelete(2, key, 4) {
		t.Fatal("second push should succeed, queue depth is 2")
	}
	if sq.PushDelete(3, key, 4) {
		t.Fatal("third push must fail: queue is full")
	}

	// Draining one slot frees capacity for exactly one more push.
	if _, _, ok := sq.Pop(); !ok {
		t.Fatal("pop should succeed after two pushes")
	}
	if !sq.PushDelete(3, key, 4) {
		t.Fatal("push should succeed again after a pop frees a slot")
	}
}

func TestSubmissionQueue_BatchPublishesAtomically(t *testing.T) {
	sq := newTestSQ(8, 4, 4, 16)
	keys := [][]byte{{0, 0, 0, 1}, {0, 0, 0, 2}, {0, 0, 0, 3}}

	if !sq.PushGet(1, keys, 4, 16, true) {
		t.Fatal("batch push failed")
	}

	_, header, ok := sq.Pop()
	if !ok {
		t.Fatal("pop failed after batch push")
	}
	if header.IncrementSize != 3 {
		t.Errorf("IncrementSize = %d, want 3 (whole batch visible at once)", header.IncrementSize)
	}
}

func TestSubmissionQueue_RejectsOversizeBatch(t *testing.T) {
	sq := newTestSQ(8, 4, 2, 16)
	keys := [][]byte{{0, 0, 0, 1}, {0, 0, 0, 2}, {0, 0, 0, 3}}

	if sq.PushGet(1, keys, 4, 16, true) {
		t.Fatal("push should reject a batch larger than maxNumKeys")
	}
}
