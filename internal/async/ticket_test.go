package async

import (
	"testing"
	"time"

	"github.com/segevido/gpukv/internal/wire"
)

func TestFuture_AwaitBlocksUntilComplete(t *testing.T) {
	f := NewFuture()
	if f.State() != StateIssued {
		t.Fatalf("new future state = %v, want Issued", f.State())
	}

	done := make(chan Result, 1)
	go func() {
		done <- f.Await()
	}()

	// Await must not return before Complete is called.
	select {
	case <-done:
		t.Fatal("Await returned before Complete was called")
	case <-time.After(20 * time.Millisecond):
	}

	f.MarkRunning()
	if f.State() != StateRunning {
		t.Fatalf("state after MarkRunning = %v, want Running", f.State())
	}

	want := Result{Status: []wire.KVStatus{wire.StatusSuccess}, BackendStatus: []int{0}}
	f.Complete(want)

	select {
	case got := <-done:
		if got.Status[0] != wire.StatusSuccess {
			t.Errorf("Await result status = %v, want SUCCESS", got.Status[0])
		}
	case <-time.After(time.Second):
		t.Fatal("Await did not unblock after Complete")
	}

	if f.State() != StateConsumed {
		t.Errorf("state after Await = %v, want Consumed", f.State())
	}
}

func TestTable_IssueLookupFinalize(t *testing.T) {
	table := NewTable()

	f := table.Issue(42)
	if table.Lookup(42) != f {
		t.Fatal("Lookup did not return the issued future")
	}
	if table.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", table.Len())
	}

	f.Complete(Result{Status: []wire.KVStatus{wire.StatusSuccess}})

	got := table.Finalize(42)
	if got != f {
		t.Fatal("Finalize did not return the issued future")
	}
	if table.Len() != 0 {
		t.Fatalf("Len() after Finalize = %d, want 0 (ticket removed on first finalize)", table.Len())
	}

	// Finalizing the same ticket twice returns nil the second time: the
	// table is the single source of truth for "already finalized".
	if second := table.Finalize(42); second != nil {
		t.Error("second Finalize of the same ticket should return nil")
	}
}

func TestTable_LookupUnknownTicket(t *testing.T) {
	table := NewTable()
	if table.Lookup(999) != nil {
		t.Error("Lookup of an unissued ticket should return nil")
	}
	if table.Finalize(999) != nil {
		t.Error("Finalize of an unissued ticket should return nil")
	}
}
