package queue

import (
	"runtime"
	"time"

	"github.com/segevido/gpukv/internal/constants"
)

// SpinAccelerator busy-waits calling attempt until it reports success.
// There is no voluntary yielding here beyond runtime.Gosched, matching
// spec.md §5: "There is no voluntary yielding inside the kernel;
// backpressure is purely capacity-driven." runtime.Gosched keeps a
// GOMAXPROCS=1 test process from livelocking a single-producer /
// single-consumer pair that happen to land on the same OS thread; it has
// no equivalent cost on a real warp scheduler, which this call simulates.
func SpinAccelerator(attempt func() bool) {
	for !attempt() {
		runtime.Gosched()
	}
}

// SpinHost busy-waits on attempt, backing off to a short sleep once the
// spin budget is exhausted, per spec.md §9's design note: "replace
// busy-wait with a bounded spin followed by a short sleep to free CPU
// cycles; do not introduce condition variables in the hot path."
func SpinHost(attempt func() bool) {
	spins := 0
	for !attempt() {
		spins++
		if spins < constants.HostSpinIterations {
			runtime.Gosched()
			continue
		}
		time.Sleep(constants.HostBackoffDelay)
		spins = 0
	}
}
