// Package queue implements the lock-free SPSC submission and completion
// rings described in spec.md §4.2/§4.3, plus the data banks and per-block
// scratch state they are paired with.
package queue

// DataBank is a contiguous slab of queueSize*maxValueSize bytes, one per
// thread block per direction: a host-resident bank carries PUT payloads
// alongside a SubmissionQueue, a device-resident bank carries GET payloads
// alongside a CompletionQueue. Slot i is exclusively owned by whichever
// side currently holds index i modulo queueSize — the producer until it
// publishes, the consumer from publication until it advances past i.
type DataBank struct {
	data         []byte
	queueSize    uint32
	maxValueSize uint32
}

// NewDataBank allocates a slab sized for queueSize slots of maxValueSize
// bytes each. In the original system this slab is carved from memory
// mapped into both host and accelerator address spaces (spec.md §4.1); a
// plain Go slice stands in for that shared mapping since both "sides" here
// are goroutines in one address space.
func NewDataBank(queueSize, maxValueSize uint32) *DataBank {
	return &DataBank{
		data:         make([]byte, uint64(queueSize)*uint64(maxValueSize)),
		queueSize:    queueSize,
		maxValueSize: maxValueSize,
	}
}

// Slot returns the maxValueSize-byte region for ring index i, addressed
// modulo queueSize per spec.md §3 ("indexed by tail mod queueSize at the
// producer").
func (d *DataBank) Slot(i uint32) []byte {
	off := uint64(i%d.queueSize) * uint64(d.maxValueSize)
	return d.data[off : off+uint64(d.maxValueSize)]
}

// MaxValueSize returns the fixed per-slot payload capacity.
func (d *DataBank) MaxValueSize() uint32 {
	return d.maxValueSize
}
