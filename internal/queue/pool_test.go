package queue

import "testing"

func TestGetBuffer_SizeBuckets(t *testing.T) {
	tests := []struct {
		name        string
		requestSize uint32
		expectCap   int
	}{
		{"1KB bucket - exact", 1024, 1024},
		{"1KB bucket - smaller", 512, 1024},
		{"4KB bucket - exact", 4096, 4096},
		{"4KB bucket - smaller", 3000, 4096},
		{"16KB bucket - exact", 16384, 16384},
		{"64KB bucket - exact", 65536, 65536},
		{"over max bucket", 100000, 100000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := GetBuffer(tt.requestSize)
			if len(buf) != int(tt.requestSize) {
				t.Errorf("GetBuffer(%d) returned len=%d, want %d", tt.requestSize, len(buf), tt.requestSize)
			}
			if cap(buf) != tt.expectCap {
				t.Errorf("GetBuffer(%d) returned cap=%d, want %d", tt.requestSize, cap(buf), tt.expectCap)
			}
			PutBuffer(buf)
		})
	}
}

func TestBufferPool_Reuse(t *testing.T) {
	buf1 := GetBuffer(4096)
	ptr1 := &buf1[0]
	PutBuffer(buf1)

	buf2 := GetBuffer(4096)
	ptr2 := &buf2[0]
	PutBuffer(buf2)

	if ptr1 == ptr2 {
		t.Log("buffer was successfully reused from pool")
	} else {
		t.Log("buffer was not reused (sync.Pool GC behavior)")
	}
}

func TestPutBuffer_NonStandardCap(t *testing.T) {
	buf := make([]byte, 100000)
	PutBuffer(buf) // must not panic
}
