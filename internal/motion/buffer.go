package motion

// SampleBuffer is a fixed-capacity sliding window of IMU samples.
// When the buffer is full the oldest sample is evicted. Insertion
// order is arrival order. The buffer itself never triggers
// classification; the detector owns the cadence.
//
// SampleBuffer is not safe for concurrent use; the owning detector
// guards it with its own mutex.
type SampleBuffer struct {
	samples []Sample
	head    int
	count   int
}

// NewSampleBuffer creates a buffer holding at most capacity samples
func NewSampleBuffer(capacity int) *SampleBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &SampleBuffer{
		samples: make([]Sample, capacity),
	}
}

// Add appends a sample, evicting the oldest when at capacity.
// Ingestion always succeeds.
func (b *SampleBuffer) Add(s Sample) {
	b.samples[b.head] = s
	b.head = (b.head + 1) % len(b.samples)
	if b.count < len(b.samples) {
		b.count++
	}
}

// Len returns the number of buffered samples
func (b *SampleBuffer) Len() int {
	return b.count
}

// Capacity returns the maximum number of samples the buffer holds
func (b *SampleBuffer) Capacity() int {
	return len(b.samples)
}

// Latest returns the most recently added sample
func (b *SampleBuffer) Latest() (Sample, bool) {
	if b.count == 0 {
		return Sample{}, false
	}
	idx := (b.head - 1 + len(b.samples)) % len(b.samples)
	return b.samples[idx], true
}

// Snapshot returns a copy of the buffered samples ordered oldest to
// newest. The returned slice does not alias buffer storage.
func (b *SampleBuffer) Snapshot() []Sample {
	out := make([]Sample, b.count)

	if b.count < len(b.samples) {
		// Buffer has not wrapped yet
		copy(out, b.samples[:b.count])
		return out
	}

	for i := 0; i < b.count; i++ {
		out[i] = b.samples[(b.head+i)%len(b.samples)]
	}
	return out
}
