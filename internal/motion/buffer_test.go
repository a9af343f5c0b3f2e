package motion

import (
	"testing"
	"time"
)

// markerSample creates a sample whose Acc.X encodes its ingestion order
func markerSample(i int) Sample {
	return Sample{
		Timestamp: time.Unix(int64(i), 0),
		Acc:       Vec3{X: float64(i), Y: 9.8, Z: 0},
		Gyro:      Vec3{},
	}
}

func TestSampleBufferEviction(t *testing.T) {
	buffer := NewSampleBuffer(50)

	for i := 0; i < 60; i++ {
		buffer.Add(markerSample(i))
	}

	if buffer.Len() != 50 {
		t.Errorf("Len() = %d, want 50", buffer.Len())
	}

	snapshot := buffer.Snapshot()
	if len(snapshot) != 50 {
		t.Fatalf("Snapshot() length = %d, want 50", len(snapshot))
	}

	// Oldest 10 samples evicted, order preserved oldest-first
	for i, s := range snapshot {
		want := float64(i + 10)
		if s.Acc.X != want {
			t.Errorf("Snapshot()[%d].Acc.X = %v, want %v", i, s.Acc.X, want)
		}
	}
}

func TestSampleBufferPartialFill(t *testing.T) {
	buffer := NewSampleBuffer(5)

	for i := 0; i < 3; i++ {
		buffer.Add(markerSample(i))
	}

	if buffer.Len() != 3 {
		t.Errorf("Len() = %d, want 3", buffer.Len())
	}

	if buffer.Capacity() != 5 {
		t.Errorf("Capacity() = %d, want 5", buffer.Capacity())
	}

	snapshot := buffer.Snapshot()
	for i, s := range snapshot {
		if s.Acc.X != float64(i) {
			t.Errorf("Snapshot()[%d].Acc.X = %v, want %v", i, s.Acc.X, float64(i))
		}
	}
}

func TestSampleBufferLatest(t *testing.T) {
	buffer := NewSampleBuffer(3)

	if _, ok := buffer.Latest(); ok {
		t.Error("Latest() on empty buffer should report no sample")
	}

	for i := 0; i < 5; i++ {
		buffer.Add(markerSample(i))

		latest, ok := buffer.Latest()
		if !ok {
			t.Fatalf("Latest() after %d adds should report a sample", i+1)
		}
		if latest.Acc.X != float64(i) {
			t.Errorf("Latest().Acc.X = %v, want %v", latest.Acc.X, float64(i))
		}
	}
}

func TestSampleBufferSnapshotIsCopy(t *testing.T) {
	buffer := NewSampleBuffer(4)
	buffer.Add(markerSample(0))
	buffer.Add(markerSample(1))

	snapshot := buffer.Snapshot()
	snapshot[0].Acc.X = 99

	fresh := buffer.Snapshot()
	if fresh[0].Acc.X != 0 {
		t.Errorf("buffer storage mutated through snapshot: Acc.X = %v, want 0", fresh[0].Acc.X)
	}
}

func TestNewSampleBufferClampsCapacity(t *testing.T) {
	buffer := NewSampleBuffer(0)

	if buffer.Capacity() != 1 {
		t.Errorf("Capacity() = %d, want 1", buffer.Capacity())
	}

	buffer.Add(markerSample(0))
	buffer.Add(markerSample(1))

	if buffer.Len() != 1 {
		t.Errorf("Len() = %d, want 1", buffer.Len())
	}
}
