package executor

import (
	"time"
)

// WaitUntil sleeps until targetSeconds of scenario time have elapsed
// since start. With timeScale > 1 the schedule is compressed: a
// scenario second takes 1/timeScale wall seconds.
func WaitUntil(startTime time.Time, targetSeconds int, timeScale int) {
	if timeScale < 1 {
		timeScale = 1
	}

	scaled := time.Duration(targetSeconds) * time.Second / time.Duration(timeScale)
	deadline := startTime.Add(scaled)

	if remaining := time.Until(deadline); remaining > 0 {
		time.Sleep(remaining)
	}
}

// GetElapsed returns elapsed seconds since start
func GetElapsed(startTime time.Time) float64 {
	return time.Since(startTime).Seconds()
}
