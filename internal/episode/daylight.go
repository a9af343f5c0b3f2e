package episode

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
)

// Daylight describes the sun position at a point in time
type Daylight struct {
	SunAltitude    float64 // degrees above horizon
	TheoreticalLux float64
	IsDaytime      bool
}

// ComputeDaylight calculates the sun altitude and theoretical outdoor
// illuminance for the given time and coordinates. Episodes carry this
// so movement patterns can be related to available daylight.
func ComputeDaylight(t time.Time, lat, lon float64) Daylight {
	position := suncalc.GetPosition(t, lat, lon)

	// Sun altitude is in radians, convert to degrees
	altitudeDegrees := position.Altitude * (180.0 / math.Pi)

	// Rough approximation: at sun altitude of 90° (overhead) the
	// theoretical outdoor maximum is ~120,000 lux
	var theoreticalLux float64
	if altitudeDegrees > 0 {
		theoreticalLux = 120000.0 * math.Sin(position.Altitude)
		if theoreticalLux < 0 {
			theoreticalLux = 0
		}
	}

	return Daylight{
		SunAltitude:    altitudeDegrees,
		TheoreticalLux: theoreticalLux,
		IsDaytime:      altitudeDegrees > 0,
	}
}
