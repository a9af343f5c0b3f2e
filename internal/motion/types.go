package motion

import (
	"math"
	"strings"
	"time"
)

// MovementType represents the classification of a movement window
type MovementType string

const (
	// Stationary indicates no significant movement
	Stationary MovementType = "STATIONARY"
	// WalkingStraight indicates level walking
	WalkingStraight MovementType = "WALKING_STRAIGHT"
	// ClimbingStairs indicates upward stair movement
	ClimbingStairs MovementType = "CLIMBING_STAIRS"
	// DescendingStairs indicates downward stair movement
	DescendingStairs MovementType = "DESCENDING_STAIRS"
	// InElevator indicates smooth vertical transport
	InElevator MovementType = "IN_ELEVATOR"
	// Unknown indicates no rule matched or insufficient data
	Unknown MovementType = "UNKNOWN"
)

// DisplayLabel returns the human-readable form of the movement type
// (underscores replaced with spaces)
func (t MovementType) DisplayLabel() string {
	return strings.ReplaceAll(string(t), "_", " ")
}

// ConfidencePercent converts a confidence in [0.0, 1.0] to a rounded
// integer percentage for presentation
func ConfidencePercent(confidence float64) int {
	return int(math.Round(confidence * 100))
}

// Vec3 is a single 3-axis sensor reading
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Magnitude returns the Euclidean norm of the vector
func (v Vec3) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sample is one paired accelerometer/gyroscope reading captured at a
// single instant. The Y axis carries the vertical component by sensor
// mount convention.
type Sample struct {
	Timestamp time.Time
	Acc       Vec3
	Gyro      Vec3
}

// FeatureVector holds the statistical features computed over one
// buffer snapshot. Created fresh per classification tick.
type FeatureVector struct {
	AccMean         float64 `json:"acc_mean"`
	AccStd          float64 `json:"acc_std"`
	AccVariance     float64 `json:"acc_variance"`
	GyroMean        float64 `json:"gyro_mean"`
	GyroStd         float64 `json:"gyro_std"`
	VerticalAccMean float64 `json:"vertical_acc_mean"`
	VerticalAccStd  float64 `json:"vertical_acc_std"`
	StepFrequency   float64 `json:"step_frequency"`
	TiltAngle       float64 `json:"tilt_angle"`
	SampleCount     int     `json:"sample_count"`
}

// Vector returns the nine features as an ordered slice for vector
// similarity storage
func (f FeatureVector) Vector() []float32 {
	return []float32{
		float32(f.AccMean),
		float32(f.AccStd),
		float32(f.AccVariance),
		float32(f.GyroMean),
		float32(f.GyroStd),
		float32(f.VerticalAccMean),
		float32(f.VerticalAccStd),
		float32(f.StepFrequency),
		float32(f.TiltAngle),
	}
}

// ClassificationResult pairs a movement type with its confidence score
type ClassificationResult struct {
	Movement   MovementType `json:"movement"`
	Confidence float64      `json:"confidence"`
}

// MovementEvent packages one classification result with the sensor
// snapshot that triggered it. This is the unit handed to downstream
// consumers (storage, recorder, MQTT publisher).
type MovementEvent struct {
	EventID    string        `json:"event_id"`
	Device     string        `json:"device"`
	Timestamp  time.Time     `json:"timestamp"`
	Movement   MovementType  `json:"movement"`
	Confidence float64       `json:"confidence"`
	Features   FeatureVector `json:"features"`
	Acc        Vec3          `json:"acc"`
	Gyro       Vec3          `json:"gyro"`
}
