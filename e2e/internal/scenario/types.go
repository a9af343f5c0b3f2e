package scenario

import "time"

// Scenario represents a complete E2E test scenario
type Scenario struct {
	Name         string                   `yaml:"name"`
	Description  string                   `yaml:"description"`
	Setup        SetupConfig              `yaml:"setup"`
	TestMode     *TestModeConfig          `yaml:"test_mode,omitempty"`
	Events       []SampleEvent            `yaml:"events"`
	Wait         []WaitPeriod             `yaml:"wait"`
	Expectations map[string][]Expectation `yaml:"expectations"`
}

// SetupConfig defines the initial state for a test scenario
type SetupConfig struct {
	Device string `yaml:"device"` // Default device for events that omit one
}

// TestModeConfig switches agents into virtual time for compressed runs
type TestModeConfig struct {
	VirtualStart string `yaml:"virtual_start"` // ISO 8601 timestamp agents treat as "now"
	TimeScale    int    `yaml:"time_scale"`    // Wall clock compression factor (1 = realtime)
}

// IMUSample is one accelerometer + gyroscope reading
type IMUSample struct {
	Acc  []float64 `yaml:"acc"`  // [x, y, z] in m/s^2
	Gyro []float64 `yaml:"gyro"` // [x, y, z] in rad/s
}

// SampleEvent represents either an IMU burst or a raw MQTT message
type SampleEvent struct {
	Time        int                    `yaml:"time"`              // Seconds from start
	Device      string                 `yaml:"device,omitempty"`  // Overrides setup.device
	Samples     []IMUSample            `yaml:"samples,omitempty"` // One cycle of readings
	Repeat      int                    `yaml:"repeat,omitempty"`  // Times to cycle samples (default 1)
	RateHz      float64                `yaml:"rate_hz,omitempty"` // Publish rate (default 20)
	Topic       string                 `yaml:"topic,omitempty"`   // Raw message topic
	Data        map[string]interface{} `yaml:"data,omitempty"`    // Raw message payload
	Description string                 `yaml:"description"`
}

// Category returns the event category
func (e *SampleEvent) Category() string {
	if e.Topic != "" {
		return "message" // Arbitrary MQTT message
	}
	return "imu" // IMU sample burst
}

// SampleCount returns how many individual samples the event publishes
func (e *SampleEvent) SampleCount() int {
	repeat := e.Repeat
	if repeat < 1 {
		repeat = 1
	}
	return repeat * len(e.Samples)
}

// WaitPeriod represents a pause in the scenario
type WaitPeriod struct {
	Time        int    `yaml:"time"` // Seconds from start
	Description string `yaml:"description"`
}

// Expectation represents an expected outcome to verify
type Expectation struct {
	Time    int                    `yaml:"time"`    // Seconds from start
	Topic   string                 `yaml:"topic"`   // MQTT topic ('+' wildcards allowed)
	Payload map[string]interface{} `yaml:"payload"` // Expected payload (supports special matchers)

	// Optional: Redis state checks
	RedisKey   string `yaml:"redis_key,omitempty"`
	RedisField string `yaml:"redis_field,omitempty"`
	Expected   string `yaml:"expected,omitempty"`

	// Optional: Postgres state checks
	PostgresQuery    string      `yaml:"postgres_query,omitempty"`
	PostgresExpected interface{} `yaml:"postgres_expected,omitempty"`
}

// TestResult represents the outcome of running a scenario
type TestResult struct {
	Scenario     *Scenario
	StartTime    time.Time
	EndTime      time.Time
	Passed       bool
	PassedCount  int
	FailedCount  int
	Expectations []ExpectationResult
}

// ExpectationResult represents the result of checking a single expectation
type ExpectationResult struct {
	Layer         string
	Expectation   Expectation
	Passed        bool
	Reason        string
	ActualTopic   string
	ActualPayload interface{}
}
