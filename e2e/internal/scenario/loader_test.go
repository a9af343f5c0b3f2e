package scenario

import (
	"strings"
	"testing"
)

const validScenarioYAML = `
name: "Walking smoke test"
description: "Short walking burst produces a walking classification"

setup:
  device: watch-01

events:
  - time: 0
    repeat: 3
    rate_hz: 20
    description: "Walking burst"
    samples:
      - {acc: [0.0, 11.0, 0.0], gyro: [0.5, 0.0, 0.0]}
      - {acc: [0.0, 8.6, 0.0], gyro: [0.1, 0.0, 0.0]}

wait:
  - time: 2
    description: "Settle"

expectations:
  context:
    - time: 4
      topic: "motion/context/movement/watch-01"
      payload:
        movement: "WALKING_STRAIGHT"
        confidence: ">0.8"
  state:
    - time: 5
      redis_key: "movement:state:watch-01"
      redis_field: "movement"
      expected: "WALKING_STRAIGHT"
`

func TestLoadScenarioFromBytes(t *testing.T) {
	s, err := LoadScenarioFromBytes([]byte(validScenarioYAML))
	if err != nil {
		t.Fatalf("LoadScenarioFromBytes() error = %v", err)
	}

	if s.Name != "Walking smoke test" {
		t.Errorf("Name = %q, want %q", s.Name, "Walking smoke test")
	}
	if s.Setup.Device != "watch-01" {
		t.Errorf("Setup.Device = %q, want watch-01", s.Setup.Device)
	}
	if s.TestMode != nil {
		t.Errorf("TestMode = %+v, want nil", s.TestMode)
	}

	if len(s.Events) != 1 {
		t.Fatalf("len(Events) = %d, want 1", len(s.Events))
	}
	event := s.Events[0]
	if event.Category() != "imu" {
		t.Errorf("Category() = %q, want imu", event.Category())
	}
	if got := event.SampleCount(); got != 6 {
		t.Errorf("SampleCount() = %d, want 6", got)
	}
	if event.Samples[0].Acc[1] != 11.0 {
		t.Errorf("Samples[0].Acc[1] = %v, want 11.0", event.Samples[0].Acc[1])
	}

	if len(s.Expectations) != 2 {
		t.Errorf("len(Expectations) = %d, want 2", len(s.Expectations))
	}
	if got := s.Expectations["context"][0].Payload["confidence"]; got != ">0.8" {
		t.Errorf("context payload confidence = %v, want >0.8", got)
	}
	if got := s.Expectations["state"][0].RedisKey; got != "movement:state:watch-01" {
		t.Errorf("state redis_key = %q, want movement:state:watch-01", got)
	}
}

func TestLoadScenarioFromBytesTestMode(t *testing.T) {
	yaml := strings.Replace(validScenarioYAML, "setup:", `
test_mode:
  virtual_start: "2025-01-15T02:00:00+02:00"
  time_scale: 10

setup:`, 1)

	s, err := LoadScenarioFromBytes([]byte(yaml))
	if err != nil {
		t.Fatalf("LoadScenarioFromBytes() error = %v", err)
	}

	if s.TestMode == nil {
		t.Fatal("TestMode = nil, want configured")
	}
	if s.TestMode.TimeScale != 10 {
		t.Errorf("TimeScale = %d, want 10", s.TestMode.TimeScale)
	}
	if s.TestMode.VirtualStart != "2025-01-15T02:00:00+02:00" {
		t.Errorf("VirtualStart = %q", s.TestMode.VirtualStart)
	}
}

func TestLoadScenarioFromBytesInvalidYAML(t *testing.T) {
	_, err := LoadScenarioFromBytes([]byte("{not yaml: ["))
	if err == nil {
		t.Error("LoadScenarioFromBytes() error = nil, want parse error")
	}
}

func TestValidateScenario(t *testing.T) {
	base := func() *Scenario {
		return &Scenario{
			Name:        "test",
			Description: "test scenario",
			Setup:       SetupConfig{Device: "watch-01"},
			Events: []SampleEvent{
				{
					Time:        0,
					Description: "burst",
					Samples: []IMUSample{
						{Acc: []float64{0, 9.8, 0}, Gyro: []float64{0, 0, 0}},
					},
				},
			},
			Expectations: map[string][]Expectation{
				"context": {
					{
						Time:    2,
						Topic:   "motion/context/movement/watch-01",
						Payload: map[string]interface{}{"movement": "STATIONARY"},
					},
				},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr bool
	}{
		{
			name:    "valid scenario",
			mutate:  func(s *Scenario) {},
			wantErr: false,
		},
		{
			name:    "missing name",
			mutate:  func(s *Scenario) { s.Name = "" },
			wantErr: true,
		},
		{
			name:    "missing description",
			mutate:  func(s *Scenario) { s.Description = "" },
			wantErr: true,
		},
		{
			name:    "no events",
			mutate:  func(s *Scenario) { s.Events = nil },
			wantErr: true,
		},
		{
			name: "no device anywhere",
			mutate: func(s *Scenario) {
				s.Setup.Device = ""
			},
			wantErr: true,
		},
		{
			name: "device on event only",
			mutate: func(s *Scenario) {
				s.Setup.Device = ""
				s.Events[0].Device = "watch-09"
			},
			wantErr: false,
		},
		{
			name: "short acc vector",
			mutate: func(s *Scenario) {
				s.Events[0].Samples[0].Acc = []float64{0, 9.8}
			},
			wantErr: true,
		},
		{
			name: "negative event time",
			mutate: func(s *Scenario) {
				s.Events[0].Time = -1
			},
			wantErr: true,
		},
		{
			name: "event missing description",
			mutate: func(s *Scenario) {
				s.Events[0].Description = ""
			},
			wantErr: true,
		},
		{
			name: "message event without data",
			mutate: func(s *Scenario) {
				s.Events[0].Samples = nil
				s.Events[0].Topic = "motion/test/time_config"
			},
			wantErr: true,
		},
		{
			name: "message event with data",
			mutate: func(s *Scenario) {
				s.Events[0].Samples = nil
				s.Events[0].Topic = "motion/test/time_config"
				s.Events[0].Data = map[string]interface{}{"test_mode": true}
			},
			wantErr: false,
		},
		{
			name:    "no expectations",
			mutate:  func(s *Scenario) { s.Expectations = nil },
			wantErr: true,
		},
		{
			name: "mqtt expectation without payload",
			mutate: func(s *Scenario) {
				s.Expectations["context"][0].Payload = nil
			},
			wantErr: true,
		},
		{
			name: "redis expectation missing field",
			mutate: func(s *Scenario) {
				s.Expectations["context"] = []Expectation{
					{Time: 2, RedisKey: "movement:state:watch-01", Expected: "STATIONARY"},
				}
			},
			wantErr: true,
		},
		{
			name: "postgres expectation without expected",
			mutate: func(s *Scenario) {
				s.Expectations["context"] = []Expectation{
					{Time: 2, PostgresQuery: "SELECT COUNT(*) FROM movement_events"},
				}
			},
			wantErr: true,
		},
		{
			name: "test mode zero scale",
			mutate: func(s *Scenario) {
				s.TestMode = &TestModeConfig{VirtualStart: "2025-01-15T02:00:00Z", TimeScale: 0}
			},
			wantErr: true,
		},
		{
			name: "test mode scaling without virtual start",
			mutate: func(s *Scenario) {
				s.TestMode = &TestModeConfig{TimeScale: 10}
			},
			wantErr: true,
		},
		{
			name: "test mode invalid timestamp",
			mutate: func(s *Scenario) {
				s.TestMode = &TestModeConfig{VirtualStart: "yesterday", TimeScale: 1}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(s)

			err := ValidateScenario(s)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateScenario() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
