package scenario

import (
	"fmt"
	"time"
)

// ValidateScenario performs validation checks on a loaded scenario
func ValidateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("scenario description is required")
	}

	if err := validateTestMode(s.TestMode); err != nil {
		return fmt.Errorf("test_mode validation failed: %w", err)
	}

	if err := validateEvents(s.Events, s.Setup.Device); err != nil {
		return fmt.Errorf("events validation failed: %w", err)
	}

	if err := validateWaitPeriods(s.Wait); err != nil {
		return fmt.Errorf("wait periods validation failed: %w", err)
	}

	if err := validateExpectations(s.Expectations); err != nil {
		return fmt.Errorf("expectations validation failed: %w", err)
	}

	return nil
}

func validateEvents(events []SampleEvent, defaultDevice string) error {
	if len(events) == 0 {
		return fmt.Errorf("at least one event is required")
	}

	for i, event := range events {
		if event.Time < 0 {
			return fmt.Errorf("event %d: time cannot be negative", i)
		}

		if event.Description == "" {
			return fmt.Errorf("event %d: description is required", i)
		}

		switch event.Category() {
		case "imu":
			if err := validateIMUEvent(&event, defaultDevice); err != nil {
				return fmt.Errorf("event %d: %w", i, err)
			}
		case "message":
			if len(event.Samples) > 0 {
				return fmt.Errorf("event %d: cannot specify both 'topic' and 'samples'", i)
			}
			if len(event.Data) == 0 {
				return fmt.Errorf("event %d: raw messages require 'data'", i)
			}
		}
	}

	return nil
}

func validateIMUEvent(event *SampleEvent, defaultDevice string) error {
	if event.Device == "" && defaultDevice == "" {
		return fmt.Errorf("device is required (set it on the event or in setup.device)")
	}

	if len(event.Samples) == 0 {
		return fmt.Errorf("IMU events require at least one sample")
	}

	for j, sample := range event.Samples {
		if len(sample.Acc) != 3 {
			return fmt.Errorf("sample %d: acc must have 3 components, got %d", j, len(sample.Acc))
		}
		if len(sample.Gyro) != 3 {
			return fmt.Errorf("sample %d: gyro must have 3 components, got %d", j, len(sample.Gyro))
		}
	}

	if event.Repeat < 0 {
		return fmt.Errorf("repeat cannot be negative")
	}

	if event.RateHz < 0 {
		return fmt.Errorf("rate_hz cannot be negative")
	}

	return nil
}

func validateWaitPeriods(waits []WaitPeriod) error {
	for i, wait := range waits {
		if wait.Time < 0 {
			return fmt.Errorf("wait period %d: time cannot be negative", i)
		}

		if wait.Description == "" {
			return fmt.Errorf("wait period %d: description is required", i)
		}
	}

	return nil
}

func validateExpectations(expectations map[string][]Expectation) error {
	if len(expectations) == 0 {
		return fmt.Errorf("at least one expectation is required")
	}

	for layer, exps := range expectations {
		if layer == "" {
			return fmt.Errorf("expectation layer name cannot be empty")
		}

		for i, exp := range exps {
			if exp.Time < 0 {
				return fmt.Errorf("layer %s, expectation %d: time cannot be negative", layer, i)
			}

			hasMQTT := exp.Topic != ""
			hasRedis := exp.RedisKey != ""
			hasPostgres := exp.PostgresQuery != ""

			if !hasMQTT && !hasRedis && !hasPostgres {
				return fmt.Errorf("layer %s, expectation %d: one of topic, redis_key or postgres_query is required", layer, i)
			}

			if hasMQTT && len(exp.Payload) == 0 {
				return fmt.Errorf("layer %s, expectation %d: MQTT expectations require payload", layer, i)
			}

			if hasRedis {
				if exp.RedisField == "" {
					return fmt.Errorf("layer %s, expectation %d: redis_field is required when redis_key is specified", layer, i)
				}
				if exp.Expected == "" {
					return fmt.Errorf("layer %s, expectation %d: expected is required when redis_key is specified", layer, i)
				}
			}

			if hasPostgres && exp.PostgresExpected == nil {
				return fmt.Errorf("layer %s, expectation %d: postgres_expected is required when postgres_query is specified", layer, i)
			}
		}
	}

	return nil
}

func validateTestMode(tm *TestModeConfig) error {
	if tm == nil {
		return nil // test_mode is optional
	}

	if tm.VirtualStart != "" {
		// Validate ISO 8601 format
		if _, err := time.Parse(time.RFC3339, tm.VirtualStart); err != nil {
			return fmt.Errorf("virtual_start must be valid ISO 8601 timestamp: %w", err)
		}
	}

	if tm.TimeScale < 1 {
		return fmt.Errorf("time_scale must be >= 1 (got %d)", tm.TimeScale)
	}

	if tm.TimeScale > 1 && tm.VirtualStart == "" {
		return fmt.Errorf("virtual_start is required when time_scale is set")
	}

	return nil
}
