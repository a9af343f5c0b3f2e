package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stridelabs/stride-platform/e2e/internal/checker"
	"github.com/stridelabs/stride-platform/e2e/internal/observer"
	"github.com/stridelabs/stride-platform/e2e/internal/reporter"
	"github.com/stridelabs/stride-platform/e2e/internal/scenario"
)

// timeConfigTopic is where agents listen for virtual time configuration
const timeConfigTopic = "motion/test/time_config"

// Runner orchestrates test scenario execution
type Runner struct {
	mqttBroker      string
	redisHost       string
	postgresDSN     string
	logger          *log.Logger
	observer        *observer.Observer
	player          *MQTTPlayer
	redisClient     *redis.Client
	postgresChecker *checker.PostgresChecker
}

// NewRunner creates a new test runner. An empty postgresDSN disables
// database expectations.
func NewRunner(mqttBroker, redisHost, postgresDSN string, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		mqttBroker:  mqttBroker,
		redisHost:   redisHost,
		postgresDSN: postgresDSN,
		logger:      logger,
	}
}

// Run executes a test scenario
func (r *Runner) Run(ctx context.Context, s *scenario.Scenario) (*scenario.TestResult, []reporter.TimelineEvent, error) {
	r.logger.Printf("Starting scenario: %s", s.Name)
	r.logger.Printf("Description: %s", s.Description)

	if s.TestMode != nil {
		r.logger.Printf("Test mode enabled: virtual_start=%s, time_scale=%dx",
			s.TestMode.VirtualStart, s.TestMode.TimeScale)
	}

	// Initialize connections
	if err := r.initialize(); err != nil {
		return nil, nil, fmt.Errorf("initialization failed: %w", err)
	}
	defer r.cleanup()

	// Publish virtual time configuration BEFORE any samples go out
	if s.TestMode != nil {
		if err := r.publishTestMode(s.TestMode); err != nil {
			return nil, nil, fmt.Errorf("failed to publish test mode: %w", err)
		}
	}

	// Wait for agents to start up
	r.logger.Printf("Waiting 5 seconds for agents to start up...")
	time.Sleep(5 * time.Second)

	// Start observer
	if err := r.observer.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start observer: %w", err)
	}

	startTime := time.Now()
	var timelineEvents []reporter.TimelineEvent

	timeScale := 1
	if s.TestMode != nil {
		timeScale = s.TestMode.TimeScale
	}

	// Execute events
	for _, event := range s.Events {
		WaitUntil(startTime, event.Time, timeScale)
		elapsed := GetElapsed(startTime)

		var eventDesc string
		if event.Category() == "imu" {
			device := event.Device
			if device == "" {
				device = s.Setup.Device
			}
			eventDesc = fmt.Sprintf("%s: %d samples (%s)", device, event.SampleCount(), event.Description)
		} else {
			eventDesc = fmt.Sprintf("%s (%s)", event.Topic, event.Description)
		}

		r.logger.Printf("[%.2fs] Publishing event: %s", elapsed, eventDesc)

		var err error
		switch event.Category() {
		case "imu":
			err = r.player.PublishSampleBurst(event, s.Setup.Device)
		case "message":
			err = r.player.PublishMessage(event.Topic, event.Data)
		default:
			err = fmt.Errorf("unknown event category")
		}

		if err != nil {
			return nil, nil, fmt.Errorf("failed to publish event: %w", err)
		}

		timelineEvents = append(timelineEvents, reporter.TimelineEvent{
			Elapsed:     elapsed,
			Layer:       "imu",
			Description: eventDesc,
			IsCheck:     false,
		})
	}

	// Execute wait periods
	for _, wait := range s.Wait {
		WaitUntil(startTime, wait.Time, timeScale)
		elapsed := GetElapsed(startTime)

		r.logger.Printf("[%.2fs] Wait: %s", elapsed, wait.Description)

		timelineEvents = append(timelineEvents, reporter.TimelineEvent{
			Elapsed:     elapsed,
			Layer:       "wait",
			Description: fmt.Sprintf("%s (%.1fs)", wait.Description, float64(wait.Time)),
			IsCheck:     false,
		})
	}

	// Check expectations, ordered by time across layers
	var expectationResults []scenario.ExpectationResult

	type layerExp struct {
		layer string
		exp   scenario.Expectation
	}
	var allExpectations []layerExp
	for layer, exps := range s.Expectations {
		for _, exp := range exps {
			allExpectations = append(allExpectations, layerExp{layer, exp})
		}
	}
	sort.Slice(allExpectations, func(i, j int) bool {
		return allExpectations[i].exp.Time < allExpectations[j].exp.Time
	})

	for _, le := range allExpectations {
		WaitUntil(startTime, le.exp.Time, timeScale)
		elapsed := GetElapsed(startTime)

		var checkDesc string
		switch {
		case le.exp.Topic != "":
			checkDesc = le.exp.Topic
		case le.exp.RedisKey != "":
			checkDesc = le.exp.RedisKey
		case le.exp.PostgresQuery != "":
			checkDesc = "postgres query"
		}

		r.logger.Printf("[%.2fs] Checking expectation: %s - %s",
			elapsed, le.layer, checkDesc)

		var passed bool
		var reason string
		var actualPayload interface{}

		// Route to the appropriate checker
		if le.exp.PostgresQuery != "" {
			passed, reason, actualPayload = r.checkPostgresExpectation(le.exp)
		} else if le.exp.RedisKey != "" {
			passed, reason, actualPayload = checker.CheckRedisExpectation(ctx, r.redisClient, le.exp)
		} else if len(le.exp.Payload) > 0 {
			messages := r.observer.GetAllMessages()
			passed, reason, actualPayload = checker.CheckExpectation(le.exp, messages)
		}

		result := scenario.ExpectationResult{
			Layer:         le.layer,
			Expectation:   le.exp,
			Passed:        passed,
			Reason:        reason,
			ActualTopic:   le.exp.Topic,
			ActualPayload: actualPayload,
		}

		expectationResults = append(expectationResults, result)

		if passed {
			r.logger.Printf("[%.2fs] ✓ PASS", elapsed)
		} else {
			r.logger.Printf("[%.2fs] ✗ FAIL: %s", elapsed, reason)
		}

		timelineEvents = append(timelineEvents, reporter.TimelineEvent{
			Elapsed:     elapsed,
			Layer:       le.layer,
			Description: checkDesc,
			Success:     passed,
			IsCheck:     true,
		})
	}

	endTime := time.Now()

	passedCount := 0
	failedCount := 0
	for _, result := range expectationResults {
		if result.Passed {
			passedCount++
		} else {
			failedCount++
		}
	}

	testResult := &scenario.TestResult{
		Scenario:     s,
		StartTime:    startTime,
		EndTime:      endTime,
		Passed:       failedCount == 0,
		PassedCount:  passedCount,
		FailedCount:  failedCount,
		Expectations: expectationResults,
	}

	return testResult, timelineEvents, nil
}

// checkPostgresExpectation checks a Postgres query expectation
func (r *Runner) checkPostgresExpectation(exp scenario.Expectation) (bool, string, interface{}) {
	if r.postgresChecker == nil {
		return false, "postgres checker not configured (set --postgres)", nil
	}

	err := r.postgresChecker.CheckQuery(exp.PostgresQuery, exp.PostgresExpected)
	if err != nil {
		return false, fmt.Sprintf("postgres check failed: %v", err), nil
	}

	return true, "", exp.PostgresExpected
}

// initialize sets up connections
func (r *Runner) initialize() error {
	r.observer = observer.NewObserver(r.mqttBroker, r.logger)

	player, err := NewMQTTPlayer(r.mqttBroker, r.logger)
	if err != nil {
		return fmt.Errorf("failed to create MQTT player: %w", err)
	}
	r.player = player

	r.redisClient = redis.NewClient(&redis.Options{
		Addr: r.redisHost,
	})

	ctx := context.Background()
	if err := r.redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r.logger.Printf("Connected to Redis at %s", r.redisHost)

	if r.postgresDSN != "" {
		postgresChecker, err := checker.NewPostgresChecker(r.postgresDSN, r.logger)
		if err != nil {
			return fmt.Errorf("failed to create Postgres checker: %w", err)
		}
		r.postgresChecker = postgresChecker
		r.logger.Printf("Connected to Postgres")
	}

	return nil
}

// cleanup closes all connections
func (r *Runner) cleanup() {
	if r.observer != nil {
		r.observer.Stop()
	}
	if r.player != nil {
		r.player.Close()
	}
	if r.redisClient != nil {
		r.redisClient.Close()
	}
	if r.postgresChecker != nil {
		r.postgresChecker.Close()
	}
}

// SaveCapture saves the MQTT capture to a file
func (r *Runner) SaveCapture(filename string) error {
	if r.observer == nil {
		return fmt.Errorf("observer not initialized")
	}
	return r.observer.SaveCapture(filename)
}

// publishTestMode publishes virtual time configuration for agents
func (r *Runner) publishTestMode(tm *scenario.TestModeConfig) error {
	payload := map[string]interface{}{
		"virtual_start": tm.VirtualStart,
		"time_scale":    tm.TimeScale,
		"test_mode":     true,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal test mode config: %w", err)
	}

	if err := r.player.Publish(timeConfigTopic, 1, true, payloadBytes); err != nil {
		return fmt.Errorf("failed to publish test mode config: %w", err)
	}

	r.logger.Printf("Published test mode configuration to %s", timeConfigTopic)

	// Give agents time to receive and process configuration
	time.Sleep(1 * time.Second)

	return nil
}
