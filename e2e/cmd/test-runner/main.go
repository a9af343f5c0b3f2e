package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/stridelabs/stride-platform/e2e/internal/executor"
	"github.com/stridelabs/stride-platform/e2e/internal/reporter"
	"github.com/stridelabs/stride-platform/e2e/internal/scenario"
)

func main() {
	scenarioPath := flag.String("scenario", "", "Path to YAML scenario file (required)")
	mqttBroker := flag.String("mqtt-broker", "mqtt://mosquitto:1883", "MQTT broker URL")
	redisHost := flag.String("redis-host", "redis:6379", "Redis host")
	postgresDSN := flag.String("postgres", "", "Postgres DSN, empty disables database checks")
	outputDir := flag.String("output-dir", "./test-output", "Output directory for test artifacts")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	flag.Parse()

	if *scenarioPath == "" {
		fmt.Fprintf(os.Stderr, "Error: --scenario is required\n")
		flag.Usage()
		os.Exit(1)
	}

	logger := log.New(os.Stdout, "", log.Ltime)
	if !*verbose {
		logger.SetOutput(os.Stderr)
	}

	logger.Printf("Loading scenario from %s", *scenarioPath)
	scen, err := scenario.LoadScenario(*scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load scenario: %v\n", err)
		os.Exit(1)
	}

	runner := executor.NewRunner(*mqttBroker, *redisHost, *postgresDSN, logger)

	ctx := context.Background()
	result, timelineEvents, err := runner.Run(ctx, scen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Test execution failed: %v\n", err)
		os.Exit(1)
	}

	// Scenario name doubles as the artifact filename
	scenarioName := strings.TrimSuffix(filepath.Base(*scenarioPath), ".yaml")

	timeline := reporter.GenerateTimeline(result, timelineEvents)
	fmt.Println(timeline)

	timelinePath := filepath.Join(*outputDir, "timelines", scenarioName+".txt")
	if err := reporter.SaveTimeline(timeline, timelinePath); err != nil {
		logger.Printf("Warning: Failed to save timeline: %v", err)
	} else {
		logger.Printf("Timeline saved to %s", timelinePath)
	}

	capturePath := filepath.Join(*outputDir, "captures", scenarioName+".json")
	if err := runner.SaveCapture(capturePath); err != nil {
		logger.Printf("Warning: Failed to save capture: %v", err)
	} else {
		logger.Printf("MQTT capture saved to %s", capturePath)
	}

	summaryPath := filepath.Join(*outputDir, "summaries", scenarioName+".json")
	if err := reporter.SaveSummary(result, summaryPath); err != nil {
		logger.Printf("Warning: Failed to save summary: %v", err)
	} else {
		logger.Printf("Summary saved to %s", summaryPath)
	}

	if result.Passed {
		os.Exit(0)
	}
	os.Exit(1)
}
