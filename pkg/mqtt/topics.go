package mqtt

import (
	"fmt"
	"strings"
)

// Topic constants for the Stride platform
const (
	// Raw IMU sample topics (input)
	TopicRawIMU = "motion/raw/imu/+"

	// Movement context topics (output of the motion agent)
	TopicMovementContext = "motion/context/movement/+"

	// Episode lifecycle topics (output of the episode agent)
	TopicEpisodeEvents = "motion/event/episode/+"

	// Virtual time configuration for replay and e2e runs
	TopicTimeConfig = "motion/test/time_config"
)

// RawIMUTopic constructs the raw IMU sample topic for a device
// Pattern: motion/raw/imu/{device}
func RawIMUTopic(device string) string {
	return fmt.Sprintf("motion/raw/imu/%s", device)
}

// MovementContextTopic constructs the movement context topic for a device
// Pattern: motion/context/movement/{device}
// This is the output topic after the motion agent classifies a window
func MovementContextTopic(device string) string {
	return fmt.Sprintf("motion/context/movement/%s", device)
}

// EpisodeEventTopic constructs the episode lifecycle topic for an event type
// Pattern: motion/event/episode/{event_type}
func EpisodeEventTopic(eventType string) string {
	return fmt.Sprintf("motion/event/episode/%s", eventType)
}

// DeviceFromTopic extracts the trailing device segment from a topic
// motion/raw/imu/{device} -> {device}
func DeviceFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 {
		return "", fmt.Errorf("invalid topic format: %s (expected at least 4 parts)", topic)
	}
	return parts[3], nil
}
