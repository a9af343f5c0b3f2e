package checker

import (
	"fmt"
	"strings"

	"github.com/stridelabs/stride-platform/e2e/internal/observer"
	"github.com/stridelabs/stride-platform/e2e/internal/scenario"
)

// CheckExpectation validates an expectation against captured MQTT messages
func CheckExpectation(exp scenario.Expectation, messages []observer.CapturedMessage) (bool, string, interface{}) {
	var matchingMessages []observer.CapturedMessage
	for _, msg := range messages {
		if TopicMatches(exp.Topic, msg.Topic) {
			matchingMessages = append(matchingMessages, msg)
		}
	}

	if len(matchingMessages) == 0 {
		return false, fmt.Sprintf("no messages found for topic %q", exp.Topic), nil
	}

	// The most recent message wins; earlier classifications on the same
	// topic are expected while the buffer is still filling
	latestMsg := matchingMessages[len(matchingMessages)-1]

	if len(exp.Payload) > 0 {
		payloadMap, ok := latestMsg.Payload.(map[string]interface{})
		if !ok {
			return false, fmt.Sprintf("payload is not a JSON object, got %T", latestMsg.Payload), latestMsg.Payload
		}

		matches, reason := MatchesExpectation(payloadMap, exp.Payload)
		if !matches {
			return false, reason, latestMsg.Payload
		}
	}

	return true, "", latestMsg.Payload
}

// TopicMatches reports whether a topic matches a pattern that may
// contain MQTT '+' single-level wildcards
func TopicMatches(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	if !strings.Contains(pattern, "+") {
		return false
	}

	patternParts := strings.Split(pattern, "/")
	topicParts := strings.Split(topic, "/")
	if len(patternParts) != len(topicParts) {
		return false
	}

	for i, part := range patternParts {
		if part != "+" && part != topicParts[i] {
			return false
		}
	}

	return true
}
