package checker

import "testing"

func TestMatchesExpectation(t *testing.T) {
	tests := []struct {
		name     string
		actual   interface{}
		expected interface{}
		want     bool
	}{
		{
			name:     "equal strings",
			actual:   "WALKING_STRAIGHT",
			expected: "WALKING_STRAIGHT",
			want:     true,
		},
		{
			name:     "different strings",
			actual:   "STATIONARY",
			expected: "WALKING_STRAIGHT",
			want:     false,
		},
		{
			name:     "equal bools",
			actual:   false,
			expected: false,
			want:     true,
		},
		{
			name:     "numeric cross-type match",
			actual:   float64(90),
			expected: 90,
			want:     true,
		},
		{
			name:     "numeric mismatch",
			actual:   0.42,
			expected: 0.9,
			want:     false,
		},
		{
			name:     "both nil",
			actual:   nil,
			expected: nil,
			want:     true,
		},
		{
			name:     "nil actual with concrete expected",
			actual:   nil,
			expected: "WALKING_STRAIGHT",
			want:     false,
		},
		{
			name:     "type mismatch string vs number",
			actual:   42.0,
			expected: map[string]interface{}{"movement": "STATIONARY"},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := MatchesExpectation(tt.actual, tt.expected)
			if got != tt.want {
				t.Errorf("MatchesExpectation(%v, %v) = %v (%s), want %v",
					tt.actual, tt.expected, got, reason, tt.want)
			}
		})
	}
}

func TestMatchesExpectationSpecialMatchers(t *testing.T) {
	tests := []struct {
		name     string
		actual   interface{}
		expected string
		want     bool
	}{
		{
			name:     "exists with value",
			actual:   "urn:uuid:1234",
			expected: "$exists",
			want:     true,
		},
		{
			name:     "exists with nil",
			actual:   nil,
			expected: "$exists",
			want:     false,
		},
		{
			name:     "regex match",
			actual:   "WALKING_STRAIGHT",
			expected: "~^WALKING~",
			want:     true,
		},
		{
			name:     "regex mismatch",
			actual:   "IN_ELEVATOR",
			expected: "~^WALKING~",
			want:     false,
		},
		{
			name:     "regex on non-string",
			actual:   0.92,
			expected: "~^0\\.9~",
			want:     true,
		},
		{
			name:     "greater than pass",
			actual:   0.92,
			expected: ">0.8",
			want:     true,
		},
		{
			name:     "greater than fail on equal",
			actual:   0.8,
			expected: ">0.8",
			want:     false,
		},
		{
			name:     "greater or equal pass on equal",
			actual:   3,
			expected: ">=3",
			want:     true,
		},
		{
			name:     "less than pass",
			actual:   0.15,
			expected: "<0.3",
			want:     true,
		},
		{
			name:     "less or equal fail",
			actual:   11.0,
			expected: "<=10",
			want:     false,
		},
		{
			name:     "comparison against non-numeric",
			actual:   "STATIONARY",
			expected: ">0.5",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := MatchesExpectation(tt.actual, tt.expected)
			if got != tt.want {
				t.Errorf("MatchesExpectation(%v, %q) = %v (%s), want %v",
					tt.actual, tt.expected, got, reason, tt.want)
			}
		})
	}
}

func TestMatchesExpectationMaps(t *testing.T) {
	actual := map[string]interface{}{
		"device":     "watch-01",
		"movement":   "WALKING_STRAIGHT",
		"confidence": 0.92,
		"event_id":   "urn:uuid:1234",
		"stride:movement": map[string]interface{}{
			"@type":             "stride:Movement",
			"name":              "WALKING_STRAIGHT",
			"stride:confidence": 0.92,
		},
	}

	tests := []struct {
		name     string
		expected map[string]interface{}
		want     bool
	}{
		{
			name: "subset with extra actual keys",
			expected: map[string]interface{}{
				"device":   "watch-01",
				"movement": "WALKING_STRAIGHT",
			},
			want: true,
		},
		{
			name: "special matchers inside map",
			expected: map[string]interface{}{
				"confidence": ">0.8",
				"event_id":   "$exists",
			},
			want: true,
		},
		{
			name: "nested map match",
			expected: map[string]interface{}{
				"stride:movement": map[string]interface{}{
					"name": "WALKING_STRAIGHT",
				},
			},
			want: true,
		},
		{
			name: "nested map mismatch",
			expected: map[string]interface{}{
				"stride:movement": map[string]interface{}{
					"name": "CLIMBING_STAIRS",
				},
			},
			want: false,
		},
		{
			name: "missing key",
			expected: map[string]interface{}{
				"battery": ">0.5",
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := MatchesExpectation(actual, tt.expected)
			if got != tt.want {
				t.Errorf("MatchesExpectation() = %v (%s), want %v", got, reason, tt.want)
			}
		})
	}
}

func TestMatchesExpectationArrays(t *testing.T) {
	tests := []struct {
		name     string
		actual   interface{}
		expected interface{}
		want     bool
	}{
		{
			name:     "equal arrays",
			actual:   []interface{}{0.0, 9.8, 0.0},
			expected: []interface{}{0.0, 9.8, 0.0},
			want:     true,
		},
		{
			name:     "length mismatch",
			actual:   []interface{}{0.0, 9.8},
			expected: []interface{}{0.0, 9.8, 0.0},
			want:     false,
		},
		{
			name:     "element mismatch",
			actual:   []interface{}{0.0, 9.8, 0.1},
			expected: []interface{}{0.0, 9.8, 0.0},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := MatchesExpectation(tt.actual, tt.expected)
			if got != tt.want {
				t.Errorf("MatchesExpectation() = %v (%s), want %v", got, reason, tt.want)
			}
		})
	}
}

func TestTopicMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		topic   string
		want    bool
	}{
		{
			name:    "exact match",
			pattern: "motion/context/movement/watch-01",
			topic:   "motion/context/movement/watch-01",
			want:    true,
		},
		{
			name:    "exact mismatch",
			pattern: "motion/context/movement/watch-01",
			topic:   "motion/context/movement/watch-02",
			want:    false,
		},
		{
			name:    "single-level wildcard",
			pattern: "motion/context/movement/+",
			topic:   "motion/context/movement/watch-01",
			want:    true,
		},
		{
			name:    "wildcard mid-topic",
			pattern: "motion/event/episode/+",
			topic:   "motion/event/episode/started",
			want:    true,
		},
		{
			name:    "wildcard level count mismatch",
			pattern: "motion/context/+",
			topic:   "motion/context/movement/watch-01",
			want:    false,
		},
		{
			name:    "wildcard with fixed part mismatch",
			pattern: "motion/raw/imu/+",
			topic:   "motion/context/movement/watch-01",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TopicMatches(tt.pattern, tt.topic); got != tt.want {
				t.Errorf("TopicMatches(%q, %q) = %v, want %v", tt.pattern, tt.topic, got, tt.want)
			}
		})
	}
}
