package checker

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// MatchesExpectation checks if actual value matches expected value.
// Returns (true, "") on match, (false, "reason") on mismatch.
//
// String expectations support special matchers:
//   - "$exists"    matches any non-nil value
//   - "~pattern~"  matches against a regular expression
//   - ">n" "<n" ">=n" "<=n" compare numerically
func MatchesExpectation(actual, expected interface{}) (bool, string) {
	if expected == nil && actual == nil {
		return true, ""
	}
	if expected == nil {
		return false, fmt.Sprintf("expected nil, got %v", actual)
	}

	// Special matchers are usable against any actual value, including nil
	if expectedStr, ok := expected.(string); ok {
		if matched, handled, reason := matchSpecial(actual, expectedStr); handled {
			return matched, reason
		}
	}

	if actual == nil {
		return false, fmt.Sprintf("expected %v, got nil", expected)
	}

	actualType := reflect.TypeOf(actual)
	expectedType := reflect.TypeOf(expected)

	if !typesCompatible(actualType, expectedType) {
		return false, fmt.Sprintf("type mismatch: expected %s, got %s", expectedType, actualType)
	}

	switch expectedType.Kind() {
	case reflect.String:
		return matchString(actual, expected.(string))

	case reflect.Bool:
		return matchBool(actual, expected.(bool))

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Float32, reflect.Float64:
		return matchNumber(actual, expected)

	case reflect.Map:
		return matchMap(actual, expected)

	case reflect.Slice, reflect.Array:
		return matchArray(actual, expected)

	default:
		if reflect.DeepEqual(actual, expected) {
			return true, ""
		}
		return false, fmt.Sprintf("expected %v, got %v", expected, actual)
	}
}

// matchSpecial handles matcher strings. The second return value reports
// whether the expected string was a matcher at all.
func matchSpecial(actual interface{}, expected string) (bool, bool, string) {
	if expected == "$exists" {
		if actual != nil {
			return true, true, ""
		}
		return false, true, "expected value to exist, got nil"
	}

	if strings.HasPrefix(expected, "~") && strings.HasSuffix(expected, "~") && len(expected) > 1 {
		matched, reason := matchRegex(actual, strings.Trim(expected, "~"))
		return matched, true, reason
	}

	if strings.HasPrefix(expected, ">") || strings.HasPrefix(expected, "<") {
		matched, reason := matchComparison(actual, expected)
		return matched, true, reason
	}

	return false, false, ""
}

// matchString performs string matching
func matchString(actual interface{}, expected string) (bool, string) {
	actualStr, ok := actual.(string)
	if !ok {
		return false, fmt.Sprintf("expected string, got %T", actual)
	}

	if actualStr == expected {
		return true, ""
	}

	return false, fmt.Sprintf("expected %q, got %q", expected, actualStr)
}

// matchBool performs boolean matching
func matchBool(actual interface{}, expected bool) (bool, string) {
	actualBool, ok := actual.(bool)
	if !ok {
		return false, fmt.Sprintf("expected bool, got %T", actual)
	}

	if actualBool == expected {
		return true, ""
	}

	return false, fmt.Sprintf("expected %v, got %v", expected, actualBool)
}

// matchNumber performs numeric matching with type conversion
func matchNumber(actual, expected interface{}) (bool, string) {
	actualFloat, err := toFloat64(actual)
	if err != nil {
		return false, fmt.Sprintf("actual value is not numeric: %v", actual)
	}

	expectedFloat, err := toFloat64(expected)
	if err != nil {
		return false, fmt.Sprintf("expected value is not numeric: %v", expected)
	}

	if actualFloat == expectedFloat {
		return true, ""
	}

	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

// matchRegex checks if actual matches a regex pattern
func matchRegex(actual interface{}, pattern string) (bool, string) {
	actualStr := fmt.Sprintf("%v", actual)

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern %q: %v", pattern, err)
	}

	if re.MatchString(actualStr) {
		return true, ""
	}

	return false, fmt.Sprintf("value %q does not match pattern ~%s~", actualStr, pattern)
}

// matchComparison checks if actual satisfies a comparison (>, <, >=, <=)
func matchComparison(actual interface{}, comparison string) (bool, string) {
	actualFloat, err := toFloat64(actual)
	if err != nil {
		return false, fmt.Sprintf("cannot compare non-numeric value: %v", actual)
	}

	var op, valueStr string
	switch {
	case strings.HasPrefix(comparison, ">="):
		op, valueStr = ">=", strings.TrimPrefix(comparison, ">=")
	case strings.HasPrefix(comparison, "<="):
		op, valueStr = "<=", strings.TrimPrefix(comparison, "<=")
	case strings.HasPrefix(comparison, ">"):
		op, valueStr = ">", strings.TrimPrefix(comparison, ">")
	case strings.HasPrefix(comparison, "<"):
		op, valueStr = "<", strings.TrimPrefix(comparison, "<")
	default:
		return false, fmt.Sprintf("invalid comparison: %s", comparison)
	}

	expectedFloat, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
	if err != nil {
		return false, fmt.Sprintf("invalid comparison value: %s", valueStr)
	}

	var result bool
	switch op {
	case ">":
		result = actualFloat > expectedFloat
	case "<":
		result = actualFloat < expectedFloat
	case ">=":
		result = actualFloat >= expectedFloat
	case "<=":
		result = actualFloat <= expectedFloat
	}

	if result {
		return true, ""
	}

	return false, fmt.Sprintf("expected value %s %v, got %v", op, expectedFloat, actualFloat)
}

// matchMap checks that every expected key matches; extra actual keys are fine
func matchMap(actual, expected interface{}) (bool, string) {
	actualMap, ok := actual.(map[string]interface{})
	if !ok {
		return false, fmt.Sprintf("expected map, got %T", actual)
	}

	expectedMap, ok := expected.(map[string]interface{})
	if !ok {
		return false, fmt.Sprintf("expected value is not a map: %T", expected)
	}

	for key, expectedValue := range expectedMap {
		actualValue, exists := actualMap[key]
		if !exists {
			return false, fmt.Sprintf("missing key %q", key)
		}

		matches, reason := MatchesExpectation(actualValue, expectedValue)
		if !matches {
			return false, fmt.Sprintf("key %q: %s", key, reason)
		}
	}

	return true, ""
}

// matchArray performs element-wise matching on arrays
func matchArray(actual, expected interface{}) (bool, string) {
	actualVal := reflect.ValueOf(actual)
	expectedVal := reflect.ValueOf(expected)

	if actualVal.Len() != expectedVal.Len() {
		return false, fmt.Sprintf("expected array length %d, got %d", expectedVal.Len(), actualVal.Len())
	}

	for i := 0; i < expectedVal.Len(); i++ {
		matches, reason := MatchesExpectation(actualVal.Index(i).Interface(), expectedVal.Index(i).Interface())
		if !matches {
			return false, fmt.Sprintf("element %d: %s", i, reason)
		}
	}

	return true, ""
}

// toFloat64 converts various numeric types to float64
func toFloat64(val interface{}) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("not a numeric type: %T", val)
	}
}

// typesCompatible checks if two types are comparable
func typesCompatible(t1, t2 reflect.Type) bool {
	if t1 == t2 {
		return true
	}

	if isNumeric(t1) && isNumeric(t2) {
		return true
	}

	if t1.Kind() == reflect.Map && t2.Kind() == reflect.Map {
		return true
	}

	sliceLike := func(t reflect.Type) bool {
		return t.Kind() == reflect.Slice || t.Kind() == reflect.Array
	}
	return sliceLike(t1) && sliceLike(t2)
}

// isNumeric checks if a type is numeric
func isNumeric(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
