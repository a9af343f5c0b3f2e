package checker

import (
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
)

// PostgresChecker validates database state
type PostgresChecker struct {
	db     *sql.DB
	logger *log.Logger
}

// NewPostgresChecker creates a new Postgres checker
func NewPostgresChecker(connStr string, logger *log.Logger) (*PostgresChecker, error) {
	if logger == nil {
		logger = log.Default()
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresChecker{db: db, logger: logger}, nil
}

// CheckQuery executes a single-value query and compares the result.
// Expected values support exact matches, "~n" approximations (within
// ±20%) and ">n" / ">=n" / "<n" / "<=n" comparisons.
func (p *PostgresChecker) CheckQuery(query string, expected interface{}) error {
	p.logger.Printf("Executing query: %s", query)

	var result interface{}
	err := p.db.QueryRow(query).Scan(&result)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	p.logger.Printf("Query result: %v (expected: %v)", result, expected)

	return p.compareResults(result, expected)
}

func (p *PostgresChecker) compareResults(actual, expected interface{}) error {
	if expectedStr, ok := expected.(string); ok {
		if strings.HasPrefix(expectedStr, "~") {
			return p.compareApproximate(actual, expectedStr)
		}
		if strings.HasPrefix(expectedStr, ">") || strings.HasPrefix(expectedStr, "<") {
			actualFloat, err := sqlValueToFloat(actual)
			if err != nil {
				return err
			}
			if matched, reason := matchComparison(actualFloat, expectedStr); !matched {
				return fmt.Errorf("%s", reason)
			}
			return nil
		}
	}

	// Exact match on the string rendering
	actualStr := fmt.Sprintf("%v", normalizeSQLValue(actual))
	expectedStr := fmt.Sprintf("%v", expected)

	if actualStr == expectedStr {
		return nil
	}

	return fmt.Errorf("mismatch: expected %v, got %v", expected, actual)
}

func (p *PostgresChecker) compareApproximate(actual interface{}, expectedStr string) error {
	// Parse "~10" as target 10 with ±20% tolerance
	targetStr := strings.TrimPrefix(expectedStr, "~")
	target, err := strconv.ParseFloat(targetStr, 64)
	if err != nil {
		return fmt.Errorf("invalid approximate value: %s", expectedStr)
	}

	actualFloat, err := sqlValueToFloat(actual)
	if err != nil {
		return err
	}

	tolerance := target * 0.2
	if actualFloat >= (target-tolerance) && actualFloat <= (target+tolerance) {
		return nil
	}

	return fmt.Errorf("value %.2f not within ±20%% of %.0f", actualFloat, target)
}

// normalizeSQLValue unwraps driver types into comparable Go values
func normalizeSQLValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// sqlValueToFloat converts a scanned query result to float64. Text
// columns come back from the driver as []byte and are parsed.
func sqlValueToFloat(v interface{}) (float64, error) {
	norm := normalizeSQLValue(v)
	if s, ok := norm.(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert value to number: %v", v)
		}
		return f, nil
	}

	f, err := toFloat64(norm)
	if err != nil {
		return 0, fmt.Errorf("unsupported type for numeric comparison: %T", v)
	}
	return f, nil
}

// Close closes the database connection
func (p *PostgresChecker) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
