package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// Config holds the configuration for a Stride agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Redis configuration
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Postgres configuration
	PostgresHost               string
	PostgresPort               int
	PostgresUser               string
	PostgresPassword           string
	PostgresDB                 string
	PostgresSSLMode            string
	PostgresMaxConnections     int
	PostgresMaxIdleConnections int
	PostgresConnMaxLifetime    time.Duration

	// Service configuration
	ServiceName string
	HealthPort  int
	LogLevel    string

	// Motion agent configuration
	SampleTopics       []string
	SamplingRateHz     int
	BufferCapacity     int
	MinSamples         int
	ClassifyIntervalMs int
	EventHistoryLimit  int
	CSVLogDir          string

	// Episode agent configuration (coordinates for daylight context)
	Latitude  float64
	Longitude float64

	// History agent configuration
	APIPort int
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:    "localhost",
		MQTTPort:      1883,
		MQTTUser:      "",
		MQTTPassword:  "",
		MQTTClientID:  "",
		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,
		PostgresHost:               "localhost",
		PostgresPort:               5432,
		PostgresUser:               "stride",
		PostgresPassword:           "stride",
		PostgresDB:                 "stride",
		PostgresSSLMode:            "disable",
		PostgresMaxConnections:     10,
		PostgresMaxIdleConnections: 5,
		PostgresConnMaxLifetime:    30 * time.Minute,
		ServiceName: "stride-agent",
		HealthPort:  8080,
		LogLevel:    "info",
		// Motion agent defaults: 50 samples ≈ 2.5 s of history at 20 Hz,
		// classification gated to once per second
		SampleTopics:       []string{"motion/raw/imu/+"},
		SamplingRateHz:     20,
		BufferCapacity:     50,
		MinSamples:         20,
		ClassifyIntervalMs: 1000,
		EventHistoryLimit:  1000,
		CSVLogDir:          "./movement-logs",
		// Episode agent defaults (Helsinki coordinates)
		Latitude:  60.1695,
		Longitude: 24.9354,
		// History agent defaults
		APIPort: 3002,
	}
}

// LoadFromEnv loads configuration from environment variables with STRIDE_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	if v := os.Getenv("STRIDE_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("STRIDE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("STRIDE_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("STRIDE_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("STRIDE_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	// Redis configuration
	if v := os.Getenv("STRIDE_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("STRIDE_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("STRIDE_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("STRIDE_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}

	// Postgres configuration
	if v := os.Getenv("STRIDE_POSTGRES_HOST"); v != "" {
		c.PostgresHost = v
	}
	if v := os.Getenv("STRIDE_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.PostgresPort = port
		}
	}
	if v := os.Getenv("STRIDE_POSTGRES_USER"); v != "" {
		c.PostgresUser = v
	}
	if v := os.Getenv("STRIDE_POSTGRES_PASSWORD"); v != "" {
		c.PostgresPassword = v
	}
	if v := os.Getenv("STRIDE_POSTGRES_DB"); v != "" {
		c.PostgresDB = v
	}
	if v := os.Getenv("STRIDE_POSTGRES_SSL_MODE"); v != "" {
		c.PostgresSSLMode = v
	}

	// Service configuration
	if v := os.Getenv("STRIDE_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("STRIDE_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HealthPort = port
		}
	}
	if v := os.Getenv("STRIDE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	// Motion agent configuration
	if v := os.Getenv("STRIDE_SAMPLING_RATE_HZ"); v != "" {
		if rate, err := strconv.Atoi(v); err == nil {
			c.SamplingRateHz = rate
		}
	}
	if v := os.Getenv("STRIDE_BUFFER_CAPACITY"); v != "" {
		if capacity, err := strconv.Atoi(v); err == nil {
			c.BufferCapacity = capacity
		}
	}
	if v := os.Getenv("STRIDE_MIN_SAMPLES"); v != "" {
		if min, err := strconv.Atoi(v); err == nil {
			c.MinSamples = min
		}
	}
	if v := os.Getenv("STRIDE_CLASSIFY_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.ClassifyIntervalMs = ms
		}
	}
	if v := os.Getenv("STRIDE_EVENT_HISTORY_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			c.EventHistoryLimit = limit
		}
	}
	if v := os.Getenv("STRIDE_CSV_LOG_DIR"); v != "" {
		c.CSVLogDir = v
	}

	// Episode agent configuration
	if v := os.Getenv("STRIDE_LATITUDE"); v != "" {
		if lat, err := strconv.ParseFloat(v, 64); err == nil {
			c.Latitude = lat
		}
	}
	if v := os.Getenv("STRIDE_LONGITUDE"); v != "" {
		if lon, err := strconv.ParseFloat(v, 64); err == nil {
			c.Longitude = lon
		}
	}

	// History agent configuration
	if v := os.Getenv("STRIDE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.APIPort = port
		}
	}
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	// MQTT flags
	pflag.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	pflag.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	pflag.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	pflag.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	pflag.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	pflag.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	pflag.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	pflag.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	pflag.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Postgres flags
	pflag.StringVar(&c.PostgresHost, "postgres-host", c.PostgresHost, "Postgres hostname")
	pflag.IntVar(&c.PostgresPort, "postgres-port", c.PostgresPort, "Postgres port")
	pflag.StringVar(&c.PostgresUser, "postgres-user", c.PostgresUser, "Postgres username")
	pflag.StringVar(&c.PostgresPassword, "postgres-password", c.PostgresPassword, "Postgres password")
	pflag.StringVar(&c.PostgresDB, "postgres-db", c.PostgresDB, "Postgres database name")
	pflag.StringVar(&c.PostgresSSLMode, "postgres-ssl-mode", c.PostgresSSLMode, "Postgres SSL mode")

	// Service flags
	pflag.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	pflag.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	pflag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	// Motion agent flags
	pflag.IntVar(&c.SamplingRateHz, "sampling-rate-hz", c.SamplingRateHz, "Expected IMU sampling rate in Hz")
	pflag.IntVar(&c.BufferCapacity, "buffer-capacity", c.BufferCapacity, "Sample window capacity")
	pflag.IntVar(&c.MinSamples, "min-samples", c.MinSamples, "Minimum samples required for classification")
	pflag.IntVar(&c.ClassifyIntervalMs, "classify-interval-ms", c.ClassifyIntervalMs, "Minimum time between classifications (ms)")
	pflag.IntVar(&c.EventHistoryLimit, "event-history-limit", c.EventHistoryLimit, "Maximum movement events retained per device")
	pflag.StringVar(&c.CSVLogDir, "csv-log-dir", c.CSVLogDir, "Directory for CSV movement logs (empty disables)")

	// Episode agent flags
	pflag.Float64Var(&c.Latitude, "latitude", c.Latitude, "Geographic latitude for daylight calculation")
	pflag.Float64Var(&c.Longitude, "longitude", c.Longitude, "Geographic longitude for daylight calculation")

	// History agent flags
	pflag.IntVar(&c.APIPort, "api-port", c.APIPort, "HTTP API port")

	pflag.Parse()
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("Redis port must be between 1 and 65535")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if c.SamplingRateHz <= 0 {
		return fmt.Errorf("Sampling rate must be positive")
	}
	if c.BufferCapacity <= 0 {
		return fmt.Errorf("Buffer capacity must be positive")
	}
	if c.MinSamples <= 0 || c.MinSamples > c.BufferCapacity {
		return fmt.Errorf("Min samples must be between 1 and the buffer capacity")
	}
	if c.ClassifyIntervalMs <= 0 {
		return fmt.Errorf("Classify interval must be positive")
	}
	if c.EventHistoryLimit <= 0 {
		return fmt.Errorf("Event history limit must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresConnectionString returns the Postgres connection string
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}

// ClassifyInterval returns the classification cadence as a duration
func (c *Config) ClassifyInterval() time.Duration {
	return time.Duration(c.ClassifyIntervalMs) * time.Millisecond
}
