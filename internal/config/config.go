// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/brokerx/marketfeed/pkg/utils/zaplogger"
)

// Config represents the application configuration
type Config struct {
	APIName                string  `env:"MF_API_APP_NAME" default:"Market Feed Service"`
	APIVersion             string  `env:"MF_API_APP_VERSION" default:"1.0.0"`
	ServerPort             string  `env:"MF_API_SERVER_PORT" default:"3009"`
	ServerLogLevel         string  `env:"MF_API_SERVER_LOG_LEVEL" default:"info"`
	SeedFile               string  `env:"MF_API_MARKET_SEED_FILE" default:"market.json"`
	SimulationVolatility   float64 `env:"MF_API_MARKET_SIMULATION_VOLATILITY" default:"0.02"`
	TickPeriodMs           int     `env:"MF_API_MARKET_TICK_PERIOD_MS" default:"5000"`
	SubscriptionTimeoutMin int     `env:"MF_API_MARKET_SUBSCRIPTION_TIMEOUT_MIN" default:"5"`
	SweepPeriodSec         int     `env:"MF_API_MARKET_SWEEP_PERIOD_SEC" default:"60"`
	JWTSecret              string  `env:"MF_API_JWT_SECRET"`
	RedisAddr              string  `env:"MF_API_REDIS_ADDR" default:""`
	RedisPassword          string  `env:"MF_API_REDIS_PASSWORD" default:""`
	RedisTicksChannel      string  `env:"MF_API_REDIS_TICKS_CHANNEL" default:"CH:API:MARKET:TICKS"`
	QuotaMaxSymbols        int     `env:"MF_API_QUOTA_MAX_SYMBOLS" default:"10"`
	QuotaMaxConnections    int     `env:"MF_API_QUOTA_MAX_CONNECTIONS" default:"5"`
	RateLimitPerMinute     int     `env:"MF_API_RATELIMIT_PER_MINUTE" default:"60"`
	HealthStaleSec         int     `env:"MF_API_HEALTH_STALE_SEC" default:"30"`
	HealthCriticalSec      int     `env:"MF_API_HEALTH_CRITICAL_SEC" default:"60"`
	HealthCheckSec         int     `env:"MF_API_HEALTH_CHECK_SEC" default:"10"`
}

var (
	SingleLine string = "--------------------------------------------------"
)

var (
	instance *Config
	once     sync.Once
	err      error
)

// Get returns the application configuration
func Get() (*Config, error) {
	zaplogger.Info(SingleLine)
	zaplogger.Info("Loading Configuration")

	once.Do(func() {
		instance, err = loadConfig()
	})
	return instance, err
}

// loadConfig loads configuration from environment variables
func loadConfig() (*Config, error) {
	cfg := &Config{}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() error {
	t := reflect.TypeOf(*c)
	v := reflect.ValueOf(c).Elem()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		envTag := field.Tag.Get("env")
		if envTag == "" {
			return fmt.Errorf("missing env tag for field %s", field.Name)
		}

		value := os.Getenv(envTag)
		if value == "" {
			defaultValue, hasDefault := field.Tag.Lookup("default")
			if !hasDefault {
				return fmt.Errorf("env variable %s is required but not set", envTag)
			}
			value = defaultValue
		}

		switch field.Type.Kind() {
		case reflect.String:
			v.Field(i).SetString(value)
		case reflect.Int:
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("env variable %s must be an integer: %v", envTag, err)
			}
			v.Field(i).SetInt(int64(n))
		case reflect.Float64:
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("env variable %s must be a number: %v", envTag, err)
			}
			v.Field(i).SetFloat(f)
		default:
			return fmt.Errorf("unsupported config field type for %s", field.Name)
		}
	}

	return nil
}

// String returns the configuration as a string
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("\n--------------------------------------\n")
	sb.WriteString("Configuration:\n")
	sb.WriteString("--------------------------------------\n")

	t := reflect.TypeOf(*c)
	v := reflect.ValueOf(*c)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := fmt.Sprintf("%v", v.Field(i).Interface())

		// Mask sensitive fields
		value = maskSensitiveField(field.Name, value)
		sb.WriteString(fmt.Sprintf("  %s:  %s\n", field.Name, value))
	}

	sb.WriteString("--------------------------------------\n")

	return sb.String()
}

func maskSensitiveField(fieldName, value string) string {
	sensitiveFields := []string{"token", "dsn", "secret", "password", "url"}

	fieldNameLower := strings.ToLower(fieldName)
	for _, sensitive := range sensitiveFields {
		if strings.Contains(fieldNameLower, sensitive) {
			return maskValue(value)
		}
	}

	return value
}

func maskValue(value string) string {
	if len(value) <= 3 {
		return strings.Repeat("*", 7)
	}
	return value[:3] + strings.Repeat("*", 7)
}
