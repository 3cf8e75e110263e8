// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SMTP holds the mail transport settings.
type SMTP struct {
	Host     string
	Port     int
	User     string
	Password string
}

// Config is passed explicitly into each component at construction; there
// is no process-wide settings singleton.
type Config struct {
	// Batch dispatch
	MaxBatchSize                 int
	MemoryLimit                  uint64 // bytes, 0 = unlimited
	TimeLimit                    time.Duration
	UnlimitedMemoryLimit         uint64
	UnlimitedTimeLimit           time.Duration
	MemoryThreshold              float64
	TimeThreshold                float64
	MaxSendAttempts              int
	MaxRetryAttempts             int
	BatchJobDelay                time.Duration
	SendoutJobTTR                time.Duration
	MaxPendingContacts           int
	PurgePendingContactsDuration time.Duration
	SendRatePerSecond            float64 // 0 = unlimited

	// Sendout emails are recorded rather than actually sent
	TestMode bool

	// Infrastructure
	HTTPAddr          string
	DatabaseURL       string
	AMQPURL           string
	WorkerCount       int
	SchedulerInterval time.Duration
	SMTP              SMTP
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		MaxBatchSize:                 1000,
		MemoryLimit:                  1024 << 20, // 1024M
		TimeLimit:                    3600 * time.Second,
		UnlimitedMemoryLimit:         4 << 30, // 4G
		UnlimitedTimeLimit:           3600 * time.Second,
		MemoryThreshold:              0.8,
		TimeThreshold:                0.8,
		MaxSendAttempts:              3,
		MaxRetryAttempts:             10,
		BatchJobDelay:                10 * time.Second,
		SendoutJobTTR:                300 * time.Second,
		MaxPendingContacts:           5,
		PurgePendingContactsDuration: 0,
		HTTPAddr:                     ":8080",
		WorkerCount:                  4,
		SchedulerInterval:            time.Minute,
	}
}

// FromEnv builds a config from environment variables on top of the
// defaults. The cmd entrypoints load .env first via godotenv.
func FromEnv() (Config, error) {
	c := Default()

	c.DatabaseURL = os.Getenv("DATABASE_URL")
	if v := os.Getenv("AMQP_URL"); v != "" {
		c.AMQPURL = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}

	var err error
	if c.MaxBatchSize, err = intEnv("MAX_BATCH_SIZE", c.MaxBatchSize); err != nil {
		return c, err
	}
	if v := os.Getenv("MEMORY_LIMIT"); v != "" {
		if c.MemoryLimit, err = ParseMemory(v); err != nil {
			return c, err
		}
	}
	if v := os.Getenv("UNLIMITED_MEMORY_LIMIT"); v != "" {
		if c.UnlimitedMemoryLimit, err = ParseMemory(v); err != nil {
			return c, err
		}
	}
	if c.TimeLimit, err = secondsEnv("TIME_LIMIT", c.TimeLimit); err != nil {
		return c, err
	}
	if c.UnlimitedTimeLimit, err = secondsEnv("UNLIMITED_TIME_LIMIT", c.UnlimitedTimeLimit); err != nil {
		return c, err
	}
	if c.MemoryThreshold, err = floatEnv("MEMORY_THRESHOLD", c.MemoryThreshold); err != nil {
		return c, err
	}
	if c.TimeThreshold, err = floatEnv("TIME_THRESHOLD", c.TimeThreshold); err != nil {
		return c, err
	}
	if c.MaxSendAttempts, err = intEnv("MAX_SEND_ATTEMPTS", c.MaxSendAttempts); err != nil {
		return c, err
	}
	if c.MaxRetryAttempts, err = intEnv("MAX_RETRY_ATTEMPTS", c.MaxRetryAttempts); err != nil {
		return c, err
	}
	if c.BatchJobDelay, err = secondsEnv("BATCH_JOB_DELAY", c.BatchJobDelay); err != nil {
		return c, err
	}
	if c.SendoutJobTTR, err = secondsEnv("SENDOUT_JOB_TTR", c.SendoutJobTTR); err != nil {
		return c, err
	}
	if c.MaxPendingContacts, err = intEnv("MAX_PENDING_CONTACTS", c.MaxPendingContacts); err != nil {
		return c, err
	}
	if c.PurgePendingContactsDuration, err = secondsEnv("PURGE_PENDING_CONTACTS_DURATION", c.PurgePendingContactsDuration); err != nil {
		return c, err
	}
	if c.SendRatePerSecond, err = floatEnv("SEND_RATE_PER_SECOND", c.SendRatePerSecond); err != nil {
		return c, err
	}
	if c.WorkerCount, err = intEnv("WORKER_COUNT", c.WorkerCount); err != nil {
		return c, err
	}
	if c.SchedulerInterval, err = secondsEnv("SCHEDULER_INTERVAL", c.SchedulerInterval); err != nil {
		return c, err
	}
	c.TestMode = os.Getenv("TEST_MODE") == "true" || os.Getenv("TEST_MODE") == "1"

	c.SMTP.Host = os.Getenv("SMTP_HOST")
	if c.SMTP.Port, err = intEnv("SMTP_PORT", 587); err != nil {
		return c, err
	}
	c.SMTP.User = os.Getenv("SMTP_USER")
	c.SMTP.Password = os.Getenv("SMTP_PASSWORD")

	return c, c.Validate()
}

// Validate surfaces configuration failures to the caller before any job
// is ever created.
func (c Config) Validate() error {
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("config: max batch size must be at least 1")
	}
	if c.MemoryThreshold <= 0 || c.MemoryThreshold >= 1 {
		return fmt.Errorf("config: memory threshold must be between 0 and 1")
	}
	if c.TimeThreshold <= 0 || c.TimeThreshold >= 1 {
		return fmt.Errorf("config: time threshold must be between 0 and 1")
	}
	if c.MaxSendAttempts < 1 {
		return fmt.Errorf("config: max send attempts must be at least 1")
	}
	if c.MaxRetryAttempts < 1 {
		return fmt.Errorf("config: max retry attempts must be at least 1")
	}
	if c.UnlimitedMemoryLimit == 0 {
		return fmt.Errorf("config: unlimited memory limit substitute is required")
	}
	if c.UnlimitedTimeLimit <= 0 {
		return fmt.Errorf("config: unlimited time limit substitute is required")
	}
	return nil
}

// ParseMemory converts a shorthand byte value like "1024M" or "4G" into
// bytes. "-1" and "0" mean unlimited.
func ParseMemory(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" || s == "-1" {
		return 0, nil
	}
	mult := uint64(1)
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1 << 10
		s = s[:len(s)-1]
	case 'M', 'm':
		mult = 1 << 20
		s = s[:len(s)-1]
	case 'G', 'g':
		mult = 1 << 30
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid memory value %q", s)
	}
	return n * mult, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("config: %s must be a number: %w", key, err)
	}
	return f, nil
}

func secondsEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("config: %s must be whole seconds: %w", key, err)
	}
	return time.Duration(n) * time.Second, nil
}
