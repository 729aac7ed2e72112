package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	JWT        JWTConfig
	App        AppConfig
	Attendance AttendanceConfig
	Redis      RedisConfig
	Cron       CronConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	AutoMigrate     bool
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	Timezone       string
	AllowedOrigins []string
}

// AttendanceConfig holds the check-in window and request rules.
type AttendanceConfig struct {
	EarlyTolerance  time.Duration
	LateCeiling     time.Duration
	MinCheckOut     time.Duration
	GracePeriod     time.Duration
	MinReasonLength int
	HistoryDays     int
}

// RedisConfig enables the shift cache when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	ShiftTTL time.Duration

	// ShiftMissTTL applies to days with no assignment yet.
	ShiftMissTTL time.Duration
}

type CronConfig struct {
	MarkAbsent string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when it exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}
	var err error

	// Database configuration
	dbPort, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	minConns, err := getEnvInt("DB_MIN_CONNS", 1)
	if err != nil {
		return nil, err
	}
	maxConnLifetime, err := getEnvDuration("DB_MAX_CONN_LIFETIME", time.Hour)
	if err != nil {
		return nil, err
	}
	autoMigrate, err := getEnvBool("DB_AUTO_MIGRATE", true)
	if err != nil {
		return nil, err
	}

	config.Database = DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            dbPort,
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		Name:            getEnv("DB_NAME", "presensi"),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		MaxConns:        int32(maxConns),
		MinConns:        int32(minConns),
		MaxConnLifetime: maxConnLifetime,
		AutoMigrate:     autoMigrate,
	}

	// Application configuration
	appPort, err := getEnvInt("APP_PORT", 8080)
	if err != nil {
		return nil, err
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Timezone:       getEnv("APP_TIMEZONE", "Asia/Jakarta"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	// Attendance rules
	a := AttendanceConfig{}
	if a.EarlyTolerance, err = getEnvDuration("ATTENDANCE_EARLY_TOLERANCE", 2*time.Hour); err != nil {
		return nil, err
	}
	if a.LateCeiling, err = getEnvDuration("ATTENDANCE_LATE_CEILING", 4*time.Hour); err != nil {
		return nil, err
	}
	if a.MinCheckOut, err = getEnvDuration("ATTENDANCE_MIN_CHECKOUT", 15*time.Minute); err != nil {
		return nil, err
	}
	if a.GracePeriod, err = getEnvDuration("ATTENDANCE_GRACE_PERIOD", 0); err != nil {
		return nil, err
	}
	if a.MinReasonLength, err = getEnvInt("ATTENDANCE_MIN_REASON_LENGTH", 10); err != nil {
		return nil, err
	}
	if a.HistoryDays, err = getEnvInt("ATTENDANCE_HISTORY_DAYS", 7); err != nil {
		return nil, err
	}
	config.Attendance = a

	// Redis configuration
	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	shiftTTL, err := getEnvDuration("REDIS_SHIFT_TTL", 12*time.Hour)
	if err != nil {
		return nil, err
	}
	shiftMissTTL, err := getEnvDuration("REDIS_SHIFT_MISS_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	config.Redis = RedisConfig{
		Addr:         getEnv("REDIS_ADDR", ""),
		Password:     getEnv("REDIS_PASSWORD", ""),
		DB:           redisDB,
		ShiftTTL:     shiftTTL,
		ShiftMissTTL: shiftMissTTL,
	}

	config.Cron = CronConfig{
		MarkAbsent: getEnv("CRON_MARK_ABSENT", "0 1 * * *"),
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if _, err := time.ParseDuration(c.JWT.AccessExpiration); err != nil {
		return fmt.Errorf("invalid JWT_ACCESS_EXPIRATION_TIME: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}
	if c.Attendance.EarlyTolerance <= 0 {
		return fmt.Errorf("ATTENDANCE_EARLY_TOLERANCE must be positive")
	}
	if c.Attendance.LateCeiling <= 0 {
		return fmt.Errorf("ATTENDANCE_LATE_CEILING must be positive")
	}
	if c.Attendance.MinCheckOut <= 0 {
		return fmt.Errorf("ATTENDANCE_MIN_CHECKOUT must be positive")
	}
	if c.Attendance.GracePeriod < 0 {
		return fmt.Errorf("ATTENDANCE_GRACE_PERIOD must not be negative")
	}
	if c.Attendance.MinReasonLength < 1 {
		return fmt.Errorf("ATTENDANCE_MIN_REASON_LENGTH must be at least 1")
	}
	if c.Attendance.HistoryDays < 1 {
		return fmt.Errorf("ATTENDANCE_HISTORY_DAYS must be at least 1")
	}
	if c.Redis.ShiftTTL <= 0 || c.Redis.ShiftMissTTL <= 0 {
		return fmt.Errorf("REDIS_SHIFT_TTL and REDIS_SHIFT_MISS_TTL must be positive")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}
	return nil
}

// Location is the zone shift times are defined in.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.App.Timezone)
}

// SlogLevel maps LOG_LEVEL onto slog. Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.App.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvSlice(key string, fallback []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
