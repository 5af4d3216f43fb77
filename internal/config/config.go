package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Payroll  PayrollConfig
	Lock     LockConfig
	Authz    AuthzConfig
	Store    StoreConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
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
	Version        string
	AllowedOrigins []string
}

// PayrollConfig holds statutory rates and engine tuning
type PayrollConfig struct {
	Workers    int
	PFRate     decimal.Decimal
	ESIRate    decimal.Decimal
	ESICeiling decimal.Decimal
}

// LockConfig selects how run creation is serialized
type LockConfig struct {
	Driver         string // local or valkey
	Wait           time.Duration
	TTL            time.Duration
	ValkeyAddr     string
	ValkeyPassword string
	ValkeyDB       int
}

type AuthzConfig struct {
	PolicyPath string
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Driver      string // memory or postgres
	SeedPath    string
	AutoMigrate bool
}

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	LockLocal     = "local"
	LockValkey    = "valkey"
)

// Load reads configuration from the environment. A .env file is optional.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	config := &Config{}
	var err error

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	maxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	minConns, err := strconv.Atoi(getEnv("DB_MIN_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "payroll"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(maxConns),
		MinConns: int32(minConns),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Version:        getEnv("APP_VERSION", "v1.0.0"),
		AllowedOrigins: strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ","),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	// Payroll configuration
	workers, err := strconv.Atoi(getEnv("PAYROLL_WORKERS", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_WORKERS: %w", err)
	}
	pfRate, err := decimal.NewFromString(getEnv("PAYROLL_PF_RATE", "0.12"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_PF_RATE: %w", err)
	}
	esiRate, err := decimal.NewFromString(getEnv("PAYROLL_ESI_RATE", "0.0075"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_ESI_RATE: %w", err)
	}
	esiCeiling, err := decimal.NewFromString(getEnv("PAYROLL_ESI_CEILING", "21000"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_ESI_CEILING: %w", err)
	}

	config.Payroll = PayrollConfig{
		Workers:    workers,
		PFRate:     pfRate,
		ESIRate:    esiRate,
		ESICeiling: esiCeiling,
	}

	// Run lock configuration
	lockWait, err := time.ParseDuration(getEnv("RUN_LOCK_WAIT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RUN_LOCK_WAIT: %w", err)
	}
	lockTTL, err := time.ParseDuration(getEnv("RUN_LOCK_TTL", "2m"))
	if err != nil {
		return nil, fmt.Errorf("invalid RUN_LOCK_TTL: %w", err)
	}
	valkeyDB, err := strconv.Atoi(getEnv("VALKEY_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid VALKEY_DB: %w", err)
	}

	config.Lock = LockConfig{
		Driver:         getEnv("RUN_LOCK_DRIVER", LockLocal),
		Wait:           lockWait,
		TTL:            lockTTL,
		ValkeyAddr:     getEnv("VALKEY_ADDR", ""),
		ValkeyPassword: getEnv("VALKEY_PASSWORD", ""),
		ValkeyDB:       valkeyDB,
	}

	config.Authz = AuthzConfig{
		PolicyPath: getEnv("AUTHZ_POLICY_PATH", ""),
	}

	autoMigrate, err := strconv.ParseBool(getEnv("DB_AUTO_MIGRATE", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_AUTO_MIGRATE: %w", err)
	}
	config.Store = StoreConfig{
		Driver:      getEnv("STORE_DRIVER", StorePostgres),
		SeedPath:    getEnv("STORE_SEED_PATH", ""),
		AutoMigrate: autoMigrate,
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if _, err := time.ParseDuration(c.JWT.AccessExpiration); err != nil {
		return fmt.Errorf("invalid JWT_ACCESS_EXPIRATION_TIME: %w", err)
	}

	switch c.Store.Driver {
	case StorePostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q", StoreMemory, StorePostgres)
	}

	switch c.Lock.Driver {
	case LockValkey:
		if c.Lock.ValkeyAddr == "" {
			return fmt.Errorf("VALKEY_ADDR is required when RUN_LOCK_DRIVER=valkey")
		}
	case LockLocal:
	default:
		return fmt.Errorf("RUN_LOCK_DRIVER must be %q or %q", LockLocal, LockValkey)
	}

	if c.Payroll.Workers < 1 {
		return fmt.Errorf("PAYROLL_WORKERS must be at least 1")
	}
	return nil
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
