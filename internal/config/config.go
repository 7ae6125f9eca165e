package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvDataDir      = "DATA_DIR"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"

	EnvAmwalMerchantID = "AMWAL_MERCHANT_ID"
	EnvAmwalTerminalID = "AMWAL_TERMINAL_ID"
	EnvAmwalSecureKey  = "AMWAL_SECURE_KEY"
	EnvAmwalAPIURL     = "AMWAL_API_URL"
	EnvBaseURL         = "BASE_URL"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvLogLevel      = "LOG_LEVEL"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
// A .env file in the working directory is applied first when present.
func LoadFromEnv() (AppConfig, error) {
	if errLoad := godotenv.Load(); errLoad != nil && !errors.Is(errLoad, os.ErrNotExist) {
		log.WithError(errLoad).Warn("config: load .env failed")
	}
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
// Callers treat it as a request for the file storage backend.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed-origins"`
}

// StorageConfig holds the file backend location.
type StorageConfig struct {
	DataDir string `yaml:"data-dir"`
}

// PaymentConfig holds Amwal Pay credentials and redirect targets.
type PaymentConfig struct {
	MerchantID  string `yaml:"merchant-id"`
	TerminalID  string `yaml:"terminal-id"`
	SecureKey   string `yaml:"secure-key"`
	APIURL      string `yaml:"api-url"`
	Currency    string `yaml:"currency"`
	OrderPrefix string `yaml:"order-prefix"`
	BaseURL     string `yaml:"base-url"`
	CallbackURL string `yaml:"callback-url"`
	ReturnURL   string `yaml:"return-url"`
}

// PendingConfig controls the short-lived pending payment records.
type PendingConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	RedisEnabled  bool          `yaml:"redis-enabled"`
	RedisAddr     string        `yaml:"redis-addr"`
	RedisPassword string        `yaml:"redis-password"`
	RedisDB       int           `yaml:"redis-db"`
	RedisPrefix   string        `yaml:"redis-prefix"`
}

// RateLimitConfig controls per-client limits on public endpoints.
type RateLimitConfig struct {
	WebhookPerSecond int `yaml:"webhook-per-second"`
	PublicPerSecond  int `yaml:"public-per-second"`
}

// CardsConfig controls the generated card log.
type CardsConfig struct {
	Retention int `yaml:"retention"`
}

// ExpiryConfig controls the subscription expiry sweeper.
type ExpiryConfig struct {
	Schedule string `yaml:"schedule"`
}

// LoggingConfig controls logrus output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Config is the full application configuration.
type Config struct {
	DatabaseDSN string          `yaml:"database-dsn"`
	Database    struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
	JWT       JWTConfig       `yaml:"jwt"`
	Payment   PaymentConfig   `yaml:"payment"`
	Pending   PendingConfig   `yaml:"pending"`
	RateLimit RateLimitConfig `yaml:"rate-limit"`
	Cards     CardsConfig     `yaml:"cards"`
	Expiry    ExpiryConfig    `yaml:"expiry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Defaults applied when the config file and environment leave a value empty.
const (
	defaultJWTExpiry        = 30 * 24 * time.Hour
	defaultPort             = 8318
	defaultDataDir          = "./data"
	defaultAmwalAPIURL      = "https://backend.sa.amwal.tech"
	defaultCurrency         = "USD"
	defaultOrderPrefix      = "SUB"
	defaultPendingTTL       = time.Hour
	defaultRedisPrefix      = "bizcard:pending"
	defaultWebhookRateLimit = 20
	defaultPublicRateLimit  = 10
	defaultExpirySchedule   = "@every 1h"
	defaultLogLevel         = "info"
	defaultLogFormat        = "text"
	defaultCardRetention    = 500
)

// Load reads the YAML config file, applies environment overrides and fills defaults.
// A missing file is not an error.
func Load(configPath string) (Config, error) {
	var cfg Config
	data, errRead := os.ReadFile(configPath)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config file: %w", errRead)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

// DSN returns the configured database DSN or ErrMissingDatabaseDSN.
func (c Config) DSN() (string, error) {
	if dsn := strings.TrimSpace(c.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(c.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

func applyEnv(cfg *Config) {
	if dsn := getEnv(EnvDBConnection, ""); dsn != "" {
		cfg.DatabaseDSN = dsn
	}
	cfg.Storage.DataDir = getEnv(EnvDataDir, cfg.Storage.DataDir)
	cfg.JWT.Secret = getEnv(EnvJWTSecret, cfg.JWT.Secret)
	cfg.JWT.Expiry = getEnvDuration(EnvJWTExpiry, cfg.JWT.Expiry)

	cfg.Payment.MerchantID = getEnv(EnvAmwalMerchantID, cfg.Payment.MerchantID)
	cfg.Payment.TerminalID = getEnv(EnvAmwalTerminalID, cfg.Payment.TerminalID)
	cfg.Payment.SecureKey = getEnv(EnvAmwalSecureKey, cfg.Payment.SecureKey)
	cfg.Payment.APIURL = getEnv(EnvAmwalAPIURL, cfg.Payment.APIURL)
	cfg.Payment.BaseURL = getEnv(EnvBaseURL, cfg.Payment.BaseURL)

	if addr := getEnv(EnvRedisAddr, ""); addr != "" {
		cfg.Pending.RedisAddr = addr
		cfg.Pending.RedisEnabled = true
	}
	cfg.Pending.RedisPassword = getEnv(EnvRedisPassword, cfg.Pending.RedisPassword)
	cfg.Logging.Level = getEnv(EnvLogLevel, cfg.Logging.Level)
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = defaultPort
	}
	if strings.TrimSpace(cfg.Storage.DataDir) == "" {
		cfg.Storage.DataDir = defaultDataDir
	}
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = defaultJWTExpiry
	}

	p := &cfg.Payment
	p.MerchantID = strings.TrimSpace(p.MerchantID)
	p.TerminalID = strings.TrimSpace(p.TerminalID)
	p.SecureKey = strings.TrimSpace(p.SecureKey)
	p.APIURL = strings.TrimRight(strings.TrimSpace(p.APIURL), "/")
	if p.APIURL == "" {
		p.APIURL = defaultAmwalAPIURL
	}
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.Currency == "" {
		p.Currency = defaultCurrency
	}
	if strings.TrimSpace(p.OrderPrefix) == "" {
		p.OrderPrefix = defaultOrderPrefix
	}
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if p.CallbackURL == "" && p.BaseURL != "" {
		p.CallbackURL = p.BaseURL + "/v0/payments/amwal/callback"
	}
	if p.ReturnURL == "" && p.BaseURL != "" {
		p.ReturnURL = p.BaseURL + "/billing/return"
	}

	if cfg.Pending.TTL <= 0 {
		cfg.Pending.TTL = defaultPendingTTL
	}
	if strings.TrimSpace(cfg.Pending.RedisPrefix) == "" {
		cfg.Pending.RedisPrefix = defaultRedisPrefix
	}
	if cfg.Pending.RedisDB < 0 {
		cfg.Pending.RedisDB = 0
	}

	if cfg.RateLimit.WebhookPerSecond == 0 {
		cfg.RateLimit.WebhookPerSecond = defaultWebhookRateLimit
	}
	if cfg.RateLimit.PublicPerSecond == 0 {
		cfg.RateLimit.PublicPerSecond = defaultPublicRateLimit
	}
	if cfg.Cards.Retention <= 0 {
		cfg.Cards.Retention = defaultCardRetention
	}
	if strings.TrimSpace(cfg.Expiry.Schedule) == "" {
		cfg.Expiry.Schedule = defaultExpirySchedule
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = defaultLogLevel
	}
	if strings.TrimSpace(cfg.Logging.Format) == "" {
		cfg.Logging.Format = defaultLogFormat
	}
}

// LoadDatabaseDSN reads the database DSN from the environment or the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return "", err
	}
	return cfg.DSN()
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	if parsed, errParse := time.ParseDuration(raw); errParse == nil && parsed > 0 {
		return parsed
	}
	if seconds, errAtoi := strconv.Atoi(raw); errAtoi == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
