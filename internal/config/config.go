package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"missionrewards/internal/crypto"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

type Config struct {
	Port        string        `env:"PORT,default=8080"`
	Env         string        `env:"APP_ENV,default=development"`
	LogLevel    string        `env:"LOG_LEVEL,default=info"`
	DatabaseURL string        `env:"DATABASE_URL,required"`
	JWTSecret   string        `env:"JWT_SECRET,required"`
	TokenTTL    time.Duration `env:"TOKEN_TTL,default=24h"`
	CORSOrigins []string      `env:"CORS_ALLOWED_ORIGINS,default=*"`

	// EncryptionKey is a base64 AES-256 key for payout contact details.
	EncryptionKey string `env:"ENCRYPTION_KEY,required"`

	Storage   StorageConfig
	RateLimit RateLimitConfig
}

type StorageConfig struct {
	Driver        string        `env:"STORAGE_DRIVER,default=local"`
	UploadDir     string        `env:"UPLOAD_DIR,default=uploads"`
	PublicBaseURL string        `env:"PUBLIC_BASE_URL,default=http://localhost:8080"`
	UploadTimeout time.Duration `env:"UPLOAD_TIMEOUT,default=30s"`
	UploadRetries int           `env:"UPLOAD_RETRIES,default=2"`
	RetryBackoff  time.Duration `env:"UPLOAD_RETRY_BACKOFF,default=250ms"`

	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3PublicURL string `env:"S3_PUBLIC_URL"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `env:"RATE_LIMIT_RPS,default=5"`
	Burst             int     `env:"RATE_LIMIT_BURST,default=10"`
}

// Load reads optional .env files and decodes the environment into a Config.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 bytes")
	}
	if _, err := crypto.ParseKey(c.EncryptionKey); err != nil {
		return fmt.Errorf("ENCRYPTION_KEY: %w", err)
	}
	switch c.Storage.Driver {
	case StorageLocal:
	case StorageS3:
		if c.Storage.S3Bucket == "" || c.Storage.S3Region == "" {
			return errors.New("S3_BUCKET and S3_REGION are required for the s3 storage driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Storage.UploadRetries < 0 {
		return errors.New("UPLOAD_RETRIES must not be negative")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// PayoutKey returns the decoded ENCRYPTION_KEY.
func (c *Config) PayoutKey() ([]byte, error) { return crypto.ParseKey(c.EncryptionKey) }

// NewLogger builds a zap logger for the configured environment and level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	var zc zap.Config
	if c.IsProduction() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
