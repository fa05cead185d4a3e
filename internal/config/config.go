// internal/config/config.go
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"payload-log/internal/model"

	"github.com/kelseyhightower/envconfig"
)

// Log source / decryptor choices.
const (
	SourceLocal = "local"
	SourceS3    = "s3"

	DecryptorNone           = "none"
	DecryptorFernet         = "fernet"
	DecryptorSecretsManager = "secretsmanager"
)

// Config
//
// Every setting the server needs, read from the environment once in Load
// and never changed afterwards.
type Config struct {

	// ---------------------------
	// Server identity / network
	// ---------------------------

	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"payload-log"`
	InstanceID  string `envconfig:"INSTANCE_ID"` // hostname, then random hex

	// ---------------------------
	// Log source
	// ---------------------------

	LogSource   string `envconfig:"LOG_SOURCE" default:"local"` // local | s3
	LocalLogDir string `envconfig:"LOCAL_LOG_DIR" default:"./logs"`

	AWSRegion  string        `envconfig:"AWS_REGION" default:"ap-northeast-2"`
	S3Bucket   string        `envconfig:"S3_BUCKET"`
	S3Prefix   string        `envconfig:"S3_PREFIX"`
	S3Endpoint string        `envconfig:"S3_ENDPOINT"` // S3-compatible stores (minio, localstack)
	S3Timeout  time.Duration `envconfig:"S3_TIMEOUT" default:"10s"`

	// ---------------------------
	// Decryption
	// ---------------------------

	Decryptor       string   `envconfig:"DECRYPTOR" default:"none"` // none | fernet | secretsmanager
	FernetKeys      []string `envconfig:"FERNET_KEYS"`              // newest first
	DecryptSecretID string   `envconfig:"DECRYPT_SECRET_ID"`

	// ---------------------------
	// Query behaviour
	// ---------------------------

	SessionCacheTTL time.Duration `envconfig:"SESSION_CACHE_TTL" default:"10m"`
	DefaultPageSize int           `envconfig:"DEFAULT_PAGE_SIZE" default:"100"`
	MaxPageSize     int           `envconfig:"MAX_PAGE_SIZE" default:"500"`

	// ---------------------------
	// Logging
	// ---------------------------

	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty  bool   `envconfig:"LOG_PRETTY" default:"false"`
	LogSampleN uint32 `envconfig:"LOG_SAMPLE_N" default:"0"`

	// ---------------------------
	// Demo data generator
	// ---------------------------

	GenerateCount int  `envconfig:"GENERATE_COUNT" default:"1000"`
	GenerateGzip  bool `envconfig:"GENERATE_GZIP" default:"false"`
}

// Load
//
// Reads Config from the environment. A malformed or inconsistent value
// stops the process (fail-fast); nothing is re-read at runtime.
func Load() Config {
	cfg, err := FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// FromEnv is Load without the exit.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = fallbackInstanceID()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that depend on each other.
func (c Config) Validate() error {
	switch c.LogSource {
	case SourceLocal:
		if c.LocalLogDir == "" {
			return fmt.Errorf("LOCAL_LOG_DIR is required when LOG_SOURCE=%s", SourceLocal)
		}
	case SourceS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when LOG_SOURCE=%s", SourceS3)
		}
		if c.S3Timeout <= 0 {
			return fmt.Errorf("invalid S3_TIMEOUT %s", c.S3Timeout)
		}
	default:
		return fmt.Errorf("invalid LOG_SOURCE %q (want %s or %s)", c.LogSource, SourceLocal, SourceS3)
	}

	switch c.Decryptor {
	case DecryptorNone:
	case DecryptorFernet:
		if len(c.FernetKeys) == 0 {
			return fmt.Errorf("FERNET_KEYS is required when DECRYPTOR=%s", DecryptorFernet)
		}
	case DecryptorSecretsManager:
		if c.DecryptSecretID == "" {
			return fmt.Errorf("DECRYPT_SECRET_ID is required when DECRYPTOR=%s", DecryptorSecretsManager)
		}
	default:
		return fmt.Errorf("invalid DECRYPTOR %q", c.Decryptor)
	}

	if c.MaxPageSize < 1 || c.MaxPageSize > model.MaxPageSize {
		return fmt.Errorf("MAX_PAGE_SIZE must be in 1..%d, got %d", model.MaxPageSize, c.MaxPageSize)
	}
	if c.DefaultPageSize < 1 || c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("DEFAULT_PAGE_SIZE must be in 1..%d, got %d", c.MaxPageSize, c.DefaultPageSize)
	}
	if c.SessionCacheTTL <= 0 {
		return fmt.Errorf("invalid SESSION_CACHE_TTL %s", c.SessionCacheTTL)
	}
	return nil
}

// fallbackInstanceID
//
// Identifies this server instance in logs.
//   - default: hostname (unique per task/pod in ECS or k8s)
//   - fallback: 12 random hex characters
func fallbackInstanceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	var b [6]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
