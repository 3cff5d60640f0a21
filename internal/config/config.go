package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Blob backends.
const (
	BlobMemory = "memory"
	BlobS3     = "s3"
)

// Token modes.
const (
	TokenPlain = "plain"
	TokenJWT   = "jwt"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port      int    `envconfig:"PORT" default:"8000"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	Version   string `envconfig:"VERSION" default:"dev"`

	AdminPassword     string        `envconfig:"ADMIN_PASSWORD" default:"admin123"`
	AdminPasswordHash string        `envconfig:"ADMIN_PASSWORD_HASH" default:""`
	TokenMode         string        `envconfig:"TOKEN_MODE" default:"plain"`
	TokenSecret       string        `envconfig:"TOKEN_SECRET" default:""`
	TokenTTL          time.Duration `envconfig:"TOKEN_TTL" default:"24h"`

	StoreBackend  string        `envconfig:"STORE_BACKEND" default:"memory"`
	SQLitePath    string        `envconfig:"SQLITE_PATH" default:"./data/repohandler.db"`
	DatabaseURL   string        `envconfig:"DATABASE_URL" default:""`
	MongoURI      string        `envconfig:"MONGO_URI" default:""`
	MongoDatabase string        `envconfig:"MONGO_DATABASE" default:"repohandler"`
	StoreTimeout  time.Duration `envconfig:"STORE_TIMEOUT" default:"10s"`
	StoreRetries  uint64        `envconfig:"STORE_RETRIES" default:"3"`

	BlobBackend        string `envconfig:"BLOB_BACKEND" default:"memory"`
	S3Bucket           string `envconfig:"S3_BUCKET" default:""`
	S3Region           string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint         string `envconfig:"S3_ENDPOINT" default:""`
	S3AccessKeyID      string `envconfig:"S3_ACCESS_KEY_ID" default:""`
	S3SecretAccessKey  string `envconfig:"S3_SECRET_ACCESS_KEY" default:""`
	BlobPublicBaseURL  string `envconfig:"BLOB_PUBLIC_BASE_URL" default:""`
	MockStorageBaseURL string `envconfig:"MOCK_STORAGE_BASE_URL" default:"http://localhost:8000"`
	MaxUploadBytes     int64  `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
}

// Load reads configuration from environment variables into a Config struct.
// A .env file in the working directory is applied first when present; variables
// already set in the environment take precedence over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements that envconfig tags cannot express.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required when STORE_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.BlobBackend {
	case BlobMemory:
	case BlobS3:
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when BLOB_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}

	switch c.TokenMode {
	case TokenPlain:
	case TokenJWT:
		if c.TokenSecret == "" {
			return errors.New("TOKEN_SECRET is required when TOKEN_MODE=jwt")
		}
	default:
		return fmt.Errorf("unknown TOKEN_MODE %q", c.TokenMode)
	}

	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		return errors.New("one of ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required")
	}
	return nil
}
