package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-notes/pkg/simplenotes"
	"github.com/tendant/simple-notes/pkg/simplenotes/urlstrategy"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		ProjectName:         "Notes API",
		Environment:         "development",
		APIPrefix:           simplenotes.DefaultFilesBaseURL,
		CompensationTimeout: simplenotes.DefaultCompensationTimeout,
		ShortURLMaxProbes:   simplenotes.DefaultShortURLMaxProbes,
		MaxInsertAttempts:   simplenotes.DefaultMaxInsertAttempts,
		DatabaseType:        "memory",
		Postgres: PostgresConfig{
			Server:   "localhost",
			Port:     5434,
			User:     "notes_user",
			Password: "notes_password",
			DB:       "notes_db",
		},
		DBSchema:    "public",
		StorageType: "memory",
		FS: FSConfig{
			BaseDir: "./data/storage",
		},
		S3: S3Config{
			Region:       "us-east-1",
			SSEAlgorithm: "AES256",
		},
		MinIO: MinIOConfig{
			Server:       "localhost",
			Port:         9000,
			RootUser:     "minioadmin",
			RootPassword: "minioadmin",
			Bucket:       "notes",
		},
		ShortURLCacheTTL:   time.Hour,
		EnableEventLogging: true,
	}
}

// ServerConfig represents configuration for the notes service. Field tags
// drive cleanenv for both environment variables and YAML files.
type ServerConfig struct {
	ProjectName   string `yaml:"project_name" env:"PROJECT_NAME" env-description:"Name reported by the server"`
	Environment   string `yaml:"environment" env:"ENVIRONMENT" env-description:"development, production or testing"`
	APIPrefix     string `yaml:"api_prefix" env:"API_V1_STR" env-description:"Path prefix of the JSON API"`
	PublicBaseURL string `yaml:"public_base_url" env:"PUBLIC_BASE_URL" env-description:"Scheme and host prepended to content-based image URLs"`

	OperationTimeout    time.Duration `yaml:"operation_timeout" env:"OPERATION_TIMEOUT" env-description:"Bound on each service call, 0 disables"`
	CompensationTimeout time.Duration `yaml:"compensation_timeout" env:"COMPENSATION_TIMEOUT" env-description:"Bound on the cleanup delete after a failed upload"`
	ShortURLMaxProbes   int           `yaml:"short_url_max_probes" env:"SHORT_URL_MAX_PROBES" env-description:"Short url candidates tried per upload"`
	MaxInsertAttempts   int           `yaml:"max_insert_attempts" env:"MAX_INSERT_ATTEMPTS" env-description:"Image row inserts tried after a short url race"`

	// Database configuration
	DatabaseType string         `yaml:"database_type" env:"DATABASE_TYPE" env-description:"memory or postgres"`
	DatabaseURL  string         `yaml:"database_url" env:"DATABASE_URL,SQLALCHEMY_DATABASE_URI" env-description:"Postgres connection string, built from POSTGRES_* when empty"`
	Postgres     PostgresConfig `yaml:"postgres"`
	DBSchema     string         `yaml:"db_schema" env:"DB_SCHEMA" env-description:"Postgres schema used as search_path"`
	CreateSchema bool           `yaml:"create_schema" env:"CREATE_SCHEMA" env-description:"Create the schema and tables on start"`

	// Storage configuration
	StorageType string      `yaml:"storage_type" env:"STORAGE_TYPE" env-description:"memory, fs, s3 or minio"`
	FS          FSConfig    `yaml:"fs"`
	S3          S3Config    `yaml:"s3"`
	MinIO       MinIOConfig `yaml:"minio"`

	URLStrategy string `yaml:"url_strategy" env:"URL_STRATEGY" env-description:"cdn, content-based or storage-delegated; chosen from the storage type when empty"`
	CDNBaseURL  string `yaml:"cdn_base_url" env:"CDN_BASE_URL"`

	RedisURL         string        `yaml:"redis_url" env:"REDIS_URL" env-description:"Enables the short url cache when set"`
	ShortURLCacheTTL time.Duration `yaml:"short_url_cache_ttl" env:"SHORT_URL_CACHE_TTL"`

	// Server options
	EnableMetrics      bool `yaml:"enable_metrics" env:"ENABLE_METRICS"`
	EnableEventLogging bool `yaml:"enable_event_logging" env:"ENABLE_EVENT_LOGGING"`

	// APIKeySHA256 is the hex sha256 of the key clients send; empty leaves
	// the API open
	APIKeySHA256 string `yaml:"api_key_sha256" env:"API_KEY_SHA256"`
}

type PostgresConfig struct {
	Server   string `yaml:"server" env:"POSTGRES_SERVER"`
	Port     uint16 `yaml:"port" env:"POSTGRES_PORT"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DB       string `yaml:"db" env:"POSTGRES_DB"`
}

func (c PostgresConfig) toDatabaseUrl() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Server, c.Port),
		Path:   c.DB,
	}
	return u.String()
}

type FSConfig struct {
	BaseDir string `yaml:"base_dir" env:"FS_BASE_DIR"`
}

type S3Config struct {
	Endpoint        string `yaml:"endpoint" env:"AWS_S3_ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	Bucket          string `yaml:"bucket" env:"AWS_S3_BUCKET,S3_BUCKET"`
	Region          string `yaml:"region" env:"AWS_S3_REGION,AWS_REGION"`
	UsePathStyle    bool   `yaml:"use_path_style" env:"AWS_S3_USE_PATH_STYLE"`
	PublicURL       string `yaml:"public_url" env:"AWS_S3_PUBLIC_URL"`
	EnableSSE       bool   `yaml:"enable_sse" env:"AWS_S3_ENABLE_SSE"`
	SSEAlgorithm    string `yaml:"sse_algorithm" env:"AWS_S3_SSE_ALGORITHM"`
	SSEKMSKeyID     string `yaml:"sse_kms_key_id" env:"AWS_S3_SSE_KMS_KEY_ID"`
	CreateBucket    bool   `yaml:"create_bucket" env:"AWS_S3_CREATE_BUCKET"`
}

type MinIOConfig struct {
	Server       string `yaml:"server" env:"MINIO_SERVER"`
	Port         int    `yaml:"port" env:"MINIO_PORT"`
	RootUser     string `yaml:"root_user" env:"MINIO_ROOT_USER"`
	RootPassword string `yaml:"root_password" env:"MINIO_ROOT_PASSWORD"`
	Bucket       string `yaml:"bucket" env:"MINIO_BUCKET_NAME"`
	UseSSL       bool   `yaml:"use_ssl" env:"MINIO_USE_SSL"`
	PublicURL    string `yaml:"public_url" env:"MINIO_PUBLIC_URL"`
}

func (c MinIOConfig) endpoint() string {
	if c.Port == 0 {
		return c.Server
	}
	return fmt.Sprintf("%s:%d", c.Server, c.Port)
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if !strings.HasPrefix(c.APIPrefix, "/") {
		return errors.New("api_prefix must start with '/'")
	}

	if c.OperationTimeout < 0 || c.CompensationTimeout < 0 || c.ShortURLCacheTTL < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.ShortURLMaxProbes <= 0 {
		return errors.New("short_url_max_probes must be positive")
	}
	if c.MaxInsertAttempts <= 0 {
		return errors.New("max_insert_attempts must be positive")
	}

	switch c.DatabaseType {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" && c.Postgres.Server == "" {
			return errors.New("database_url or postgres server is required when using postgres")
		}
	default:
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	switch c.StorageType {
	case "memory":
	case "fs":
		if c.FS.BaseDir == "" {
			return errors.New("fs base_dir is required when using fs storage")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when using s3 storage")
		}
	case "minio":
		if c.MinIO.Server == "" || c.MinIO.Bucket == "" {
			return errors.New("minio server and bucket are required when using minio storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}

	switch urlstrategy.URLStrategyType(c.URLStrategy) {
	case "", urlstrategy.StrategyTypeContentBased:
	case urlstrategy.StrategyTypeCDN:
		if c.CDNBaseURL == "" {
			return errors.New("cdn_base_url is required for the cdn url strategy")
		}
	case urlstrategy.StrategyTypeStorageDelegated:
		if c.StorageType != "s3" && c.StorageType != "minio" {
			return fmt.Errorf("storage type %s cannot provide object urls", c.StorageType)
		}
	default:
		return fmt.Errorf("unsupported url strategy: %s", c.URLStrategy)
	}

	return nil
}

// PostgresURL returns DatabaseURL, or one assembled from the POSTGRES_* settings.
func (c *ServerConfig) PostgresURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.Postgres.toDatabaseUrl()
}

// FilesBaseURL is the base of content-based image URLs
func (c *ServerConfig) FilesBaseURL() string {
	return strings.TrimRight(c.PublicBaseURL, "/") + c.APIPrefix
}
