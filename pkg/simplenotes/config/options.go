package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv overrides fields from environment variables named by the env tags.
// Variables that are not set leave the current value alone.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// WithFile reads a YAML, JSON, TOML or .env file, then applies environment
// overrides on top of it.
func WithFile(path string) Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadConfig(path, c); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string, create bool) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		c.CreateSchema = create
		return nil
	}
}

// WithMemoryStorage keeps image bytes in process memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.StorageType = "memory"
		return nil
	}
}

// WithFilesystemStorage stores image bytes under baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.StorageType = "fs"
		c.FS.BaseDir = baseDir
		return nil
	}
}

// WithS3Storage stores image bytes in an S3 bucket
func WithS3Storage(s3 S3Config) Option {
	return func(c *ServerConfig) error {
		if s3.Bucket == "" {
			return fmt.Errorf("s3 bucket cannot be empty")
		}
		if s3.Region == "" {
			s3.Region = c.S3.Region
		}
		c.StorageType = "s3"
		c.S3 = s3
		return nil
	}
}

// WithMinIOStorage stores image bytes in a MinIO bucket
func WithMinIOStorage(minio MinIOConfig) Option {
	return func(c *ServerConfig) error {
		if minio.Server == "" || minio.Bucket == "" {
			return fmt.Errorf("minio server and bucket cannot be empty")
		}
		c.StorageType = "minio"
		c.MinIO = minio
		return nil
	}
}

// WithURLStrategy selects how image URLs are computed
func WithURLStrategy(strategy, cdnBaseURL string) Option {
	return func(c *ServerConfig) error {
		c.URLStrategy = strategy
		c.CDNBaseURL = cdnBaseURL
		return nil
	}
}

// WithRedisCache enables the short url cache
func WithRedisCache(redisURL string) Option {
	return func(c *ServerConfig) error {
		c.RedisURL = redisURL
		return nil
	}
}

// WithMetrics toggles the prometheus registry
func WithMetrics(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableMetrics = enabled
		return nil
	}
}

// WithEventLogging toggles the slog event sink
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}
