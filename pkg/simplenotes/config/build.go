package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tendant/simple-notes/pkg/simplenotes"
	rediscache "github.com/tendant/simple-notes/pkg/simplenotes/cache/redis"
	"github.com/tendant/simple-notes/pkg/simplenotes/metrics"
	"github.com/tendant/simple-notes/pkg/simplenotes/repo/memory"
	repopg "github.com/tendant/simple-notes/pkg/simplenotes/repo/postgres"
	fsstorage "github.com/tendant/simple-notes/pkg/simplenotes/storage/fs"
	memorystorage "github.com/tendant/simple-notes/pkg/simplenotes/storage/memory"
	miniostorage "github.com/tendant/simple-notes/pkg/simplenotes/storage/minio"
	s3storage "github.com/tendant/simple-notes/pkg/simplenotes/storage/s3"
	"github.com/tendant/simple-notes/pkg/simplenotes/urlstrategy"
)

// Components is everything Build wired together. Close releases the
// connections it opened.
type Components struct {
	Service    simplenotes.Service
	Repository simplenotes.Repository
	BlobStore  simplenotes.BlobStore

	// Metrics and Registry are nil unless EnableMetrics is set
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	closers []func()
}

// Close releases pools and clients in reverse order of creation
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build creates the repository, blob store and service described by the
// configuration. The blob store is initialized before returning.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (_ *Components, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	comps := &Components{}
	defer func() {
		if err != nil {
			comps.Close()
		}
	}()

	repo, err := c.buildRepository(ctx, comps)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	comps.Repository = repo

	store, err := c.BuildBlobStore()
	if err != nil {
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.StorageType, err)
	}
	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend %s: %w", c.StorageType, err)
	}
	comps.BlobStore = store

	urls, err := c.buildURLStrategy(store)
	if err != nil {
		return nil, err
	}

	options := []simplenotes.Option{
		simplenotes.WithRepository(repo),
		simplenotes.WithBlobStore(c.StorageType, store),
		simplenotes.WithURLStrategy(urls),
		simplenotes.WithLogger(logger),
		simplenotes.WithOperationTimeout(c.OperationTimeout),
		simplenotes.WithCompensationTimeout(c.CompensationTimeout),
		simplenotes.WithShortURLMaxProbes(c.ShortURLMaxProbes),
		simplenotes.WithMaxInsertAttempts(c.MaxInsertAttempts),
	}

	if c.RedisURL != "" {
		cache, err := rediscache.NewFromURL(ctx, c.RedisURL, c.ShortURLCacheTTL)
		if err != nil {
			return nil, err
		}
		comps.closers = append(comps.closers, func() { cache.Close() })
		options = append(options, simplenotes.WithShortURLCache(cache))
	}

	var sinks []simplenotes.EventSink
	if c.EnableEventLogging {
		sinks = append(sinks, simplenotes.NewLoggingEventSink(logger))
	}
	if c.EnableMetrics {
		comps.Registry = prometheus.NewRegistry()
		comps.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		comps.Metrics = metrics.New(comps.Registry)
		sinks = append(sinks, comps.Metrics)
	}
	if len(sinks) > 0 {
		options = append(options, simplenotes.WithEventSink(simplenotes.NewMultiEventSink(sinks...)))
	}

	svc, err := simplenotes.New(options...)
	if err != nil {
		return nil, err
	}
	comps.Service = svc

	return comps, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, comps *Components) (simplenotes.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil
	case "postgres":
		pool, err := c.NewPool(ctx)
		if err != nil {
			return nil, err
		}
		comps.closers = append(comps.closers, pool.Close)

		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("database ping failed: %w", err)
		}

		repo := repopg.NewWithPool(pool)
		if c.CreateSchema {
			if err := c.EnsureSchema(ctx, pool); err != nil {
				return nil, err
			}
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// NewPool opens a pgx pool whose sessions use DBSchema as search_path
func (c *ServerConfig) NewPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(c.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	schema := c.DBSchema
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if schema == "" {
			return nil
		}
		_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates DBSchema and the tables inside it
func (c *ServerConfig) EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if c.DBSchema != "" {
		if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{c.DBSchema}.Sanitize()); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", c.DBSchema, err)
		}
	}
	return repopg.EnsureSchema(ctx, pool)
}

// PingPostgres verifies connectivity to Postgres with the configured search_path.
func (c *ServerConfig) PingPostgres(ctx context.Context) error {
	if c.DatabaseType != "postgres" {
		return errors.New("database_type is not postgres")
	}
	pool, err := c.NewPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// BuildBlobStore creates the BlobStore named by StorageType. It does not
// call Initialize.
func (c *ServerConfig) BuildBlobStore() (simplenotes.BlobStore, error) {
	switch c.StorageType {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{BaseDir: c.FS.BaseDir})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			PublicURL:              c.S3.PublicURL,
			EnableSSE:              c.S3.EnableSSE,
			SSEAlgorithm:           c.S3.SSEAlgorithm,
			SSEKMSKeyID:            c.S3.SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		})

	case "minio":
		return miniostorage.New(miniostorage.Config{
			Endpoint:  c.MinIO.endpoint(),
			AccessKey: c.MinIO.RootUser,
			SecretKey: c.MinIO.RootPassword,
			Bucket:    c.MinIO.Bucket,
			UseSSL:    c.MinIO.UseSSL,
			PublicURL: c.MinIO.PublicURL,
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.StorageType)
	}
}

func (c *ServerConfig) buildURLStrategy(store simplenotes.BlobStore) (simplenotes.URLStrategy, error) {
	strategy := urlstrategy.URLStrategyType(c.URLStrategy)
	if strategy == "" {
		strategy = urlstrategy.StrategyTypeContentBased
		if _, ok := store.(urlstrategy.BlobStore); ok {
			strategy = urlstrategy.StrategyTypeStorageDelegated
		}
	}

	cfg := urlstrategy.Config{
		Type:       strategy,
		CDNBaseURL: c.CDNBaseURL,
		APIBaseURL: c.FilesBaseURL(),
	}
	if delegated, ok := store.(urlstrategy.BlobStore); ok {
		cfg.BlobStore = delegated
	}

	urls, err := urlstrategy.NewURLStrategy(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build url strategy: %w", err)
	}
	return urls, nil
}
