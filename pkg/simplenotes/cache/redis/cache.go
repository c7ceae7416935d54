// Package redis caches short url lookups in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tendant/simple-notes/pkg/simplenotes"
)

const (
	DefaultTTL    = time.Hour
	DefaultPrefix = "shorturl:"
)

// Cache implements simplenotes.ShortURLCache on a Redis client
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// New wraps an existing client. A ttl of zero uses DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl, prefix: DefaultPrefix}
}

// NewFromURL parses redisURL, connects and pings the server
func NewFromURL(ctx context.Context, redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return New(client, ttl), nil
}

func (c *Cache) Get(ctx context.Context, shortURL string) (*simplenotes.Image, error) {
	data, err := c.client.Get(ctx, c.key(shortURL)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, simplenotes.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cached short url: %w", err)
	}

	var image simplenotes.Image
	if err := json.Unmarshal(data, &image); err != nil {
		return nil, fmt.Errorf("failed to decode cached short url: %w", err)
	}
	return &image, nil
}

func (c *Cache) Set(ctx context.Context, image *simplenotes.Image) error {
	if image == nil {
		return errors.New("cannot cache nil image")
	}

	data, err := json.Marshal(image)
	if err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}

	if err := c.client.Set(ctx, c.key(image.ShortURL), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache short url: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, shortURL string) error {
	if err := c.client.Del(ctx, c.key(shortURL)).Err(); err != nil {
		return fmt.Errorf("failed to evict short url: %w", err)
	}
	return nil
}

// Close closes the underlying client
func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) key(shortURL string) string {
	return c.prefix + shortURL
}
