package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for the trial ledger.
type Client struct {
	rdb    *redis.Client
	prefix string
	max    int64
}

// Config holds Redis connection configuration.
type Config struct {
	URL        string `yaml:"url"`
	Password   string `yaml:"password"`
	KeyPrefix  string `yaml:"key_prefix"`
	MaxRecords int    `yaml:"max_records"` // trials kept in the ledger, oldest trimmed
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.URL == "" {
		c.URL = "redis://localhost:6379/0"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "ragtrial"
	}
	if c.MaxRecords == 0 {
		c.MaxRecords = 1000
	}
	return c
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb, prefix: cfg.KeyPrefix, max: int64(cfg.MaxRecords)}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks if Redis is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key helpers
func (c *Client) indexKey() string {
	return fmt.Sprintf("%s:trials", c.prefix)
}

func (c *Client) dataKey() string {
	return fmt.Sprintf("%s:trial_data", c.prefix)
}
