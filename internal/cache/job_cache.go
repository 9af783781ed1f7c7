package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/safety-stock/internal/config"
	"github.com/andresuchdata/safety-stock/internal/pipeline"
)

const (
	jobKeyPrefix     = "safety_stock:job"
	jobScanBatchSize = 100
	defaultJobTTL    = time.Hour
)

// JobCache holds recent job snapshots so progress polling does not hit the
// job store on every request.
type JobCache interface {
	GetJob(ctx context.Context, id string) (*pipeline.Job, bool, error)
	SetJob(ctx context.Context, job *pipeline.Job) error
	InvalidateJob(ctx context.Context, id string) error
	// InvalidateAll drops every cached job, e.g. when the job store does not
	// survive a restart.
	InvalidateAll(ctx context.Context) error
}

type redisJobCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopJobCache struct{}

// NewJobCache connects to Redis when caching is enabled and returns a no-op
// cache otherwise.
func NewJobCache(cfg config.CacheConfig) (JobCache, error) {
	if !cfg.Enabled {
		return &noopJobCache{}, nil
	}

	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return newRedisJobCache(client, time.Duration(cfg.JobTTLSeconds)*time.Second), nil
}

func newRedisJobCache(client *redis.Client, ttl time.Duration) *redisJobCache {
	if ttl <= 0 {
		ttl = defaultJobTTL
	}
	return &redisJobCache{client: client, ttl: ttl}
}

func NewNoopJobCache() JobCache {
	return &noopJobCache{}
}

func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host := cfg.RedisHost
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.RedisPort
	if port == "" {
		port = "6379"
	}

	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

func (c *redisJobCache) GetJob(ctx context.Context, id string) (*pipeline.Job, bool, error) {
	payload, err := c.client.Get(ctx, buildJobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var job pipeline.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, false, fmt.Errorf("decode job cache: %w", err)
	}

	return &job, true, nil
}

func (c *redisJobCache) SetJob(ctx context.Context, job *pipeline.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job cache: %w", err)
	}

	if err := c.client.Set(ctx, buildJobKey(job.ID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisJobCache) InvalidateJob(ctx context.Context, id string) error {
	return c.client.Del(ctx, buildJobKey(id)).Err()
}

func (c *redisJobCache) InvalidateAll(ctx context.Context) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, jobKeyPrefix+":*", jobScanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (n *noopJobCache) GetJob(ctx context.Context, id string) (*pipeline.Job, bool, error) {
	return nil, false, nil
}

func (n *noopJobCache) SetJob(ctx context.Context, job *pipeline.Job) error {
	return nil
}

func (n *noopJobCache) InvalidateJob(ctx context.Context, id string) error {
	return nil
}

func (n *noopJobCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func buildJobKey(id string) string {
	return fmt.Sprintf("%s:%s", jobKeyPrefix, id)
}
