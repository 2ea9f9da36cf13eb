package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection parameters for a Redis backing store.
// URL takes precedence over the discrete host/port fields.
type RedisConfig struct {
	URL      string
	Host     string
	Port     int
	DB       int
	Password string
	Timeout  time.Duration
}

// Redis is a backing store shared across processes. Counter updates are
// expressed as atomic INCRBY deltas so concurrent writers never lose
// increments; multi-key read-then-write sequences are not transactional,
// which is an accepted eventual-consistency tradeoff for a shared model.
type Redis struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedis connects to Redis and verifies the connection with a ping.
// An unreachable server surfaces as *UnavailableError so the caller can
// retry later instead of caching a broken store.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	var opt *redis.Options

	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opt = parsed
	} else {
		host := cfg.Host
		if host == "" {
			host = "127.0.0.1"
		}
		port := cfg.Port
		if port == 0 {
			port = 6379
		}
		opt = &redis.Options{
			Addr:     fmt.Sprintf("%s:%d", host, port),
			Password: cfg.Password,
		}
	}

	if cfg.DB != 0 {
		opt.DB = cfg.DB
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opt.DialTimeout = timeout
	opt.ReadTimeout = timeout
	opt.WriteTimeout = timeout

	r := &Redis{
		client:  redis.NewClient(opt),
		timeout: timeout,
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := r.client.Ping(pingCtx).Err(); err != nil {
		r.client.Close()
		return nil, &UnavailableError{Op: "connect", Err: err}
	}

	return r, nil
}

func (r *Redis) Get(ctx context.Context, key string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	value, err := r.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, &UnavailableError{Op: "get", Err: err}
	}

	return value, nil
}

func (r *Redis) GetMulti(ctx context.Context, keys []string) (map[string]int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(ctx, key)
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, &UnavailableError{Op: "get", Err: err}
	}

	values := make(map[string]int64, len(keys))
	for i, cmd := range cmds {
		value, err := cmd.Int64()
		if err == redis.Nil {
			value = 0
		} else if err != nil {
			return nil, &UnavailableError{Op: "get", Err: err}
		}
		values[keys[i]] = value
	}

	return values, nil
}

func (r *Redis) Set(ctx context.Context, key string, value int64) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return &UnavailableError{Op: "set", Err: err}
	}

	return nil
}

func (r *Redis) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	value, err := r.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, &UnavailableError{Op: "increment", Err: err}
	}

	return value, nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return &UnavailableError{Op: "delete", Err: err}
	}

	return nil
}

func (r *Redis) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, prefix+"*", 1000).Iterator()

	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := r.Delete(ctx, batch...); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return &UnavailableError{Op: "scan", Err: err}
	}

	return r.Delete(ctx, batch...)
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return &UnavailableError{Op: "ping", Err: err}
	}

	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

var _ Store = (*Redis)(nil)
