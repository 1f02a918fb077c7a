package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Redis shares cached probabilities across instances. Keys are namespaced by
// a generation counter stored under <prefix>:gen; Purge bumps the counter so
// every previous key becomes unreachable and expires on its own TTL.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(opts RedisOptions) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisWithClient(client, opts.Prefix, opts.TTL)
}

func NewRedisWithClient(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "xente"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (float64, bool) {
	gen, err := r.generation(ctx)
	if err != nil {
		return 0, false
	}
	val, err := r.client.Get(ctx, r.key(gen, key)).Result()
	if err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func (r *Redis) Set(ctx context.Context, key string, value float64) error {
	gen, err := r.generation(ctx)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(gen, key), strconv.FormatFloat(value, 'g', -1, 64), r.ttl).Err()
}

func (r *Redis) Purge(ctx context.Context) error {
	return r.client.Incr(ctx, r.genKey()).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) generation(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, r.genKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cache generation: %w", err)
	}
	return gen, nil
}

func (r *Redis) genKey() string {
	return r.prefix + ":gen"
}

func (r *Redis) key(gen int64, key string) string {
	return r.prefix + ":" + strconv.FormatInt(gen, 10) + ":" + key
}
