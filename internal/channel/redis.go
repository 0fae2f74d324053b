package channel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Redis reads and writes channels stored as Redis string keys holding a
// decimal number. Keys are Prefix + channel name.
type Redis struct {
	client redis.Cmdable
	prefix string
}

// NewRedis wraps a client. prefix namespaces the keys, e.g. "H1:".
func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, prefix string) (*Redis, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return NewRedis(client, prefix), client, nil
}

func (r *Redis) key(name string) string {
	return r.prefix + name
}

func (r *Redis) Read(ctx context.Context, name string) (float64, error) {
	v, err := r.client.Get(ctx, r.key(name)).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read channel %s: %w", name, err)
	}
	return v, nil
}

func (r *Redis) Write(ctx context.Context, name string, value float64) error {
	s := strconv.FormatFloat(value, 'f', -1, 64)
	if err := r.client.Set(ctx, r.key(name), s, 0).Err(); err != nil {
		return fmt.Errorf("write channel %s: %w", name, err)
	}
	return nil
}
