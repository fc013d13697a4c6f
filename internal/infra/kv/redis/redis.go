// Package redis is a domain.KVStore backed by a Redis server, for setups that
// keep inkwell state outside the local data directory.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Config selects the Redis server and key namespace.
type Config struct {
	Addr     string        `toml:"addr"`
	Password string        `toml:"password"`
	DB       int           `toml:"db"`
	Prefix   string        `toml:"prefix"`
	Timeout  time.Duration `toml:"-"`
}

// DefaultConfig returns local-server defaults.
func DefaultConfig() Config {
	return Config{
		Addr:    "127.0.0.1:6379",
		Prefix:  "inkwell",
		Timeout: 3 * time.Second,
	}
}

// Store implements domain.KVStore on a Redis client. Each call is bounded by
// the configured timeout since the interface carries no context.
type Store struct {
	client  *goredis.Client
	prefix  string
	timeout time.Duration
}

// Open connects and pings the server.
func Open(cfg Config) (*Store, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		MinIdleConns: 1,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return New(client, cfg.Prefix, cfg.Timeout), nil
}

// New wraps an existing client.
func New(client *goredis.Client, prefix string, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &Store{client: client, prefix: prefix, timeout: timeout}
}

// Key joins the store prefix and parts with ':'.
func (s *Store) Key(parts ...string) string {
	var sb strings.Builder
	sb.WriteString(s.prefix)
	for _, part := range parts {
		if part == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(":")
		}
		sb.WriteString(part)
	}
	return sb.String()
}

func (s *Store) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	v, err := s.client.Get(ctx, s.Key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Set(ctx, s.Key(key), value, 0).Err()
}

func (s *Store) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Del(ctx, s.Key(key)).Err()
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}
