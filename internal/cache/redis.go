package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const dialCheckTimeout = 5 * time.Second

type redisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis conecta a Redis y falla si el servidor no responde al PING inicial.
func NewRedis(cfg Config) (Client, error) {
	addr := cfg.Addr
	switch {
	case addr == "":
		addr = "localhost:6379"
	case !strings.Contains(addr, ":"):
		addr = net.JoinHostPort(addr, "6379")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password, DB: cfg.DB})

	ctx, cancel := context.WithTimeout(context.Background(), dialCheckTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis %s: %w", addr, err)
	}
	return &redisStore{rdb: rdb, prefix: cfg.Prefix}, nil
}

func (r *redisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := r.rdb.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.rdb.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *redisStore) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.prefix+key).Err()
}

func (r *redisStore) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

// Stats cuenta sólo las keys bajo el prefijo; hits y misses son del servidor.
func (r *redisStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Driver: "redis"}
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		st.Keys++
	}
	if err := iter.Err(); err != nil {
		return Stats{}, err
	}

	info, err := r.rdb.Info(ctx, "stats").Result()
	if err != nil {
		return st, nil
	}
	for _, line := range strings.Split(info, "\n") {
		name, val, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		n, _ := strconv.ParseInt(val, 10, 64)
		switch name {
		case "keyspace_hits":
			st.Hits = n
		case "keyspace_misses":
			st.Misses = n
		}
	}
	return st, nil
}

func (r *redisStore) Close() error { return r.rdb.Close() }
