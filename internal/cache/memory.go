package cache

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const janitorEvery = time.Minute

type memory struct {
	prefix       string
	items        *gocache.Cache
	hits, misses atomic.Int64
}

// NewMemory devuelve un Client en proceso respaldado por go-cache.
func NewMemory(prefix string) Client {
	return &memory{prefix: prefix, items: gocache.New(gocache.NoExpiration, janitorEvery)}
}

func (m *memory) Get(_ context.Context, key string) (string, error) {
	v, found := m.items.Get(m.prefix + key)
	if !found {
		m.misses.Add(1)
		return "", ErrNotFound
	}
	m.hits.Add(1)
	return v.(string), nil
}

func (m *memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.items.Set(m.prefix+key, value, ttl)
	return nil
}

func (m *memory) Delete(_ context.Context, key string) error {
	m.items.Delete(m.prefix + key)
	return nil
}

func (*memory) Ping(context.Context) error { return nil }

func (m *memory) Stats(context.Context) (Stats, error) {
	return Stats{
		Driver: "memory",
		Keys:   int64(m.items.ItemCount()),
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
	}, nil
}

func (m *memory) Close() error {
	m.items.Flush()
	return nil
}
