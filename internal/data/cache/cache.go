package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache stores short-lived byte payloads such as provider responses
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
}

// Config selects the backend. An empty Addr keeps everything in memory.
type Config struct {
	Addr      string        `yaml:"addr" json:"addr"`
	Password  string        `yaml:"password" json:"-"`
	DB        int           `yaml:"db" json:"db" validate:"gte=0"`
	Prefix    string        `yaml:"prefix" json:"prefix" default:"cryptorank:"`
	OpTimeout time.Duration `yaml:"op_timeout" json:"op_timeout" default:"500ms"`
}

// New returns a Redis cache when an address is configured, memory otherwise
func New(cfg Config) Cache {
	if cfg.Addr == "" {
		return NewMemory()
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	log.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("using redis cache")
	return NewRedis(client, cfg.Prefix, cfg.OpTimeout)
}

// Memory is an in-process cache with lazy expiry
type Memory struct {
	mu sync.Mutex
	m  map[string]entry
}

type entry struct {
	b   []byte
	exp time.Time
}

// NewMemory creates an empty in-process cache
func NewMemory() *Memory { return &Memory{m: make(map[string]entry)} }

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(c.m, key)
		return nil, false
	}
	return e.b, true
}

func (c *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
}

// Redis is a cache backed by a go-redis client. Errors degrade to misses.
type Redis struct {
	client    redis.Cmdable
	prefix    string
	opTimeout time.Duration
}

// NewRedis wraps an existing client
func NewRedis(client redis.Cmdable, prefix string, opTimeout time.Duration) *Redis {
	if opTimeout <= 0 {
		opTimeout = 500 * time.Millisecond
	}
	return &Redis{client: client, prefix: prefix, opTimeout: opTimeout}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("redis get failed")
		}
		return nil, false
	}
	return v, true
}

func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	if err := r.client.Set(ctx, r.prefix+key, val, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis set failed")
	}
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// HitRecorder receives one observation per lookup
type HitRecorder interface {
	RecordCache(cache string, hit bool)
}

type observed struct {
	Cache
	name string
	rec  HitRecorder
}

// Observe reports every Get on c to rec under name
func Observe(c Cache, name string, rec HitRecorder) Cache {
	if c == nil || rec == nil {
		return c
	}
	return &observed{Cache: c, name: name, rec: rec}
}

func (o *observed) Get(ctx context.Context, key string) ([]byte, bool) {
	v, ok := o.Cache.Get(ctx, key)
	o.rec.RecordCache(o.name, ok)
	return v, ok
}
