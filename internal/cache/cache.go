// Package cache stores recent predictions keyed by feature-row fingerprint.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces prediction keys in a shared Redis
const KeyPrefix = "downtime:prediction:"

// Cache maps a feature fingerprint to a predicted label
type Cache interface {
	Get(ctx context.Context, key string) (label string, ok bool, err error)
	Set(ctx context.Context, key, label string, ttl time.Duration) error
	Close() error
}

// Nop never stores anything
type Nop struct{}

func (Nop) Get(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (Nop) Set(context.Context, string, string, time.Duration) error {
	return nil
}

func (Nop) Close() error {
	return nil
}

// DefaultMemorySize bounds the in-process cache when no size is given
const DefaultMemorySize = 10000

// Memory is a bounded in-process cache. Entries expire after the TTL given
// to NewMemory and are swept in the background whether or not they are read
// again; once full, the least recently used entry is evicted.
type Memory struct {
	lru *expirable.LRU[string, string]
}

// NewMemory creates an empty cache holding at most size entries for ttl each
func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = DefaultMemorySize
	}
	return &Memory{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	label, ok := m.lru.Get(key)
	return label, ok, nil
}

// Set stores label under key. The per-call ttl is ignored: every entry
// lives for the TTL the cache was created with.
func (m *Memory) Set(_ context.Context, key, label string, _ time.Duration) error {
	m.lru.Add(key, label)
	return nil
}

// Len returns the number of stored entries, including expired ones not yet swept
func (m *Memory) Len() int {
	return m.lru.Len()
}

// Close drops all entries
func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}

// Redis stores predictions in a Redis server
type Redis struct {
	rc *redis.Client
}

// NewRedis wraps an existing client
func NewRedis(rc *redis.Client) *Redis {
	return &Redis{rc: rc}
}

// OpenRedis connects to addr; it does not ping
func OpenRedis(addr, pass string, db int) *Redis {
	return NewRedis(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}))
}

// Ping checks the connection
func (r *Redis) Ping(ctx context.Context) error {
	return r.rc.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rc.Get(ctx, KeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, label string, ttl time.Duration) error {
	return r.rc.Set(ctx, KeyPrefix+key, label, ttl).Err()
}

func (r *Redis) Close() error {
	return r.rc.Close()
}

// Options selects a cache backend
type Options struct {
	RedisAddr string
	RedisPass string
	RedisDB   int
	TTL       time.Duration
	// Size bounds the in-process cache; DefaultMemorySize when zero
	Size int
}

// New picks Redis when an address is configured, an in-process cache
// otherwise, and Nop when the TTL is zero.
func New(opts Options) Cache {
	switch {
	case opts.TTL == 0:
		return Nop{}
	case opts.RedisAddr != "":
		return OpenRedis(opts.RedisAddr, opts.RedisPass, opts.RedisDB)
	default:
		return NewMemory(opts.Size, opts.TTL)
	}
}
