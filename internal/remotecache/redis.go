// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package remotecache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/mediathek/internal/compression"
	xglog "github.com/ManuGH/mediathek/internal/log"
	"github.com/ManuGH/mediathek/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	redisKeyPrefix     = "mediathek:keys:"
	redisFieldBody     = "body"
	redisFieldModified = "modified"
	redisOpTimeout     = 2 * time.Second
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // host:port
	Password string
	DB       int
	TTL      time.Duration // zero keeps entries forever
}

// RedisBackend stores documents in Redis hashes with the same key derivation
// and payload encoding as the HTTP cache.
type RedisBackend struct {
	client  *redis.Client
	scheme  compression.Scheme
	ttl     time.Duration
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(ctx context.Context, cfg RedisConfig, scheme compression.Scheme, logger zerolog.Logger) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis cache")

	return newRedisBackend(client, scheme, cfg.TTL, logger), nil
}

func newRedisBackend(client *redis.Client, scheme compression.Scheme, ttl time.Duration, logger zerolog.Logger) *RedisBackend {
	if scheme == nil {
		scheme = compression.Deflate
	}
	return &RedisBackend{
		client:  client,
		scheme:  scheme,
		ttl:     ttl,
		timeout: redisOpTimeout,
		logger:  logger,
		now:     time.Now,
	}
}

func (b *RedisBackend) key(urn string) string {
	return redisKeyPrefix + KeyFor(urn, b.scheme)
}

// Fetch implements Backend.
func (b *RedisBackend) Fetch(ctx context.Context, urn string) (string, time.Time, bool) {
	logger := xglog.WithContext(ctx, b.logger).With().Str(xglog.FieldURN, urn).Logger()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	vals, err := b.client.HMGet(ctx, b.key(urn), redisFieldBody, redisFieldModified).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logger.Warn().Err(err).Msg("redis fetch failed")
		metrics.RecordCacheLookup(tierRemote, outcomeError)
		return "", time.Time{}, false
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		metrics.RecordCacheLookup(tierRemote, outcomeMiss)
		return "", time.Time{}, false
	}

	body, _ := vals[0].(string)
	modified, _ := vals[1].(string)

	lastModified, err := time.Parse(http.TimeFormat, modified)
	if err != nil {
		logger.Error().Err(err).Str("last_modified", modified).Msg("redis entry has unparsable modified time")
		metrics.RecordCacheLookup(tierRemote, outcomeError)
		return "", time.Time{}, false
	}
	doc, err := b.scheme.Decompress([]byte(body))
	if err != nil {
		logger.Error().Err(err).Msg("redis payload could not be decompressed")
		metrics.RecordCacheLookup(tierRemote, outcomeError)
		return "", time.Time{}, false
	}

	metrics.RecordCacheLookup(tierRemote, outcomeHit)
	return string(doc), lastModified, true
}

// Store implements Backend.
func (b *RedisBackend) Store(ctx context.Context, urn, doc string) {
	logger := xglog.WithContext(ctx, b.logger).With().Str(xglog.FieldURN, urn).Logger()

	payload, err := b.scheme.Compress([]byte(doc))
	if err != nil {
		logger.Error().Err(err).Msg("redis payload could not be compressed")
		metrics.RecordRemoteWrite("failure")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	key := b.key(urn)
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			redisFieldBody, payload,
			redisFieldModified, b.now().UTC().Format(http.TimeFormat),
		)
		if b.ttl > 0 {
			pipe.Expire(ctx, key, b.ttl)
		}
		return nil
	})
	if err != nil {
		logger.Warn().Err(err).Msg("redis write failed")
		metrics.RecordRemoteWrite("failure")
		return
	}
	metrics.RecordRemoteWrite("success")
}

// HealthCheck checks if Redis is available.
func (b *RedisBackend) HealthCheck(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
