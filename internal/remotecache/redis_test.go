// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package remotecache

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/mediathek/internal/compression"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMiniRedis creates a test Redis server using miniredis.
func setupMiniRedis(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisBackend) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, newRedisBackend(client, compression.Deflate, ttl, zerolog.Nop())
}

func TestRedisBackend_StoreFetch(t *testing.T) {
	mr, backend := setupMiniRedis(t, 0)
	fixed := time.Date(2025, 6, 7, 12, 30, 0, 0, time.UTC)
	backend.now = func() time.Time { return fixed }

	urn := "urn:mediathek:ard:item:1"
	backend.Store(context.Background(), urn, `{"id":"1"}`)

	key := redisKeyPrefix + KeyFor(urn, compression.Deflate)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, fixed.Format("Mon, 02 Jan 2006 15:04:05 GMT"), mr.HGet(key, redisFieldModified))

	doc, lastModified, ok := backend.Fetch(context.Background(), urn)
	require.True(t, ok)
	assert.Equal(t, `{"id":"1"}`, doc)
	assert.True(t, fixed.Equal(lastModified))
}

func TestRedisBackend_Miss(t *testing.T) {
	_, backend := setupMiniRedis(t, 0)
	_, _, ok := backend.Fetch(context.Background(), "urn:mediathek:ard:item:missing")
	assert.False(t, ok)
}

func TestRedisBackend_TTL(t *testing.T) {
	mr, backend := setupMiniRedis(t, time.Hour)
	urn := "urn:mediathek:ard:item:ttl"
	backend.Store(context.Background(), urn, "{}")

	key := redisKeyPrefix + KeyFor(urn, compression.Deflate)
	assert.Equal(t, time.Hour, mr.TTL(key))

	mr.FastForward(2 * time.Hour)
	_, _, ok := backend.Fetch(context.Background(), urn)
	assert.False(t, ok)
}

func TestRedisBackend_CorruptEntryIsMiss(t *testing.T) {
	mr, backend := setupMiniRedis(t, 0)
	urn := "urn:mediathek:ard:item:corrupt"
	key := redisKeyPrefix + KeyFor(urn, compression.Deflate)

	mr.HSet(key, redisFieldBody, "not deflate", redisFieldModified, "not a date")
	_, _, ok := backend.Fetch(context.Background(), urn)
	assert.False(t, ok)
}

func TestRedisBackend_ObsoleteDateFormatIsMiss(t *testing.T) {
	mr, backend := setupMiniRedis(t, 0)
	urn := "urn:mediathek:ard:item:rfc850"
	key := redisKeyPrefix + KeyFor(urn, compression.Deflate)

	body, err := compression.Deflate.Compress([]byte("{}"))
	require.NoError(t, err)
	modified := time.Date(2025, 6, 7, 12, 30, 0, 0, time.UTC).Format(time.RFC850)
	mr.HSet(key, redisFieldBody, string(body), redisFieldModified, modified)

	_, _, ok := backend.Fetch(context.Background(), urn)
	assert.False(t, ok)
}

func TestRedisBackend_ServerDown(t *testing.T) {
	mr, backend := setupMiniRedis(t, 0)
	mr.Close()

	_, _, ok := backend.Fetch(context.Background(), "urn:mediathek:ard:item:1")
	assert.False(t, ok)
	backend.Store(context.Background(), "urn:mediathek:ard:item:1", "{}")
	assert.Error(t, backend.HealthCheck(context.Background()))
}

func TestNewRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)

	backend, err := NewRedisBackend(context.Background(), RedisConfig{Addr: mr.Addr()}, nil, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()
	assert.NoError(t, backend.HealthCheck(context.Background()))

	_, err = NewRedisBackend(context.Background(), RedisConfig{Addr: "127.0.0.1:1"}, nil, zerolog.Nop())
	assert.Error(t, err)
}
