// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bundle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStore(t *testing.T, srv *httptest.Server) *Store {
	t.Helper()
	opts := Options{
		Path:   filepath.Join(t.TempDir(), "bundle.js"),
		Logger: zerolog.Nop(),
	}
	if srv != nil {
		opts.URL = srv.URL + "/bundle.js"
		opts.HTTPClient = srv.Client()
	}
	return NewStore(opts)
}

func TestStoreLoadMissingFile(t *testing.T) {
	s := newTestStore(t, nil)
	assert.Error(t, s.Load())
	assert.False(t, s.Loaded())
	assert.Equal(t, "", s.ConfigString(KeyCachingServer))
	_, err := s.Script()
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestStoreLoadFromDisk(t *testing.T) {
	s := newTestStore(t, nil)
	require.NoError(t, os.WriteFile(s.Path(), []byte(sampleBundle), 0o600))

	require.NoError(t, s.Load())
	assert.True(t, s.Loaded())
	assert.Equal(t, "reco.example.org", s.ConfigString(KeyRecommendationServer))
	script, err := s.Script()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(script, "function getMetadataForItem"))
}

func TestStoreDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bundle.js":
			_, _ = w.Write([]byte(sampleBundle))
		case "/broken.js":
			_, _ = w.Write([]byte("not a bundle"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := newTestStore(t, srv)
	var notified atomic.Int32
	s.OnChange(func(b *Bundle) {
		notified.Add(1)
	})

	require.NoError(t, s.Download(context.Background(), ""))
	assert.Equal(t, "cache.example.org", s.ConfigString(KeyCachingServer))
	assert.Equal(t, int32(1), notified.Load())

	onDisk, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, sampleBundle, string(onDisk))

	// A broken download neither replaces the file nor the active bundle.
	err = s.Download(context.Background(), srv.URL+"/broken.js")
	assert.ErrorIs(t, err, ErrConfigBlockNotFound)
	onDisk, err = os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, sampleBundle, string(onDisk))
	assert.Equal(t, "cache.example.org", s.ConfigString(KeyCachingServer))

	err = s.Download(context.Background(), srv.URL+"/missing.js")
	assert.Error(t, err)
	assert.Equal(t, int32(1), notified.Load())
}

func TestStoreWatcherReloads(t *testing.T) {
	s := newTestStore(t, nil)
	require.NoError(t, os.WriteFile(s.Path(), []byte(sampleBundle), 0o600))
	require.NoError(t, s.Load())

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.Wait()
	}()
	require.NoError(t, s.StartWatcher(ctx))

	updated := strings.Replace(sampleBundle, "cache.example.org", "cache2.example.org", 1)
	require.NoError(t, os.WriteFile(s.Path(), []byte(updated), 0o600))

	assert.Eventually(t, func() bool {
		return s.ConfigString(KeyCachingServer) == "cache2.example.org"
	}, 5*time.Second, 50*time.Millisecond)
}
