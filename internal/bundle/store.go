// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/mediathek/internal/log"
	"github.com/ManuGH/mediathek/internal/metrics"
	"github.com/ManuGH/mediathek/internal/platform/httpx"
	pnet "github.com/ManuGH/mediathek/internal/platform/net"
)

const (
	maxBundleBytes   = 8 << 20
	debounceDuration = 500 * time.Millisecond
)

// ErrNotLoaded is returned by accessors before any bundle was loaded.
var ErrNotLoaded = errors.New("bundle: not loaded")

// Options configures a Store.
type Options struct {
	// Path is where the bundle is persisted.
	Path string
	// URL is the default download location.
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Store holds the active bundle and persists downloads.
type Store struct {
	path   string
	url    string
	http   *http.Client
	logger zerolog.Logger

	mu        sync.RWMutex
	current   *Bundle
	listeners []func(*Bundle)

	wg sync.WaitGroup
}

// NewStore returns an empty Store. Call Load to read the persisted bundle.
func NewStore(opts Options) *Store {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = httpx.New(httpx.Options{Timeout: opts.Timeout, Traced: true, Operation: "bundle"})
	}
	return &Store{
		path:   opts.Path,
		url:    opts.URL,
		http:   opts.HTTPClient,
		logger: opts.Logger,
	}
}

// Path returns the on-disk location.
func (s *Store) Path() string { return s.path }

// Current returns the active bundle or nil.
func (s *Store) Current() *Bundle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Loaded reports whether a bundle is active.
func (s *Store) Loaded() bool { return s.Current() != nil }

// ConfigString returns a config value of the active bundle, or "".
func (s *Store) ConfigString(key string) string {
	v, _ := s.Current().ConfigString(key)
	return v
}

// Script returns the adapter script of the active bundle.
func (s *Store) Script() (string, error) {
	b := s.Current()
	if b == nil {
		return "", ErrNotLoaded
	}
	return b.Script, nil
}

// OnChange registers fn to be called with every newly activated bundle.
func (s *Store) OnChange(fn func(*Bundle)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Load reads and activates the persisted bundle.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		metrics.RecordBundleLoad("disk", "failure")
		return fmt.Errorf("read bundle: %w", err)
	}
	if err := s.activate(string(data)); err != nil {
		metrics.RecordBundleLoad("disk", "failure")
		return err
	}
	metrics.RecordBundleLoad("disk", "success")
	s.logger.Info().Str(xglog.FieldPath, s.path).Msg("bundle loaded")
	return nil
}

// Download fetches the bundle from url (the configured URL when empty),
// persists it atomically and activates it. A bundle that does not parse is
// neither persisted nor activated.
func (s *Store) Download(ctx context.Context, url string) error {
	if url == "" {
		url = s.url
	}
	logger := xglog.WithContext(ctx, s.logger).With().Str(xglog.FieldURL, pnet.SanitizeURL(url)).Logger()
	logger.Debug().Msg("downloading bundle")

	data, err := s.fetch(ctx, url)
	if err != nil {
		metrics.RecordBundleLoad("download", "failure")
		return err
	}
	if _, err := Parse(string(data)); err != nil {
		metrics.RecordBundleLoad("download", "failure")
		return fmt.Errorf("downloaded bundle: %w", err)
	}
	if err := s.persist(ctx, data); err != nil {
		metrics.RecordBundleLoad("download", "failure")
		return err
	}
	if err := s.activate(string(data)); err != nil {
		metrics.RecordBundleLoad("download", "failure")
		return err
	}
	metrics.RecordBundleLoad("download", "success")
	logger.Info().Int("bytes", len(data)).Msg("bundle downloaded")
	return nil
}

func (s *Store) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build bundle request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download bundle: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("download bundle: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBundleBytes))
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	return data, nil
}

func (s *Store) persist(ctx context.Context, data []byte) error {
	logger := xglog.WithContext(ctx, s.logger)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create bundle dir: %w", err)
	}

	pending, err := renameio.NewPendingFile(s.path, renameio.WithPermissions(0o640))
	if err != nil {
		return fmt.Errorf("create pending bundle file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending bundle file")
		}
	}()
	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit bundle: %w", err)
	}
	return nil
}

func (s *Store) activate(data string) error {
	b, err := Parse(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current = b
	listeners := append([]func(*Bundle){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(b)
	}
	return nil
}

// StartWatcher reloads the bundle whenever the file on disk changes. The
// parent directory is watched because downloads replace the file by rename.
func (s *Store) StartWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch bundle dir: %w", err)
	}

	s.logger.Info().Str(xglog.FieldPath, s.path).Msg("watching bundle for changes")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.watchLoop(ctx, watcher)
	}()
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	var debounce *time.Timer
	reload := make(chan struct{}, 1)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
		_ = watcher.Close()
	}()

	name := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("bundle watcher stopped")
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			s.logger.Debug().Str("op", event.Op.String()).Msg("bundle file changed")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDuration, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := s.Load(); err != nil {
				s.logger.Error().Err(err).Msg("automatic bundle reload failed")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Msg("bundle watcher error")
		}
	}
}

// Wait blocks until the watcher goroutine has exited.
func (s *Store) Wait() {
	s.wg.Wait()
}
