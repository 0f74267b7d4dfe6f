// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package adapter

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const testScript = `
function getUrnForUrl(cb, url) {
	if (url.indexOf("ardmediathek.de") >= 0) {
		cb(null, "urn:mediathek:ard:item:" + url.split("/").pop());
		return;
	}
	cb("unsupported url: " + url, null);
}

function getMetadataForItem(cb, urn) {
	cb(null, { urn: urn, id: urn.split(":")[4], title: "Item " + urn.split(":")[4] });
}

function getProgramMetadata(cb, urn) {
	throw new TypeError("meta not supported");
}

function getProgramFeed(cb, urn) {
	// forgets to call back
}

function getProgramList(cb, publisherId) {
	while (true) {}
}
`

func newRuntime(t *testing.T, opts Options) *Runtime {
	t.Helper()
	r := New(opts)
	require.NoError(t, r.Load(testScript))
	return r
}

func TestCallBeforeLoad(t *testing.T) {
	r := New(Options{Logger: zerolog.Nop()})
	assert.False(t, r.Loaded())
	_, err := r.CollectItem(context.Background(), "urn:mediathek:ard:item:1")
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestResolveURN(t *testing.T) {
	r := newRuntime(t, Options{Logger: zerolog.Nop()})
	assert.True(t, r.Loaded())

	urn, err := r.ResolveURN(context.Background(), "https://www.ardmediathek.de/video/abc")
	require.NoError(t, err)
	assert.Equal(t, "urn:mediathek:ard:item:abc", urn)

	_, err = r.ResolveURN(context.Background(), "https://example.org/x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScript)
	assert.Contains(t, err.Error(), "unsupported url")
}

func TestObjectResultIsEncoded(t *testing.T) {
	r := newRuntime(t, Options{Logger: zerolog.Nop()})
	doc, err := r.CollectItem(context.Background(), "urn:mediathek:zdf:item:99")
	require.NoError(t, err)
	assert.JSONEq(t, `{"urn":"urn:mediathek:zdf:item:99","id":"99","title":"Item 99"}`, doc)
}

func TestThrownErrorCarriesStack(t *testing.T) {
	r := newRuntime(t, Options{Logger: zerolog.Nop()})
	_, err := r.CollectProgramMeta(context.Background(), "urn:mediathek:ard:program:p")
	require.Error(t, err)

	var se *ScriptError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, FuncProgramMeta, se.Function)
	assert.ErrorIs(t, err, ErrScript)
	assert.Contains(t, se.Message, "meta not supported")
	assert.NotEmpty(t, se.Stack())
}

func TestMissingCallback(t *testing.T) {
	r := newRuntime(t, Options{Logger: zerolog.Nop()})
	_, err := r.CollectProgramFeed(context.Background(), "urn:mediathek:ard:program:p")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestFunctionNotFound(t *testing.T) {
	r := newRuntime(t, Options{Logger: zerolog.Nop()})
	_, err := r.Call(context.Background(), "doesNotExist", "")
	assert.ErrorIs(t, err, ErrFunctionNotFound)
}

func TestInterruptOnTimeout(t *testing.T) {
	r := newRuntime(t, Options{Logger: zerolog.Nop(), Timeout: 100 * time.Millisecond})

	start := time.Now()
	_, err := r.CollectProgramList(context.Background(), "ard")
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.Less(t, time.Since(start), 5*time.Second)

	// The runtime stays usable after an interrupt.
	_, err = r.CollectItem(context.Background(), "urn:mediathek:zdf:item:1")
	assert.NoError(t, err)
}

func TestLoadErrorKeepsPreviousScript(t *testing.T) {
	r := newRuntime(t, Options{Logger: zerolog.Nop()})
	err := r.Load("function (")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScript)

	_, err = r.CollectItem(context.Background(), "urn:mediathek:zdf:item:1")
	assert.NoError(t, err)
}

func TestReadContentsOfURLAsString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("X-Api-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"title":"from server"}`))
	}))
	defer srv.Close()

	script := `
function getMetadataForItem(cb, urn) {
	readContentsOfURLAsString("` + srv.URL + `/item", { "X-Api-Key": "secret" }, function (err, body, status) {
		if (err) { cb(err, null); return; }
		var parsed = JSON.parse(body);
		cb(null, JSON.stringify({ urn: urn, title: parsed.title, status: status }));
	});
}
function getUrnForUrl(cb, url) {
	readContentsOfURLAsString(url, {}, function (err, body) { cb(err, body); });
}
`
	r := New(Options{HTTPClient: srv.Client(), RequestsPerSecond: 100, Burst: 5, Logger: zerolog.Nop()})
	require.NoError(t, r.Load(script))

	doc, err := r.CollectItem(context.Background(), "urn:mediathek:ard:item:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"urn":"urn:mediathek:ard:item:1","title":"from server","status":418}`, doc)

	_, err = r.ResolveURN(context.Background(), "not a url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid URL")
}

func TestNativeLog(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	r := New(Options{Logger: logger})
	require.NoError(t, r.Load(`nativeLog("hello from script", "warning");`))

	out := buf.String()
	assert.Contains(t, out, `"message":"hello from script"`)
	assert.Contains(t, out, `"level":"warn"`)
	assert.True(t, strings.Contains(out, `"component":"script"`))
}

func TestCallsRunInParallel(t *testing.T) {
	const parallel = 3
	var arrived sync.WaitGroup
	arrived.Add(parallel)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		arrived.Done()
		// Every request waits until all of them are in flight.
		arrived.Wait()
		_, _ = w.Write([]byte(strings.TrimPrefix(req.URL.Path, "/")))
	}))
	defer srv.Close()

	script := `
function getMetadataForItem(cb, urn) {
	readContentsOfURLAsString("` + srv.URL + `/" + urn.split(":")[4], {}, function (err, body) { cb(err, body); });
}
`
	r := New(Options{HTTPClient: srv.Client(), Concurrency: parallel, Timeout: 5 * time.Second, Logger: zerolog.Nop()})
	require.NoError(t, r.Load(script))

	var g errgroup.Group
	results := make([]string, parallel)
	for i := range parallel {
		g.Go(func() error {
			doc, err := r.CollectItem(context.Background(), "urn:mediathek:ard:item:"+strconv.Itoa(i))
			results[i] = doc
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, []string{"0", "1", "2"}, results)
}

func TestConcurrencyBoundsWaitingCalls(t *testing.T) {
	r := New(Options{Concurrency: 1, Timeout: 5 * time.Second, Logger: zerolog.Nop()})
	require.NoError(t, r.Load(testScript))

	// getProgramList loops until its context ends and holds the only VM.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := r.CollectProgramList(ctx, "ard")
		done <- err
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer waitCancel()
	time.Sleep(20 * time.Millisecond)
	_, err := r.CollectItem(waitCtx, "urn:mediathek:ard:item:1")
	assert.ErrorIs(t, err, ErrInterrupted)

	assert.ErrorIs(t, <-done, ErrInterrupted)
	_, err = r.CollectItem(context.Background(), "urn:mediathek:ard:item:1")
	assert.NoError(t, err)
}

func TestLoadRetiresPreviousVMs(t *testing.T) {
	r := New(Options{Concurrency: 4, Logger: zerolog.Nop()})
	require.NoError(t, r.Load(`function getUrnForUrl(cb, url) { cb(null, "v1"); }`))

	var g errgroup.Group
	for range 4 {
		g.Go(func() error {
			_, err := r.ResolveURN(context.Background(), "x")
			return err
		})
	}
	require.NoError(t, g.Wait())

	require.NoError(t, r.Load(`function getUrnForUrl(cb, url) { cb(null, "v2"); }`))
	for range 8 {
		got, err := r.ResolveURN(context.Background(), "x")
		require.NoError(t, err)
		assert.Equal(t, "v2", got)
	}
}
