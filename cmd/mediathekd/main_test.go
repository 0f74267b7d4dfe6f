// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mediathek/internal/version"
)

const testBundle = `//config-json-start
const config = {}
//config-json-end
function getUrnForUrl(cb, url) {
	cb(null, "urn:mediathek:ard:item:" + url.split("/").pop());
}
function getMetadataForItem(cb, urn) {
	cb(null, { urn: urn, id: urn.split(":")[4], title: "Item " + urn.split(":")[4] });
}
function getProgramMetadata(cb, urn) { cb("unsupported", null); }
function getProgramFeed(cb, urn) { cb("unsupported", null); }
function getProgramList(cb, publisherID) { cb("unsupported", null); }
`

// setupDataDir points the loader at a temp data dir holding the test bundle.
func setupDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bundle.js"), []byte(testBundle), 0o600))
	t.Setenv("MEDIATHEK_DATA_DIR", dir)
	t.Setenv("MEDIATHEK_REMOTE_BACKEND", "none")
	t.Setenv("MEDIATHEK_BUNDLE_URL", "")
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersionFlag(t *testing.T) {
	code, out, _ := runCLI(t, "-version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, version.Version)
}

func TestUnknownCommand(t *testing.T) {
	setupDataDir(t)
	code, _, errOut := runCLI(t, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "frobnicate"`)
}

func TestInvalidConfigFails(t *testing.T) {
	dir := setupDataDir(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("notAField: 1\n"), 0o600))

	code, _, _ := runCLI(t, "-config", path, "collect", "resolve", "x")
	assert.Equal(t, 1, code)
}

func TestCollectResolve(t *testing.T) {
	setupDataDir(t)
	code, out, errOut := runCLI(t, "collect", "resolve", "https://www.ardmediathek.de/video/42")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "urn:mediathek:ard:item:42", strings.TrimSpace(out))
}

func TestCollectFailureExitsNonZero(t *testing.T) {
	setupDataDir(t)
	code, _, _ := runCLI(t, "collect", "meta", "urn:mediathek:ard:program:1")
	assert.Equal(t, 1, code)
}

func TestCollectUsage(t *testing.T) {
	setupDataDir(t)
	code, _, _ := runCLI(t, "collect", "resolve")
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(t, "collect", "bogus", "x")
	assert.Equal(t, 2, code)
}

func TestFetchItem(t *testing.T) {
	setupDataDir(t)
	code, out, errOut := runCLI(t, "fetch", "item", "https://www.ardmediathek.de/video/7")
	require.Equal(t, 0, code, errOut)

	var res struct {
		Source string `json:"source"`
		Value  struct {
			URN   string `json:"urn"`
			Title string `json:"title"`
		} `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "collect", res.Source)
	assert.Equal(t, "urn:mediathek:ard:item:7", res.Value.URN)
	assert.Equal(t, "Item 7", res.Value.Title)
}

func TestFetchCachedOnlyMisses(t *testing.T) {
	setupDataDir(t)
	code, out, _ := runCLI(t, "fetch", "-strategy", "local", "item", "urn:mediathek:ard:item:7")
	assert.Equal(t, 1, code)
	assert.Empty(t, out)
}

func TestFetchRejectsMalformedURN(t *testing.T) {
	setupDataDir(t)
	code, _, _ := runCLI(t, "fetch", "program", "urn:mediathek")
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(t, "fetch", "-strategy", "sometimes", "item", "urn:mediathek:ard:item:1")
	assert.Equal(t, 2, code)
}

func TestFetchExploreCuratedPage(t *testing.T) {
	setupDataDir(t)
	// Well-formed but not cached: a miss, not a usage error.
	code, out, errOut := runCLI(t, "fetch", "-strategy", "local", "explore", "urn:mediathek:recommendations:recent")
	assert.Equal(t, 1, code, errOut)
	assert.Empty(t, out)
	assert.NotContains(t, errOut, "malformed")
}

func TestBundleUpdateNeedsURL(t *testing.T) {
	setupDataDir(t)
	code, _, errOut := runCLI(t, "bundle", "update")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "no URL")
}

func TestConfigDumpMasksSecrets(t *testing.T) {
	setupDataDir(t)
	t.Setenv("MEDIATHEK_REDIS_PASSWORD", "hunter2")
	code, out, errOut := runCLI(t, "config")
	require.Equal(t, 0, code, errOut)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "***")
}

func TestConfigCheck(t *testing.T) {
	dir := setupDataDir(t)
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(good, []byte("logLevel: debug\n"), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte("logLevl: debug\n"), 0o600))

	code, out, _ := runCLI(t, "config", "check", good)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "ok")

	code, _, _ = runCLI(t, "config", "check", bad)
	assert.Equal(t, 1, code)
}
