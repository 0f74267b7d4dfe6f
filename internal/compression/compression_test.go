// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package compression

import (
	"bytes"
	"compress/flate"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	random := make([]byte, 64*1024)
	_, _ = rng.Read(random)

	inputs := map[string][]byte{
		"empty":  {},
		"json":   []byte(`{"id":"1","title":"Tagesschau","items":[]}`),
		"umlaut": []byte(`{"title":"Schöne Grüße aus Köln"}`),
		"large":  []byte(strings.Repeat(`{"id":"x"},`, 10000)),
		"random": random,
	}

	for _, scheme := range []Scheme{Deflate, None} {
		for name, in := range inputs {
			t.Run(scheme.Name()+"/"+name, func(t *testing.T) {
				compressed, err := scheme.Compress(in)
				require.NoError(t, err)
				out, err := scheme.Decompress(compressed)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(in, out), "round trip changed payload")
			})
		}
	}
}

func TestDeflateIsRawRFC1951(t *testing.T) {
	payload := []byte(`{"id":"raw"}`)
	compressed, err := Deflate.Compress(payload)
	require.NoError(t, err)

	// The standard library reader accepts only unframed deflate streams.
	out, err := io.ReadAll(flate.NewReader(bytes.NewReader(compressed)))
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestDecompressGarbage(t *testing.T) {
	_, err := Deflate.Decompress([]byte{0xff, 0xff, 0xff, 0xff})
	assert.Error(t, err)
}

func TestByName(t *testing.T) {
	s, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, ".jsondfl", s.Suffix())
	assert.Equal(t, "application/octet-stream", s.ContentType())

	s, err = ByName("none")
	require.NoError(t, err)
	assert.Equal(t, "", s.Suffix())
	assert.Equal(t, "application/json", s.ContentType())

	_, err = ByName("brotli")
	assert.Error(t, err)
}
