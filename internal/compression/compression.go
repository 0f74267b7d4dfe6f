// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package compression implements the payload encodings understood by the
// remote cache.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
)

// Scheme is a payload encoding. The suffix is appended to remote cache keys
// so that differently encoded payloads never collide.
type Scheme interface {
	Name() string
	Suffix() string
	ContentType() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

var (
	// Deflate is raw RFC 1951 deflate without zlib or gzip framing.
	Deflate Scheme = deflateScheme{}
	// None stores JSON as is.
	None Scheme = noneScheme{}
)

// ByName returns the scheme registered under name. An empty name selects
// Deflate.
func ByName(name string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "deflate", "zlib":
		return Deflate, nil
	case "none", "identity":
		return None, nil
	default:
		return nil, fmt.Errorf("unknown compression scheme %q", name)
	}
}

type deflateScheme struct{}

func (deflateScheme) Name() string        { return "deflate" }
func (deflateScheme) Suffix() string      { return ".jsondfl" }
func (deflateScheme) ContentType() string { return "application/octet-stream" }

func (deflateScheme) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("deflate writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("deflate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("deflate close: %w", err)
	}
	return buf.Bytes(), nil
}

func (deflateScheme) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer func() { _ = r.Close() }()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	return out, nil
}

type noneScheme struct{}

func (noneScheme) Name() string        { return "none" }
func (noneScheme) Suffix() string      { return "" }
func (noneScheme) ContentType() string { return "application/json" }

func (noneScheme) Compress(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

func (noneScheme) Decompress(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}
