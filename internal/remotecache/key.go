// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package remotecache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/ManuGH/mediathek/internal/compression"
)

// KeyFor derives the storage key for urn: lowercase hex SHA-256 of the UTF-8
// bytes followed by the scheme suffix.
func KeyFor(urn string, scheme compression.Scheme) string {
	sum := sha256.Sum256([]byte(urn))
	return hex.EncodeToString(sum[:]) + scheme.Suffix()
}
