// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package urn extracts positional fields from mediathek URNs.
//
// A URN has the shape scheme:namespace:publisherId:kind:id, for example
// urn:mediathek:ard:item:12345. Program lists use the shorter
// urn:mediathek:{publisherId}:programs form.
package urn

import (
	"errors"
	"fmt"
	"strings"

	xglog "github.com/ManuGH/mediathek/internal/log"
)

// Prefix marks a string that is already a URN and needs no resolution.
const Prefix = "urn:"

// Namespace is the namespace used for every URN minted by this module.
const Namespace = "mediathek"

const (
	indexPublisher = 2
	indexKind      = 3
	indexID        = 4
)

// Kind is the fourth URN field.
type Kind string

const (
	KindItem            Kind = "item"
	KindProgram         Kind = "program"
	KindPrograms        Kind = "programs"
	KindRecommendations Kind = "recommendations"
	KindSearch          Kind = "search"
)

// ErrMalformed is returned by Parse for strings that are not well-formed URNs.
var ErrMalformed = errors.New("malformed urn")

// URN is a parsed identifier.
type URN struct {
	Scheme    string
	Namespace string
	Publisher string
	Kind      Kind
	ID        string
}

// String reassembles the URN. A programs URN has no id field.
func (u URN) String() string {
	parts := []string{u.Scheme, u.Namespace, u.Publisher, string(u.Kind)}
	if u.ID != "" {
		parts = append(parts, u.ID)
	}
	return strings.Join(parts, ":")
}

// Parse is the strict parser used at API and CLI boundaries.
func Parse(s string) (URN, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 4 {
		return URN{}, fmt.Errorf("%w: %q has %d fields", ErrMalformed, s, len(parts))
	}
	for i, p := range parts[:4] {
		if p == "" {
			return URN{}, fmt.Errorf("%w: %q has empty field %d", ErrMalformed, s, i)
		}
	}
	u := URN{
		Scheme:    parts[0],
		Namespace: parts[1],
		Publisher: parts[indexPublisher],
		Kind:      Kind(parts[indexKind]),
	}
	if u.Scheme != "urn" {
		return URN{}, fmt.Errorf("%w: %q does not start with %q", ErrMalformed, s, Prefix)
	}
	if len(parts) > indexID {
		// IDs may themselves contain colons.
		u.ID = strings.Join(parts[indexID:], ":")
		if u.ID == "" {
			return URN{}, fmt.Errorf("%w: %q has empty id", ErrMalformed, s)
		}
	} else if !u.shortForm() {
		return URN{}, fmt.Errorf("%w: %q of kind %s needs an id", ErrMalformed, s, u.Kind)
	}
	return u, nil
}

// shortForm reports whether u is complete without an id field. Curated
// pages such as urn:mediathek:recommendations:recent carry their category
// in the kind position.
func (u URN) shortForm() bool {
	switch u.Kind {
	case KindPrograms, KindRecommendations, KindSearch:
		return true
	}
	return u.Publisher == string(KindRecommendations)
}

// ValueAt returns the colon separated field at index, or "" when the URN
// has too few fields.
func ValueAt(s string, index int) string {
	parts := strings.Split(s, ":")
	if len(parts) < index+1 {
		logger := xglog.WithComponent("urn")
		logger.Debug().Str(xglog.FieldURN, s).Int("index", index).Msg("urn has too few fields")
		return ""
	}
	return parts[index]
}

// PublisherID returns field 2.
func PublisherID(s string) string { return ValueAt(s, indexPublisher) }

// ID returns field 4.
func ID(s string) string { return ValueAt(s, indexID) }

// IsURN reports whether s is literally prefixed with "urn:".
func IsURN(s string) bool { return strings.HasPrefix(s, Prefix) }

// Item builds urn:mediathek:{publisherID}:item:{id}.
func Item(publisherID, id string) string {
	return URN{Scheme: "urn", Namespace: Namespace, Publisher: publisherID, Kind: KindItem, ID: id}.String()
}

// Program builds urn:mediathek:{publisherID}:program:{id}.
func Program(publisherID, id string) string {
	return URN{Scheme: "urn", Namespace: Namespace, Publisher: publisherID, Kind: KindProgram, ID: id}.String()
}

// Programs builds urn:mediathek:{publisherID}:programs.
func Programs(publisherID string) string {
	return URN{Scheme: "urn", Namespace: Namespace, Publisher: publisherID, Kind: KindPrograms}.String()
}

// RecommendationQueries is the remote document listing suggested searches.
const RecommendationQueries = "urn:mediathek:recommendations:queries"
