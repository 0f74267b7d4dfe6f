// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package model defines the metadata documents exchanged with adapters and
// caches. JSON field names are the canonical adapter names.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ImageVariant is one rendition of an image.
type ImageVariant struct {
	URL    string `json:"url"`
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
}

// MediaVariant is one playable rendition of an item.
type MediaVariant struct {
	URL             string `json:"url"`
	DownloadAllowed *bool  `json:"downloadAllowed,omitempty"`
}

// ItemImage groups the image variants of an item.
type ItemImage struct {
	Variants []ImageVariant `json:"variants"`
}

// Item is a single playable media entry.
type Item struct {
	URN             string         `json:"urn,omitempty"`
	ID              string         `json:"id"`
	Title           string         `json:"title,omitempty"`
	Subtitle        string         `json:"subtitle,omitempty"`
	Program         *Program       `json:"program,omitempty"`
	Description     string         `json:"description,omitempty"`
	Media           []MediaVariant `json:"media,omitempty"`
	Image           *ItemImage     `json:"image,omitempty"`
	Duration        *int           `json:"duration,omitempty"`
	Broadcasts      *float64       `json:"broadcasts,omitempty"`
	WebpageURL      string         `json:"webpageURL,omitempty"`
	Publisher       string         `json:"publisher,omitempty"`
	Originator      string         `json:"originator,omitempty"`
	Captured        *float64       `json:"captured,omitempty"`
	DownloadAllowed *bool          `json:"downloadAllowed,omitempty"`
}

// Equal compares items by id.
func (i Item) Equal(other Item) bool { return i.ID == other.ID }

// Program is a show with its (optional) item list.
type Program struct {
	URN          string         `json:"urn,omitempty"`
	ID           string         `json:"id"`
	Name         string         `json:"name,omitempty"`
	Items        []Item         `json:"items,omitzero"`
	Publisher    string         `json:"publisher,omitempty"`
	FeedCaptured *float64       `json:"feedCaptured,omitempty"`
	Captured     *float64       `json:"captured,omitempty"`
	Description  string         `json:"description,omitempty"`
	Homepage     string         `json:"homepage,omitempty"`
	Image        []ImageVariant `json:"image,omitempty"`
}

// ProgramFeed is the thin item list returned by a feed collection.
type ProgramFeed struct {
	Items []Item `json:"items"`
}

// ExplorePageContents is a curated page.
type ExplorePageContents struct {
	Title           string   `json:"title,omitempty"`
	Items           []Item   `json:"items"`
	Categories      []string `json:"categories,omitempty"`
	CurrentCategory string   `json:"currentCategory,omitempty"`
}

// Decode parses a JSON document into T.
func Decode[T any](doc string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return v, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}

// Encode renders v as a compact JSON document.
func Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %T: %w", v, err)
	}
	return string(b), nil
}

// UnixSeconds converts t into fractional unix seconds.
func UnixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

// TimeFromUnix converts fractional unix seconds into a time.
func TimeFromUnix(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
