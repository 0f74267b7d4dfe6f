// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"math"
	"strings"
	"time"
)

const unsizedWidth = 999999

// CapturedAt returns the capture time, or now when the item carries none.
// Feed items are thin and usually lack it.
func (i Item) CapturedAt(now time.Time) time.Time {
	if i.Captured == nil {
		return now
	}
	return TimeFromUnix(*i.Captured)
}

// BroadcastsOrZero returns the broadcast timestamp; missing sorts as 0.
func (i Item) BroadcastsOrZero() float64 {
	if i.Broadcasts == nil {
		return 0
	}
	return *i.Broadcasts
}

// IsDownloadAllowed reports whether the item or any of its media variants
// permits downloading.
func (i Item) IsDownloadAllowed() bool {
	if i.DownloadAllowed != nil && *i.DownloadAllowed {
		return true
	}
	for _, v := range i.Media {
		if v.DownloadAllowed != nil && *v.DownloadAllowed {
			return true
		}
	}
	return false
}

func isDownloadable(url string) bool {
	return strings.Contains(url, ".mp4") && !strings.Contains(url, ".m3u8")
}

// CanBeDownloaded reports whether any media variant is a progressive mp4.
func (i Item) CanBeDownloaded() bool {
	_, ok := i.DownloadURL()
	return ok
}

// DownloadURL returns the last progressive mp4 variant. Variants are ordered
// by increasing quality.
func (i Item) DownloadURL() (string, bool) {
	best := ""
	for _, v := range i.Media {
		if isDownloadable(v.URL) {
			best = v.URL
		}
	}
	return best, best != ""
}

// CanPlay reports whether the item has any media.
func (i *Item) CanPlay() bool {
	return i != nil && len(i.Media) > 0
}

// PlayURL returns the first media variant.
func (i Item) PlayURL() (string, bool) {
	if len(i.Media) == 0 {
		return "", false
	}
	return i.Media[0].URL, true
}

// ThumbnailURL picks the narrowest fully sized variant. The first variant
// wins when none carries both dimensions.
func (i Item) ThumbnailURL() string {
	if i.Image == nil {
		return "about:blank"
	}
	var best *ImageVariant
	bestWidth := unsizedWidth
	for idx := range i.Image.Variants {
		v := &i.Image.Variants[idx]
		if best == nil {
			best = v
			if v.Width != nil {
				bestWidth = *v.Width
			}
			continue
		}
		if v.Width != nil && v.Height != nil && *v.Width < bestWidth {
			best = v
			bestWidth = *v.Width
		}
	}
	if best == nil {
		return "about:blank"
	}
	return best.URL
}

// BestImage returns the variant whose aspect ratio is closest to desired.
// Variants without both dimensions are ignored.
func (p Program) BestImage(desired float64) (ImageVariant, bool) {
	var best ImageVariant
	found := false
	bestRatio := 1000.0
	for _, v := range p.Image {
		if v.Width == nil || v.Height == nil || *v.Height == 0 {
			continue
		}
		ratio := float64(*v.Width) / float64(*v.Height)
		if !found || math.Abs(desired-ratio) < math.Abs(desired-bestRatio) {
			best = v
			bestRatio = ratio
			found = true
		}
	}
	return best, found
}

// DisplayName returns the program name, falling back to its id.
func (p Program) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
