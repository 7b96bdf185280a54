package capture

import (
	"log/slog"
	"time"
)

// Config tunes one capture engine. The zero value is usable: defaults()
// fills every field the caller leaves unset.
type Config struct {
	// MaxInteractions caps attempted interactions per page. Default: 15.
	MaxInteractions int

	// MaxScreenshots caps captured screenshots per page, baseline
	// included. Default: 20.
	MaxScreenshots int

	// InteractionDelay is the pause after activating a non-tab element.
	// Default: 800ms.
	InteractionDelay time.Duration

	// TabPostClickWait is the longer, load-aware pause after activating a
	// tab-like or explicit-button element. Default: 2s.
	TabPostClickWait time.Duration

	// ChangeDetectionTimeout bounds each change-detector snapshot.
	// Default: 5s.
	ChangeDetectionTimeout time.Duration

	// MaxInteractionsPerType caps discovered elements sharing one selector
	// within a category per discovery pass. Default: 3.
	MaxInteractionsPerType int

	// DedupeSimilarityThreshold is the perceptual-hash similarity (0-100)
	// above which two screenshots are considered duplicates. Default: 97.
	DedupeSimilarityThreshold float64

	// SkipSocialElements drops social/share widgets during discovery.
	// nil defaults to true; use a pointer so an explicit false survives.
	SkipSocialElements *bool

	// AvoidOverlayScreenshots skips capture when a fixed/absolute overlay
	// covers more than OverlayCoverageThreshold of the viewport.
	// nil defaults to true.
	AvoidOverlayScreenshots *bool

	// OverlayCoverageThreshold is the viewport fraction (0-1) above which
	// overlay coverage penalises the quality score. Default: 0.35.
	OverlayCoverageThreshold float64

	// MinQualityScore gates screenshots: below it, capture is skipped
	// unless forced. Default: 70.
	MinQualityScore int

	// Region sizing bounds for cropped captures, in CSS pixels.
	MinRegionWidth  float64 // default 40
	MinRegionHeight float64 // default 30
	MaxRegionWidth  float64 // default 1920
	MaxRegionHeight float64 // default 4000

	// ProcessingBudget is the coarse per-page time budget. Default: 90s.
	ProcessingBudget time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxInteractions <= 0 {
		c.MaxInteractions = 15
	}
	if c.MaxScreenshots <= 0 {
		c.MaxScreenshots = 20
	}
	if c.InteractionDelay <= 0 {
		c.InteractionDelay = 800 * time.Millisecond
	}
	if c.TabPostClickWait <= 0 {
		c.TabPostClickWait = 2 * time.Second
	}
	if c.ChangeDetectionTimeout <= 0 {
		c.ChangeDetectionTimeout = 5 * time.Second
	}
	if c.MaxInteractionsPerType <= 0 {
		c.MaxInteractionsPerType = 3
	}
	if c.DedupeSimilarityThreshold <= 0 {
		c.DedupeSimilarityThreshold = 97
	}
	if c.SkipSocialElements == nil {
		c.SkipSocialElements = boolPtr(true)
	}
	if c.AvoidOverlayScreenshots == nil {
		c.AvoidOverlayScreenshots = boolPtr(true)
	}
	if c.OverlayCoverageThreshold <= 0 {
		c.OverlayCoverageThreshold = 0.35
	}
	if c.MinQualityScore <= 0 {
		c.MinQualityScore = 70
	}
	if c.MinRegionWidth <= 0 {
		c.MinRegionWidth = 40
	}
	if c.MinRegionHeight <= 0 {
		c.MinRegionHeight = 30
	}
	if c.MaxRegionWidth <= 0 {
		c.MaxRegionWidth = 1920
	}
	if c.MaxRegionHeight <= 0 {
		c.MaxRegionHeight = 4000
	}
	if c.ProcessingBudget <= 0 {
		c.ProcessingBudget = 90 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func boolPtr(v bool) *bool { return &v }
