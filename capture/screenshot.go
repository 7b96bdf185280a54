package capture

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/pagelens/pagelens/browser"
)

// ShotOptions controls one capture.
type ShotOptions struct {
	// Tags label the shot (baseline, anchor, tabpanel, tabs, final, ...).
	Tags []string

	// Rect clips the capture to a page region. Nil = full page.
	Rect *Rect

	// Force bypasses the quality-score gate.
	Force bool
}

// Screenshotter captures page images and appends them to the run context.
type Screenshotter struct {
	tab       *browser.Tab
	cfg       *Config
	validator *Validator
}

// NewScreenshotter creates a Screenshotter bound to one tab.
func NewScreenshotter(tab *browser.Tab, cfg *Config, validator *Validator) *Screenshotter {
	return &Screenshotter{tab: tab, cfg: cfg, validator: validator}
}

// Capture takes a screenshot if the screenshot budget and quality gate
// allow it. Returns nil without error when the shot was gated; the run
// continues either way.
func (s *Screenshotter) Capture(ctx context.Context, rc *RunContext, opts ShotOptions) (*ScreenshotRecord, error) {
	if len(rc.Screenshots) >= s.cfg.MaxScreenshots {
		s.cfg.Logger.Debug("capture: screenshot budget exhausted", "max", s.cfg.MaxScreenshots)
		return nil, nil
	}
	if !s.validator.ShouldCapture(ctx, opts.Force) {
		return nil, nil
	}

	req := &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	}
	fullPage := opts.Rect == nil
	if opts.Rect != nil {
		req.Clip = &proto.PageViewport{
			X:      opts.Rect.X,
			Y:      opts.Rect.Y,
			Width:  opts.Rect.Width,
			Height: opts.Rect.Height,
			Scale:  1,
		}
	}

	buf, err := s.tab.Page.Context(ctx).Screenshot(fullPage, req)
	if err != nil {
		return nil, fmt.Errorf("capture: screenshot: %w", err)
	}

	rc.shotSeq++
	rec := &ScreenshotRecord{
		Filename:  shotFilename(rc.shotSeq, opts.Tags),
		Timestamp: time.Now(),
		Buffer:    buf,
		Size:      len(buf),
		Tags:      opts.Tags,
		CropRect:  opts.Rect,
	}
	rc.Screenshots = append(rc.Screenshots, rec)

	s.cfg.Logger.Info("capture: screenshot taken",
		"file", rec.Filename, "bytes", rec.Size, "region", opts.Rect != nil)

	return rec, nil
}

// shotFilename builds a stable, sortable name: zero-padded sequence plus
// the first tag.
func shotFilename(seq int, tags []string) string {
	label := "shot"
	if len(tags) > 0 && tags[0] != "" {
		label = strings.ToLower(strings.ReplaceAll(tags[0], " ", "-"))
	}
	return fmt.Sprintf("%03d-%s.png", seq, label)
}
