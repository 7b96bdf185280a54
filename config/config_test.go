package config

import (
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Browser.Mode != "headless" {
		t.Errorf("mode: got %q", cfg.Browser.Mode)
	}
	if cfg.Jobs.Concurrency != 3 {
		t.Errorf("concurrency: got %d", cfg.Jobs.Concurrency)
	}
	if cfg.Server.Addr != ":8480" {
		t.Errorf("addr: got %q", cfg.Server.Addr)
	}

	capOpts := cfg.CaptureOptions()
	if capOpts.SkipSocialElements != nil || capOpts.AvoidOverlayScreenshots != nil {
		t.Error("unset social/overlay toggles should stay nil for engine defaulting")
	}
}

func TestParseOverrides(t *testing.T) {
	raw := `
browser:
  mode: headful
  recycle_interval: 1h
capture:
  max_interactions: 5
  skip_social_elements: false
  dedupe_threshold: 92
  min_region_width: 60
  max_region_height: 2500
crawl:
  max_pages: 7
  exclude: ["/admin/"]
jobs:
  concurrency: 8
  output_dir: /tmp/shots
`
	cfg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Browser.Mode != "headful" {
		t.Errorf("mode: got %q", cfg.Browser.Mode)
	}
	if cfg.Browser.RecycleInterval != time.Hour {
		t.Errorf("recycle_interval: got %v", cfg.Browser.RecycleInterval)
	}

	capOpts := cfg.CaptureOptions()
	if capOpts.MaxInteractions != 5 {
		t.Errorf("max_interactions: got %d", capOpts.MaxInteractions)
	}
	if capOpts.SkipSocialElements == nil || *capOpts.SkipSocialElements {
		t.Error("explicit false for skip_social_elements was lost")
	}
	if capOpts.DedupeSimilarityThreshold != 92 {
		t.Errorf("dedupe threshold: got %v", capOpts.DedupeSimilarityThreshold)
	}
	if capOpts.MinRegionWidth != 60 || capOpts.MaxRegionHeight != 2500 {
		t.Errorf("region bounds: got %v/%v, want 60/2500",
			capOpts.MinRegionWidth, capOpts.MaxRegionHeight)
	}

	cr := cfg.CrawlOptions()
	if cr.MaxPages != 7 || len(cr.Exclude) != 1 {
		t.Errorf("crawl options: %+v", cr)
	}
	if cfg.Jobs.Concurrency != 8 || cfg.Jobs.OutputDir != "/tmp/shots" {
		t.Errorf("jobs: %+v", cfg.Jobs)
	}
}

func TestParseRejectsBadValues(t *testing.T) {
	for _, raw := range []string{
		"browser:\n  mode: invisible\n",
		"capture:\n  dedupe_threshold: 250\n",
		"capture:\n  overlay_coverage_threshold: 2\n",
	} {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Errorf("Parse(%q): expected error", raw)
		}
	}
}
