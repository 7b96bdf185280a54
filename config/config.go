// CLAUDE:SUMMARY Top-level YAML configuration: browser, capture, crawl, jobs and server sections with defaults.
// Package config loads the pagelens YAML configuration file and maps its
// sections onto the per-package Config structs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pagelens/pagelens/browser"
	"github.com/pagelens/pagelens/capture"
	"github.com/pagelens/pagelens/crawl"
)

// Config is the top-level pagelens configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Capture CaptureConfig `yaml:"capture"`
	Crawl   CrawlConfig   `yaml:"crawl"`
	Jobs    JobsConfig    `yaml:"jobs"`
	Server  ServerConfig  `yaml:"server"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote          string        `yaml:"remote"`
	RecycleInterval time.Duration `yaml:"recycle_interval"`
	BlockResources  []string      `yaml:"block_resources"`
	Mode            string        `yaml:"mode"` // headless | headful
	XvfbDisplay     string        `yaml:"xvfb_display"`
	XvfbScreen      string        `yaml:"xvfb_screen"`
}

// CaptureConfig tunes the per-page capture engine.
type CaptureConfig struct {
	MaxInteractions          int           `yaml:"max_interactions"`
	MaxScreenshots           int           `yaml:"max_screenshots"`
	InteractionDelay         time.Duration `yaml:"interaction_delay"`
	TabPostClickWait         time.Duration `yaml:"tab_post_click_wait"`
	ChangeDetectionTimeout   time.Duration `yaml:"change_detection_timeout"`
	MaxInteractionsPerType   int           `yaml:"max_interactions_per_type"`
	DedupeThreshold          float64       `yaml:"dedupe_threshold"`
	SkipSocialElements       *bool         `yaml:"skip_social_elements"`
	AvoidOverlayScreenshots  *bool         `yaml:"avoid_overlay_screenshots"`
	OverlayCoverageThreshold float64       `yaml:"overlay_coverage_threshold"`
	MinQualityScore          int           `yaml:"min_quality_score"`
	MinRegionWidth           float64       `yaml:"min_region_width"`
	MinRegionHeight          float64       `yaml:"min_region_height"`
	MaxRegionWidth           float64       `yaml:"max_region_width"`
	MaxRegionHeight          float64       `yaml:"max_region_height"`
	ProcessingBudget         time.Duration `yaml:"processing_budget"`
}

// CrawlConfig tunes URL discovery.
type CrawlConfig struct {
	MaxPages int      `yaml:"max_pages"`
	MaxDepth int      `yaml:"max_depth"`
	Exclude  []string `yaml:"exclude"`
}

// JobsConfig controls job execution and storage.
type JobsConfig struct {
	Concurrency int    `yaml:"concurrency"`
	OutputDir   string `yaml:"output_dir"`
	DBPath      string `yaml:"db_path"`
}

// ServerConfig controls the HTTP API and the optional MCP transports.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	MCP  bool   `yaml:"mcp"`

	// MCPQUICAddr enables MCP-over-QUIC on this UDP address. Without
	// TLSCert/TLSKey a self-signed certificate is generated.
	MCPQUICAddr string `yaml:"mcp_quic_addr"`
	TLSCert     string `yaml:"tls_cert"`
	TLSKey      string `yaml:"tls_key"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Parse unmarshals YAML configuration bytes and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Browser.Mode == "" {
		c.Browser.Mode = "headless"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if len(c.Browser.BlockResources) == 0 {
		c.Browser.BlockResources = []string{"font", "media"}
	}
	if c.Jobs.Concurrency <= 0 {
		c.Jobs.Concurrency = 3
	}
	if c.Jobs.OutputDir == "" {
		c.Jobs.OutputDir = "pagelens-out"
	}
	if c.Jobs.DBPath == "" {
		c.Jobs.DBPath = "pagelens.db"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8480"
	}
	// Per-engine knobs default in their own packages; only values the
	// file sets explicitly flow through.
}

func (c *Config) validate() error {
	switch c.Browser.Mode {
	case "headless", "headful":
	default:
		return fmt.Errorf("browser.mode %q: must be headless or headful", c.Browser.Mode)
	}
	if c.Capture.DedupeThreshold < 0 || c.Capture.DedupeThreshold > 100 {
		return fmt.Errorf("capture.dedupe_threshold %v: must be within 0-100", c.Capture.DedupeThreshold)
	}
	if c.Capture.OverlayCoverageThreshold < 0 || c.Capture.OverlayCoverageThreshold > 1 {
		return fmt.Errorf("capture.overlay_coverage_threshold %v: must be within 0-1", c.Capture.OverlayCoverageThreshold)
	}
	return nil
}

// BrowserOptions maps the browser section onto browser.Config.
func (c *Config) BrowserOptions() browser.Config {
	mode := browser.ModeHeadless
	if c.Browser.Mode == "headful" {
		mode = browser.ModeHeadful
	}
	return browser.Config{
		RemoteURL:       c.Browser.Remote,
		RecycleInterval: c.Browser.RecycleInterval,
		BlockResources:  c.Browser.BlockResources,
		Mode:            mode,
		XvfbDisplay:     c.Browser.XvfbDisplay,
		XvfbScreen:      c.Browser.XvfbScreen,
	}
}

// CaptureOptions maps the capture section onto capture.Config. Booleans
// stay pointers end to end so an explicit false survives defaulting.
func (c *Config) CaptureOptions() capture.Config {
	return capture.Config{
		MaxInteractions:           c.Capture.MaxInteractions,
		MaxScreenshots:            c.Capture.MaxScreenshots,
		InteractionDelay:          c.Capture.InteractionDelay,
		TabPostClickWait:          c.Capture.TabPostClickWait,
		ChangeDetectionTimeout:    c.Capture.ChangeDetectionTimeout,
		MaxInteractionsPerType:    c.Capture.MaxInteractionsPerType,
		DedupeSimilarityThreshold: c.Capture.DedupeThreshold,
		SkipSocialElements:        c.Capture.SkipSocialElements,
		AvoidOverlayScreenshots:   c.Capture.AvoidOverlayScreenshots,
		OverlayCoverageThreshold:  c.Capture.OverlayCoverageThreshold,
		MinQualityScore:           c.Capture.MinQualityScore,
		MinRegionWidth:            c.Capture.MinRegionWidth,
		MinRegionHeight:           c.Capture.MinRegionHeight,
		MaxRegionWidth:            c.Capture.MaxRegionWidth,
		MaxRegionHeight:           c.Capture.MaxRegionHeight,
		ProcessingBudget:          c.Capture.ProcessingBudget,
	}
}

// CrawlOptions maps the crawl section onto crawl.Config.
func (c *Config) CrawlOptions() crawl.Config {
	return crawl.Config{
		MaxPages: c.Crawl.MaxPages,
		MaxDepth: c.Crawl.MaxDepth,
		Exclude:  c.Crawl.Exclude,
	}
}
