// CLAUDE:SUMMARY Job service: submit capture jobs, track state in SQLite, expose results to the API layer.
// Package jobs runs capture jobs: a submitted URL (optionally crawled
// into a page list) is turned into screenshots on disk plus metadata in
// SQLite, with a bounded number of concurrent page sessions.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pagelens/pagelens/browser"
	"github.com/pagelens/pagelens/capture"
	"github.com/pagelens/pagelens/crawl"
	"github.com/pagelens/pagelens/idgen"
	"github.com/pagelens/pagelens/jobs/internal/store"
)

// Job and Screenshot are the persisted records, re-exported for the
// API layer.
type (
	Job        = store.Job
	Screenshot = store.Screenshot
)

// Job states.
const (
	StatePending   = "pending"
	StateDiscovery = "url_discovery"
	StateCapture   = "screenshot_capture"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// Config tunes the job service.
type Config struct {
	// Concurrency is the number of pages captured in parallel per job.
	// Default: 3.
	Concurrency int

	// DBPath is the SQLite database location. Default: pagelens.db.
	DBPath string

	// Capture tunes each page's capture engine.
	Capture capture.Config

	// Crawl tunes URL discovery for crawl jobs.
	Crawl crawl.Config

	// Capturer overrides browser-driven page capture. Nil drives a real
	// browser through the Manager.
	Capturer func(ctx context.Context, url string) (*capture.Result, error)

	// Discoverer overrides crawl-based URL discovery.
	Discoverer func(ctx context.Context, url string) ([]string, error)

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.DBPath == "" {
		c.DBPath = "pagelens.db"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Request is one job submission.
type Request struct {
	URL   string `json:"url"`
	Crawl bool   `json:"crawl"`
}

// Service owns the job store, the sink and the browser, and runs
// submitted jobs in the background.
type Service struct {
	cfg   Config
	store *store.Store
	sink  Sink
	mgr   *browser.Manager

	// Swappable for tests; the defaults drive a real browser.
	capturePage func(ctx context.Context, url string) (*capture.Result, error)
	discover    func(ctx context.Context, url string) ([]string, error)

	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewService opens the job database and wires the runner. ctx bounds
// all background job execution.
func NewService(ctx context.Context, mgr *browser.Manager, sink Sink, cfg Config) (*Service, error) {
	cfg.defaults()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("jobs: open store: %w", err)
	}

	s := &Service{
		cfg:     cfg,
		store:   st,
		sink:    sink,
		mgr:     mgr,
		baseCtx: ctx,
	}
	s.capturePage = s.runPage
	if cfg.Capturer != nil {
		s.capturePage = cfg.Capturer
	}
	s.discover = s.discoverPages
	if cfg.Discoverer != nil {
		s.discover = cfg.Discoverer
	}
	return s, nil
}

// Submit records a new job and starts it in the background.
func (s *Service) Submit(ctx context.Context, req Request) (*Job, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("jobs: url is required")
	}

	j := &Job{
		ID:    idgen.New(),
		URL:   req.URL,
		State: StatePending,
		Crawl: req.Crawl,
	}
	if err := s.store.InsertJob(ctx, j); err != nil {
		return nil, fmt.Errorf("jobs: insert job: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(s.baseCtx, j)
	}()

	s.cfg.Logger.Info("jobs: submitted", "job", j.ID, "url", j.URL, "crawl", j.Crawl)
	return j, nil
}

// Get returns a job by ID, nil when unknown.
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.store.GetJob(ctx, id)
}

// List returns recent jobs, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]*Job, error) {
	return s.store.ListJobs(ctx, limit)
}

// Screenshots returns a job's screenshot metadata in capture order.
func (s *Service) Screenshots(ctx context.Context, jobID string) ([]*Screenshot, error) {
	return s.store.ListScreenshots(ctx, jobID)
}

// Screenshot returns one screenshot's metadata, nil when unknown.
func (s *Service) Screenshot(ctx context.Context, id string) (*Screenshot, error) {
	return s.store.GetScreenshot(ctx, id)
}

// Close waits for running jobs and closes the store.
func (s *Service) Close() error {
	s.wg.Wait()
	return s.store.Close()
}

func (s *Service) runPage(ctx context.Context, url string) (*capture.Result, error) {
	tab, err := browser.OpenTab(ctx, s.mgr, url)
	if err != nil {
		return nil, err
	}
	defer tab.Close()

	return capture.NewEngine(tab, s.cfg.Capture).Run(ctx)
}

func (s *Service) discoverPages(ctx context.Context, url string) ([]string, error) {
	cfg := s.cfg.Crawl
	cfg.Logger = s.cfg.Logger
	return crawl.New(s.mgr, cfg).Discover(ctx, url)
}
