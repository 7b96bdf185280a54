// CLAUDE:SUMMARY Background job execution: discovery, bounded-concurrency page capture, sink writes, manifest.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pagelens/pagelens/capture"
	"github.com/pagelens/pagelens/idgen"
)

// manifest is the JSON sidecar written next to a job's screenshots.
type manifest struct {
	JobID     string         `json:"job_id"`
	URL       string         `json:"url"`
	CreatedAt time.Time      `json:"created_at"`
	Pages     []pageManifest `json:"pages"`
}

type pageManifest struct {
	URL         string           `json:"url"`
	Error       string           `json:"error,omitempty"`
	Summary     *capture.Summary `json:"summary,omitempty"`
	Screenshots []string         `json:"screenshots,omitempty"`
}

// run executes one job end to end. A page's failure is recorded and
// the remaining pages keep their screenshots.
func (s *Service) run(ctx context.Context, j *Job) {
	log := s.cfg.Logger.With("job", j.ID)

	pages, err := s.pagesFor(ctx, j)
	if err != nil {
		log.Error("jobs: discovery failed", "error", err)
		s.finish(j.ID, StateFailed, err.Error())
		return
	}
	s.store.SetJobPages(ctx, j.ID, len(pages))
	s.store.SetJobState(ctx, j.ID, StateCapture)
	log.Info("jobs: capturing", "pages", len(pages))

	results := make([]pageManifest, len(pages))
	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, page := range pages {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = s.capturePageToSink(ctx, j.ID, i, page)
			s.store.BumpJobProgress(ctx, j.ID, results[i].Error != "")
		}()
	}
	wg.Wait()

	m := manifest{JobID: j.ID, URL: j.URL, CreatedAt: time.Now().UTC(), Pages: results}
	if err := s.sink.WriteManifest(j.ID, m); err != nil {
		log.Warn("jobs: manifest write failed", "error", err)
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if failed == len(results) {
		s.finish(j.ID, StateFailed, fmt.Sprintf("all %d pages failed", failed))
		log.Error("jobs: failed", "pages", len(results))
		return
	}
	s.finish(j.ID, StateCompleted, "")
	log.Info("jobs: completed", "pages", len(results), "failed", failed)
}

func (s *Service) pagesFor(ctx context.Context, j *Job) ([]string, error) {
	if !j.Crawl {
		s.store.SetJobState(ctx, j.ID, StateCapture)
		return []string{j.URL}, nil
	}
	s.store.SetJobState(ctx, j.ID, StateDiscovery)
	return s.discover(ctx, j.URL)
}

// capturePageToSink runs one page's capture session and persists its
// surviving screenshots. Never panics the job: any error lands in the
// page manifest. Filenames get a page prefix so a multi-page job's
// captures never collide in the sink.
func (s *Service) capturePageToSink(ctx context.Context, jobID string, idx int, page string) pageManifest {
	pm := pageManifest{URL: page}

	res, err := s.capturePage(ctx, page)
	if err != nil {
		pm.Error = err.Error()
		return pm
	}
	pm.Summary = &res.Summary

	for _, shot := range res.Screenshots {
		name := fmt.Sprintf("p%02d-%s", idx+1, shot.Filename)
		path, err := s.sink.Write(jobID, name, shot.Buffer)
		if err != nil {
			pm.Error = fmt.Sprintf("store %s: %v", name, err)
			continue
		}
		rec := &Screenshot{
			ID:       idgen.New(),
			JobID:    jobID,
			PageURL:  page,
			Filename: name,
			Path:     path,
			Size:     shot.Size,
			Tags:     shot.Tags,
		}
		if err := s.store.InsertScreenshot(ctx, rec); err != nil {
			pm.Error = fmt.Sprintf("record %s: %v", name, err)
			continue
		}
		pm.Screenshots = append(pm.Screenshots, name)
	}
	return pm
}

func (s *Service) finish(id, state, errMsg string) {
	// Job bookkeeping should survive a cancelled run context.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.store.FinishJob(ctx, id, state, errMsg)
}
