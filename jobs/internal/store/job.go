package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Job is one capture request and its progress.
type Job struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	State       string `json:"state"` // pending, url_discovery, screenshot_capture, completed, failed
	Crawl       bool   `json:"crawl"`
	PagesTotal  int    `json:"pages_total"`
	PagesDone   int    `json:"pages_done"`
	PagesFailed int    `json:"pages_failed"`
	Error       string `json:"error,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
	CompletedAt int64  `json:"completed_at,omitempty"`
}

// Screenshot is the stored metadata of one captured image. The PNG
// bytes live on disk at Path.
type Screenshot struct {
	ID        string   `json:"id"`
	JobID     string   `json:"job_id"`
	PageURL   string   `json:"page_url"`
	Filename  string   `json:"filename"`
	Path      string   `json:"path"`
	Size      int      `json:"size"`
	Tags      []string `json:"tags"`
	CreatedAt int64    `json:"created_at"`
}

// InsertJob inserts a new pending job.
func (s *Store) InsertJob(ctx context.Context, j *Job) error {
	now := time.Now().UnixMilli()
	if j.CreatedAt == 0 {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	if j.State == "" {
		j.State = "pending"
	}

	crawl := 0
	if j.Crawl {
		crawl = 1
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO jobs
			(id, url, state, crawl, pages_total, pages_done, pages_failed, error,
			 created_at, updated_at, completed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		j.ID, j.URL, j.State, crawl, j.PagesTotal, j.PagesDone, j.PagesFailed, j.Error,
		j.CreatedAt, j.UpdatedAt, j.CompletedAt,
	)
	return err
}

// GetJob retrieves a job by ID. Returns nil when not found.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	j := &Job{}
	var crawl int

	err := s.DB.QueryRowContext(ctx, `
		SELECT id, url, state, crawl, pages_total, pages_done, pages_failed, error,
		       created_at, updated_at, completed_at
		FROM jobs WHERE id = ?`, id).Scan(
		&j.ID, &j.URL, &j.State, &crawl, &j.PagesTotal, &j.PagesDone, &j.PagesFailed, &j.Error,
		&j.CreatedAt, &j.UpdatedAt, &j.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.Crawl = crawl != 0
	return j, nil
}

// ListJobs returns the most recent jobs, newest first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, url, state, crawl, pages_total, pages_done, pages_failed, error,
		       created_at, updated_at, completed_at
		FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j := &Job{}
		var crawl int
		if err := rows.Scan(
			&j.ID, &j.URL, &j.State, &crawl, &j.PagesTotal, &j.PagesDone, &j.PagesFailed, &j.Error,
			&j.CreatedAt, &j.UpdatedAt, &j.CompletedAt,
		); err != nil {
			return nil, err
		}
		j.Crawl = crawl != 0
		out = append(out, j)
	}
	return out, rows.Err()
}

// SetJobState transitions a job to a new state.
func (s *Store) SetJobState(ctx context.Context, id, state string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE jobs SET state = ?, updated_at = ? WHERE id = ?`,
		state, time.Now().UnixMilli(), id)
	return err
}

// SetJobPages records the discovered page count.
func (s *Store) SetJobPages(ctx context.Context, id string, total int) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE jobs SET pages_total = ?, updated_at = ? WHERE id = ?`,
		total, time.Now().UnixMilli(), id)
	return err
}

// BumpJobProgress increments the done counter, and the failed counter
// when the page's capture reported an error.
func (s *Store) BumpJobProgress(ctx context.Context, id string, failed bool) error {
	f := 0
	if failed {
		f = 1
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE jobs SET pages_done = pages_done + 1, pages_failed = pages_failed + ?,
		 updated_at = ? WHERE id = ?`,
		f, time.Now().UnixMilli(), id)
	return err
}

// FinishJob marks a job completed or failed.
func (s *Store) FinishJob(ctx context.Context, id, state, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE jobs SET state = ?, error = ?, updated_at = ?, completed_at = ? WHERE id = ?`,
		state, errMsg, now, now, id)
	return err
}

// InsertScreenshot records one captured image's metadata.
func (s *Store) InsertScreenshot(ctx context.Context, sc *Screenshot) error {
	if sc.CreatedAt == 0 {
		sc.CreatedAt = time.Now().UnixMilli()
	}
	tags, _ := json.Marshal(sc.Tags)

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO screenshots (id, job_id, page_url, filename, path, size, tags, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		sc.ID, sc.JobID, sc.PageURL, sc.Filename, sc.Path, sc.Size, string(tags), sc.CreatedAt,
	)
	return err
}

// ListScreenshots returns a job's screenshots in capture order.
func (s *Store) ListScreenshots(ctx context.Context, jobID string) ([]*Screenshot, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, job_id, page_url, filename, path, size, tags, created_at
		FROM screenshots WHERE job_id = ? ORDER BY created_at, filename`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Screenshot
	for rows.Next() {
		sc := &Screenshot{}
		var tags string
		if err := rows.Scan(&sc.ID, &sc.JobID, &sc.PageURL, &sc.Filename, &sc.Path,
			&sc.Size, &tags, &sc.CreatedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(tags), &sc.Tags)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// GetScreenshot retrieves one screenshot's metadata. Returns nil when
// not found.
func (s *Store) GetScreenshot(ctx context.Context, id string) (*Screenshot, error) {
	sc := &Screenshot{}
	var tags string

	err := s.DB.QueryRowContext(ctx, `
		SELECT id, job_id, page_url, filename, path, size, tags, created_at
		FROM screenshots WHERE id = ?`, id).Scan(
		&sc.ID, &sc.JobID, &sc.PageURL, &sc.Filename, &sc.Path, &sc.Size, &tags, &sc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(tags), &sc.Tags)
	return sc, nil
}
