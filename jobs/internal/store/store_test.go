package store

import (
	"context"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/pagelens/pagelens/dbopen"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return &Store{DB: db}
}

func TestJobLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	j := &Job{ID: "job-1", URL: "https://example.com", Crawl: true}
	if err := s.InsertJob(ctx, j); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("get: got nil")
	}
	if got.State != "pending" {
		t.Errorf("State: got %q, want pending", got.State)
	}
	if !got.Crawl {
		t.Error("Crawl flag lost")
	}

	if err := s.SetJobState(ctx, "job-1", "url_discovery"); err != nil {
		t.Fatalf("set state: %v", err)
	}
	if err := s.SetJobPages(ctx, "job-1", 4); err != nil {
		t.Fatalf("set pages: %v", err)
	}
	if err := s.BumpJobProgress(ctx, "job-1", false); err != nil {
		t.Fatalf("bump: %v", err)
	}
	if err := s.BumpJobProgress(ctx, "job-1", true); err != nil {
		t.Fatalf("bump failed: %v", err)
	}

	got, _ = s.GetJob(ctx, "job-1")
	if got.State != "url_discovery" || got.PagesTotal != 4 || got.PagesDone != 2 || got.PagesFailed != 1 {
		t.Errorf("progress: %+v", got)
	}

	if err := s.FinishJob(ctx, "job-1", "completed", ""); err != nil {
		t.Fatalf("finish: %v", err)
	}
	got, _ = s.GetJob(ctx, "job-1")
	if got.State != "completed" || got.CompletedAt == 0 {
		t.Errorf("finish: %+v", got)
	}
}

func TestGetJobMissing(t *testing.T) {
	s := testStore(t)
	got, err := s.GetJob(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestScreenshotRoundtrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.InsertJob(ctx, &Job{ID: "job-2", URL: "https://example.com"}); err != nil {
		t.Fatalf("insert job: %v", err)
	}

	for i, name := range []string{"001-baseline.png", "002-tab.png"} {
		sc := &Screenshot{
			ID:        name,
			JobID:     "job-2",
			PageURL:   "https://example.com",
			Filename:  name,
			Path:      "/out/job-2/" + name,
			Size:      1000 + i,
			Tags:      []string{"baseline"},
			CreatedAt: int64(100 + i),
		}
		if err := s.InsertScreenshot(ctx, sc); err != nil {
			t.Fatalf("insert %s: %v", name, err)
		}
	}

	list, err := s.ListScreenshots(ctx, "job-2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list: got %d, want 2", len(list))
	}
	if list[0].Filename != "001-baseline.png" {
		t.Errorf("order: got %q first", list[0].Filename)
	}
	if len(list[0].Tags) != 1 || list[0].Tags[0] != "baseline" {
		t.Errorf("tags: %v", list[0].Tags)
	}

	one, err := s.GetScreenshot(ctx, "002-tab.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if one == nil || one.Size != 1001 {
		t.Errorf("get: %+v", one)
	}
}
