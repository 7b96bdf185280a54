package jobs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Sink persists screenshot bytes for a job and reports where they
// landed.
type Sink interface {
	// Write stores one screenshot and returns its storage path.
	Write(jobID, filename string, data []byte) (string, error)

	// WriteManifest stores the job's metadata sidecar.
	WriteManifest(jobID string, manifest any) error
}

// DirSink writes screenshots under root/<jobID>/.
type DirSink struct {
	Root string
}

// NewDirSink creates a disk sink rooted at dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{Root: dir}
}

func (s *DirSink) jobDir(jobID string) (string, error) {
	dir := filepath.Join(s.Root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("jobs: create %s: %w", dir, err)
	}
	return dir, nil
}

// Write stores one PNG and returns its absolute-ish path under Root.
func (s *DirSink) Write(jobID, filename string, data []byte) (string, error) {
	dir, err := s.jobDir(jobID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("jobs: write %s: %w", path, err)
	}
	return path, nil
}

// WriteManifest stores manifest.json next to the job's screenshots.
func (s *DirSink) WriteManifest(jobID string, manifest any) error {
	dir, err := s.jobDir(jobID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("jobs: encode manifest: %w", err)
	}
	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("jobs: write %s: %w", path, err)
	}
	return nil
}
