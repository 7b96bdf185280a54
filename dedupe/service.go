package dedupe

import (
	"context"
	"log/slog"
)

// KeepPolicy selects the representative retained from each cluster.
type KeepPolicy string

const (
	// KeepLargest retains the biggest buffer: usually the richest render.
	KeepLargest KeepPolicy = "largest"
	// KeepFirst retains the first-captured image of the cluster.
	KeepFirst KeepPolicy = "first"
)

// Config for the deduplication service.
type Config struct {
	// SimilarityThreshold is the bit-equality percentage (0-100) at or
	// above which two images join one cluster. Default: 97.
	SimilarityThreshold float64

	// Policy picks the cluster representative. Default: KeepLargest.
	Policy KeepPolicy

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 97
	}
	if c.Policy == "" {
		c.Policy = KeepLargest
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Item is one screenshot buffer to deduplicate.
type Item struct {
	ID     string
	Buffer []byte
}

// Stats reports what deduplication removed.
type Stats struct {
	Groups            int `json:"groups"`
	DuplicatesRemoved int `json:"duplicates_removed"`
}

// Service deduplicates screenshot buffers by perceptual similarity.
type Service struct {
	cfg Config
}

// New creates a Service.
func New(cfg Config) *Service {
	cfg.defaults()
	return &Service{cfg: cfg}
}

// Dedupe hashes every item, clusters near-duplicates, and returns the
// IDs to keep (one per cluster) plus removal stats. No tag or origin
// exemptions: every image competes in clustering equally.
func (s *Service) Dedupe(ctx context.Context, items []Item) ([]string, Stats) {
	if len(items) <= 1 {
		ids := make([]string, len(items))
		for i, it := range items {
			ids[i] = it.ID
		}
		return ids, Stats{Groups: len(items)}
	}

	hashes := make([]Hash, len(items))
	for i, it := range items {
		if ctx.Err() != nil {
			// Cancelled mid-hash. Unhashed items must not cluster by
			// their zero hashes, so keep every image untouched.
			s.cfg.Logger.Warn("dedupe: cancelled, keeping all images", "images", len(items))
			ids := make([]string, len(items))
			for j, rem := range items {
				ids[j] = rem.ID
			}
			return ids, Stats{Groups: len(items)}
		}
		hashes[i] = HashImage(it.Buffer)
		if !hashes[i].perceptual {
			s.cfg.Logger.Warn("dedupe: perceptual hash failed, using content hash", "id", it.ID)
		}
	}

	groups := cluster(hashes, s.cfg.SimilarityThreshold)

	var kept []string
	removed := 0
	for _, group := range groups {
		rep := s.pick(items, group)
		kept = append(kept, items[rep].ID)
		removed += len(group) - 1
	}

	s.cfg.Logger.Info("dedupe: complete",
		"images", len(items), "groups", len(groups), "removed", removed)

	return kept, Stats{Groups: len(groups), DuplicatesRemoved: removed}
}

// pick applies the keep policy inside one cluster. Ties fall back to the
// first-captured member.
func (s *Service) pick(items []Item, group []int) int {
	rep := group[0]
	if s.cfg.Policy == KeepLargest {
		for _, idx := range group[1:] {
			if len(items[idx].Buffer) > len(items[rep].Buffer) {
				rep = idx
			}
		}
	}
	return rep
}
