// CLAUDE:SUMMARY Orchestrator: baseline capture → discovery → interaction loop → final capture → deduplication, under budgets.
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pagelens/pagelens/browser"
	"github.com/pagelens/pagelens/dedupe"
)

// Engine drives one capture run over a single live tab. All steps are
// strictly sequential: the shared resource is one live DOM whose state
// any interaction can invalidate.
type Engine struct {
	tab       *browser.Tab
	cfg       Config
	discovery *Discovery
	change    *ChangeDetector
	region    *RegionLocator
	validator *Validator
	waits     *Waits
	shooter   *Screenshotter
	deduper   *dedupe.Service
}

// NewEngine wires an engine for the given tab. Each session gets its own
// engine instance; engines are never shared.
func NewEngine(tab *browser.Tab, cfg Config) *Engine {
	cfg.defaults()

	validator := NewValidator(tab, &cfg)
	e := &Engine{
		tab:       tab,
		cfg:       cfg,
		discovery: NewDiscovery(tab, &cfg),
		change:    NewChangeDetector(tab, &cfg),
		region:    NewRegionLocator(tab, &cfg),
		validator: validator,
		waits:     NewWaits(tab, &cfg),
		shooter:   NewScreenshotter(tab, &cfg, validator),
		deduper: dedupe.New(dedupe.Config{
			SimilarityThreshold: cfg.DedupeSimilarityThreshold,
			Logger:              cfg.Logger,
		}),
	}
	return e
}

// Run executes the full capture pipeline and returns whatever was
// produced, even on partial failure: captured screenshots are never
// thrown away because a later step broke.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	log := e.cfg.Logger

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.ProcessingBudget)
	defer cancel()

	rc := NewRunContext()

	interactor := NewInteractor(e.tab, &e.cfg, e.change, e.region, e.shooter,
		e.validator, e.waits, e.restoreBaseline, e.refreshBaseline)

	// Baseline: settle, validate, record restore point, first shot.
	e.waits.Settle(runCtx)
	if report, err := e.validator.ContentReady(runCtx); err == nil && !report.Ready {
		log.Info("capture: page not fully ready at baseline",
			"unloaded_images", report.UnloadedImages,
			"loading_markers", report.LoadingMarkers,
			"error_markers", report.ErrorMarkers)
	}

	if err := e.captureBaselineState(runCtx, rc); err != nil {
		return e.finish(ctx, rc, start), fmt.Errorf("capture: baseline state: %w", err)
	}

	if _, err := e.shooter.Capture(runCtx, rc, ShotOptions{Tags: []string{"baseline"}, Force: true}); err != nil {
		log.Warn("capture: baseline screenshot failed", "error", err)
	}
	rc.State = StateBaselineCaptured

	discovered := e.interactionLoop(runCtx, rc, interactor)

	rc.State = StateFinalizing

	// Best-effort final shot of the restored page, budget permitting.
	if err := e.restoreBaseline(runCtx, rc); err != nil {
		log.Warn("capture: final baseline restore failed", "error", err)
	}
	if _, err := e.shooter.Capture(runCtx, rc, ShotOptions{Tags: []string{"final"}, Force: true}); err != nil {
		log.Warn("capture: final screenshot failed", "error", err)
	}

	result := e.finish(ctx, rc, start)
	result.Summary.Discovered = discovered
	return result, nil
}

// interactionLoop alternates discovery rounds and interactions until no
// unseen elements remain, a budget is exhausted, or two consecutive
// rounds discover nothing new. Returns the total distinct elements seen.
func (e *Engine) interactionLoop(ctx context.Context, rc *RunContext, interactor *Interactor) int {
	log := e.cfg.Logger
	zeroRounds := 0

	for {
		if ctx.Err() != nil {
			log.Info("capture: processing budget exhausted during discovery")
			return len(rc.Seen)
		}

		rc.State = StateDiscovering
		elements, markers, err := e.discovery.Discover(ctx)
		if err != nil {
			log.Warn("capture: discovery round failed", "error", err)
			return len(rc.Seen)
		}
		e.mergeMarkers(rc, markers)

		var fresh []DiscoveredElement
		for _, el := range elements {
			if !rc.Seen[el.Signature()] {
				fresh = append(fresh, el)
			}
		}

		if len(fresh) == 0 {
			zeroRounds++
			if zeroRounds >= 2 {
				log.Info("capture: no new elements in two rounds", "seen", len(rc.Seen))
				return len(rc.Seen)
			}
			continue
		}
		zeroRounds = 0

		rc.State = StateInteracting
		for _, el := range fresh {
			if rc.Interactions >= e.cfg.MaxInteractions {
				log.Info("capture: interaction budget exhausted", "max", e.cfg.MaxInteractions)
				return len(rc.Seen)
			}
			if len(rc.Screenshots) >= e.cfg.MaxScreenshots {
				log.Info("capture: screenshot budget exhausted", "max", e.cfg.MaxScreenshots)
				return len(rc.Seen)
			}
			if ctx.Err() != nil {
				log.Info("capture: processing budget exhausted mid-loop")
				return len(rc.Seen)
			}

			rc.Seen[el.Signature()] = true
			rc.Interactions++
			interactor.Run(ctx, rc, el)
		}
	}
}

// captureBaselineState records URL and scroll position as the restore
// point. Only the orchestrator mutates it afterwards.
func (e *Engine) captureBaselineState(ctx context.Context, rc *RunContext) error {
	res, err := e.tab.Eval(ctx, `() => JSON.stringify({
		url: window.location.href,
		x: window.scrollX,
		y: window.scrollY,
	})`)
	if err != nil {
		return err
	}
	var state struct {
		URL string  `json:"url"`
		X   float64 `json:"x"`
		Y   float64 `json:"y"`
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), &state); err != nil {
		return err
	}
	rc.Baseline = BaselineState{URL: state.URL, ScrollX: state.X, ScrollY: state.Y}
	return nil
}

// restoreBaseline returns the page to the baseline URL and scroll
// position, reapplying discovery markers when a reload wiped them so
// previously discovered selectors stay valid.
func (e *Engine) restoreBaseline(ctx context.Context, rc *RunContext) error {
	current, err := e.tab.URL(ctx)
	if err != nil {
		return err
	}

	if current != rc.Baseline.URL {
		return e.refreshBaseline(ctx, rc)
	}

	_, err = e.tab.Eval(ctx, `(x, y) => { window.scrollTo(x, y); return true; }`,
		rc.Baseline.ScrollX, rc.Baseline.ScrollY)
	return err
}

// refreshBaseline unconditionally reloads the baseline URL, reapplies
// discovery markers, and restores the scroll position. The retry path
// uses it directly: a selector that vanished while the URL stayed put
// means an in-place re-render, and only a real reload brings the
// original DOM back.
func (e *Engine) refreshBaseline(ctx context.Context, rc *RunContext) error {
	if err := e.tab.Navigate(ctx, rc.Baseline.URL); err != nil {
		return err
	}
	e.waits.Settle(ctx)
	e.reapplyMarkers(ctx, rc)

	_, err := e.tab.Eval(ctx, `(x, y) => { window.scrollTo(x, y); return true; }`,
		rc.Baseline.ScrollX, rc.Baseline.ScrollY)
	return err
}

// reapplyMarkers best-effort restores generated data-pl-mark attributes
// using the positional paths recorded at discovery time.
func (e *Engine) reapplyMarkers(ctx context.Context, rc *RunContext) {
	if len(rc.Baseline.Markers) == 0 {
		return
	}
	payload, err := json.Marshal(rc.Baseline.Markers)
	if err != nil {
		return
	}
	_, err = e.tab.Eval(ctx, `(bindings) => {
		let applied = 0;
		for (const b of JSON.parse(bindings)) {
			const el = document.querySelector(b.path);
			if (el) { el.setAttribute('data-pl-mark', b.marker); applied++; }
		}
		return applied;
	}`, string(payload))
	if err != nil {
		e.cfg.Logger.Debug("capture: marker reapplication failed", "error", err)
	}
}

func (e *Engine) mergeMarkers(rc *RunContext, markers []MarkerBinding) {
	known := make(map[string]bool, len(rc.Baseline.Markers))
	for _, m := range rc.Baseline.Markers {
		known[m.Marker] = true
	}
	for _, m := range markers {
		if !known[m.Marker] {
			rc.Baseline.Markers = append(rc.Baseline.Markers, m)
		}
	}
}

// finish deduplicates and assembles the result. Runs under the parent
// context so a blown processing budget cannot skip deduplication.
func (e *Engine) finish(ctx context.Context, rc *RunContext, start time.Time) *Result {
	interacted := rc.Interactions

	items := make([]dedupe.Item, len(rc.Screenshots))
	for i, rec := range rc.Screenshots {
		items[i] = dedupe.Item{ID: rec.Filename, Buffer: rec.Buffer}
	}

	kept, stats := e.deduper.Dedupe(ctx, items)
	keptSet := make(map[string]bool, len(kept))
	for _, id := range kept {
		keptSet[id] = true
	}

	var survivors []*ScreenshotRecord
	for _, rec := range rc.Screenshots {
		if keptSet[rec.Filename] {
			survivors = append(survivors, rec)
		}
	}
	rc.State = StateDeduplicated

	return &Result{
		Screenshots: survivors,
		History:     rc.History,
		Summary: Summary{
			Interacted:        interacted,
			Screenshotted:     len(survivors),
			DuplicatesRemoved: stats.DuplicatesRemoved,
			Elapsed:           time.Since(start),
		},
	}
}
