package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pagelens/pagelens/browser"
)

// pageSignals are the raw readiness facts read from the live page.
type pageSignals struct {
	UnloadedImages  int     `json:"unloaded_images"`
	TotalImages     int     `json:"total_images"`
	LoadingMarkers  int     `json:"loading_markers"`
	EmptyMains      int     `json:"empty_mains"`
	ErrorMarkers    int     `json:"error_markers"`
	LazyMarkers     int     `json:"lazy_markers"`
	OverlayCoverage float64 `json:"overlay_coverage"`
	TextLength      int     `json:"text_length"`
	VisibleElements int     `json:"visible_elements"`
}

const signalsJS = `() => {
	let unloaded = 0;
	for (const img of document.images) {
		if (!img.complete || img.naturalWidth === 0) unloaded++;
	}

	const loading = document.querySelectorAll(
		'.loading, .spinner, .skeleton, [class*="placeholder"], [aria-busy="true"]').length;

	let emptyMains = 0;
	for (const main of document.querySelectorAll('main, article, [role="main"], #content, .content')) {
		if (main.innerText.trim().length < 20) emptyMains++;
	}

	const errs = document.querySelectorAll(
		'.error, .not-found, [class*="error-page"], [data-error]').length;

	const lazy = document.querySelectorAll(
		'img[loading="lazy"]:not([src]), [data-src]:not([src]), [data-lazy]').length;

	// Largest fixed/absolute element's share of the viewport.
	let coverage = 0;
	const vp = window.innerWidth * window.innerHeight;
	for (const el of document.querySelectorAll('*')) {
		const st = getComputedStyle(el);
		if (st.position !== 'fixed' && st.position !== 'absolute') continue;
		if (st.display === 'none' || st.visibility === 'hidden') continue;
		const r = el.getBoundingClientRect();
		const share = (r.width * r.height) / vp;
		if (share > coverage) coverage = share;
	}

	let visible = 0;
	for (const el of document.body ? document.body.querySelectorAll('*') : []) {
		const r = el.getBoundingClientRect();
		if (r.width > 0 && r.height > 0) visible++;
	}

	return JSON.stringify({
		unloaded_images: unloaded,
		total_images: document.images.length,
		loading_markers: loading,
		empty_mains: emptyMains,
		error_markers: errs,
		lazy_markers: lazy,
		overlay_coverage: Math.min(coverage, 1),
		text_length: document.body ? document.body.innerText.length : 0,
		visible_elements: visible,
	});
}`

// ValidityReport is the structured, non-fatal readiness report. Used for
// diagnostics and capture gating only; it never fails the run.
type ValidityReport struct {
	Ready           bool
	UnloadedImages  int
	LoadingMarkers  int
	EmptyMains      int
	ErrorMarkers    int
	LazyMarkers     int
	OverlayCoverage float64
	Recovered       bool
}

// Validator scores whether the page is ready and interesting enough to
// photograph, and attempts lightweight recovery when it is not.
type Validator struct {
	tab *browser.Tab
	cfg *Config
}

// NewValidator creates a Validator bound to one tab.
func NewValidator(tab *browser.Tab, cfg *Config) *Validator {
	return &Validator{tab: tab, cfg: cfg}
}

func (v *Validator) signals(ctx context.Context) (*pageSignals, error) {
	res, err := v.tab.Eval(ctx, signalsJS)
	if err != nil {
		return nil, fmt.Errorf("capture: validator signals: %w", err)
	}
	var s pageSignals
	if err := json.Unmarshal([]byte(res.Value.Str()), &s); err != nil {
		return nil, fmt.Errorf("capture: validator decode: %w", err)
	}
	return &s, nil
}

// ContentReady inspects readiness signals and attempts recovery for
// unloaded images and pending lazy content. The report is diagnostic:
// soft failures never become errors.
func (v *Validator) ContentReady(ctx context.Context) (*ValidityReport, error) {
	s, err := v.signals(ctx)
	if err != nil {
		return nil, err
	}

	report := &ValidityReport{
		UnloadedImages:  s.UnloadedImages,
		LoadingMarkers:  s.LoadingMarkers,
		EmptyMains:      s.EmptyMains,
		ErrorMarkers:    s.ErrorMarkers,
		LazyMarkers:     s.LazyMarkers,
		OverlayCoverage: s.OverlayCoverage,
	}

	if s.UnloadedImages > 0 || s.LazyMarkers > 0 {
		if err := v.recover(ctx, s); err != nil {
			v.cfg.Logger.Debug("capture: validator recovery failed", "error", err)
		} else {
			report.Recovered = true
			if s2, err := v.signals(ctx); err == nil {
				report.UnloadedImages = s2.UnloadedImages
				report.LazyMarkers = s2.LazyMarkers
				s = s2
			}
		}
	}

	report.Ready = s.ErrorMarkers == 0 && s.EmptyMains == 0 &&
		s.LoadingMarkers == 0 && s.UnloadedImages == 0
	return report, nil
}

// recover reloads broken images and re-triggers lazy loading with a
// scroll bounce.
func (v *Validator) recover(ctx context.Context, s *pageSignals) error {
	if s.UnloadedImages > 0 {
		_, err := v.tab.Eval(ctx, `() => {
			for (const img of document.images) {
				if (!img.complete || img.naturalWidth === 0) {
					const src = img.src;
					if (src) { img.src = ''; img.src = src; }
				}
			}
		}`)
		if err != nil {
			return err
		}
	}
	if s.LazyMarkers > 0 {
		_, err := v.tab.Eval(ctx, `() => {
			window.scrollTo(0, document.body.scrollHeight);
			return new Promise(r => setTimeout(() => { window.scrollTo(0, 0); r(true); }, 400));
		}`)
		if err != nil {
			return err
		}
		time.Sleep(300 * time.Millisecond)
	}
	return nil
}

// QualityScore reads the current signals and scores them 0-100.
func (v *Validator) QualityScore(ctx context.Context) (int, error) {
	s, err := v.signals(ctx)
	if err != nil {
		return 0, err
	}
	return scoreSignals(s, v.cfg), nil
}

// ShouldCapture gates a screenshot on the quality score unless forced.
func (v *Validator) ShouldCapture(ctx context.Context, force bool) bool {
	if force {
		return true
	}
	score, err := v.QualityScore(ctx)
	if err != nil {
		v.cfg.Logger.Debug("capture: quality score failed", "error", err)
		return true // scoring failure never blocks the run
	}
	if score < v.cfg.MinQualityScore {
		v.cfg.Logger.Debug("capture: screenshot gated by quality", "score", score)
		return false
	}
	return true
}

// scoreSignals is the pure scoring heuristic: start at 100, subtract
// penalties per signal.
func scoreSignals(s *pageSignals, cfg *Config) int {
	score := 100

	if s.TotalImages > 0 && s.UnloadedImages > 0 {
		penalty := 30 * s.UnloadedImages / s.TotalImages
		if penalty < 5 {
			penalty = 5
		}
		score -= penalty
	}
	if s.LoadingMarkers > 0 {
		score -= 15 + 5*min(s.LoadingMarkers, 4)
	}
	if *cfg.AvoidOverlayScreenshots && s.OverlayCoverage >= cfg.OverlayCoverageThreshold {
		score -= 40
	}
	if s.TextLength < 200 {
		score -= 20
	}
	if s.VisibleElements < 10 {
		score -= 25
	}
	if s.ErrorMarkers > 0 {
		score -= 30
	}

	if score < 0 {
		score = 0
	}
	return score
}
