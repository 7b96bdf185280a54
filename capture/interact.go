// CLAUDE:SUMMARY Interaction engine: activates one element end-to-end with change detection, region capture, and a single retry via baseline refresh.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/pagelens/pagelens/browser"
)

// ErrElementVanished marks a selector that no longer resolves. The engine
// retries exactly once via baseline refresh before abandoning the element.
var ErrElementVanished = errors.New("element no longer resolves")

// errZeroSize marks a resolvable element with no area. Permanently
// skipped, never retried.
var errZeroSize = errors.New("element has zero size")

// attemptState is the explicit retry state machine: Attempt → Failed →
// RefreshBaseline → Retry → {Success | Abandon}. Keeping it as a value
// makes the retry-exactly-once invariant directly testable.
type attemptState int

const (
	stateAttempt attemptState = iota
	stateFailed
	stateRefreshBaseline
	stateRetry
	stateSuccess
	stateAbandon
)

// nextAttemptState advances the machine. retried reports whether a
// refresh-and-retry cycle already ran.
func nextAttemptState(s attemptState, err error, retried bool) attemptState {
	switch s {
	case stateAttempt, stateRetry:
		switch {
		case err == nil:
			return stateSuccess
		case errors.Is(err, errZeroSize):
			return stateAbandon // resolvable but unusable, no retry
		case retried:
			return stateAbandon
		default:
			return stateFailed
		}
	case stateFailed:
		return stateRefreshBaseline
	case stateRefreshBaseline:
		return stateRetry
	}
	return s
}

// Interactor executes one interaction end-to-end: classify, snapshot,
// activate, wait, re-validate, capture (region before full page), restore.
type Interactor struct {
	tab       *browser.Tab
	cfg       *Config
	change    *ChangeDetector
	region    *RegionLocator
	shooter   *Screenshotter
	validator *Validator
	waits     *Waits

	// restore and refresh are provided by the orchestrator. restore
	// returns the page to BaselineState, navigating only when the URL
	// drifted; refresh always reloads the baseline URL and reapplies
	// discovery markers. The retry path must use refresh: a selector
	// can vanish from an in-place re-render without any URL change.
	restore func(context.Context, *RunContext) error
	refresh func(context.Context, *RunContext) error

	// attemptFn is the single activation cycle; a seam for tests.
	attemptFn func(context.Context, *RunContext, DiscoveredElement) (*ScreenshotRecord, error)
}

// NewInteractor wires an Interactor from the engine's subcomponents.
func NewInteractor(tab *browser.Tab, cfg *Config, change *ChangeDetector, region *RegionLocator,
	shooter *Screenshotter, validator *Validator, waits *Waits,
	restore, refresh func(context.Context, *RunContext) error) *Interactor {
	it := &Interactor{
		tab:       tab,
		cfg:       cfg,
		change:    change,
		region:    region,
		shooter:   shooter,
		validator: validator,
		waits:     waits,
		restore:   restore,
		refresh:   refresh,
	}
	it.attemptFn = it.attempt
	return it
}

// Run drives one element through the attempt state machine and records
// the outcome in the run history. Failures never propagate as errors:
// the run always continues.
func (it *Interactor) Run(ctx context.Context, rc *RunContext, el DiscoveredElement) {
	log := it.cfg.Logger

	entry := HistoryEntry{
		Selector: el.Selector,
		Category: el.Category,
		Text:     el.DisplayText,
	}

	state := stateAttempt
	retried := false
	var lastErr error

	for state != stateSuccess && state != stateAbandon {
		switch state {
		case stateAttempt, stateRetry:
			shot, err := it.attemptFn(ctx, rc, el)
			lastErr = err
			if err == nil {
				if shot != nil {
					entry.Outcome = OutcomeCaptured
					if retried {
						entry.Outcome = OutcomeRecovered
					}
					entry.Screenshot = shot.Filename
				} else {
					entry.Outcome = OutcomeNoChange
				}
			}
			state = nextAttemptState(state, err, retried)

		case stateFailed:
			log.Debug("capture: interaction failed, refreshing baseline",
				"selector", el.Selector, "error", lastErr)
			state = nextAttemptState(state, lastErr, retried)

		case stateRefreshBaseline:
			if err := it.refresh(ctx, rc); err != nil {
				log.Warn("capture: baseline refresh failed", "error", err)
				state = stateAbandon
				break
			}
			retried = true
			state = nextAttemptState(state, lastErr, retried)
		}
	}

	if state == stateAbandon {
		switch {
		case errors.Is(lastErr, errZeroSize):
			entry.Outcome = OutcomeZeroSize
		default:
			entry.Outcome = OutcomeVanished
		}
		log.Info("capture: element abandoned",
			"selector", el.Selector, "outcome", entry.Outcome)
	}

	rc.History = append(rc.History, entry)
}

// attempt performs a single activation cycle. A nil record with nil error
// means the interaction ran but produced nothing worth photographing.
func (it *Interactor) attempt(ctx context.Context, rc *RunContext, el DiscoveredElement) (*ScreenshotRecord, error) {
	tabLike := el.TabLike()

	before, err := it.change.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	if err := it.activate(ctx, el); err != nil {
		return nil, err
	}

	it.waitFor(ctx, el, tabLike)

	if _, err := it.validator.ContentReady(ctx); err != nil {
		it.cfg.Logger.Debug("capture: post-interaction validation failed", "error", err)
	}

	report, err := it.change.Diff(ctx, before)
	if err != nil {
		return nil, err
	}

	shot, err := it.captureFor(ctx, rc, el, tabLike, report)

	if restoreErr := it.restore(ctx, rc); restoreErr != nil {
		it.cfg.Logger.Warn("capture: baseline restore after interaction failed", "error", restoreErr)
	}

	return shot, err
}

// activate resolves the element and triggers it: native open toggle for
// disclosure elements, click for everything else.
func (it *Interactor) activate(ctx context.Context, el DiscoveredElement) error {
	page := it.tab.Page.Context(ctx)

	// Fresh resolution on every attempt; selectors are never trusted
	// across a suspension point.
	res, err := it.tab.Eval(ctx, `(sel) => {
		const el = document.querySelector(sel);
		if (!el) return 'missing';
		const r = el.getBoundingClientRect();
		if (r.width <= 0 || r.height <= 0) return 'zero';
		return 'ok';
	}`, el.Selector)
	if err != nil {
		return fmt.Errorf("capture: resolve %s: %w", el.Selector, err)
	}
	switch res.Value.Str() {
	case "missing":
		return fmt.Errorf("%w: %s", ErrElementVanished, el.Selector)
	case "zero":
		return fmt.Errorf("%w: %s", errZeroSize, el.Selector)
	}

	if el.Category == CategoryExpand && el.Subtype == "summary" {
		// Disclosure elements get the native toggle instead of a click.
		_, err := it.tab.Eval(ctx, `(sel) => {
			const el = document.querySelector(sel);
			const details = el && el.closest('details');
			if (details) details.open = !details.open;
			return true;
		}`, el.Selector)
		if err != nil {
			return fmt.Errorf("capture: toggle %s: %w", el.Selector, err)
		}
		return nil
	}

	node, err := page.Element(el.Selector)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrElementVanished, el.Selector)
	}
	if err := node.ScrollIntoView(); err != nil {
		it.cfg.Logger.Debug("capture: scroll into view failed", "selector", el.Selector, "error", err)
	}
	if err := node.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("capture: click %s: %w", el.Selector, err)
	}
	return nil
}

// waitFor applies the classification-specific wait: longer load-aware
// wait for tab-like and explicit buttons, animation settle for
// expandables, plain delay otherwise.
func (it *Interactor) waitFor(ctx context.Context, el DiscoveredElement, tabLike bool) {
	switch {
	case tabLike || el.Category == CategoryExplicit:
		it.waits.networkIdle(ctx)
		sleepCtx(ctx, it.cfg.TabPostClickWait)
	case el.Category == CategoryExpand:
		it.waits.AnimationSettle(ctx)
		sleepCtx(ctx, it.cfg.InteractionDelay/2)
	default:
		sleepCtx(ctx, it.cfg.InteractionDelay)
	}
}

// captureFor tries a tight region crop first, then falls back to a
// full-page shot gated on significant change (tab-like shots are forced:
// tab switches often churn too little DOM to cross thresholds).
func (it *Interactor) captureFor(ctx context.Context, rc *RunContext, el DiscoveredElement,
	tabLike bool, report *ChangeReport) (*ScreenshotRecord, error) {

	rect, source, err := it.region.Locate(ctx, el.Selector, tabLike)
	if err != nil {
		it.cfg.Logger.Debug("capture: region lookup failed", "selector", el.Selector, "error", err)
	}
	if rect != nil {
		return it.shooter.Capture(ctx, rc, ShotOptions{
			Tags:  []string{source, string(el.Category)},
			Rect:  rect,
			Force: true, // a confident region implies something to show
		})
	}

	if !report.SignificantChange && !tabLike {
		return nil, nil
	}
	return it.shooter.Capture(ctx, rc, ShotOptions{
		Tags:  []string{string(el.Category)},
		Force: tabLike,
	})
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
