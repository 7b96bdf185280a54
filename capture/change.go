package capture

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pagelens/pagelens/browser"
)

// Thresholds for the significant-change verdict. The question is "did
// something meaningfully change", not pixel diffing.
const (
	thresholdDOMSize    = 50
	thresholdVisible    = 2
	thresholdTextLength = 50
	thresholdHidden     = 1
	thresholdMainText   = 100
)

// metricSnapshot is the fixed structural metric vector captured before and
// after an interaction.
type metricSnapshot struct {
	DOMSize       int    `json:"dom_size"`
	VisibleCount  int    `json:"visible_count"`
	ImageCount    int    `json:"image_count"`
	TextLength    int    `json:"text_length"`
	SelectedCount int    `json:"selected_count"`
	HiddenCount   int    `json:"hidden_count"`
	MainTextLen   int    `json:"main_text_len"`
	OverlayCount  int    `json:"overlay_count"`
	URL           string `json:"url"`
}

const metricsJS = `() => {
	let visible = 0, hidden = 0, overlays = 0;
	for (const el of document.querySelectorAll('*')) {
		const st = getComputedStyle(el);
		const r = el.getBoundingClientRect();
		if (st.display === 'none' || st.visibility === 'hidden' || r.width <= 0 || r.height <= 0) {
			hidden++;
			continue;
		}
		visible++;
		if ((st.position === 'fixed' || st.position === 'absolute') &&
			r.width * r.height > window.innerWidth * window.innerHeight * 0.25) {
			overlays++;
		}
	}

	const selected = document.querySelectorAll(
		'[aria-selected="true"], [aria-expanded="true"], .active, .selected, .open, :checked').length;

	const main = document.querySelector('main, article, [role="main"], #content, .content');

	return JSON.stringify({
		dom_size: document.querySelectorAll('*').length,
		visible_count: visible,
		image_count: document.images.length,
		text_length: (document.body ? document.body.innerText.length : 0),
		selected_count: selected,
		hidden_count: hidden,
		main_text_len: main ? main.innerText.length : 0,
		overlay_count: overlays,
		url: window.location.href,
	});
}`

// ChangeDetector snapshots structural signals and diffs them across an
// interaction. Every snapshot is freshly read from the live DOM.
type ChangeDetector struct {
	tab *browser.Tab
	cfg *Config
}

// NewChangeDetector creates a detector bound to one tab.
func NewChangeDetector(tab *browser.Tab, cfg *Config) *ChangeDetector {
	return &ChangeDetector{tab: tab, cfg: cfg}
}

// Snapshot captures the metric vector for the current page state.
func (c *ChangeDetector) Snapshot(ctx context.Context) (*metricSnapshot, error) {
	evalCtx, cancel := context.WithTimeout(ctx, c.cfg.ChangeDetectionTimeout)
	defer cancel()

	res, err := c.tab.Eval(evalCtx, metricsJS)
	if err != nil {
		return nil, fmt.Errorf("capture: change snapshot: %w", err)
	}

	var m metricSnapshot
	if err := json.Unmarshal([]byte(res.Value.Str()), &m); err != nil {
		return nil, fmt.Errorf("capture: change snapshot decode: %w", err)
	}
	return &m, nil
}

// Diff recomputes the vector and reports what moved since before.
func (c *ChangeDetector) Diff(ctx context.Context, before *metricSnapshot) (*ChangeReport, error) {
	after, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return diffSnapshots(before, after), nil
}

// diffSnapshots derives the typed change report from two metric vectors.
func diffSnapshots(before, after *metricSnapshot) *ChangeReport {
	r := &ChangeReport{
		DOMSizeDelta:    after.DOMSize - before.DOMSize,
		VisibleDelta:    after.VisibleCount - before.VisibleCount,
		SelectedDelta:   after.SelectedCount - before.SelectedCount,
		TextLengthDelta: after.TextLength - before.TextLength,
		NewImages:       after.ImageCount - before.ImageCount,
		HiddenDelta:     after.HiddenCount - before.HiddenCount,
		MainTextDelta:   after.MainTextLen - before.MainTextLen,
		URLChanged:      after.URL != before.URL,
	}

	r.SignificantChange = r.URLChanged ||
		abs(r.DOMSizeDelta) > thresholdDOMSize ||
		abs(r.VisibleDelta) > thresholdVisible ||
		abs(r.TextLengthDelta) > thresholdTextLength ||
		abs(r.HiddenDelta) > thresholdHidden ||
		abs(r.MainTextDelta) > thresholdMainText ||
		r.SelectedDelta != 0

	return r
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
