package capture

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pagelens/pagelens/browser"
)

const (
	animationSettleCeiling = 3 * time.Second
	stabilityInterval      = 300 * time.Millisecond
	stabilitySamples       = 10
	stabilityStableRuns    = 3
)

// Waits composes the load-completion protocol from validator primitives.
// Every step is bounded and best-effort: a timeout moves on to the next
// step rather than failing the run.
type Waits struct {
	tab *browser.Tab
	cfg *Config
}

// NewWaits creates a Waits bound to one tab.
func NewWaits(tab *browser.Tab, cfg *Config) *Waits {
	return &Waits{tab: tab, cfg: cfg}
}

// Settle runs the full protocol: network idle → DOM content → images →
// fonts → animation settle → lazy-load scroll pass → DOM stability poll.
func (w *Waits) Settle(ctx context.Context) {
	w.networkIdle(ctx)
	w.domContent(ctx)
	w.images(ctx)
	w.fonts(ctx)
	w.AnimationSettle(ctx)
	w.LazyScroll(ctx)
	w.stabilityPoll(ctx)
}

func (w *Waits) networkIdle(ctx context.Context) {
	idleCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.tab.Page.Context(idleCtx).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	}()
	select {
	case <-done:
	case <-idleCtx.Done():
		w.cfg.Logger.Debug("capture: network idle timeout")
	}
}

func (w *Waits) domContent(ctx context.Context) {
	w.evalBounded(ctx, 5*time.Second, `() => new Promise(resolve => {
		if (document.readyState !== 'loading') { resolve(true); return; }
		document.addEventListener('DOMContentLoaded', () => resolve(true), { once: true });
	})`)
}

func (w *Waits) images(ctx context.Context) {
	w.evalBounded(ctx, 8*time.Second, `() => Promise.all(
		Array.from(document.images)
			.filter(img => !img.complete)
			.map(img => new Promise(r => { img.onload = img.onerror = r; }))
	).then(() => true)`)
}

func (w *Waits) fonts(ctx context.Context) {
	w.evalBounded(ctx, 3*time.Second, `() =>
		(document.fonts ? document.fonts.ready : Promise.resolve()).then(() => true)`)
}

// AnimationSettle polls until no CSS animations or transitions are
// running, bounded by a 3s ceiling. Exposed separately: the interaction
// engine reuses it after expandable toggles.
func (w *Waits) AnimationSettle(ctx context.Context) {
	deadline := time.Now().Add(animationSettleCeiling)
	for time.Now().Before(deadline) {
		res, err := w.tab.Eval(ctx, `() =>
			typeof document.getAnimations === 'function'
				? document.getAnimations().filter(a => a.playState === 'running').length
				: 0`)
		if err != nil || res.Value.Int() == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(150 * time.Millisecond):
		}
	}
}

// LazyScroll walks the page top to bottom in 80%-viewport steps to fire
// lazy loaders, then returns to the top.
func (w *Waits) LazyScroll(ctx context.Context) {
	w.evalBounded(ctx, 15*time.Second, `() => new Promise(resolve => {
		const step = Math.floor(window.innerHeight * 0.8);
		let y = 0;
		const tick = () => {
			window.scrollTo(0, y);
			if (y >= document.body.scrollHeight) {
				window.scrollTo(0, 0);
				resolve(true);
				return;
			}
			y += step;
			setTimeout(tick, 120);
		};
		tick();
	})`)
}

// stabilityPoll samples visible-element count and body text length until
// three consecutive samples agree, 300ms apart, with a 10-sample ceiling.
func (w *Waits) stabilityPoll(ctx context.Context) {
	type sample struct {
		Visible int `json:"visible"`
		TextLen int `json:"text_len"`
	}

	var last sample
	stable := 0

	for i := 0; i < stabilitySamples; i++ {
		res, err := w.tab.Eval(ctx, `() => {
			let visible = 0;
			for (const el of document.body ? document.body.querySelectorAll('*') : []) {
				const r = el.getBoundingClientRect();
				if (r.width > 0 && r.height > 0) visible++;
			}
			return JSON.stringify({
				visible: visible,
				text_len: document.body ? document.body.innerText.length : 0,
			});
		}`)
		if err != nil {
			return
		}

		var s sample
		if err := json.Unmarshal([]byte(res.Value.Str()), &s); err != nil {
			return
		}

		if i > 0 && s == last {
			stable++
			if stable >= stabilityStableRuns-1 {
				return
			}
		} else {
			stable = 0
		}
		last = s

		select {
		case <-ctx.Done():
			return
		case <-time.After(stabilityInterval):
		}
	}
}

// evalBounded runs a promise-returning JS expression with its own timeout.
// Failures and timeouts are logged at debug and swallowed.
func (w *Waits) evalBounded(ctx context.Context, d time.Duration, js string) {
	evalCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	if _, err := w.tab.Eval(evalCtx, js); err != nil {
		w.cfg.Logger.Debug("capture: wait step timed out", "error", err)
	}
}
