package capture

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pagelens/pagelens/browser"
)

const regionJS = `(opts) => {
	const el = document.querySelector(opts.selector);
	if (!el) return JSON.stringify(null);

	const rectOf = (target) => {
		const r = target.getBoundingClientRect();
		return {
			x: r.x + window.scrollX,
			y: r.y + window.scrollY,
			width: r.width,
			height: r.height,
		};
	};
	const visible = (target) => {
		const st = getComputedStyle(target);
		const r = target.getBoundingClientRect();
		return st.display !== 'none' && st.visibility !== 'hidden' && r.width > 0 && r.height > 0;
	};

	// 1. Anchor / jump target.
	const href = el.getAttribute('href') || '';
	let targetID = '';
	if (href.startsWith('#') && href.length > 1) targetID = href.slice(1);
	if (!targetID) targetID = el.getAttribute('aria-controls') || '';
	if (!targetID) {
		const dt = el.getAttribute('data-target') || '';
		if (dt.startsWith('#')) targetID = dt.slice(1);
	}
	if (targetID) {
		const target = document.getElementById(targetID);
		if (target && visible(target)) {
			return JSON.stringify({ rect: rectOf(target), source: href.startsWith('#') ? 'anchor' : 'tabpanel' });
		}
	}

	if (!opts.tabLike) return JSON.stringify(null);

	// 2. First plausible visible tab panel.
	for (const panel of document.querySelectorAll('[role="tabpanel"], .tab-pane, .tab-panel, .tab-content > *')) {
		if (visible(panel)) {
			return JSON.stringify({ rect: rectOf(panel), source: 'tabpanel' });
		}
	}

	// 3. Sizeable-sibling walk, up to 5 ancestor levels.
	let node = el;
	for (let depth = 0; depth < 5 && node; depth++) {
		const parent = node.parentElement;
		if (!parent) break;
		for (const sib of parent.children) {
			if (sib === node) continue;
			if (!visible(sib)) continue;
			const r = sib.getBoundingClientRect();
			if (r.width >= opts.minWidth && r.height >= opts.minHeight && r.height > node.getBoundingClientRect().height * 2) {
				return JSON.stringify({ rect: rectOf(sib), source: 'sibling' });
			}
		}
		node = parent;
	}

	return JSON.stringify(null);
}`

type regionHit struct {
	Rect   Rect   `json:"rect"`
	Source string `json:"source"`
}

// RegionLocator resolves the DOM region an interacted element is
// semantically tied to, so capture can crop tightly instead of shooting
// the whole page again.
type RegionLocator struct {
	tab *browser.Tab
	cfg *Config
}

// NewRegionLocator creates a locator bound to one tab.
func NewRegionLocator(tab *browser.Tab, cfg *Config) *RegionLocator {
	return &RegionLocator{tab: tab, cfg: cfg}
}

// Locate returns the region for the given interacted selector and a tag
// describing how it was found ("anchor", "tabpanel", "sibling"). A nil
// rect means no confident region; the caller falls back to full-page.
func (l *RegionLocator) Locate(ctx context.Context, selector string, tabLike bool) (*Rect, string, error) {
	res, err := l.tab.Eval(ctx, regionJS, map[string]any{
		"selector":  selector,
		"tabLike":   tabLike,
		"minWidth":  l.cfg.MinRegionWidth,
		"minHeight": l.cfg.MinRegionHeight,
	})
	if err != nil {
		return nil, "", fmt.Errorf("capture: region eval: %w", err)
	}

	var hit *regionHit
	if err := json.Unmarshal([]byte(res.Value.Str()), &hit); err != nil {
		return nil, "", fmt.Errorf("capture: region decode: %w", err)
	}
	if hit == nil {
		return nil, "", nil
	}

	rect, ok := clampRegion(hit.Rect, l.cfg)
	if !ok {
		return nil, "", nil
	}
	return &rect, hit.Source, nil
}

// clampRegion applies the configured sizing bounds. Regions below the
// minimum are rejected; oversized ones are trimmed to the maximum.
func clampRegion(r Rect, cfg *Config) (Rect, bool) {
	if r.Width < cfg.MinRegionWidth || r.Height < cfg.MinRegionHeight {
		return Rect{}, false
	}
	if r.Width > cfg.MaxRegionWidth {
		r.Width = cfg.MaxRegionWidth
	}
	if r.Height > cfg.MaxRegionHeight {
		r.Height = cfg.MaxRegionHeight
	}
	if r.X < 0 {
		r.X = 0
	}
	if r.Y < 0 {
		r.Y = 0
	}
	return r, true
}
