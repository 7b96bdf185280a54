// CLAUDE:SUMMARY Element discovery: injected JS collects candidates with validated selectors, Go classifies, caps, and orders them.
package capture

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pagelens/pagelens/browser"
)

//go:embed discover.js
var discoverJS string

// rawCandidate is one element as reported by discover.js: a validated
// unique selector plus the raw facts classification needs.
type rawCandidate struct {
	Selector string `json:"selector"`
	Marker   bool   `json:"marker"`
	Path     string `json:"path"`
	Tag      string `json:"tag"`
	Role     string `json:"role"`
	Type     string `json:"type"`
	Href     string `json:"href"`
	ID       string `json:"id"`
	Classes  string `json:"classes"`
	Text     string `json:"text"`

	AriaExpanded string `json:"aria_expanded"`
	AriaSelected string `json:"aria_selected"`
	AriaControls string `json:"aria_controls"`
	AriaHaspopup string `json:"aria_haspopup"`
	DataToggle   string `json:"data_toggle"`
	DataTarget   string `json:"data_target"`

	HasOnclick      bool `json:"has_onclick"`
	CursorPointer   bool `json:"cursor_pointer"`
	SiblingControls int  `json:"sibling_controls"`

	Rect Rect `json:"rect"`
}

type discoverPayload struct {
	MarkerSeq  int            `json:"markerSeq"`
	Candidates []rawCandidate `json:"candidates"`
}

// Discovery scans the live DOM for interactive candidates. It may attach
// a generated data-pl-mark attribute to elements lacking stable markup;
// those bindings are reported so the orchestrator can reapply them after
// a baseline refresh.
type Discovery struct {
	tab       *browser.Tab
	cfg       *Config
	markerSeq int
}

// NewDiscovery creates a Discovery bound to one tab.
func NewDiscovery(tab *browser.Tab, cfg *Config) *Discovery {
	return &Discovery{tab: tab, cfg: cfg}
}

// Discover runs one discovery pass and returns the ordered, capped element
// list plus any marker bindings attached during the pass.
func (d *Discovery) Discover(ctx context.Context) ([]DiscoveredElement, []MarkerBinding, error) {
	res, err := d.tab.Eval(ctx, discoverJS, map[string]any{"markerSeq": d.markerSeq})
	if err != nil {
		return nil, nil, fmt.Errorf("capture: discovery eval: %w", err)
	}

	var payload discoverPayload
	if err := json.Unmarshal([]byte(res.Value.Str()), &payload); err != nil {
		return nil, nil, fmt.Errorf("capture: discovery payload: %w", err)
	}
	d.markerSeq = payload.MarkerSeq

	elements := assemble(payload.Candidates, d.cfg)

	var markers []MarkerBinding
	for _, raw := range payload.Candidates {
		if raw.Marker && raw.Path != "" {
			markers = append(markers, MarkerBinding{
				Marker: strings.TrimSuffix(strings.TrimPrefix(raw.Selector, `[data-pl-mark="`), `"]`),
				Path:   raw.Path,
			})
		}
	}

	d.cfg.Logger.Debug("capture: discovery pass",
		"raw", len(payload.Candidates), "kept", len(elements), "markers", len(markers))

	return elements, markers, nil
}

// assemble is the pure half of discovery: noise filtering, category
// assignment from the ordered rule table, per-selector caps, and
// priority ordering.
func assemble(raws []rawCandidate, cfg *Config) []DiscoveredElement {
	var out []DiscoveredElement
	counts := make(map[string]int)

	for _, raw := range raws {
		if raw.Rect.Width <= 0 || raw.Rect.Height <= 0 {
			continue
		}
		if isNoise(raw, *cfg.SkipSocialElements) {
			continue
		}

		cat, subtype, prio, ok := classify(raw)
		if !ok {
			continue
		}

		key := capKey(cat, raw)
		if counts[key] >= cfg.MaxInteractionsPerType {
			continue
		}
		counts[key]++

		out = append(out, DiscoveredElement{
			Selector:        raw.Selector,
			Category:        cat,
			Subtype:         subtype,
			DisplayText:     raw.Text,
			Priority:        prio,
			MarkerUsed:      raw.Marker,
			SiblingControls: raw.SiblingControls,
			ToggleState:     raw.AriaExpanded != "" || raw.AriaSelected != "" || raw.DataToggle != "",
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].DisplayText < out[j].DisplayText
	})

	return out
}

// capKey groups visually repeated items: elements of one category sharing
// tag and class list count against the same cap.
func capKey(cat Category, raw rawCandidate) string {
	if raw.Classes != "" {
		return string(cat) + "|" + raw.Tag + "|" + raw.Classes
	}
	return string(cat) + "|" + raw.Tag + "|" + strings.ToLower(raw.Text)
}

var noiseTerms = []string{
	"cookie", "consent", "gdpr", "ccpa",
	"advert", "sponsored", "adsby", "ad-slot", "ad_slot", "taboola",
}

var socialTerms = []string{
	"share", "social", "facebook", "twitter", "instagram",
	"linkedin", "pinterest", "whatsapp", "telegram", "tiktok",
}

func isNoise(raw rawCandidate, skipSocial bool) bool {
	hay := strings.ToLower(raw.Classes + " " + raw.ID + " " + raw.Text)
	for _, term := range noiseTerms {
		if strings.Contains(hay, term) {
			return true
		}
	}
	if skipSocial {
		for _, term := range socialTerms {
			if strings.Contains(hay, term) {
				return true
			}
		}
	}
	return false
}

// categoryRule is one entry in the fixed ordered rule table. First match
// wins; order encodes precedence (tabs before explicit controls before
// navigation and so on).
type categoryRule struct {
	cat      Category
	priority int
	match    func(rawCandidate) (subtype string, ok bool)
}

var ruleTable = []categoryRule{
	{CategoryTab, 100, func(r rawCandidate) (string, bool) {
		switch {
		case r.Role == "tab":
			return "aria-tab", true
		case r.DataToggle == "tab" || r.DataToggle == "pill":
			return "toggle-tab", true
		case r.AriaSelected != "":
			return "selected-attr", true
		case classHas(r.Classes, "tab") && !classHas(r.Classes, "table"):
			return "class-tab", true
		}
		return "", false
	}},
	{CategoryExplicit, 85, func(r rawCandidate) (string, bool) {
		switch {
		case r.Tag == "button":
			return "button", true
		case r.Role == "button":
			return "aria-button", true
		case r.Tag == "input" && (r.Type == "button" || r.Type == "submit"):
			return r.Type, true
		}
		return "", false
	}},
	{CategoryNav, 70, func(r rawCandidate) (string, bool) {
		if r.Tag != "a" || r.Href == "" || strings.HasPrefix(r.Href, "javascript:") {
			return "", false
		}
		if strings.HasPrefix(r.Href, "#") && len(r.Href) > 1 {
			return "anchor", true
		}
		return "link", true
	}},
	{CategoryExpand, 60, func(r rawCandidate) (string, bool) {
		switch {
		case r.Tag == "summary":
			return "summary", true
		case r.AriaExpanded != "":
			return "aria-expanded", true
		case r.DataToggle == "collapse":
			return "collapse", true
		case classHasAny(r.Classes, "accordion", "collapse", "expander", "disclosure"):
			return "class-expand", true
		}
		return "", false
	}},
	{CategoryForm, 50, func(r rawCandidate) (string, bool) {
		switch r.Tag {
		case "select", "input", "textarea", "label":
			return r.Tag, true
		}
		return "", false
	}},
	{CategoryModal, 40, func(r rawCandidate) (string, bool) {
		switch {
		case r.DataToggle == "modal":
			return "toggle-modal", true
		case r.AriaHaspopup == "true" || r.AriaHaspopup == "dialog":
			return "haspopup", true
		case classHasAny(r.Classes, "modal", "popup", "lightbox"):
			return "class-modal", true
		}
		return "", false
	}},
	{CategoryClickable, 25, func(r rawCandidate) (string, bool) {
		switch {
		case r.HasOnclick:
			return "onclick", true
		case r.Role == "menuitem" || r.Role == "switch":
			return r.Role, true
		case r.CursorPointer:
			return "pointer", true
		}
		return "", false
	}},
}

// classify assigns category, subtype, and priority from the rule table.
func classify(raw rawCandidate) (Category, string, int, bool) {
	for _, rule := range ruleTable {
		if subtype, ok := rule.match(raw); ok {
			return rule.cat, subtype, rule.priority, true
		}
	}
	return "", "", 0, false
}

func classHas(classes, term string) bool {
	for _, c := range strings.Fields(strings.ToLower(classes)) {
		if strings.Contains(c, term) {
			return true
		}
	}
	return false
}

func classHasAny(classes string, terms ...string) bool {
	for _, t := range terms {
		if classHas(classes, t) {
			return true
		}
	}
	return false
}
