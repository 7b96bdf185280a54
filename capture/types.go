// Package capture implements interactive content capture: it discovers
// interactive elements on a live page, activates them one by one, detects
// whether the activation changed anything worth photographing, and captures
// deduplicated screenshots of both the resting page and its interactive
// variants.
//
// capture drives, it does not crawl. It receives a single navigated tab and
// a configuration, and returns screenshots plus a run summary; URL discovery
// and persistence belong to the crawl and jobs packages.
package capture

import (
	"regexp"
	"strings"
	"time"
)

// Category classifies an interactive element. Categories form a fixed
// ordered rule table: when several match, the highest-priority one wins.
type Category string

const (
	CategoryTab       Category = "tab"
	CategoryExplicit  Category = "explicit"
	CategoryNav       Category = "navigation"
	CategoryExpand    Category = "expandable"
	CategoryForm      Category = "form"
	CategoryModal     Category = "modal-trigger"
	CategoryClickable Category = "generic-clickable"
)

// DiscoveredElement is one interactive candidate found by discovery.
// Its selector resolves to exactly one live element at discovery time.
type DiscoveredElement struct {
	Selector    string
	Category    Category
	Subtype     string
	DisplayText string
	Priority    int

	// MarkerUsed is set when the selector rests on a generated
	// data-pl-mark attribute rather than stable page markup.
	MarkerUsed bool

	// SiblingControls counts sibling controls sharing the element's
	// container; ToggleState is set when the element carries a
	// toggle-state attribute. Both feed tab-like classification.
	SiblingControls int
	ToggleState     bool
}

// TabLike reports whether activating the element is expected to switch
// visible sibling content: explicit tab category, two or more sibling
// controls in a shared container, or a toggle-state attribute.
func (e DiscoveredElement) TabLike() bool {
	return e.Category == CategoryTab || e.SiblingControls >= 2 || e.ToggleState
}

var markerRe = regexp.MustCompile(`\[data-pl-mark="[^"]*"\]`)

// Signature derives the stable identity of a logical element: category +
// normalised text + selector with any generated marker blanked out. It
// survives re-renders that preserve visible text and role, and prevents
// reprocessing the same element across discovery rounds.
func (e DiscoveredElement) Signature() string {
	text := strings.Join(strings.Fields(strings.ToLower(e.DisplayText)), " ")
	if len(text) > 60 {
		text = text[:60]
	}
	sel := markerRe.ReplaceAllString(e.Selector, `[data-pl-mark]`)
	return string(e.Category) + "|" + text + "|" + sel
}

// MarkerBinding records a generated marker and a best-effort positional
// path to the element carrying it, so markers can be reapplied after a
// baseline refresh.
type MarkerBinding struct {
	Marker string `json:"marker"`
	Path   string `json:"path"`
}

// BaselineState is the page's restore point: captured once before any
// interaction, mutated only by the orchestrator.
type BaselineState struct {
	URL     string
	ScrollX float64
	ScrollY float64
	Markers []MarkerBinding
}

// ChangeReport is the typed diff between two page snapshots, produced
// fresh per interaction and never persisted beyond it.
type ChangeReport struct {
	DOMSizeDelta    int
	VisibleDelta    int
	SelectedDelta   int
	TextLengthDelta int
	NewImages       int
	HiddenDelta     int
	MainTextDelta   int
	URLChanged      bool

	SignificantChange bool
}

// Rect is a bounding rectangle in page coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ScreenshotRecord is one captured image. Deduplication may remove it
// from the run's list before the result is returned.
type ScreenshotRecord struct {
	Filename  string
	Timestamp time.Time
	Buffer    []byte
	Size      int
	Tags      []string
	CropRect  *Rect
}

// Outcome of one interaction attempt.
type Outcome string

const (
	OutcomeCaptured  Outcome = "captured"
	OutcomeNoChange  Outcome = "no-change"
	OutcomeLowScore  Outcome = "low-quality-skipped"
	OutcomeZeroSize  Outcome = "zero-size-skipped"
	OutcomeVanished  Outcome = "selector-vanished"
	OutcomeRecovered Outcome = "recovered-after-refresh"
)

// HistoryEntry records one interaction for reporting. Append-only; never
// consulted for control flow.
type HistoryEntry struct {
	Selector   string
	Category   Category
	Text       string
	Outcome    Outcome
	Screenshot string // linked screenshot filename, if any
}

// State of the capture run.
type State string

const (
	StatePending          State = "pending"
	StateBaselineCaptured State = "baseline_captured"
	StateDiscovering      State = "discovering"
	StateInteracting      State = "interacting"
	StateFinalizing       State = "finalizing"
	StateDeduplicated     State = "deduplicated"
)

// RunContext is the disposable per-run state owned by the orchestrator and
// passed by reference to subcomponents. Never shared across sessions.
type RunContext struct {
	State        State
	Baseline     BaselineState
	Seen         map[string]bool // element signatures already processed
	History      []HistoryEntry
	Screenshots  []*ScreenshotRecord
	Interactions int // attempted interactions, bounded by MaxInteractions
	shotSeq      int
}

// NewRunContext returns an empty run context in StatePending.
func NewRunContext() *RunContext {
	return &RunContext{
		State: StatePending,
		Seen:  make(map[string]bool),
	}
}

// Summary reports what a run produced.
type Summary struct {
	Discovered        int           `json:"discovered"`
	Interacted        int           `json:"interacted"`
	Screenshotted     int           `json:"screenshotted"`
	DuplicatesRemoved int           `json:"duplicates_removed"`
	Elapsed           time.Duration `json:"elapsed"`
}

// Result is the engine's output: the surviving screenshots in capture
// order, the interaction history, and counters.
type Result struct {
	Screenshots []*ScreenshotRecord
	History     []HistoryEntry
	Summary     Summary
}
