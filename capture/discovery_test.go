package capture

import (
	"fmt"
	"testing"
)

func testConfig() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

func TestClassifyRuleOrder(t *testing.T) {
	tests := []struct {
		name string
		raw  rawCandidate
		want Category
	}{
		{"aria tab", rawCandidate{Tag: "a", Role: "tab", Href: "#panel"}, CategoryTab},
		{"tab class beats nav link", rawCandidate{Tag: "a", Href: "/x", Classes: "nav-tab"}, CategoryTab},
		{"table class is not a tab", rawCandidate{Tag: "a", Href: "/x", Classes: "table-link"}, CategoryNav},
		{"button", rawCandidate{Tag: "button", Text: "Go"}, CategoryExplicit},
		{"submit input", rawCandidate{Tag: "input", Type: "submit"}, CategoryExplicit},
		{"anchor link", rawCandidate{Tag: "a", Href: "#section2"}, CategoryNav},
		{"summary", rawCandidate{Tag: "summary"}, CategoryExpand},
		{"aria expanded div", rawCandidate{Tag: "div", AriaExpanded: "false", CursorPointer: true}, CategoryExpand},
		{"select", rawCandidate{Tag: "select"}, CategoryForm},
		{"modal trigger", rawCandidate{Tag: "div", DataToggle: "modal", CursorPointer: true}, CategoryModal},
		{"onclick div", rawCandidate{Tag: "div", HasOnclick: true}, CategoryClickable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, _, _, ok := classify(tt.raw)
			if !ok {
				t.Fatalf("classify: no category for %+v", tt.raw)
			}
			if cat != tt.want {
				t.Errorf("classify: got %s, want %s", cat, tt.want)
			}
		})
	}
}

func TestClassifyRejectsInertElement(t *testing.T) {
	if _, _, _, ok := classify(rawCandidate{Tag: "div", Text: "plain text"}); ok {
		t.Error("inert div should not classify")
	}
}

func TestAssemblePerTypeCap(t *testing.T) {
	// Ten visually identical "Read more" buttons sharing one class keep
	// at most MaxInteractionsPerType.
	var raws []rawCandidate
	for i := 0; i < 10; i++ {
		raws = append(raws, rawCandidate{
			Selector: fmt.Sprintf("main > div:nth-of-type(%d) > button:nth-of-type(1)", i+1),
			Tag:      "button",
			Classes:  "read-more-btn",
			Text:     "Read more",
			Rect:     Rect{Width: 90, Height: 30},
		})
	}

	got := assemble(raws, testConfig())
	if len(got) != 3 {
		t.Fatalf("assemble: got %d elements, want 3", len(got))
	}
	for _, el := range got {
		if el.Category != CategoryExplicit {
			t.Errorf("category: got %s, want %s", el.Category, CategoryExplicit)
		}
	}
}

func TestAssembleOrdering(t *testing.T) {
	raws := []rawCandidate{
		{Selector: "#more", Tag: "a", Href: "/more", Text: "More", Rect: Rect{Width: 40, Height: 20}},
		{Selector: "#t2", Tag: "a", Role: "tab", Href: "#p2", Text: "Billing", Rect: Rect{Width: 60, Height: 24}},
		{Selector: "#t1", Tag: "a", Role: "tab", Href: "#p1", Text: "Account", Rect: Rect{Width: 60, Height: 24}},
		{Selector: "#buy", Tag: "button", Text: "Buy", Rect: Rect{Width: 80, Height: 30}},
	}

	got := assemble(raws, testConfig())
	if len(got) != 4 {
		t.Fatalf("assemble: got %d elements, want 4", len(got))
	}

	wantOrder := []string{"#t1", "#t2", "#buy", "#more"} // tabs first, text ties alphabetical
	for i, sel := range wantOrder {
		if got[i].Selector != sel {
			t.Errorf("position %d: got %s, want %s", i, got[i].Selector, sel)
		}
	}
}

func TestAssembleDropsNoiseAndZeroArea(t *testing.T) {
	raws := []rawCandidate{
		{Selector: "#ok", Tag: "button", Text: "Open menu", Rect: Rect{Width: 40, Height: 20}},
		{Selector: "#consent", Tag: "button", Classes: "cookie-consent-accept", Text: "Accept", Rect: Rect{Width: 90, Height: 30}},
		{Selector: "#share", Tag: "a", Href: "/s", Classes: "share-facebook", Text: "Share", Rect: Rect{Width: 30, Height: 30}},
		{Selector: "#flat", Tag: "button", Text: "Flat", Rect: Rect{Width: 0, Height: 0}},
	}

	got := assemble(raws, testConfig())
	if len(got) != 1 || got[0].Selector != "#ok" {
		t.Fatalf("assemble: got %+v, want only #ok", got)
	}
}

func TestAssembleKeepsSocialWhenNotSkipping(t *testing.T) {
	cfg := testConfig()
	cfg.SkipSocialElements = boolPtr(false)

	raws := []rawCandidate{
		{Selector: "#share", Tag: "a", Href: "/s", Classes: "share-widget", Text: "Partager", Rect: Rect{Width: 30, Height: 30}},
	}
	if got := assemble(raws, cfg); len(got) != 1 {
		t.Errorf("assemble: got %d, want 1 (social kept)", len(got))
	}
}

func TestSignatureBlanksGeneratedMarker(t *testing.T) {
	a := DiscoveredElement{
		Selector:    `[data-pl-mark="pl7"]`,
		Category:    CategoryClickable,
		DisplayText: "Load   More ",
		MarkerUsed:  true,
	}
	b := DiscoveredElement{
		Selector:    `[data-pl-mark="pl42"]`,
		Category:    CategoryClickable,
		DisplayText: "load more",
		MarkerUsed:  true,
	}
	if a.Signature() != b.Signature() {
		t.Errorf("signatures differ across marker regeneration:\n%s\n%s", a.Signature(), b.Signature())
	}

	c := DiscoveredElement{Selector: `[data-pl-mark="pl7"]`, Category: CategoryTab, DisplayText: "load more"}
	if a.Signature() == c.Signature() {
		t.Error("different categories must not share a signature")
	}
}

func TestTabLikeClassification(t *testing.T) {
	tests := []struct {
		el   DiscoveredElement
		want bool
	}{
		{DiscoveredElement{Category: CategoryTab}, true},
		{DiscoveredElement{Category: CategoryNav, SiblingControls: 3}, true},
		{DiscoveredElement{Category: CategoryClickable, ToggleState: true}, true},
		{DiscoveredElement{Category: CategoryNav, SiblingControls: 1}, false},
		{DiscoveredElement{Category: CategoryExplicit}, false},
	}
	for _, tt := range tests {
		if got := tt.el.TabLike(); got != tt.want {
			t.Errorf("TabLike(%+v): got %v, want %v", tt.el, got, tt.want)
		}
	}
}
