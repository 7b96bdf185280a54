package crawl

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return u
}

func TestCanonicalize(t *testing.T) {
	base := mustParse(t, "https://example.com/docs/")

	tests := []struct {
		href string
		want string
		ok   bool
	}{
		{"https://example.com/docs/page/", "https://example.com/docs/page", true},
		{"page#section", "https://example.com/docs/page", true},
		{"/", "https://example.com/", true},
		{"https://EXAMPLE.com:443/a", "https://example.com/a", true},
		{"http://example.com:80/a", "http://example.com/a", true},
		{"?b=2&a=1", "https://example.com/docs?a=1&b=2", true},
		{"mailto:x@example.com", "", false},
		{"javascript:void(0)", "", false},
		{"tel:+123", "", false},
	}

	for _, tt := range tests {
		got, ok := Canonicalize(base, tt.href)
		if ok != tt.ok {
			t.Errorf("Canonicalize(%q): ok=%v, want %v", tt.href, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("Canonicalize(%q): got %q, want %q", tt.href, got, tt.want)
		}
	}
}

func TestCanonicalizeCollapsesSpellings(t *testing.T) {
	base := mustParse(t, "https://example.com/")
	a, _ := Canonicalize(base, "https://example.com/pricing/")
	b, _ := Canonicalize(base, "/pricing#plans")
	if a != b {
		t.Errorf("spellings did not collapse: %q vs %q", a, b)
	}
}

func TestExcluded(t *testing.T) {
	tests := []struct {
		url      string
		patterns []string
		want     bool
	}{
		{"https://example.com/report.pdf", nil, true},
		{"https://example.com/logo.svg", nil, true},
		{"https://example.com/page", nil, false},
		{"https://example.com/admin/users", []string{"/admin/"}, true},
		{"https://example.com/blog", []string{"/admin/"}, false},
	}
	for _, tt := range tests {
		if got := Excluded(tt.url, tt.patterns); got != tt.want {
			t.Errorf("Excluded(%q, %v): got %v, want %v", tt.url, tt.patterns, got, tt.want)
		}
	}
}

func TestExtractLinks(t *testing.T) {
	base := mustParse(t, "https://example.com/")
	rendered := `<html><body>
		<a href="/one">One</a>
		<a href="/two/">Two</a>
		<a href="/one#dup">One again</a>
		<a href="https://other.example.net/ext">External</a>
		<a href="mailto:hi@example.com">Mail</a>
		<nav><a href="three">Three</a></nav>
	</body></html>`

	got := ExtractLinks(base, rendered)
	want := []string{
		"https://example.com/one",
		"https://example.com/two",
		"https://other.example.net/ext", // origin filtering happens in the crawler
		"https://example.com/three",
	}
	if len(got) != len(want) {
		t.Fatalf("links: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("link %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

// fakeSite serves a small link graph through the bfs fetch seam,
// recording which URLs were actually loaded.
type fakeSite struct {
	links   map[string][]string
	fetched []string
}

func (f *fakeSite) fetch(_ context.Context, pageURL string) (string, error) {
	f.fetched = append(f.fetched, pageURL)
	var b strings.Builder
	for _, href := range f.links[pageURL] {
		fmt.Fprintf(&b, `<a href=%q>x</a>`, href)
	}
	return b.String(), nil
}

func TestBFSNeverFetchesLeaves(t *testing.T) {
	site := &fakeSite{links: map[string][]string{
		"https://example.com/":  {"https://example.com/a", "https://example.com/b"},
		"https://example.com/a": {"https://example.com/c"},
	}}

	c := New(nil, Config{MaxDepth: 1, MaxPages: 25})
	order := c.bfs(context.Background(), "https://example.com/",
		func(string) bool { return true }, site.fetch)

	want := []string{"https://example.com/", "https://example.com/a", "https://example.com/b"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order: got %v, want %v", order, want)
	}

	// Pages at MaxDepth are recorded but never loaded.
	if !reflect.DeepEqual(site.fetched, []string{"https://example.com/"}) {
		t.Errorf("fetched: got %v, want only the start page", site.fetched)
	}
}

func TestBFSStopsAtPageCap(t *testing.T) {
	site := &fakeSite{links: map[string][]string{
		"https://example.com/": {
			"https://example.com/a", "https://example.com/b", "https://example.com/c",
		},
	}}

	c := New(nil, Config{MaxDepth: 3, MaxPages: 2})
	order := c.bfs(context.Background(), "https://example.com/",
		func(string) bool { return true }, site.fetch)

	if len(order) != 2 {
		t.Errorf("order: got %v, want 2 entries", order)
	}
}
