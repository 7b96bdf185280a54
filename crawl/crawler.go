// CLAUDE:SUMMARY Breadth-first same-origin URL discovery over browser-rendered pages.
// Package crawl discovers the URL set of a site by breadth-first link
// traversal of rendered pages. It produces the page list the capture
// engine consumes; it takes no screenshots itself.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/pagelens/pagelens/browser"
)

// Config tunes one crawl.
type Config struct {
	// MaxPages caps the discovered URL list, start URL included.
	// Default: 25.
	MaxPages int

	// MaxDepth caps link depth from the start URL. Default: 3.
	MaxDepth int

	// Exclude lists substrings; URLs containing any are dropped.
	Exclude []string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxPages <= 0 {
		c.MaxPages = 25
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 3
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Crawler walks a site breadth-first through a single browser tab,
// reusing it page after page. Rendered HTML is used so client-routed
// sites expose their links too.
type Crawler struct {
	mgr *browser.Manager
	cfg Config
}

// New creates a Crawler.
func New(mgr *browser.Manager, cfg Config) *Crawler {
	cfg.defaults()
	return &Crawler{mgr: mgr, cfg: cfg}
}

type frontierEntry struct {
	url   string
	depth int
}

// Discover returns the breadth-first ordered list of same-origin page
// URLs reachable from startURL, canonicalised and capped. Navigation
// failures skip the page and continue.
func (c *Crawler) Discover(ctx context.Context, startURL string) ([]string, error) {
	log := c.cfg.Logger

	base, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("crawl: parse start url: %w", err)
	}

	start, ok := Canonicalize(base, startURL)
	if !ok {
		return nil, fmt.Errorf("crawl: start url %s is not crawlable", startURL)
	}

	tab, err := browser.OpenTab(ctx, c.mgr, start)
	if err != nil {
		return nil, fmt.Errorf("crawl: open tab: %w", err)
	}
	defer tab.Close()

	first := true
	fetch := func(ctx context.Context, pageURL string) (string, error) {
		// OpenTab already navigated to the start URL.
		if !first {
			if err := tab.Navigate(ctx, pageURL); err != nil {
				return "", err
			}
		}
		first = false

		res, err := tab.Eval(ctx, `() => document.documentElement.outerHTML`)
		if err != nil {
			return "", err
		}
		return res.Value.Str(), nil
	}

	order := c.bfs(ctx, start, tab.Guard.SameOrigin, fetch)

	log.Info("crawl: discovery complete", "start", start, "pages", len(order))
	return order, nil
}

// bfs walks the frontier breadth-first. Entries at MaxDepth stay in the
// result but are never fetched: their links would be dropped anyway, so
// loading them buys nothing.
func (c *Crawler) bfs(ctx context.Context, start string, sameOrigin func(string) bool,
	fetch func(context.Context, string) (string, error)) []string {

	log := c.cfg.Logger
	seen := map[string]bool{start: true}
	order := []string{start}
	queue := []frontierEntry{{url: start, depth: 0}}

	for len(queue) > 0 && len(order) < c.cfg.MaxPages {
		if ctx.Err() != nil {
			break
		}

		entry := queue[0]
		queue = queue[1:]

		if entry.depth >= c.cfg.MaxDepth {
			continue
		}

		rendered, err := fetch(ctx, entry.url)
		if err != nil {
			log.Warn("crawl: skip page", "url", entry.url, "error", err)
			continue
		}

		pageURL, _ := url.Parse(entry.url)
		for _, link := range ExtractLinks(pageURL, rendered) {
			if seen[link] || !sameOrigin(link) || Excluded(link, c.cfg.Exclude) {
				continue
			}
			seen[link] = true
			order = append(order, link)
			queue = append(queue, frontierEntry{url: link, depth: entry.depth + 1})
			if len(order) >= c.cfg.MaxPages {
				break
			}
		}
	}
	return order
}

// ExtractLinks parses rendered HTML and returns the canonicalised href
// targets of its anchor elements, in document order, deduplicated.
func ExtractLinks(base *url.URL, rendered string) []string {
	doc, err := html.Parse(strings.NewReader(rendered))
	if err != nil {
		return nil
	}

	var out []string
	seen := make(map[string]bool)

	for node := range doc.Descendants() {
		if node.Type != html.ElementNode || node.Data != "a" {
			continue
		}
		for _, attr := range node.Attr {
			if attr.Key != "href" {
				continue
			}
			link, ok := Canonicalize(base, attr.Val)
			if ok && !seen[link] {
				seen[link] = true
				out = append(out, link)
			}
			break
		}
	}
	return out
}
