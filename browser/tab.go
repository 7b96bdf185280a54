package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// ErrNavigation marks a navigation that did not produce a success response.
// It is fatal for the page being captured, never for the whole run.
var ErrNavigation = errors.New("navigation failed")

// Tab wraps a Rod page with capture-specific setup: stealth, resource
// blocking, and an origin guard. One Tab belongs to exactly one capture
// session; tabs are never shared across sessions.
type Tab struct {
	Page    *rod.Page
	PageURL string
	Guard   *Guard
	manager *Manager
}

// OpenTab creates a new stealth tab, installs the origin guard for the
// URL's origin, and navigates. A non-success document response (>= 400)
// returns ErrNavigation.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	guard, err := NewGuard(pageURL, mgr.cfg.Logger)
	if err != nil {
		page.Close()
		return nil, err
	}

	t := &Tab{
		Page:    page,
		PageURL: pageURL,
		Guard:   guard,
		manager: mgr,
	}

	if err := guard.Install(page, mgr.cfg.BlockResources); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: install guard: %w", err)
	}

	if err := t.Navigate(ctx, pageURL); err != nil {
		page.Close()
		return nil, err
	}

	return t, nil
}

// Navigate drives the page to pageURL and waits for the load event. The
// document response status is checked: >= 400 yields ErrNavigation.
func (t *Tab) Navigate(ctx context.Context, pageURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	page := t.Page.Context(navCtx)

	var status int
	wait := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type == proto.NetworkResourceTypeDocument {
			status = e.Response.Status
			return true
		}
		return false
	})

	if err := page.Navigate(pageURL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	wait()

	if status >= 400 {
		return fmt.Errorf("%w: %s returned status %d", ErrNavigation, pageURL, status)
	}

	if err := page.WaitLoad(); err != nil {
		t.manager.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	t.PageURL = pageURL
	return nil
}

// Eval runs a JS function on the page and returns the Rod eval result.
// Every DOM read goes through here freshly; results are never cached
// across a suspension point.
func (t *Tab) Eval(ctx context.Context, js string, args ...any) (*proto.RuntimeRemoteObject, error) {
	res, err := t.Page.Context(ctx).Eval(js, args...)
	if err != nil {
		return nil, fmt.Errorf("browser: eval: %w", err)
	}
	return res, nil
}

// URL reads the current page URL from the live document.
func (t *Tab) URL(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`() => window.location.href`)
	if err != nil {
		return "", fmt.Errorf("browser: read url: %w", err)
	}
	return res.Value.Str(), nil
}

// Close closes the tab. Failures are logged; the handle is nilled out
// regardless so a broken tab is never reused.
func (t *Tab) Close() error {
	if t.Page == nil {
		return nil
	}
	err := t.Page.Close()
	if err != nil {
		t.manager.cfg.Logger.Warn("browser: close tab", "url", t.PageURL, "error", err)
	}
	t.Page = nil
	return err
}
