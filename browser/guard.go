package browser

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Guard binds a capture session to a single origin. Document requests to
// any other origin are failed at the network layer, so an interaction that
// triggers a cross-origin navigation cannot drag the session off-site.
type Guard struct {
	scheme string
	host   string
	logger *slog.Logger
}

// NewGuard derives the bound origin from pageURL.
func NewGuard(pageURL string, logger *slog.Logger) (*Guard, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("browser: guard: parse %s: %w", pageURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("browser: guard: %s has no origin", pageURL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{scheme: u.Scheme, host: u.Host, logger: logger}, nil
}

// Origin returns the bound origin as scheme://host.
func (g *Guard) Origin() string {
	return g.scheme + "://" + g.host
}

// SameOrigin reports whether raw shares the guard's origin. Fragment-only
// and relative URLs count as same-origin.
func (g *Guard) SameOrigin(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Host == "" {
		return true // relative or fragment-only
	}
	return strings.EqualFold(u.Host, g.host) && strings.EqualFold(u.Scheme, g.scheme)
}

// Install sets up request interception on the page: cross-origin document
// requests are failed, and the listed resource types (fonts, media) are
// blocked. Images and stylesheets pass through always — screenshots need
// them.
func (g *Guard) Install(page *rod.Page, blockResources []string) error {
	blockSet := make(map[string]bool, len(blockResources))
	for _, t := range blockResources {
		blockSet[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()

	router.MustAdd("*", func(ctx *rod.Hijack) {
		resType := ctx.Request.Type()

		if resType == proto.NetworkResourceTypeDocument && !g.SameOrigin(ctx.Request.URL().String()) {
			g.logger.Info("browser: blocked cross-origin navigation",
				"origin", g.Origin(), "target", ctx.Request.URL().String())
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}

		if shouldBlock(blockSet, string(resType)) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	go router.Run()

	return nil
}

func shouldBlock(blockSet map[string]bool, resType string) bool {
	switch strings.ToLower(resType) {
	case "font":
		return blockSet["fonts"]
	case "media":
		return blockSet["media"]
	}
	return false
}
