package crawl

import (
	"net/url"
	"path"
	"strings"
)

// assetExtensions are never worth a capture session of their own.
var assetExtensions = map[string]bool{
	".pdf": true, ".zip": true, ".gz": true, ".tar": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".svg": true,
	".webp": true, ".ico": true, ".mp4": true, ".webm": true, ".mp3": true,
	".css": true, ".js": true, ".json": true, ".xml": true, ".rss": true,
	".woff": true, ".woff2": true, ".ttf": true,
}

// Excluded reports whether a canonical URL should be dropped from the
// frontier: asset downloads and operator-supplied exclusion substrings.
func Excluded(raw string, patterns []string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}

	if assetExtensions[strings.ToLower(path.Ext(u.Path))] {
		return true
	}

	for _, p := range patterns {
		if p != "" && strings.Contains(raw, p) {
			return true
		}
	}
	return false
}
