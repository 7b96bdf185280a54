package capture

import "testing"

func TestDiffSnapshotsThresholds(t *testing.T) {
	base := &metricSnapshot{
		DOMSize: 500, VisibleCount: 200, ImageCount: 10, TextLength: 3000,
		SelectedCount: 1, HiddenCount: 40, MainTextLen: 2000,
		URL: "https://example.com/",
	}

	tests := []struct {
		name   string
		mutate func(*metricSnapshot)
		want   bool
	}{
		{"no change", func(m *metricSnapshot) {}, false},
		{"small text delta stays quiet", func(m *metricSnapshot) { m.TextLength += 50 }, false},
		{"tab switch text delta", func(m *metricSnapshot) { m.TextLength += 51 }, true},
		{"dom growth", func(m *metricSnapshot) { m.DOMSize += 51 }, true},
		{"dom growth below threshold", func(m *metricSnapshot) { m.DOMSize += 50 }, false},
		{"visible elements", func(m *metricSnapshot) { m.VisibleCount += 3 }, true},
		{"hidden elements", func(m *metricSnapshot) { m.HiddenCount += 2 }, true},
		{"main content", func(m *metricSnapshot) { m.MainTextLen += 101 }, true},
		{"selection identity", func(m *metricSnapshot) { m.SelectedCount = 2 }, true},
		{"url change", func(m *metricSnapshot) { m.URL = "https://example.com/#two" }, true},
		{"shrink counts too", func(m *metricSnapshot) { m.TextLength -= 60 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			after := *base
			tt.mutate(&after)
			report := diffSnapshots(base, &after)
			if report.SignificantChange != tt.want {
				t.Errorf("SignificantChange: got %v, want %v (%+v)", report.SignificantChange, tt.want, report)
			}
		})
	}
}

func TestDiffSnapshotsDeltas(t *testing.T) {
	before := &metricSnapshot{DOMSize: 100, ImageCount: 4, TextLength: 1000, URL: "u"}
	after := &metricSnapshot{DOMSize: 180, ImageCount: 7, TextLength: 900, URL: "u"}

	r := diffSnapshots(before, after)
	if r.DOMSizeDelta != 80 {
		t.Errorf("DOMSizeDelta: got %d, want 80", r.DOMSizeDelta)
	}
	if r.NewImages != 3 {
		t.Errorf("NewImages: got %d, want 3", r.NewImages)
	}
	if r.TextLengthDelta != -100 {
		t.Errorf("TextLengthDelta: got %d, want -100", r.TextLengthDelta)
	}
	if r.URLChanged {
		t.Error("URLChanged: got true, want false")
	}
}
