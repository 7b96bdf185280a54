package capture

import "testing"

func TestScoreSignals(t *testing.T) {
	cfg := testConfig()

	healthy := &pageSignals{
		TotalImages: 10, TextLength: 5000, VisibleElements: 300,
	}
	if got := scoreSignals(healthy, cfg); got != 100 {
		t.Errorf("healthy page score: got %d, want 100", got)
	}

	tests := []struct {
		name    string
		signals pageSignals
		below   int // score must be strictly below this
	}{
		{"unloaded images", pageSignals{TotalImages: 10, UnloadedImages: 5, TextLength: 5000, VisibleElements: 300}, 100},
		{"loading spinners", pageSignals{LoadingMarkers: 2, TextLength: 5000, VisibleElements: 300}, 80},
		{"big overlay", pageSignals{OverlayCoverage: 0.5, TextLength: 5000, VisibleElements: 300}, cfg.MinQualityScore},
		{"sparse page", pageSignals{TextLength: 50, VisibleElements: 4}, cfg.MinQualityScore},
		{"error page", pageSignals{ErrorMarkers: 1, TextLength: 5000, VisibleElements: 300}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreSignals(&tt.signals, cfg)
			if got >= tt.below {
				t.Errorf("score: got %d, want < %d", got, tt.below)
			}
			if got < 0 {
				t.Errorf("score below zero: %d", got)
			}
		})
	}
}

func TestOverlayPenaltyRespectsThresholdAndToggle(t *testing.T) {
	cfg := testConfig()
	s := &pageSignals{OverlayCoverage: 0.30, TextLength: 5000, VisibleElements: 300}

	if got := scoreSignals(s, cfg); got != 100 {
		t.Errorf("coverage below threshold: got %d, want 100", got)
	}

	s.OverlayCoverage = 0.40
	if got := scoreSignals(s, cfg); got != 60 {
		t.Errorf("coverage above threshold: got %d, want 60", got)
	}

	cfg.AvoidOverlayScreenshots = boolPtr(false)
	if got := scoreSignals(s, cfg); got != 100 {
		t.Errorf("overlay penalty disabled: got %d, want 100", got)
	}
}
