package capture

import (
	"context"
	"fmt"
	"testing"
)

// walk runs the attempt machine with scripted attempt results and returns
// the visited states plus the attempt count.
func walk(results []error) (final attemptState, attempts int) {
	state := stateAttempt
	retried := false
	var lastErr error

	for state != stateSuccess && state != stateAbandon {
		switch state {
		case stateAttempt, stateRetry:
			lastErr = results[attempts]
			attempts++
			state = nextAttemptState(state, lastErr, retried)
		case stateFailed:
			state = nextAttemptState(state, lastErr, retried)
		case stateRefreshBaseline:
			retried = true
			state = nextAttemptState(state, lastErr, retried)
		}
	}
	return state, attempts
}

func TestRetryExactlyOnce(t *testing.T) {
	vanish := fmt.Errorf("wrap: %w", ErrElementVanished)

	tests := []struct {
		name         string
		results      []error
		wantState    attemptState
		wantAttempts int
	}{
		{"first try succeeds", []error{nil}, stateSuccess, 1},
		{"vanish then recover", []error{vanish, nil}, stateSuccess, 2},
		{"vanish twice abandons", []error{vanish, vanish}, stateAbandon, 2},
		{"zero size never retries", []error{errZeroSize}, stateAbandon, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, attempts := walk(tt.results)
			if state != tt.wantState {
				t.Errorf("final state: got %d, want %d", state, tt.wantState)
			}
			if attempts != tt.wantAttempts {
				t.Errorf("attempts: got %d, want %d", attempts, tt.wantAttempts)
			}
		})
	}
}

// scriptedInteractor builds an Interactor whose attempt results follow
// the given script, counting restore and refresh calls.
func scriptedInteractor(results []error, restores, refreshes *int) *Interactor {
	cfg := Config{}
	cfg.defaults()

	it := &Interactor{cfg: &cfg}
	it.restore = func(context.Context, *RunContext) error {
		*restores++
		return nil
	}
	it.refresh = func(context.Context, *RunContext) error {
		*refreshes++
		return nil
	}
	attempts := 0
	it.attemptFn = func(context.Context, *RunContext, DiscoveredElement) (*ScreenshotRecord, error) {
		err := results[attempts]
		attempts++
		return nil, err
	}
	return it
}

func TestRetryReloadsBaseline(t *testing.T) {
	// A vanished selector on an unchanged URL needs a real reload, so
	// the retry cycle must go through refresh, never restore.
	vanish := fmt.Errorf("wrap: %w", ErrElementVanished)

	tests := []struct {
		name          string
		results       []error
		wantRefreshes int
		wantOutcome   Outcome
	}{
		{"vanish then recover", []error{vanish, nil}, 1, OutcomeNoChange},
		{"vanish twice abandons", []error{vanish, vanish}, 1, OutcomeVanished},
		{"zero size skips refresh", []error{errZeroSize}, 0, OutcomeZeroSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restores, refreshes := 0, 0
			it := scriptedInteractor(tt.results, &restores, &refreshes)

			rc := NewRunContext()
			it.Run(context.Background(), rc, DiscoveredElement{Selector: "#panel"})

			if refreshes != tt.wantRefreshes {
				t.Errorf("refresh calls: got %d, want %d", refreshes, tt.wantRefreshes)
			}
			if restores != 0 {
				t.Errorf("restore calls: got %d, want 0 on the retry path", restores)
			}
			if len(rc.History) != 1 || rc.History[0].Outcome != tt.wantOutcome {
				t.Errorf("history: got %+v, want outcome %q", rc.History, tt.wantOutcome)
			}
		})
	}
}

func TestShotFilename(t *testing.T) {
	if got := shotFilename(3, []string{"anchor", "navigation"}); got != "003-anchor.png" {
		t.Errorf("shotFilename: got %q", got)
	}
	if got := shotFilename(12, nil); got != "012-shot.png" {
		t.Errorf("shotFilename: got %q", got)
	}
}
