package capture

import "testing"

func TestClampRegion(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name string
		in   Rect
		ok   bool
		want Rect
	}{
		{"fits", Rect{X: 10, Y: 20, Width: 300, Height: 200}, true, Rect{X: 10, Y: 20, Width: 300, Height: 200}},
		{"too narrow", Rect{Width: 10, Height: 200}, false, Rect{}},
		{"too short", Rect{Width: 300, Height: 5}, false, Rect{}},
		{"oversized trims", Rect{Width: 5000, Height: 9000}, true, Rect{Width: 1920, Height: 4000}},
		{"negative origin clamps", Rect{X: -5, Y: -8, Width: 100, Height: 100}, true, Rect{Width: 100, Height: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := clampRegion(tt.in, cfg)
			if ok != tt.ok {
				t.Fatalf("ok: got %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("rect: got %+v, want %+v", got, tt.want)
			}
		})
	}
}
