package dedupe

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// testPNG renders a simple two-band pattern and encodes it at the given
// compression level, so pixel-identical images can have different bytes.
func testPNG(t *testing.T, top, bottom color.RGBA, level png.CompressionLevel) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		c := top
		if y >= 32 {
			c = bottom
		}
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

var (
	red  = color.RGBA{R: 200, A: 255}
	blue = color.RGBA{B: 200, A: 255}
	grey = color.RGBA{R: 120, G: 120, B: 120, A: 255}
)

func TestSimilaritySelfAndSymmetry(t *testing.T) {
	a := HashImage(testPNG(t, red, blue, png.DefaultCompression))
	b := HashImage(testPNG(t, blue, grey, png.DefaultCompression))

	if got := Similarity(a, a); got != 100 {
		t.Errorf("Similarity(a,a): got %v, want 100", got)
	}
	if ab, ba := Similarity(a, b), Similarity(b, a); ab != ba {
		t.Errorf("similarity not symmetric: %v vs %v", ab, ba)
	}
}

func TestDedupeReencodedIdenticalImages(t *testing.T) {
	// Three pixel-identical images with different bytes.
	items := []Item{
		{ID: "a.png", Buffer: testPNG(t, red, blue, png.NoCompression)},
		{ID: "b.png", Buffer: testPNG(t, red, blue, png.DefaultCompression)},
		{ID: "c.png", Buffer: testPNG(t, red, blue, png.BestCompression)},
	}

	svc := New(Config{})
	kept, stats := svc.Dedupe(context.Background(), items)

	if len(kept) != 1 {
		t.Fatalf("kept: got %d, want 1 (%v)", len(kept), kept)
	}
	if stats.DuplicatesRemoved != 2 {
		t.Errorf("DuplicatesRemoved: got %d, want 2", stats.DuplicatesRemoved)
	}
	if stats.Groups != 1 {
		t.Errorf("Groups: got %d, want 1", stats.Groups)
	}
}

func TestDedupeKeepsDistinctImages(t *testing.T) {
	items := []Item{
		{ID: "red-blue.png", Buffer: testPNG(t, red, blue, png.DefaultCompression)},
		{ID: "blue-red.png", Buffer: testPNG(t, blue, red, png.DefaultCompression)},
	}

	svc := New(Config{})
	kept, stats := svc.Dedupe(context.Background(), items)

	if len(kept) != 2 {
		t.Fatalf("kept: got %d, want 2 (%v)", len(kept), kept)
	}
	if stats.DuplicatesRemoved != 0 {
		t.Errorf("DuplicatesRemoved: got %d, want 0", stats.DuplicatesRemoved)
	}
}

// flipBits returns a copy of h with n extra bits flipped starting at bit
// offset start.
func flipBits(h Hash, start, n int) Hash {
	bits := make([]byte, len(h.bits))
	copy(bits, h.bits)
	for i := start; i < start+n; i++ {
		bits[i/8] ^= 1 << (i % 8)
	}
	return Hash{bits: bits, content: h.content, perceptual: true}
}

func TestClusterTransitivityIsExpected(t *testing.T) {
	// 256-bit hashes at threshold 97: up to 7 differing bits still join.
	// A~B and B~C each differ by 7 bits; A~C differs by 14 and would not
	// pair directly, but single-link chaining puts all three together.
	a := Hash{bits: make([]byte, hashGrid*hashGrid/8), perceptual: true}
	b := flipBits(a, 0, 7)
	c := flipBits(b, 100, 7)

	if sim := Similarity(a, c); sim >= 97 {
		t.Fatalf("test setup broken: a~c similarity %v should be below threshold", sim)
	}

	groups := cluster([]Hash{a, b, c}, 97)
	if len(groups) != 1 {
		t.Fatalf("groups: got %d, want 1 (chained cluster)", len(groups))
	}
	if len(groups[0]) != 3 {
		t.Errorf("cluster size: got %d, want 3", len(groups[0]))
	}
}

func TestHashFallbackNeverDropsImage(t *testing.T) {
	// Undecodable buffers fall back to content hashes: identical bytes
	// dedupe, distinct bytes both survive.
	items := []Item{
		{ID: "bad1", Buffer: []byte("not an image")},
		{ID: "bad2", Buffer: []byte("not an image")},
		{ID: "bad3", Buffer: []byte("also not an image")},
	}

	svc := New(Config{Policy: KeepFirst})
	kept, stats := svc.Dedupe(context.Background(), items)

	if len(kept) != 2 {
		t.Fatalf("kept: got %d, want 2 (%v)", len(kept), kept)
	}
	if stats.DuplicatesRemoved != 1 {
		t.Errorf("DuplicatesRemoved: got %d, want 1", stats.DuplicatesRemoved)
	}
}

func TestDedupeCancelledContextKeepsEverything(t *testing.T) {
	// Distinct images under a cancelled context: none may collapse into
	// a shared zero-hash cluster.
	items := []Item{
		{ID: "red-blue.png", Buffer: testPNG(t, red, blue, png.DefaultCompression)},
		{ID: "blue-grey.png", Buffer: testPNG(t, blue, grey, png.DefaultCompression)},
		{ID: "grey-red.png", Buffer: testPNG(t, grey, red, png.DefaultCompression)},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := New(Config{})
	kept, stats := svc.Dedupe(ctx, items)

	if len(kept) != len(items) {
		t.Fatalf("kept: got %d, want %d (%v)", len(kept), len(items), kept)
	}
	if stats.DuplicatesRemoved != 0 {
		t.Errorf("DuplicatesRemoved: got %d, want 0", stats.DuplicatesRemoved)
	}
}

func TestKeepLargestPolicy(t *testing.T) {
	small := testPNG(t, red, blue, png.BestCompression)
	large := testPNG(t, red, blue, png.NoCompression)
	if len(large) <= len(small) {
		t.Skip("compression levels produced unexpected sizes")
	}

	svc := New(Config{Policy: KeepLargest})
	kept, _ := svc.Dedupe(context.Background(), []Item{
		{ID: "small", Buffer: small},
		{ID: "large", Buffer: large},
	})

	if len(kept) != 1 || kept[0] != "large" {
		t.Errorf("kept: got %v, want [large]", kept)
	}
}
