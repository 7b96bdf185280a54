// CLAUDE:SUMMARY Perceptual hashing: grayscale NxN downsample with average threshold, content-hash fallback on decode failure.
// Package dedupe clusters near-duplicate screenshots by perceptual hash
// and keeps one representative per cluster.
package dedupe

import (
	"bytes"
	"crypto/sha256"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"

	"golang.org/x/image/draw"
)

// hashGrid is the downsample edge: hashes carry hashGrid² bits.
const hashGrid = 16

// Hash is a screenshot signature. Perceptual when the image decoded;
// otherwise only the content hash is meaningful and similarity degrades
// to byte equality — an image is never dropped for lack of a hash.
type Hash struct {
	bits       []byte // hashGrid*hashGrid bits, row-major
	content    [32]byte
	perceptual bool
}

// HashImage computes the perceptual hash of an encoded image. Decode
// failure returns a content-hash-only Hash, not an error.
func HashImage(buf []byte) Hash {
	h := Hash{content: sha256.Sum256(buf)}

	src, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return h
	}

	// Downsample to the grid, then grayscale.
	small := image.NewRGBA(image.Rect(0, 0, hashGrid, hashGrid))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), src, src.Bounds(), draw.Over, nil)

	var gray [hashGrid * hashGrid]uint32
	var sum uint64
	for y := 0; y < hashGrid; y++ {
		for x := 0; x < hashGrid; x++ {
			r, g, b, _ := small.At(x, y).RGBA()
			// Luma approximation on 16-bit channels.
			v := (299*r + 587*g + 114*b) / 1000
			gray[y*hashGrid+x] = v
			sum += uint64(v)
		}
	}
	avg := uint32(sum / (hashGrid * hashGrid))

	bits := make([]byte, hashGrid*hashGrid/8)
	for i, v := range gray {
		if v >= avg {
			bits[i/8] |= 1 << (i % 8)
		}
	}

	h.bits = bits
	h.perceptual = true
	return h
}

// Similarity returns the percentage of equal bits between two hashes.
// Symmetric; Similarity(a, a) == 100. When either hash is content-only,
// similarity is 100 for byte-identical buffers and 0 otherwise.
func Similarity(a, b Hash) float64 {
	if !a.perceptual || !b.perceptual {
		if a.content == b.content {
			return 100
		}
		return 0
	}

	total := len(a.bits) * 8
	if total == 0 || len(a.bits) != len(b.bits) {
		return 0
	}

	diff := 0
	for i := range a.bits {
		diff += bits.OnesCount8(a.bits[i] ^ b.bits[i])
	}
	return 100 * float64(total-diff) / float64(total)
}
