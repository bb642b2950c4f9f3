// Package phash compares perceptual-hash fingerprints of workbook page
// photos. Fingerprints arrive as hex strings produced by the capture client
// (8x8 grayscale average hash, 64 bits); this package only measures how far
// apart two of them are.
package phash

import "math"

// DefaultHashBits is the bit width of the standard 8x8 grayscale fingerprint.
const DefaultHashBits = 64

// popcount of each possible nibble value.
var nibbleBits = [16]int{0, 1, 1, 2, 1, 2, 2, 3, 1, 2, 2, 3, 2, 3, 3, 4}

// BitDistance returns the Hamming distance between two hex fingerprints.
// The shorter string is left-padded with '0' digits before comparison.
// An empty fingerprint on either side yields an infinite distance; a
// malformed hex digit contributes zero set bits rather than an error.
func BitDistance(a, b string) float64 {
	if a == "" || b == "" {
		return math.Inf(1)
	}

	if len(a) < len(b) {
		a = pad(a, len(b))
	} else if len(b) < len(a) {
		b = pad(b, len(a))
	}

	distance := 0
	for i := 0; i < len(a); i++ {
		distance += nibbleBits[hexNibble(a[i])^hexNibble(b[i])]
	}

	return float64(distance)
}

// Similarity maps the bit distance of two fingerprints onto [0, 1], where 1
// means identical. hashBits values <= 0 fall back to DefaultHashBits. Absent
// fingerprints score 0.
func Similarity(a, b string, hashBits int) float64 {
	if a == "" || b == "" {
		return 0
	}

	if hashBits <= 0 {
		hashBits = DefaultHashBits
	}

	score := 1 - BitDistance(a, b)/float64(hashBits)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}

	return score
}

func pad(s string, width int) string {
	buf := make([]byte, width)
	offset := width - len(s)
	for i := 0; i < offset; i++ {
		buf[i] = '0'
	}
	copy(buf[offset:], s)
	return string(buf)
}

// hexNibble decodes one hex digit. Anything outside [0-9a-fA-F] decodes to
// zero so a corrupt fingerprint degrades to a low distance contribution
// instead of failing the submission pipeline.
func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
