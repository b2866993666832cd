package frame

import (
	"encoding/hex"
	"fmt"
)

const (
	// FingerprintLength is the number of characters sampled from the
	// encoded frame for similarity comparison.
	FingerprintLength = 64

	cacheKeyWindow = 16
)

// cacheKeyOffsets are the fixed fractional positions (out of 256) of the
// byte windows folded into the cache key. Sampling encoded bytes at fixed
// offsets means visually distinct frames of similar byte layout can
// collide; that is an accepted trade of miss quality for speed.
var cacheKeyOffsets = []int{16, 64, 128, 192, 240}

// Fingerprint sub-samples the encoded frame at a fixed stride, producing a
// short fixed-length string. Not a true perceptual hash, just a fast and
// stable positional sample.
func Fingerprint(encoded []byte, length int) string {
	if length <= 0 {
		length = FingerprintLength
	}
	if len(encoded) == 0 {
		return ""
	}
	if len(encoded) < length {
		length = len(encoded)
	}

	stride := len(encoded) / length
	if stride < 1 {
		stride = 1
	}

	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = encoded[i*stride]
	}
	return string(out)
}

// Similarity is the fraction of positionally matching characters between
// two fingerprints. Fingerprints of different lengths are never similar.
func Similarity(a, b string) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	matches := 0
	for i := 0; i < len(a); i++ {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}

// CacheKey folds a handful of small byte windows at fixed offsets of the
// encoded frame through a rolling hash, producing a compact lookup key.
func CacheKey(encoded []byte) string {
	if len(encoded) == 0 {
		return ""
	}

	var h uint64 = 5381
	for _, off := range cacheKeyOffsets {
		start := len(encoded) * off / 256
		end := start + cacheKeyWindow
		if end > len(encoded) {
			end = len(encoded)
		}
		for _, b := range encoded[start:end] {
			h = h*31 + uint64(b)
		}
	}

	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(h >> (8 * i))
	}
	return fmt.Sprintf("f%d_%s", len(encoded), hex.EncodeToString(buf[:]))
}
