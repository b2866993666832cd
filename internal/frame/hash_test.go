package frame

import (
	"bytes"
	"testing"
)

func testFrame(w, h int, fill uint8) *Frame {
	pixels := make([]byte, w*h*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i] = fill
		pixels[i+1] = fill
		pixels[i+2] = fill
		pixels[i+3] = 255
	}
	return &Frame{Width: w, Height: h, Pixels: pixels}
}

func TestFingerprint_FixedLength(t *testing.T) {
	encoded := bytes.Repeat([]byte("abcdefgh"), 100)
	fp := Fingerprint(encoded, 64)
	if len(fp) != 64 {
		t.Errorf("expected fingerprint length 64, got %d", len(fp))
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	encoded := bytes.Repeat([]byte{1, 2, 3, 4, 5}, 200)
	if Fingerprint(encoded, 64) != Fingerprint(encoded, 64) {
		t.Error("fingerprint should be deterministic for identical input")
	}
}

func TestFingerprint_DiffersForDifferentData(t *testing.T) {
	a := bytes.Repeat([]byte{10}, 1000)
	b := bytes.Repeat([]byte{200}, 1000)
	if Fingerprint(a, 64) == Fingerprint(b, 64) {
		t.Error("fingerprints of disjoint byte streams should differ")
	}
}

func TestFingerprint_ShortInput(t *testing.T) {
	encoded := []byte("short")
	fp := Fingerprint(encoded, 64)
	if len(fp) != len(encoded) {
		t.Errorf("expected fingerprint clamped to input length %d, got %d", len(encoded), len(fp))
	}
	if Fingerprint(nil, 64) != "" {
		t.Error("empty input should produce empty fingerprint")
	}
}

func TestSimilarity_Identical(t *testing.T) {
	fp := Fingerprint(bytes.Repeat([]byte{7, 8, 9}, 300), 64)
	if got := Similarity(fp, fp); got != 1.0 {
		t.Errorf("identical fingerprints should have similarity 1.0, got %f", got)
	}
}

func TestSimilarity_Disjoint(t *testing.T) {
	a := Fingerprint(bytes.Repeat([]byte{0}, 1000), 64)
	b := Fingerprint(bytes.Repeat([]byte{255}, 1000), 64)
	if got := Similarity(a, b); got != 0.0 {
		t.Errorf("disjoint fingerprints should have similarity 0, got %f", got)
	}
}

func TestSimilarity_LengthMismatch(t *testing.T) {
	if Similarity("abcd", "abc") != 0 {
		t.Error("length mismatch should report zero similarity")
	}
	if Similarity("", "") != 0 {
		t.Error("empty fingerprints should report zero similarity")
	}
}

func TestSimilarity_Partial(t *testing.T) {
	got := Similarity("aaaa", "aabb")
	if got != 0.5 {
		t.Errorf("expected similarity 0.5, got %f", got)
	}
}

func TestCacheKey_Stable(t *testing.T) {
	encoded := bytes.Repeat([]byte("jpegdata"), 512)
	if CacheKey(encoded) != CacheKey(encoded) {
		t.Error("cache key should be stable for identical input")
	}
}

func TestCacheKey_DiffersForDifferentData(t *testing.T) {
	a := bytes.Repeat([]byte{1, 2, 3}, 1024)
	b := bytes.Repeat([]byte{4, 5, 6}, 1024)
	if CacheKey(a) == CacheKey(b) {
		t.Error("cache keys of different byte streams should differ")
	}
}

func TestCacheKey_Empty(t *testing.T) {
	if CacheKey(nil) != "" {
		t.Error("empty input should produce empty cache key")
	}
}

func TestDownsampleGreen_Dimensions(t *testing.T) {
	f := testFrame(40, 30, 128)
	buf, w, h := DownsampleGreen(f, 4)
	if w != 10 || h != 7 {
		t.Errorf("expected 10x7, got %dx%d", w, h)
	}
	if len(buf) != w*h {
		t.Errorf("expected buffer of %d, got %d", w*h, len(buf))
	}
	for i, v := range buf {
		if v != 128 {
			t.Fatalf("pixel %d: expected 128, got %d", i, v)
		}
	}
}

func TestDownsampleGreen_TooSmall(t *testing.T) {
	f := testFrame(2, 2, 10)
	buf, w, h := DownsampleGreen(f, 4)
	if buf != nil || w != 0 || h != 0 {
		t.Error("frame smaller than factor should yield no buffer")
	}
}

func TestLuminance_GrayIsIdentity(t *testing.T) {
	f := testFrame(16, 16, 100)
	buf, w, h := Luminance(f, 2)
	if w != 8 || h != 8 {
		t.Fatalf("expected 8x8, got %dx%d", w, h)
	}
	for i, v := range buf {
		if v != 100 {
			t.Fatalf("pixel %d: gray luma should be 100, got %d", i, v)
		}
	}
}

func TestLuminance_WeightsChannels(t *testing.T) {
	f := testFrame(4, 4, 0)
	for i := 0; i < len(f.Pixels); i += 4 {
		f.Pixels[i+1] = 255 // green only
	}
	buf, _, _ := Luminance(f, 1)
	want := uint8(587 * 255 / 1000)
	if buf[0] != want {
		t.Errorf("green-only luma: expected %d, got %d", want, buf[0])
	}
}
