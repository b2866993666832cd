package gate

import (
	"bytes"
	"sync"
	"testing"

	"github.com/eidolon-live/eidolon/internal/frame"
)

func encodedFrame(encoded []byte) *frame.Frame {
	return &frame.Frame{Encoded: encoded}
}

func TestSimilarityGate_FirstCallNotRedundant(t *testing.T) {
	g := NewSimilarityGate(DefaultSimilarityConfig())
	if g.IsRedundant(encodedFrame(bytes.Repeat([]byte("abc"), 500))) {
		t.Error("first call has nothing to compare against")
	}
}

func TestSimilarityGate_IdenticalFrameIsRedundant(t *testing.T) {
	g := NewSimilarityGate(DefaultSimilarityConfig())
	data := bytes.Repeat([]byte("jpegjpeg"), 200)
	g.IsRedundant(encodedFrame(data))
	if !g.IsRedundant(encodedFrame(data)) {
		t.Error("identical consecutive frames should be redundant")
	}
}

func TestSimilarityGate_DistinctFrameNotRedundant(t *testing.T) {
	g := NewSimilarityGate(DefaultSimilarityConfig())
	g.IsRedundant(encodedFrame(bytes.Repeat([]byte{0}, 1600)))
	if g.IsRedundant(encodedFrame(bytes.Repeat([]byte{255}, 1600))) {
		t.Error("fully distinct frames should not be redundant")
	}
}

func TestSimilarityGate_ComparesAgainstImmediatePredecessor(t *testing.T) {
	g := NewSimilarityGate(SimilarityConfig{FingerprintLength: 64, Threshold: 0.9})

	a := bytes.Repeat([]byte{0}, 1600)
	g.IsRedundant(encodedFrame(a))

	// b diverges from a beyond the threshold; the stored fingerprint must
	// move to b even though b was not redundant.
	b := bytes.Repeat([]byte{100}, 1600)
	if g.IsRedundant(encodedFrame(b)) {
		t.Fatal("b should not be redundant with a")
	}

	// b again: redundant with b, which would be impossible if the gate had
	// kept comparing against a.
	if !g.IsRedundant(encodedFrame(b)) {
		t.Error("gate should compare against the immediately preceding frame")
	}
}

func TestSimilarityGate_Reset(t *testing.T) {
	g := NewSimilarityGate(DefaultSimilarityConfig())
	data := bytes.Repeat([]byte("frame"), 400)
	g.IsRedundant(encodedFrame(data))
	g.Reset()
	if g.IsRedundant(encodedFrame(data)) {
		t.Error("first call after Reset should not be redundant")
	}
}

func TestSimilarityGate_ThresholdBoundary(t *testing.T) {
	g := NewSimilarityGate(SimilarityConfig{FingerprintLength: 4, Threshold: 0.5})

	// Fingerprints of length 4 over a 4-byte stream are the bytes
	// themselves; two of four positions match, exactly at the threshold.
	g.IsRedundant(encodedFrame([]byte{1, 2, 3, 4}))
	if !g.IsRedundant(encodedFrame([]byte{1, 2, 9, 9})) {
		t.Error("similarity at the threshold should count as redundant")
	}
}

func TestSimilarityGate_ConcurrentResetDuringEvaluation(t *testing.T) {
	g := NewSimilarityGate(DefaultSimilarityConfig())
	data := bytes.Repeat([]byte("frame"), 400)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			g.IsRedundant(encodedFrame(data))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			g.Reset()
		}
	}()
	wg.Wait()

	g.Reset()
	if g.IsRedundant(encodedFrame(data)) {
		t.Error("first call after Reset should not be redundant")
	}
}
