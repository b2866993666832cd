package gate

import (
	"sync"

	"github.com/eidolon-live/eidolon/internal/frame"
)

type SimilarityConfig struct {
	FingerprintLength int
	// Threshold is the match fraction at or above which a frame is
	// considered redundant with the previous evaluated one.
	Threshold float64
}

func DefaultSimilarityConfig() SimilarityConfig {
	return SimilarityConfig{
		FingerprintLength: frame.FingerprintLength,
		Threshold:         0.90,
	}
}

// SimilarityGate drops frames that are near-duplicates of the previous
// evaluated frame. The stored fingerprint advances on every call, so a
// slowly diverging scene is always compared against its immediate
// predecessor rather than a stale baseline. The baseline is reset from
// the analysis goroutine while evaluation runs on the sampling loop, so
// access is locked.
type SimilarityGate struct {
	cfg SimilarityConfig

	mu   sync.Mutex
	prev string
}

func NewSimilarityGate(cfg SimilarityConfig) *SimilarityGate {
	if cfg.FingerprintLength <= 0 {
		cfg.FingerprintLength = frame.FingerprintLength
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultSimilarityConfig().Threshold
	}
	return &SimilarityGate{cfg: cfg}
}

func (g *SimilarityGate) IsRedundant(f *frame.Frame) bool {
	fp := frame.Fingerprint(f.Encoded, g.cfg.FingerprintLength)

	g.mu.Lock()
	prev := g.prev
	g.prev = fp
	g.mu.Unlock()

	if prev == "" {
		return false
	}
	return frame.Similarity(prev, fp) >= g.cfg.Threshold
}

func (g *SimilarityGate) Reset() {
	g.mu.Lock()
	g.prev = ""
	g.mu.Unlock()
}
