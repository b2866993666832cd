package gate

import (
	"github.com/eidolon-live/eidolon/internal/frame"
)

type MotionConfig struct {
	// DownsampleFactor shrinks the frame before comparison.
	DownsampleFactor int
	// PixelThreshold is the per-pixel channel delta that counts as changed.
	PixelThreshold int
	// MinChangedFrac is the fraction of changed pixels that counts as motion.
	MinChangedFrac float64
	// MeanDeltaThreshold flags motion on the mean absolute delta alone. A
	// large object filling the frame with a different average hue can move
	// few individual pixels past PixelThreshold while shifting the mean.
	MeanDeltaThreshold float64
}

func DefaultMotionConfig() MotionConfig {
	return MotionConfig{
		DownsampleFactor:   8,
		PixelThreshold:     30,
		MinChangedFrac:     0.05,
		MeanDeltaThreshold: 12,
	}
}

// MotionGate compares the downsampled green channel of consecutive frames.
// It is owned by a single session loop and needs no locking.
type MotionGate struct {
	cfg   MotionConfig
	prev  []uint8
	prevW int
	prevH int
}

func NewMotionGate(cfg MotionConfig) *MotionGate {
	if cfg.DownsampleFactor < 1 {
		cfg.DownsampleFactor = DefaultMotionConfig().DownsampleFactor
	}
	if cfg.PixelThreshold <= 0 {
		cfg.PixelThreshold = DefaultMotionConfig().PixelThreshold
	}
	if cfg.MinChangedFrac <= 0 {
		cfg.MinChangedFrac = DefaultMotionConfig().MinChangedFrac
	}
	if cfg.MeanDeltaThreshold <= 0 {
		cfg.MeanDeltaThreshold = DefaultMotionConfig().MeanDeltaThreshold
	}
	return &MotionGate{cfg: cfg}
}

// Evaluate reports whether the frame differs enough from the previous one
// to count as motion. The baseline is replaced on every call regardless of
// the verdict; the first call after a reset always reports motion.
func (g *MotionGate) Evaluate(f *frame.Frame) bool {
	cur, w, h := frame.DownsampleGreen(f, g.cfg.DownsampleFactor)
	if cur == nil {
		return false
	}

	prev, prevW, prevH := g.prev, g.prevW, g.prevH
	g.prev, g.prevW, g.prevH = cur, w, h

	if prev == nil || prevW != w || prevH != h {
		return true
	}

	changed := 0
	totalDelta := 0
	for i := range cur {
		d := int(cur[i]) - int(prev[i])
		if d < 0 {
			d = -d
		}
		totalDelta += d
		if d > g.cfg.PixelThreshold {
			changed++
		}
	}

	changedFrac := float64(changed) / float64(len(cur))
	meanDelta := float64(totalDelta) / float64(len(cur))

	return changedFrac > g.cfg.MinChangedFrac || meanDelta > g.cfg.MeanDeltaThreshold
}

func (g *MotionGate) Reset() {
	g.prev = nil
	g.prevW = 0
	g.prevH = 0
}
