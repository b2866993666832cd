package locate

import (
	"math"
	"sync"

	"github.com/eidolon-live/eidolon/internal/frame"
)

type Config struct {
	// DownsampleFactor shrinks the frame before the edge pass.
	DownsampleFactor int
	// GradientThreshold is the minimum Sobel magnitude that flags a pixel.
	GradientThreshold float64
	// MinCentrality excludes flagged pixels whose center-proximity weight
	// falls below it; edges hugging the frame border are likely background.
	MinCentrality float64
	// MinEdgePixels is the qualifying-pixel count below which the locator
	// falls back to the fixed central region.
	MinEdgePixels int
	// PaddingFrac pads the detected box by this fraction of each frame axis.
	PaddingFrac float64
}

func DefaultConfig() Config {
	return Config{
		DownsampleFactor:  4,
		GradientThreshold: 100,
		MinCentrality:     0.25,
		MinEdgePixels:     20,
		PaddingFrac:       0.05,
	}
}

// Bounds is a box in source-frame pixel coordinates plus the weighted
// centroid of the edge mass inside it.
type Bounds struct {
	X       int     `json:"x"`
	Y       int     `json:"y"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Locator estimates where the dominant object sits, for overlay placement
// only. It favors high-contrast regions near the frame center and always
// returns usable geometry. The latest result is kept for the overlay feed,
// which reads from a different goroutine than the one locating.
type Locator struct {
	cfg Config

	mu      sync.RWMutex
	last    Bounds
	located bool
}

func New(cfg Config) *Locator {
	def := DefaultConfig()
	if cfg.DownsampleFactor < 1 {
		cfg.DownsampleFactor = def.DownsampleFactor
	}
	if cfg.GradientThreshold <= 0 {
		cfg.GradientThreshold = def.GradientThreshold
	}
	if cfg.MinCentrality <= 0 {
		cfg.MinCentrality = def.MinCentrality
	}
	if cfg.MinEdgePixels <= 0 {
		cfg.MinEdgePixels = def.MinEdgePixels
	}
	if cfg.PaddingFrac <= 0 {
		cfg.PaddingFrac = def.PaddingFrac
	}
	return &Locator{cfg: cfg}
}

var (
	sobelX = [3][3]int{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	sobelY = [3][3]int{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}
)

// Locate runs the gradient pass over a downsampled luminance image and
// derives a padded, clamped bounding box from the centrality-weighted edge
// pixels. Too few qualifying pixels yields the fixed central region.
func (l *Locator) Locate(f *frame.Frame) Bounds {
	lum, w, h := frame.Luminance(f, l.cfg.DownsampleFactor)
	if lum == nil || w < 3 || h < 3 {
		return l.store(centralFallback(f.Width, f.Height))
	}

	cx := float64(w) / 2
	cy := float64(h) / 2
	maxDist := math.Hypot(cx, cy)

	minX, minY := w, h
	maxX, maxY := -1, -1
	var sumWX, sumWY, sumW float64
	count := 0

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			var gx, gy int
			for ky := -1; ky <= 1; ky++ {
				row := (y + ky) * w
				for kx := -1; kx <= 1; kx++ {
					v := int(lum[row+x+kx])
					gx += sobelX[ky+1][kx+1] * v
					gy += sobelY[ky+1][kx+1] * v
				}
			}

			mag := math.Hypot(float64(gx), float64(gy))
			if mag < l.cfg.GradientThreshold {
				continue
			}

			centrality := 1 - math.Hypot(float64(x)-cx, float64(y)-cy)/maxDist
			if centrality < l.cfg.MinCentrality {
				continue
			}

			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
			weight := centrality * mag
			sumWX += weight * float64(x)
			sumWY += weight * float64(y)
			sumW += weight
			count++
		}
	}

	if count < l.cfg.MinEdgePixels || sumW == 0 {
		return l.store(centralFallback(f.Width, f.Height))
	}

	factor := float64(l.cfg.DownsampleFactor)
	padX := l.cfg.PaddingFrac * float64(f.Width)
	padY := l.cfg.PaddingFrac * float64(f.Height)

	x0 := clamp(float64(minX)*factor-padX, 0, float64(f.Width))
	y0 := clamp(float64(minY)*factor-padY, 0, float64(f.Height))
	x1 := clamp(float64(maxX+1)*factor+padX, 0, float64(f.Width))
	y1 := clamp(float64(maxY+1)*factor+padY, 0, float64(f.Height))

	return l.store(Bounds{
		X:       int(x0),
		Y:       int(y0),
		Width:   int(x1 - x0),
		Height:  int(y1 - y0),
		CenterX: sumWX / sumW * factor,
		CenterY: sumWY / sumW * factor,
	})
}

// OutlinePoints returns n points around the current box on an ellipse
// parameterization, for decorative placement only.
func (l *Locator) OutlinePoints(n int) []Point {
	l.mu.RLock()
	b, ok := l.last, l.located
	l.mu.RUnlock()

	if !ok || n <= 0 {
		return nil
	}

	cx := float64(b.X) + float64(b.Width)/2
	cy := float64(b.Y) + float64(b.Height)/2
	rx := float64(b.Width) / 2
	ry := float64(b.Height) / 2

	points := make([]Point, n)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		points[i] = Point{
			X: cx + rx*math.Cos(theta),
			Y: cy + ry*math.Sin(theta),
		}
	}
	return points
}

func (l *Locator) Latest() (Bounds, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last, l.located
}

func (l *Locator) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = Bounds{}
	l.located = false
}

func (l *Locator) store(b Bounds) Bounds {
	l.mu.Lock()
	l.last = b
	l.located = true
	l.mu.Unlock()
	return b
}

func centralFallback(width, height int) Bounds {
	return Bounds{
		X:       width / 4,
		Y:       height / 4,
		Width:   width / 2,
		Height:  height / 2,
		CenterX: float64(width) / 2,
		CenterY: float64(height) / 2,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
