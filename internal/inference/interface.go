package inference

import (
	"context"

	"github.com/eidolon-live/eidolon/internal/frame"
)

type Analyzer interface {
	Analyze(ctx context.Context, f *frame.Frame, personality string) (*Result, error)
	IsAvailable(ctx context.Context) bool
}
