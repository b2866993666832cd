package capture

import (
	"sync"

	"github.com/eidolon-live/eidolon/internal/frame"
	"github.com/eidolon-live/eidolon/internal/shared"
)

// Source hands out the most recent frame of a session. The pipeline polls
// it on every tick; a source that has not produced anything yet returns
// shared.ErrNoFrame.
type Source interface {
	Latest() (*frame.Frame, error)
}

// Ingest accepts raw RTP packets from a transport and feeds them into
// frame assembly. Stop releases the decoder; further packets are ignored.
type Ingest interface {
	HandleRTPPacket(raw []byte, mimeType string)
	Stop()
}

// StaticSource serves frames set by hand. Used in tests and for replaying
// recorded footage.
type StaticSource struct {
	mu sync.Mutex
	f  *frame.Frame
}

func NewStaticSource() *StaticSource {
	return &StaticSource{}
}

func (s *StaticSource) Set(f *frame.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.f = f
}

func (s *StaticSource) Latest() (*frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil, shared.ErrNoFrame
	}
	return s.f, nil
}
