package capture

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"

	"github.com/eidolon-live/eidolon/internal/frame"
	"github.com/eidolon-live/eidolon/internal/shared"
)

// Intake assembles RTP payloads into frames, decodes them, and keeps the
// most recent frame available for the pipeline. Frame assembly runs at
// wire speed but decoding is rate-limited: at most one frame enters the
// pipeline per capture interval, and everything between is discarded.
type Intake struct {
	store       *frame.Store
	sessionID   string
	logger      *slog.Logger
	captureRate time.Duration
	decoder     VideoDecoder

	mu            sync.Mutex
	sampleBuilder *samplebuilder.SampleBuilder
	lastCapture   time.Time
	mimeType      string
	latest        *frame.Frame
	stopped       bool
}

type IntakeConfig struct {
	SessionID   string
	Store       *frame.Store
	Decoder     VideoDecoder
	CaptureRate time.Duration
	Logger      *slog.Logger
}

func NewIntake(cfg IntakeConfig) *Intake {
	if cfg.CaptureRate == 0 {
		cfg.CaptureRate = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Intake{
		store:       cfg.Store,
		sessionID:   cfg.SessionID,
		logger:      cfg.Logger.With("component", "capture-intake", "session_id", cfg.SessionID),
		captureRate: cfg.CaptureRate,
		decoder:     cfg.Decoder,
	}
}

// HandleRTPPacket accepts one serialized RTP packet from the transport.
// Malformed packets are dropped; assembly order comes from the RTP
// sequence numbers, not arrival order.
func (c *Intake) HandleRTPPacket(raw []byte, mimeType string) {
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(raw); err != nil {
		c.logger.Debug("dropping malformed rtp packet", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}

	if c.sampleBuilder == nil || c.mimeType != mimeType {
		c.mimeType = mimeType
		c.sampleBuilder = c.createSampleBuilder(mimeType)
		if c.sampleBuilder == nil {
			return
		}
	}

	c.sampleBuilder.Push(pkt)

	for {
		sample := c.sampleBuilder.Pop()
		if sample == nil {
			break
		}

		now := time.Now()
		if now.Sub(c.lastCapture) < c.captureRate {
			continue
		}

		c.lastCapture = now
		go c.processFrame(sample.Data, mimeType, now.UnixMilli())
	}
}

func (c *Intake) createSampleBuilder(mimeType string) *samplebuilder.SampleBuilder {
	switch mimeType {
	case "video/VP8":
		return samplebuilder.New(64, &codecs.VP8Packet{}, 90000)
	case "video/VP9":
		return samplebuilder.New(64, &codecs.VP9Packet{}, 90000)
	case "video/H264":
		return samplebuilder.New(64, &codecs.H264Packet{}, 90000)
	default:
		c.logger.Warn("unsupported video codec", "mime_type", mimeType)
		return nil
	}
}

func (c *Intake) processFrame(data []byte, mimeType string, timestamp int64) {
	if c.decoder == nil {
		return
	}

	img, err := c.decoder.Decode(data, mimeType)
	if err != nil {
		c.logger.Debug("frame decode failed", "error", err)
		return
	}

	f, err := FromImage(img, c.sessionID, timestamp)
	if err != nil {
		c.logger.Debug("frame conversion failed", "error", err)
		return
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.latest = f
	c.mu.Unlock()

	if c.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := c.store.Append(ctx, f); err != nil {
		c.logger.Error("store frame failed", "error", err)
	}
}

// Latest returns the most recently decoded frame.
func (c *Intake) Latest() (*frame.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil {
		return nil, shared.ErrNoFrame
	}
	return c.latest, nil
}

func (c *Intake) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.latest = nil
	if c.decoder != nil {
		c.decoder.Close()
	}
}

// FromImage converts a decoded image into the pipeline frame format:
// tightly packed RGBA pixels plus a JPEG encoding for hashing and the
// remote inference call.
func FromImage(img image.Image, sessionID string, timestamp int64) (*frame.Frame, error) {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}

	return &frame.Frame{
		SessionID: sessionID,
		Timestamp: timestamp,
		Pixels:    rgba.Pix,
		Width:     b.Dx(),
		Height:    b.Dy(),
		Encoded:   buf.Bytes(),
	}, nil
}
