package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/eidolon-live/eidolon/internal/capture"
	"github.com/eidolon-live/eidolon/internal/events"
	"github.com/eidolon-live/eidolon/internal/frame"
	"github.com/eidolon-live/eidolon/internal/shared"
	"github.com/eidolon-live/eidolon/internal/subject"
)

// Factory builds a session from a request-level config, along with the
// packet intake feeding it. The intake may be nil when the session is
// fed by some other source.
type Factory func(cfg Config) (*Session, capture.Ingest)

type Handler struct {
	manager *Manager
	factory Factory
	hub     *events.Hub
	journal *subject.Store
	frames  *frame.Store
	logger  *slog.Logger

	mu      sync.Mutex
	intakes map[string]capture.Ingest
}

func NewHandler(manager *Manager, factory Factory, hub *events.Hub, journal *subject.Store, frames *frame.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		manager: manager,
		factory: factory,
		hub:     hub,
		journal: journal,
		frames:  frames,
		logger:  logger.With("component", "session-handler"),
		intakes: make(map[string]capture.Ingest),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/sessions", h.create)
	g.GET("/sessions", h.list)
	g.GET("/sessions/:id", h.status)
	g.POST("/sessions/:id/stop", h.stop)
	g.POST("/sessions/:id/start", h.start)
	g.DELETE("/sessions/:id", h.remove)
	g.GET("/sessions/:id/bounds", h.bounds)
	g.GET("/sessions/:id/frames", h.frameHistory)
	g.GET("/sessions/:id/journal", h.journalEntries)
	g.GET("/sessions/:id/events", h.eventFeed)
	g.GET("/sessions/:id/ingest", h.ingest)
}

type createRequest struct {
	Personality      string `json:"personality"`
	SampleIntervalMs int    `json:"sample_interval_ms"`
}

func (h *Handler) create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "malformed request body")
	}

	cfg := Config{
		SessionID:      uuid.New().String(),
		Personality:    req.Personality,
		SampleInterval: time.Duration(req.SampleIntervalMs) * time.Millisecond,
	}

	s, intake := h.factory(cfg)
	if err := h.manager.Add(s); err != nil {
		if intake != nil {
			intake.Stop()
		}
		return shared.Conflict("session_exists", "session already registered")
	}
	if intake != nil {
		h.mu.Lock()
		h.intakes[s.ID()] = intake
		h.mu.Unlock()
	}

	// The loop outlives the request; it stops via Stop or Remove.
	if err := s.Start(context.Background()); err != nil {
		_ = h.manager.Remove(s.ID())
		h.dropIntake(s.ID())
		return shared.InternalError("start_failed", "could not start session")
	}

	h.logger.Info("session created", "session_id", s.ID())
	return c.JSON(http.StatusCreated, s.Status())
}

func (h *Handler) list(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"sessions": h.manager.List(),
	})
}

func (h *Handler) status(c echo.Context) error {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return shared.NotFound("session_not_found", "no such session")
	}
	return c.JSON(http.StatusOK, s.Status())
}

func (h *Handler) stop(c echo.Context) error {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return shared.NotFound("session_not_found", "no such session")
	}
	s.Stop()
	return c.JSON(http.StatusOK, s.Status())
}

func (h *Handler) start(c echo.Context) error {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return shared.NotFound("session_not_found", "no such session")
	}
	if err := s.Start(context.Background()); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return shared.Conflict("already_running", "session is already running")
		}
		return shared.InternalError("start_failed", "could not start session")
	}
	return c.JSON(http.StatusOK, s.Status())
}

// remove stops the session, its packet intake, and its transient frame
// history. The journal stays; it is the durable record.
func (h *Handler) remove(c echo.Context) error {
	id := c.Param("id")
	if err := h.manager.Remove(id); err != nil {
		return shared.NotFound("session_not_found", "no such session")
	}
	h.dropIntake(id)
	if h.frames != nil {
		if err := h.frames.Drop(c.Request().Context(), id); err != nil {
			h.logger.Warn("frame cleanup failed", "session_id", id, "error", err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) dropIntake(id string) {
	h.mu.Lock()
	intake := h.intakes[id]
	delete(h.intakes, id)
	h.mu.Unlock()
	if intake != nil {
		intake.Stop()
	}
}

func (h *Handler) bounds(c echo.Context) error {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return shared.NotFound("session_not_found", "no such session")
	}

	points := 12
	if raw := c.QueryParam("points"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 360 {
			points = n
		}
	}

	b, outline, ok := s.Bounds(points)
	if !ok {
		return shared.NotFound("no_bounds", "nothing localized yet")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"bounds":  b,
		"outline": outline,
	})
}

func (h *Handler) journalEntries(c echo.Context) error {
	if h.journal == nil {
		return shared.NotFound("journal_disabled", "journal storage not configured")
	}

	id := c.Param("id")
	ctx := c.Request().Context()

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	transitions, err := h.journal.ListTransitions(ctx, id)
	if err != nil {
		return shared.InternalError("journal_read_failed", "could not read journal")
	}
	utterances, err := h.journal.ListUtterances(ctx, id, limit)
	if err != nil {
		return shared.InternalError("journal_read_failed", "could not read journal")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"transitions": transitions,
		"utterances":  utterances,
	})
}

// frameHistory serves the recent frame window for review, newest capped
// by the store TTL. With latest=1 only the most recent frame is returned.
func (h *Handler) frameHistory(c echo.Context) error {
	if h.frames == nil {
		return shared.NotFound("frames_disabled", "frame storage not configured")
	}
	id := c.Param("id")
	if _, err := h.manager.Get(id); err != nil {
		return shared.NotFound("session_not_found", "no such session")
	}
	ctx := c.Request().Context()

	if c.QueryParam("latest") == "1" {
		f, err := h.frames.Latest(ctx, id)
		if errors.Is(err, shared.ErrNoFrame) {
			return shared.NotFound("no_frames", "no frames captured yet")
		}
		if err != nil {
			return shared.InternalError("frames_read_failed", "could not read frame history")
		}
		return c.JSON(http.StatusOK, frameView(f))
	}

	from := int64(0)
	if raw := c.QueryParam("from"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n >= 0 {
			from = n
		}
	}
	to := time.Now().UnixMilli()
	if raw := c.QueryParam("to"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n >= 0 {
			to = n
		}
	}
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	frames, err := h.frames.Range(ctx, id, from, to, limit)
	if err != nil {
		return shared.InternalError("frames_read_failed", "could not read frame history")
	}
	views := make([]map[string]any, 0, len(frames))
	for _, f := range frames {
		views = append(views, frameView(f))
	}
	return c.JSON(http.StatusOK, map[string]any{"frames": views})
}

func frameView(f *frame.Frame) map[string]any {
	return map[string]any{
		"timestamp": f.Timestamp,
		"data":      f.Encoded,
	}
}

var ingestUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ingest upgrades to a websocket and feeds each binary message into the
// session's packet intake as one RTP packet. The codec query selects the
// payload format, defaulting to VP8.
func (h *Handler) ingest(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.manager.Get(id); err != nil {
		return shared.NotFound("session_not_found", "no such session")
	}
	h.mu.Lock()
	intake := h.intakes[id]
	h.mu.Unlock()
	if intake == nil {
		return shared.NotFound("ingest_unavailable", "session has no packet intake")
	}

	mimeType := c.QueryParam("codec")
	if mimeType == "" {
		mimeType = "video/VP8"
	}

	conn, err := ingestUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("ingest upgrade failed", "session_id", id, "error", err)
		return err
	}
	defer conn.Close()

	h.logger.Info("ingest stream opened", "session_id", id, "codec", mimeType)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			h.logger.Debug("ingest stream closed", "session_id", id, "error", err)
			return nil
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		intake.HandleRTPPacket(data, mimeType)
	}
}

func (h *Handler) eventFeed(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.manager.Get(id); err != nil {
		return shared.NotFound("session_not_found", "no such session")
	}
	return events.ServeWS(c, h.hub, id, h.logger)
}
