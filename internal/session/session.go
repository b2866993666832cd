package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eidolon-live/eidolon/internal/cache"
	"github.com/eidolon-live/eidolon/internal/capture"
	"github.com/eidolon-live/eidolon/internal/events"
	"github.com/eidolon-live/eidolon/internal/frame"
	"github.com/eidolon-live/eidolon/internal/gate"
	"github.com/eidolon-live/eidolon/internal/inference"
	"github.com/eidolon-live/eidolon/internal/locate"
	"github.com/eidolon-live/eidolon/internal/presentation"
	"github.com/eidolon-live/eidolon/internal/shared"
	"github.com/eidolon-live/eidolon/internal/subject"
)

// Phase is the inference admission state. Exactly one analysis may be in
// flight; quota exhaustion suspends new attempts until the cooldown
// elapses, while the local gates keep running.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseAnalyzing   Phase = "analyzing"
	PhaseCoolingDown Phase = "cooling_down"
)

type Config struct {
	SessionID       string
	Personality     string
	SampleInterval  time.Duration
	OverlayInterval time.Duration
	Motion          gate.MotionConfig
	Similarity      gate.SimilarityConfig
	RateLimit       gate.RateLimitConfig
	Cache           cache.Config
	Locator         locate.Config
	Tracker         subject.Config
}

type Deps struct {
	Source   capture.Source
	Analyzer inference.Analyzer
	Speaker  presentation.Speaker
	Hub      *events.Hub
	Journal  *subject.Store
	Cache    *cache.ResponseCache
	Logger   *slog.Logger
}

// Session runs the per-tick decision sequence for one video source:
// motion gate, similarity gate, rate limiter, response cache, then the
// remote analysis, feeding results through the subject tracker into
// presentation. A faster overlay loop refreshes localization geometry
// independently of analysis.
type Session struct {
	id          string
	personality string
	logger      *slog.Logger

	source   capture.Source
	analyzer inference.Analyzer
	queue    *presentation.Queue
	speaker  presentation.Speaker
	hub      *events.Hub
	journal  *subject.Store

	motion     *gate.MotionGate
	similarity *gate.SimilarityGate
	limiter    *gate.RateLimiter
	cache      *cache.ResponseCache
	locator    *locate.Locator
	tracker    *subject.Tracker

	sampleInterval  time.Duration
	overlayInterval time.Duration

	mu            sync.Mutex
	phase         Phase
	generation    uint64
	cooldownUntil time.Time
	running       bool
	rateAdvised   bool
	cancel        context.CancelFunc
	loopDone      chan struct{}

	now func() time.Time
}

func New(cfg Config, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 2 * time.Second
	}
	if cfg.OverlayInterval <= 0 {
		cfg.OverlayInterval = 100 * time.Millisecond
	}

	speaker := deps.Speaker
	if speaker == nil {
		speaker = presentation.NoopSpeaker{}
	}
	respCache := deps.Cache
	if respCache == nil {
		respCache = cache.New(cfg.Cache)
	}

	s := &Session{
		id:              cfg.SessionID,
		personality:     cfg.Personality,
		logger:          logger.With("component", "session", "session_id", cfg.SessionID),
		source:          deps.Source,
		analyzer:        deps.Analyzer,
		speaker:         speaker,
		queue:           presentation.NewQueue(speaker, logger),
		hub:             deps.Hub,
		journal:         deps.Journal,
		motion:          gate.NewMotionGate(cfg.Motion),
		similarity:      gate.NewSimilarityGate(cfg.Similarity),
		limiter:         gate.NewRateLimiter(cfg.RateLimit),
		cache:           respCache,
		locator:         locate.New(cfg.Locator),
		tracker:         subject.NewTracker(cfg.Tracker),
		sampleInterval:  cfg.SampleInterval,
		overlayInterval: cfg.OverlayInterval,
		phase:           PhaseIdle,
		now:             time.Now,
	}
	s.queue.SetCallbacks(
		func() { s.publish(events.EventSpeech, map[string]bool{"speaking": true}) },
		func() { s.publish(events.EventSpeech, map[string]bool{"speaking": false}) },
	)
	return s
}

func (s *Session) ID() string { return s.id }

// Start launches the sampling and overlay loops. The cache survives a
// stop/start pair; all other state was reset on Stop.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return shared.ErrConflict
	}
	s.running = true
	s.phase = PhaseIdle
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	s.mu.Unlock()

	if !s.speaker.IsAvailable() {
		s.logger.Warn("no speech backend configured, presenting silently")
		s.publish(events.EventAdvisory, map[string]string{
			"reason": "speech_unavailable",
		})
	}

	go s.run(loopCtx)
	s.logger.Info("session started",
		"sample_interval", s.sampleInterval,
		"overlay_interval", s.overlayInterval)
	return nil
}

// Stop synchronously halts the loops, interrupts presentation, and
// resets gate and tracker state. In-flight analysis is not awaited; a
// late result is discarded by the generation check. The response cache
// is deliberately retained.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.generation++
	cancel := s.cancel
	done := s.loopDone
	s.cancel = nil
	s.phase = PhaseIdle
	s.cooldownUntil = time.Time{}
	s.rateAdvised = false
	s.mu.Unlock()

	cancel()
	<-done

	s.queue.Clear()
	s.motion.Reset()
	s.similarity.Reset()
	s.limiter.Reset()
	s.locator.Reset()
	s.tracker.Reset()

	s.publish(events.EventStopped, nil)
	s.logger.Info("session stopped")
}

func (s *Session) run(ctx context.Context) {
	defer close(s.loopDone)

	sample := time.NewTicker(s.sampleInterval)
	overlay := time.NewTicker(s.overlayInterval)
	countdown := time.NewTicker(time.Second)
	defer sample.Stop()
	defer overlay.Stop()
	defer countdown.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sample.C:
			s.tick(ctx)
		case <-overlay.C:
			s.overlayTick()
		case <-countdown.C:
			s.cooldownTick()
		}
	}
}

// tick runs the gate chain in strict order, short-circuiting on the
// first negative so downstream gates keep their update-on-every-call
// semantics only when actually reached.
func (s *Session) tick(ctx context.Context) {
	f, err := s.source.Latest()
	if err != nil {
		s.logger.Debug("no frame available", "error", err)
		return
	}

	if !s.motion.Evaluate(f) {
		return
	}
	if s.similarity.IsRedundant(f) {
		s.logger.Debug("frame redundant with previous analysis")
		return
	}

	s.mu.Lock()
	switch s.phase {
	case PhaseAnalyzing:
		s.mu.Unlock()
		return
	case PhaseCoolingDown:
		if s.now().Before(s.cooldownUntil) {
			s.mu.Unlock()
			return
		}
		s.phase = PhaseIdle
		s.mu.Unlock()
		s.publish(events.EventPhase, map[string]string{"phase": string(PhaseIdle)})
		s.mu.Lock()
	}

	if !s.limiter.TryAcquire() {
		advised := s.rateAdvised
		s.rateAdvised = true
		s.mu.Unlock()
		if !advised {
			wait := s.limiter.TimeUntilNextSlot()
			s.logger.Info("analysis rate ceiling reached", "retry_in", wait)
			s.publish(events.EventAdvisory, map[string]any{
				"reason":   "rate_limited",
				"retry_ms": wait.Milliseconds(),
			})
		}
		return
	}
	s.rateAdvised = false
	s.mu.Unlock()

	if result, ok := s.cache.Get(f); ok {
		s.logger.Debug("serving cached analysis", "subject", result.SubjectLabel)
		s.apply(ctx, f, result)
		return
	}

	s.mu.Lock()
	s.phase = PhaseAnalyzing
	gen := s.generation
	s.mu.Unlock()
	s.publish(events.EventPhase, map[string]string{"phase": string(PhaseAnalyzing)})

	go s.analyze(ctx, f, gen)
}

func (s *Session) analyze(ctx context.Context, f *frame.Frame, gen uint64) {
	result, err := s.analyzer.Analyze(ctx, f, s.personality)

	s.mu.Lock()
	if gen != s.generation || !s.running {
		s.mu.Unlock()
		s.logger.Debug("discarding late analysis result")
		return
	}

	if err != nil {
		if quota, ok := shared.IsQuotaExceeded(err); ok {
			s.phase = PhaseCoolingDown
			s.cooldownUntil = s.now().Add(quota.RetryAfter)
			s.mu.Unlock()
			s.logger.Warn("inference quota exhausted", "retry_after", quota.RetryAfter)
			s.publish(events.EventPhase, map[string]string{"phase": string(PhaseCoolingDown)})
			s.publish(events.EventAdvisory, map[string]any{
				"reason":      "quota_exhausted",
				"cooldown_ms": quota.RetryAfter.Milliseconds(),
			})
			return
		}
		s.phase = PhaseIdle
		s.mu.Unlock()
		s.logger.Error("analysis failed", "error", err)
		s.publish(events.EventAdvisory, map[string]string{"reason": "analysis_failed"})
		return
	}

	s.phase = PhaseIdle
	s.mu.Unlock()

	s.cache.Put(f, result)
	s.apply(ctx, f, result)
}

// apply feeds a result through the tracker and out to presentation. A
// confirmed transition interrupts active speech immediately and resets
// the similarity baseline so the new subject is not judged against the
// old scene.
func (s *Session) apply(ctx context.Context, f *frame.Frame, result *inference.Result) {
	transition, changed := s.tracker.Observe(result.SubjectLabel, result.Utterance)

	if changed {
		s.queue.Clear()
		s.similarity.Reset()
		s.logger.Info("subject transition",
			"previous", transition.PreviousLabel,
			"new", transition.NewLabel)
		s.publish(events.EventTransition, transition)
		s.journalTransition(transition)
	}

	bounds, ok := s.locator.Latest()
	if !ok {
		bounds = s.locator.Locate(f)
	}

	s.queue.Enqueue(ctx, presentation.Utterance{
		SubjectLabel: result.SubjectLabel,
		Text:         result.Utterance,
		Bounds:       bounds,
	})
	s.publish(events.EventUtterance, map[string]any{
		"subject_label": result.SubjectLabel,
		"text":          result.Utterance,
		"bounds":        bounds,
	})
	s.journalUtterance(result)
}

func (s *Session) overlayTick() {
	f, err := s.source.Latest()
	if err != nil {
		return
	}
	bounds := s.locator.Locate(f)
	s.publish(events.EventOverlay, bounds)
}

func (s *Session) cooldownTick() {
	s.mu.Lock()
	if s.phase != PhaseCoolingDown {
		s.mu.Unlock()
		return
	}
	remaining := s.cooldownUntil.Sub(s.now())
	s.mu.Unlock()

	if remaining < 0 {
		remaining = 0
	}
	s.publish(events.EventCooldown, map[string]int64{
		"remaining_ms": remaining.Milliseconds(),
	})
}

func (s *Session) journalTransition(tr subject.Transition) {
	if s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.journal.RecordTransition(ctx, s.id, tr); err != nil {
		s.logger.Error("journal transition failed", "error", err)
	}
}

func (s *Session) journalUtterance(result *inference.Result) {
	if s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.journal.RecordUtterance(ctx, s.id, result.SubjectLabel, result.Utterance); err != nil {
		s.logger.Error("journal utterance failed", "error", err)
	}
}

func (s *Session) publish(t events.EventType, payload interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(events.New(t, s.id, payload))
}

// Status is a point-in-time snapshot for the API surface.
type Status struct {
	SessionID    string      `json:"session_id"`
	Running      bool        `json:"running"`
	Phase        Phase       `json:"phase"`
	Subject      string      `json:"subject,omitempty"`
	HistoryLen   int         `json:"history_len"`
	CooldownMs   int64       `json:"cooldown_ms,omitempty"`
	CacheEntries int         `json:"cache_entries"`
	CacheStats   cache.Stats `json:"cache_stats"`
	Speaking     bool        `json:"speaking"`
}

func (s *Session) Status() Status {
	s.mu.Lock()
	running := s.running
	phase := s.phase
	var cooldown int64
	if phase == PhaseCoolingDown {
		if rem := s.cooldownUntil.Sub(s.now()); rem > 0 {
			cooldown = rem.Milliseconds()
		}
	}
	s.mu.Unlock()

	label, _ := s.tracker.Active()
	return Status{
		SessionID:    s.id,
		Running:      running,
		Phase:        phase,
		Subject:      label,
		HistoryLen:   len(s.tracker.History()),
		CooldownMs:   cooldown,
		CacheEntries: s.cache.Len(),
		CacheStats:   s.cache.Stats(),
		Speaking:     s.queue.IsBusy(),
	}
}

// Bounds returns the latest overlay geometry with outline points for
// decorative placement.
func (s *Session) Bounds(n int) (locate.Bounds, []locate.Point, bool) {
	b, ok := s.locator.Latest()
	if !ok {
		return locate.Bounds{}, nil, false
	}
	return b, s.locator.OutlinePoints(n), true
}

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
