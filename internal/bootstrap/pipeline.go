package bootstrap

import (
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/eidolon-live/eidolon/internal/cache"
	"github.com/eidolon-live/eidolon/internal/capture"
	"github.com/eidolon-live/eidolon/internal/events"
	"github.com/eidolon-live/eidolon/internal/frame"
	"github.com/eidolon-live/eidolon/internal/gate"
	"github.com/eidolon-live/eidolon/internal/inference"
	"github.com/eidolon-live/eidolon/internal/presentation"
	"github.com/eidolon-live/eidolon/internal/session"
	"github.com/eidolon-live/eidolon/internal/subject"
)

func ProvideFrameStore(redisClient *redis.Client, cfg *Config) *frame.Store {
	return frame.NewStore(redisClient, cfg.FrameTTL)
}

func ProvideSubjectStore(db *gorm.DB) *subject.Store {
	return subject.NewStore(db)
}

func RunMigrations(subjectStore *subject.Store) error {
	return subjectStore.Migrate()
}

func ProvideInferenceClient(cfg *Config) inference.Analyzer {
	return inference.NewClient(inference.Config{
		BaseURL: cfg.InferenceURL,
		Model:   cfg.InferenceModel,
		Timeout: cfg.InferenceTimeout,
	})
}

func ProvideSpeaker() presentation.Speaker {
	return presentation.NoopSpeaker{}
}

func ProvideHub(logger *slog.Logger) *events.Hub {
	return events.NewHub(logger)
}

func ProvideManager(logger *slog.Logger) *session.Manager {
	return session.NewManager(logger)
}

// ProvideSessionFactory wires each new session with its own capture
// intake and shares the analyzer, speaker, hub, and journal.
func ProvideSessionFactory(
	cfg *Config,
	frameStore *frame.Store,
	analyzer inference.Analyzer,
	speaker presentation.Speaker,
	hub *events.Hub,
	journal *subject.Store,
	logger *slog.Logger,
) session.Factory {
	return func(sessionCfg session.Config) (*session.Session, capture.Ingest) {
		if sessionCfg.Personality == "" {
			sessionCfg.Personality = cfg.Personality
		}
		if sessionCfg.SampleInterval <= 0 {
			sessionCfg.SampleInterval = cfg.SampleInterval
		}
		sessionCfg.OverlayInterval = cfg.OverlayInterval
		sessionCfg.Motion = gate.MotionConfig{
			DownsampleFactor:   cfg.MotionDownsample,
			PixelThreshold:     cfg.MotionThreshold,
			MinChangedFrac:     cfg.MotionMinChangedPct,
			MeanDeltaThreshold: cfg.MotionMeanDelta,
		}
		sessionCfg.Similarity = gate.SimilarityConfig{
			FingerprintLength: cfg.FingerprintLength,
			Threshold:         cfg.SimilarityThreshold,
		}
		sessionCfg.RateLimit = gate.RateLimitConfig{
			Ceiling: cfg.RateCeiling,
			Window:  cfg.RateWindow,
		}
		sessionCfg.Cache = cache.Config{
			MaxSize: cfg.CacheSize,
			TTL:     cfg.CacheTTL,
		}
		sessionCfg.Tracker = subject.Config{
			MaxHistory: cfg.MaxHistory,
		}

		intake := capture.NewIntake(capture.IntakeConfig{
			SessionID:   sessionCfg.SessionID,
			Store:       frameStore,
			Decoder:     capture.NewVP8Decoder(),
			CaptureRate: cfg.CaptureRate,
			Logger:      logger,
		})

		s := session.New(sessionCfg, session.Deps{
			Source:   intake,
			Analyzer: analyzer,
			Speaker:  speaker,
			Hub:      hub,
			Journal:  journal,
			Logger:   logger,
		})
		return s, intake
	}
}

func ProvideSessionHandler(
	manager *session.Manager,
	factory session.Factory,
	hub *events.Hub,
	journal *subject.Store,
	frameStore *frame.Store,
	logger *slog.Logger,
) *session.Handler {
	return session.NewHandler(manager, factory, hub, journal, frameStore, logger)
}

var PipelineModule = fx.Options(
	fx.Provide(
		ProvideFrameStore,
		ProvideSubjectStore,
		ProvideInferenceClient,
		ProvideSpeaker,
		ProvideHub,
		ProvideManager,
		ProvideSessionFactory,
		ProvideSessionHandler,
	),
	fx.Invoke(RunMigrations),
)
