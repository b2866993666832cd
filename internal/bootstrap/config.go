package bootstrap

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	InferenceURL     string
	InferenceModel   string
	InferenceTimeout time.Duration

	Personality string

	SampleInterval  time.Duration
	OverlayInterval time.Duration
	CaptureRate     time.Duration
	FrameTTL        time.Duration

	MotionDownsample    int
	MotionThreshold     int
	MotionMinChangedPct float64
	MotionMeanDelta     float64

	SimilarityThreshold float64
	FingerprintLength   int

	RateCeiling int
	RateWindow  time.Duration

	CacheSize int
	CacheTTL  time.Duration

	MaxHistory int
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       0,

		InferenceURL:     getEnv("INFERENCE_URL", "http://localhost:11434"),
		InferenceModel:   getEnv("INFERENCE_MODEL", "llava"),
		InferenceTimeout: getEnvDuration("INFERENCE_TIMEOUT_MS", 30000),

		Personality: getEnv("PERSONALITY", "deadpan observer"),

		SampleInterval:  getEnvDuration("SAMPLE_INTERVAL_MS", 2000),
		OverlayInterval: getEnvDuration("OVERLAY_INTERVAL_MS", 100),
		CaptureRate:     getEnvDuration("CAPTURE_RATE_MS", 2000),
		FrameTTL:        getEnvDuration("FRAME_TTL_MS", 60000),

		MotionDownsample:    getEnvInt("MOTION_DOWNSAMPLE", 8),
		MotionThreshold:     getEnvInt("MOTION_THRESHOLD", 30),
		MotionMinChangedPct: getEnvFloat("MOTION_MIN_CHANGED_FRAC", 0.05),
		MotionMeanDelta:     getEnvFloat("MOTION_MEAN_DELTA", 12),

		SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", 0.90),
		FingerprintLength:   getEnvInt("FINGERPRINT_LENGTH", 64),

		RateCeiling: getEnvInt("RATE_CEILING", 10),
		RateWindow:  getEnvDuration("RATE_WINDOW_MS", 60000),

		CacheSize: getEnvInt("CACHE_SIZE", 50),
		CacheTTL:  getEnvDuration("CACHE_TTL_MS", 300000),

		MaxHistory: getEnvInt("MAX_HISTORY", 12),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMs)) * time.Millisecond
}
