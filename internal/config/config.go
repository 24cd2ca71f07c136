package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Gemini (image analysis + image generation + Veo video generation)
	GeminiKey         string
	GeminiVisionModel string
	GeminiImageModel  string
	VeoModel          string

	// OpenAI (text translation)
	OpenAIKey string

	// Artifacts
	ArtifactRoot string // Directory where generated files land (served at /generated)
	UploadRoot   string // Directory for uploaded source images

	// Generation
	MaxParallelGenerations int // Concurrency ceiling for a batch's task pool
	WaveCooldownMs         int // Pause between full waves of parallel tasks (0 disables)
	DefaultWatermarkText   string

	// Video
	VideoPollIntervalMs  int // Interval between Veo operation polls
	VideoPollMaxAttempts int // Hard attempt ceiling before a poll times out
	VideoSourceDuration  float64
	VideoTargetDuration  float64
	VideoTargetFPS       int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8080"),
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:      getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),

		GeminiKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiVisionModel: getEnv("GEMINI_VISION_MODEL", "gemini-2.0-flash-exp"),
		GeminiImageModel:  getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		VeoModel:          getEnv("VEO_MODEL", "veo-3.1-generate-preview"),

		OpenAIKey: getEnv("OPENAI_API_KEY", ""),

		ArtifactRoot: getEnv("ARTIFACT_ROOT", "generated"),
		UploadRoot:   getEnv("UPLOAD_ROOT", "uploads"),

		MaxParallelGenerations: getEnvInt("MAX_PARALLEL_GENERATIONS", 10),
		WaveCooldownMs:         getEnvInt("WAVE_COOLDOWN_MS", 1000),
		DefaultWatermarkText:   getEnv("DEFAULT_WATERMARK_TEXT", "Gardening Tips and Trick"),

		VideoPollIntervalMs:  getEnvInt("VIDEO_POLL_INTERVAL_MS", 5000),
		VideoPollMaxAttempts: getEnvInt("VIDEO_POLL_MAX_ATTEMPTS", 60),
		VideoSourceDuration:  getEnvFloat("VIDEO_SOURCE_DURATION_SEC", 8),
		VideoTargetDuration:  getEnvFloat("VIDEO_TARGET_DURATION_SEC", 10),
		VideoTargetFPS:       getEnvInt("VIDEO_TARGET_FPS", 30),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.GeminiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for translation")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}
