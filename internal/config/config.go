// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// DefaultModel is the live audio model used when no override is set.
const DefaultModel = "gemini-2.5-flash-native-audio-preview-12-2025"

// Config carries all server settings.
type Config struct {
	// GeminiAPIKey authenticates against the Gemini Live API. May be
	// empty; a connect attempt will then fail with a configuration error
	// instead of the server refusing to start.
	GeminiAPIKey string

	// Model is the live audio model name.
	Model string

	// Port is the HTTP listen port.
	Port string

	// JWTSecret signs UI-client session tokens.
	JWTSecret string

	// AudioDriver selects the capture/playback backend: "portaudio" for
	// the host's devices or "wav" for a file-backed source.
	AudioDriver string

	// WAVFile is the capture fixture path when AudioDriver is "wav".
	WAVFile string

	// WAVLoop repeats the fixture instead of ending the stream.
	WAVLoop bool
}

// Load reads configuration from the environment. A missing .env file is not
// an error; explicit environment variables always win because godotenv does
// not override them.
func Load(logger *zap.Logger) Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}

	cfg := Config{
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		Model:        getEnv("GEMINI_LIVE_MODEL", DefaultModel),
		Port:         getEnv("PORT", "8080"),
		JWTSecret:    getEnv("JWT_SECRET", "development-secret"),
		AudioDriver:  getEnv("AUDIO_DRIVER", "portaudio"),
		WAVFile:      os.Getenv("AUDIO_WAV_FILE"),
		WAVLoop:      getEnvBool("AUDIO_WAV_LOOP", true),
	}

	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set; session connects will fail until configured")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
