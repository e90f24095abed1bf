package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/adapters/gemini"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/adapters/portaudio"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/adapters/wavfile"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/domain/repositories"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/internal/api"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/internal/audio"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/internal/auth"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/internal/config"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/internal/websocket"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load(logger)

	// Initialize audio adapters
	var (
		captureOpener repositories.CaptureOpener
		playback      repositories.PlaybackDevice
	)
	switch cfg.AudioDriver {
	case "wav":
		if cfg.WAVFile == "" {
			logger.Fatal("AUDIO_WAV_FILE is required when AUDIO_DRIVER=wav")
		}
		captureOpener = wavfile.NewCaptureOpener(cfg.WAVFile, cfg.WAVLoop, clock.New(), logger)
		playback = discardPlayback{}
	default:
		teardown, err := portaudio.Setup()
		if err != nil {
			logger.Fatal("Failed to initialize audio backend", zap.Error(err))
		}
		defer teardown()

		device, err := portaudio.NewPlaybackDevice(audio.OutputSampleRate, logger)
		if err != nil {
			logger.Fatal("Failed to open playback device", zap.Error(err))
		}
		defer device.Close()
		playback = device
		captureOpener = portaudio.NewCaptureOpener(logger)
	}

	// Initialize the live dialer and session controller
	dialer := gemini.NewDialer(cfg.GeminiAPIKey, logger)
	controller := usecase.NewController(dialer, captureOpener, playback, clock.New(), usecase.Config{
		Model: cfg.Model,
	}, logger)

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize WebSocket hub streaming session state to UI clients
	hub := websocket.NewHub(controller, logger)
	go hub.Run()

	// Initialize API routes
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, 24*time.Hour)
	api.InitRoutes(e, hub, controller, issuer, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("audio_driver", cfg.AudioDriver),
		zap.String("model", cfg.Model))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	// Tear down any active session before the listener goes away.
	controller.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// discardPlayback drops model audio. Used with the wav capture driver on
// hosts without an output device; transcripts and volume still flow.
type discardPlayback struct{}

func (discardPlayback) Play([]int16) error { return nil }
func (discardPlayback) Stop() error        { return nil }
func (discardPlayback) Close() error       { return nil }
