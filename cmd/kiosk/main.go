// Emotion kiosk - drives the camera, classifier, audio cues, and display feed
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/emotion-kiosk/platform/internal/audio"
	"github.com/emotion-kiosk/platform/internal/camera"
	"github.com/emotion-kiosk/platform/internal/config"
	"github.com/emotion-kiosk/platform/internal/display"
	"github.com/emotion-kiosk/platform/internal/history"
	"github.com/emotion-kiosk/platform/internal/kiosk"
	"github.com/emotion-kiosk/platform/internal/stabilize"
	"github.com/emotion-kiosk/platform/internal/vision"
	"github.com/emotion-kiosk/platform/internal/vision/opencv"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env")
	}

	cfg := config.Load()

	// Camera
	source, err := camera.Open(cfg)
	if err != nil {
		slog.Error("failed to open camera", "source", cfg.CameraSource, "error", err)
		os.Exit(1)
	}
	source.Start()
	defer func() {
		if err := source.Close(); err != nil {
			slog.Warn("camera close error", "error", err)
		}
	}()

	// Vision
	faceDetector, err := opencv.NewFaceDetector(cfg.CascadePath)
	if err != nil {
		slog.Error("failed to load face cascade", "path", cfg.CascadePath, "error", err)
		os.Exit(1)
	}
	defer faceDetector.Close()

	emotionNet, err := opencv.NewEmotionNet(cfg.EmotionModelPath)
	if err != nil {
		slog.Error("failed to load emotion model", "path", cfg.EmotionModelPath, "error", err)
		os.Exit(1)
	}
	defer emotionNet.Close()

	detector := vision.NewCachedDetector(faceDetector)

	// Audio: a missing device degrades to a silent kiosk rather than a crash
	var engine audio.Engine
	engine, err = audio.NewPortAudioEngine()
	if err != nil {
		slog.Warn("audio unavailable, cues will be silent", "error", err)
		engine = audio.NopEngine{}
	}

	scheduler := audio.NewScheduler(engine, time.Duration(cfg.AudioMaxDuration*float64(time.Second)))
	scheduler.Load(cfg.AudioDir)
	defer scheduler.Cleanup()

	// State
	buffer := stabilize.NewBuffer(stabilize.Config{
		BufferDuration: time.Duration(cfg.BufferDuration * float64(time.Second)),
		MinPredictions: cfg.MinPredictions,
	})
	store := history.NewStore(kiosk.HistoryMaxEntries, kiosk.HistoryEventBuffer)

	machine := kiosk.New(cfg, source, detector, emotionNet, buffer, scheduler, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go machine.Run(ctx)

	// Display feed
	feed := display.New(machine, source, store)
	defer feed.Close()
	httpServer := &http.Server{
		Addr:         cfg.DisplayAddr,
		Handler:      feed.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("kiosk starting", "display", cfg.DisplayAddr, "camera", cfg.CameraSource)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	machine.Stop()
	slog.Info("shutdown complete")
}
