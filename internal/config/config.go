// Package config handles kiosk configuration
package config

import (
	"os"
	"strconv"
)

type Config struct {
	CameraSource     string // device index ("0") or stream URL
	FrameWidth       int
	FrameHeight      int
	MirrorFrames     bool
	TargetFPS        int
	BufferDuration   float64 // seconds of predictions kept for the vote
	MinPredictions   int
	FaceTimeout      float64 // seconds of face absence tolerated while scanning
	ResultDuration   float64 // seconds
	ResetDuration    float64 // seconds
	BoxSmoothing     float64 // EMA alpha, lower = smoother
	AudioDir         string
	AudioMaxDuration float64 // seconds
	CascadePath      string
	EmotionModelPath string
	DisplayAddr      string
}

func Load() *Config {
	cfg := &Config{
		CameraSource:     getEnv("CAMERA_SOURCE", "0"),
		FrameWidth:       getEnvInt("FRAME_WIDTH", 1280),
		FrameHeight:      getEnvInt("FRAME_HEIGHT", 720),
		MirrorFrames:     getEnvBool("MIRROR_FRAMES", true),
		TargetFPS:        getEnvInt("TARGET_FPS", 30),
		BufferDuration:   getEnvFloat("BUFFER_DURATION", 3.0),
		MinPredictions:   getEnvInt("MIN_PREDICTIONS", 8),
		FaceTimeout:      getEnvFloat("FACE_TIMEOUT", 2.0),
		ResultDuration:   getEnvFloat("RESULT_DURATION", 12.0),
		ResetDuration:    getEnvFloat("RESET_DURATION", 2.5),
		BoxSmoothing:     getEnvFloat("BOX_SMOOTHING", 0.3),
		AudioDir:         getEnv("AUDIO_DIR", "audio"),
		AudioMaxDuration: getEnvFloat("AUDIO_MAX_DURATION", 10.0),
		CascadePath:      getEnv("CASCADE_PATH", "models/haarcascade_frontalface_default.xml"),
		EmotionModelPath: getEnv("EMOTION_MODEL_PATH", "models/emotion_fer.onnx"),
		DisplayAddr:      getEnv("DISPLAY_ADDR", ":8000"),
	}

	// A non-positive tick rate would break the control loop's pacing.
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = 30
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}
