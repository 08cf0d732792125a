package kiosk

import (
	"context"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/emotion-kiosk/platform/internal/config"
	"github.com/emotion-kiosk/platform/internal/history"
	"github.com/emotion-kiosk/platform/internal/syncx"
	"github.com/emotion-kiosk/platform/internal/track"
	"github.com/emotion-kiosk/platform/internal/vision"
)

// State is the kiosk's visitor-facing mode.
type State int

const (
	StateIdle State = iota
	StateDetecting
	StateScanning
	StateResult
	StateReset
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDetecting:
		return "detecting"
	case StateScanning:
		return "scanning"
	case StateResult:
		return "result"
	case StateReset:
		return "reset"
	default:
		return "unknown"
	}
}

// FrameSource supplies the freshest camera frame.
type FrameSource interface {
	Latest() (image.Image, bool)
}

// Stabilizer accumulates per-frame predictions into a locked verdict.
type Stabilizer interface {
	AddPrediction(label string, confidence float64)
	StableEmotion() (string, float64, bool)
	Progress() float64
	Reset()
}

// CuePlayer schedules audio cues for verdicts.
type CuePlayer interface {
	Play(label string)
	Update() bool
	Playing() bool
	Progress() float64
	Stop()
}

// Snapshot is the machine's published view for the display feed.
type Snapshot struct {
	State         string
	Box           image.Rectangle
	HasBox        bool
	Faces         int
	Label         string
	Confidence    float64
	ScanProgress  float64
	AudioProgress float64
	UpdatedAt     time.Time
}

// Machine runs the attract-scan-result cycle on a fixed tick. All stepping
// happens on one goroutine; Snapshot is safe to read from others.
type Machine struct {
	frames     FrameSource
	detector   vision.Detector
	classifier vision.Classifier
	buffer     Stabilizer
	cues       CuePlayer
	store      history.Store
	tracker    *track.Smoother

	tickInterval   time.Duration
	faceTimeout    time.Duration
	resultDuration time.Duration
	resetDuration  time.Duration

	now func() time.Time

	state         State
	faceFirstSeen time.Time
	faceLastSeen  time.Time
	resultAt      time.Time
	resetAt       time.Time
	cueDone       bool
	label         string
	confidence    float64
	pendingReset  atomic.Bool

	snap   *syncx.RWGuard[Snapshot]
	stopCh chan struct{}
}

// New wires a machine from its collaborators.
func New(cfg *config.Config, frames FrameSource, detector vision.Detector,
	classifier vision.Classifier, buffer Stabilizer, cues CuePlayer, store history.Store) *Machine {
	return &Machine{
		frames:         frames,
		detector:       detector,
		classifier:     classifier,
		buffer:         buffer,
		cues:           cues,
		store:          store,
		tracker:        track.NewSmoother(cfg.BoxSmoothing),
		tickInterval:   time.Duration(float64(time.Second) / float64(cfg.TargetFPS)),
		faceTimeout:    secs(cfg.FaceTimeout),
		resultDuration: secs(cfg.ResultDuration),
		resetDuration:  secs(cfg.ResetDuration),
		now:            time.Now,
		snap:           syncx.NewGuard(Snapshot{State: StateIdle.String()}),
		stopCh:         make(chan struct{}),
	}
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Run steps the machine at the configured tick rate until the context is
// cancelled or Stop is called.
func (m *Machine) Run(ctx context.Context) {
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	slog.Info("kiosk loop started", "tick", m.tickInterval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Step()
		}
	}
}

// Stop ends the run loop.
func (m *Machine) Stop() {
	close(m.stopCh)
}

// Snapshot returns the latest published view.
func (m *Machine) Snapshot() Snapshot {
	return m.snap.Get()
}

// Step advances the machine by one tick.
func (m *Machine) Step() {
	now := m.now()

	if m.pendingReset.CompareAndSwap(true, false) {
		m.resetNow()
	}

	det := m.detect()
	if det.HasBox {
		m.faceLastSeen = now
	}

	switch m.state {
	case StateIdle:
		if det.HasBox {
			m.tracker.Reset()
			m.faceFirstSeen = now
			m.transition(StateDetecting)
		}

	case StateDetecting:
		switch {
		case det.HasBox && now.Sub(m.faceFirstSeen) >= DetectHold:
			m.buffer.Reset()
			m.transition(StateScanning)
		case !det.HasBox && now.Sub(m.faceLastSeen) > DetectGrace:
			m.tracker.Reset()
			m.transition(StateIdle)
		}

	case StateScanning:
		if det.HasBox {
			m.classify(det)
			if label, conf, locked := m.buffer.StableEmotion(); locked {
				m.label = label
				m.confidence = conf
				m.resultAt = now
				m.cueDone = false
				if m.store != nil {
					m.store.Record(label, conf)
				}
				slog.Info("verdict locked", "label", label, "confidence", conf)
				m.transition(StateResult)
			}
		} else if now.Sub(m.faceLastSeen) >= m.faceTimeout {
			m.buffer.Reset()
			m.tracker.Reset()
			slog.Info("visitor left during scan")
			m.transition(StateIdle)
		}

	case StateResult:
		// The cue starts once, only within the entry window.
		if !m.cueDone && now.Sub(m.resultAt) <= PlayWindow {
			m.cues.Play(m.label)
			m.cueDone = true
		}
		m.cues.Update()
		if now.Sub(m.resultAt) >= m.resultDuration {
			m.cues.Stop()
			m.resetAt = now
			m.transition(StateReset)
		}

	case StateReset:
		if now.Sub(m.resetAt) >= m.resetDuration {
			m.resetNow()
		}
	}

	var box image.Rectangle
	if det.HasBox {
		box = m.tracker.Update(det.Box)
	}
	m.publish(now, det, box)
}

// resetNow clears all session state and returns to idle. Used by the reset
// state's expiry and by the external reset command.
func (m *Machine) resetNow() {
	m.cues.Stop()
	m.buffer.Reset()
	m.tracker.Reset()
	m.label = ""
	m.confidence = 0
	m.cueDone = false
	m.faceFirstSeen = time.Time{}
	m.faceLastSeen = time.Time{}
	m.transition(StateIdle)
}

// Reset requests an immediate return to idle; applied at the next tick.
func (m *Machine) Reset() {
	m.pendingReset.Store(true)
}

func (m *Machine) detect() vision.Detection {
	frame, ok := m.frames.Latest()
	if !ok {
		return vision.Detection{}
	}
	det, err := m.detector.Detect(frame)
	if err != nil {
		slog.Debug("detection failed", "error", err)
		return vision.Detection{}
	}
	return det
}

func (m *Machine) classify(det vision.Detection) {
	if det.Crop == nil {
		return
	}
	label, conf, err := m.classifier.Predict(det.Crop)
	if err != nil {
		slog.Debug("classification failed", "error", err)
		return
	}
	if label == "" {
		return
	}
	m.buffer.AddPrediction(label, conf)
}

func (m *Machine) transition(to State) {
	slog.Debug("state transition", "from", m.state, "to", to)
	m.state = to
}

func (m *Machine) publish(now time.Time, det vision.Detection, box image.Rectangle) {
	snap := Snapshot{
		State:     m.state.String(),
		Faces:     det.Faces,
		Label:     m.label,
		UpdatedAt: now,
	}
	if det.HasBox {
		snap.Box = box
		snap.HasBox = true
	}
	if m.state == StateScanning {
		snap.ScanProgress = m.buffer.Progress()
	}
	if m.state == StateResult || m.state == StateReset {
		snap.Confidence = m.confidence
		snap.AudioProgress = m.cues.Progress()
	}
	m.snap.Set(snap)
}
