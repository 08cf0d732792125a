package kiosk

import (
	"image"
	"testing"
	"time"

	"github.com/emotion-kiosk/platform/internal/config"
	"github.com/emotion-kiosk/platform/internal/history"
	"github.com/emotion-kiosk/platform/internal/vision"
)

type fakeFrames struct {
	frame image.Image
	ok    bool
}

func (f *fakeFrames) Latest() (image.Image, bool) { return f.frame, f.ok }

type fakeDetector struct {
	det vision.Detection
}

func (f *fakeDetector) Detect(image.Image) (vision.Detection, error) { return f.det, nil }

type fakeClassifier struct {
	label string
	conf  float64
}

func (f *fakeClassifier) Predict(image.Image) (string, float64, error) {
	return f.label, f.conf, nil
}

type fakeStabilizer struct {
	preds    []string
	label    string
	conf     float64
	locked   bool
	resets   int
	progress float64
}

func (f *fakeStabilizer) AddPrediction(label string, _ float64) {
	f.preds = append(f.preds, label)
}

func (f *fakeStabilizer) StableEmotion() (string, float64, bool) {
	return f.label, f.conf, f.locked
}

func (f *fakeStabilizer) Progress() float64 { return f.progress }
func (f *fakeStabilizer) Reset()            { f.resets++; f.locked = false }

type fakeCues struct {
	playing bool
	plays   []string
	stops   int
}

func (f *fakeCues) Play(label string) {
	f.plays = append(f.plays, label)
	f.playing = true
}

func (f *fakeCues) Update() bool      { return f.playing }
func (f *fakeCues) Playing() bool     { return f.playing }
func (f *fakeCues) Progress() float64 { return 0.25 }
func (f *fakeCues) Stop()             { f.stops++; f.playing = false }

type machineClock struct {
	t time.Time
}

func (c *machineClock) Now() time.Time          { return c.t }
func (c *machineClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	m        *Machine
	clock    *machineClock
	frames   *fakeFrames
	detector *fakeDetector
	buffer   *fakeStabilizer
	cues     *fakeCues
	store    *history.MemoryStore
}

func newHarness() *harness {
	cfg := &config.Config{
		TargetFPS:      30,
		FaceTimeout:    2.0,
		ResultDuration: 12.0,
		ResetDuration:  2.5,
		BoxSmoothing:   0.3,
	}
	h := &harness{
		clock:    &machineClock{t: time.Unix(5000, 0)},
		frames:   &fakeFrames{frame: image.NewRGBA(image.Rect(0, 0, 64, 64)), ok: true},
		detector: &fakeDetector{},
		buffer:   &fakeStabilizer{},
		cues:     &fakeCues{},
		store:    history.NewStore(HistoryMaxEntries, HistoryEventBuffer),
	}
	h.m = New(cfg, h.frames, h.detector, &fakeClassifier{label: "Happy", conf: 0.9}, h.buffer, h.cues, h.store)
	h.m.now = h.clock.Now
	return h
}

func (h *harness) showFace() {
	h.detector.det = vision.Detection{
		Box:    image.Rect(100, 100, 200, 200),
		HasBox: true,
		Crop:   image.NewRGBA(image.Rect(0, 0, 64, 64)),
		Faces:  1,
	}
}

func (h *harness) hideFace() {
	h.detector.det = vision.Detection{}
}

// armScan walks the machine from idle into an active scan.
func (h *harness) armScan(t *testing.T) {
	t.Helper()
	h.showFace()
	h.m.Step()
	h.clock.Advance(DetectHold)
	h.m.Step()
	if h.m.state != StateScanning {
		t.Fatalf("state = %v after arming, want scanning", h.m.state)
	}
}

func TestIdleToDetectingOnFace(t *testing.T) {
	h := newHarness()

	h.m.Step()
	if h.m.state != StateIdle {
		t.Fatalf("state = %v with no face, want idle", h.m.state)
	}

	h.showFace()
	h.m.Step()
	if h.m.state != StateDetecting {
		t.Errorf("state = %v after face appears, want detecting", h.m.state)
	}
}

func TestDetectingRequiresHold(t *testing.T) {
	h := newHarness()
	h.showFace()
	h.m.Step()

	h.clock.Advance(DetectHold / 2)
	h.m.Step()
	if h.m.state != StateDetecting {
		t.Errorf("state = %v before hold elapsed, want detecting", h.m.state)
	}

	h.clock.Advance(DetectHold / 2)
	h.m.Step()
	if h.m.state != StateScanning {
		t.Errorf("state = %v after hold elapsed, want scanning", h.m.state)
	}
	if h.buffer.resets != 1 {
		t.Errorf("buffer resets = %d on scan start, want 1", h.buffer.resets)
	}
}

func TestDetectingToleratesBriefDropout(t *testing.T) {
	h := newHarness()
	h.showFace()
	h.m.Step()

	h.hideFace()
	h.clock.Advance(DetectGrace / 2)
	h.m.Step()
	if h.m.state != StateDetecting {
		t.Errorf("state = %v during brief dropout, want detecting", h.m.state)
	}

	h.clock.Advance(DetectGrace)
	h.m.Step()
	if h.m.state != StateIdle {
		t.Errorf("state = %v after grace expired, want idle", h.m.state)
	}
}

func TestScanningFeedsBuffer(t *testing.T) {
	h := newHarness()
	h.armScan(t)

	for i := 0; i < 3; i++ {
		h.clock.Advance(33 * time.Millisecond)
		h.m.Step()
	}

	if len(h.buffer.preds) != 3 {
		t.Errorf("buffer received %d predictions, want 3", len(h.buffer.preds))
	}
}

func TestVerdictLockPlaysCueAndRecords(t *testing.T) {
	h := newHarness()
	h.armScan(t)

	h.buffer.label = "Happy"
	h.buffer.conf = 0.87
	h.buffer.locked = true
	h.m.Step()
	if h.m.state != StateResult {
		t.Fatalf("state = %v after lock, want result", h.m.state)
	}

	h.clock.Advance(100 * time.Millisecond)
	h.m.Step()
	if len(h.cues.plays) != 1 || h.cues.plays[0] != "Happy" {
		t.Errorf("cue plays = %v, want [Happy]", h.cues.plays)
	}

	recorded := h.store.Recent(1)
	if len(recorded) != 1 || recorded[0].Label != "Happy" || recorded[0].Confidence != 0.87 {
		t.Errorf("history = %+v, want one Happy@0.87 entry", recorded)
	}
}

func TestCuePlaysExactlyOnce(t *testing.T) {
	h := newHarness()
	h.armScan(t)

	h.buffer.label = "Sad"
	h.buffer.locked = true
	h.m.Step()

	for i := 0; i < 5; i++ {
		h.clock.Advance(33 * time.Millisecond)
		h.m.Step()
	}
	if len(h.cues.plays) != 1 {
		t.Errorf("cue played %d times, want exactly 1", len(h.cues.plays))
	}
}

func TestCueSkippedWhenWindowMissed(t *testing.T) {
	h := newHarness()
	h.armScan(t)

	h.buffer.label = "Sad"
	h.buffer.locked = true
	h.m.Step()

	h.clock.Advance(PlayWindow + 100*time.Millisecond)
	h.m.Step()
	h.m.Step()
	if len(h.cues.plays) != 0 {
		t.Errorf("cue played %v outside the entry window, want none", h.cues.plays)
	}
}

func TestExternalResetCommand(t *testing.T) {
	h := newHarness()
	h.armScan(t)
	h.hideFace()

	h.m.Reset()
	h.m.Step()

	if h.m.state != StateIdle {
		t.Errorf("state = %v after reset command, want idle", h.m.state)
	}
	if h.buffer.resets < 2 {
		t.Errorf("buffer resets = %d after reset command, want >= 2", h.buffer.resets)
	}
	if h.cues.stops == 0 {
		t.Error("cues were not stopped by the reset command")
	}
}

func TestScanAbandonedOnFaceTimeout(t *testing.T) {
	h := newHarness()
	h.armScan(t)

	h.hideFace()
	h.clock.Advance(time.Second)
	h.m.Step()
	if h.m.state != StateScanning {
		t.Fatalf("state = %v before timeout, want scanning", h.m.state)
	}

	h.clock.Advance(1500 * time.Millisecond)
	h.m.Step()
	if h.m.state != StateIdle {
		t.Errorf("state = %v after face timeout, want idle", h.m.state)
	}
	if h.buffer.resets < 2 {
		t.Errorf("buffer resets = %d after abandoned scan, want >= 2", h.buffer.resets)
	}
}

func TestResultToResetStopsCues(t *testing.T) {
	h := newHarness()
	h.armScan(t)

	h.buffer.label = "Happy"
	h.buffer.conf = 0.9
	h.buffer.locked = true
	h.m.Step()

	h.clock.Advance(100 * time.Millisecond)
	h.m.Step()
	if !h.cues.playing {
		t.Fatal("cue should be playing during the result")
	}

	h.clock.Advance(12 * time.Second)
	h.m.Step()
	if h.m.state != StateReset {
		t.Fatalf("state = %v after result duration, want reset", h.m.state)
	}
	if h.cues.stops == 0 {
		t.Error("cues were not stopped entering reset")
	}
	if h.cues.playing {
		t.Error("cue still playing during reset")
	}
}

func TestResultRunsFullCycle(t *testing.T) {
	h := newHarness()
	h.armScan(t)

	h.buffer.label = "Neutral"
	h.buffer.conf = 0.7
	h.buffer.locked = true
	h.m.Step()

	h.clock.Advance(12 * time.Second)
	h.m.Step()
	if h.m.state != StateReset {
		t.Fatalf("state = %v after result duration, want reset", h.m.state)
	}

	h.clock.Advance(2500 * time.Millisecond)
	h.m.Step()
	if h.m.state != StateIdle {
		t.Errorf("state = %v after reset duration, want idle", h.m.state)
	}
	if h.m.label != "" {
		t.Errorf("label = %q after reset, want empty", h.m.label)
	}
	if h.cues.stops == 0 {
		t.Error("cues were not stopped on reset")
	}
}

func TestSnapshotPublishes(t *testing.T) {
	h := newHarness()
	h.armScan(t)
	h.buffer.progress = 0.4

	h.clock.Advance(33 * time.Millisecond)
	h.m.Step()

	snap := h.m.Snapshot()
	if snap.State != "scanning" {
		t.Errorf("snapshot state = %q, want scanning", snap.State)
	}
	if !snap.HasBox || snap.Faces != 1 {
		t.Errorf("snapshot box/faces = %v/%d, want box with 1 face", snap.HasBox, snap.Faces)
	}
	if snap.ScanProgress != 0.4 {
		t.Errorf("snapshot scan progress = %f, want 0.4", snap.ScanProgress)
	}
}
