package audio

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Categories scanned under the clip root. Keys are lowercased display labels.
var categories = []string{"angry", "happy", "neutral", "sad", "stressed", "surprised"}

// clipExts lists supported extensions in fallback probe order.
var clipExts = []string{".wav", ".mp3"}

// clipSet is one category's rotation: an ordered clip pool plus a cursor.
type clipSet struct {
	clips []*Clip
	next  int
}

// session is the single live playback, if any.
type session struct {
	clip      *Clip
	startedAt time.Time
}

// Scheduler maps emotion labels to cue clips, rotating round-robin within a
// category, enforcing one audible stream, and capping play duration. Owned
// by the control-loop goroutine.
type Scheduler struct {
	engine      Engine
	maxDuration time.Duration
	now         func() time.Time
	sets        map[string]*clipSet
	session     *session
}

// NewScheduler creates a scheduler on top of a playback engine.
func NewScheduler(engine Engine, maxDuration time.Duration) *Scheduler {
	if maxDuration <= 0 {
		maxDuration = 10 * time.Second
	}
	return &Scheduler{
		engine:      engine,
		maxDuration: maxDuration,
		now:         time.Now,
		sets:        make(map[string]*clipSet),
	}
}

// Load scans per-category subdirectories for clips (alphabetical order),
// falling back to a flat legacy file named <category>.<ext>. A clip that
// fails to decode is skipped; a category with no clips stays silent.
func (s *Scheduler) Load(baseDir string) {
	for _, cat := range categories {
		clips := s.loadDir(filepath.Join(baseDir, cat))

		if len(clips) == 0 {
			// Legacy flat layout: audio/happy.wav next to the category dirs.
			for _, ext := range clipExts {
				flat := filepath.Join(baseDir, cat+ext)
				if _, err := os.Stat(flat); err != nil {
					continue
				}
				clip, err := LoadClip(flat)
				if err != nil {
					slog.Warn("failed to load clip", "path", flat, "error", err)
					continue
				}
				clips = append(clips, clip)
				break
			}
		}

		if len(clips) > 0 {
			s.sets[cat] = &clipSet{clips: clips}
			slog.Info("loaded audio cues", "category", cat, "clips", len(clips))
		} else {
			slog.Info("no audio cues, category stays silent", "category", cat)
		}
	}
}

func (s *Scheduler) loadDir(dir string) []*Clip {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var clips []*Clip
	for _, entry := range entries { // ReadDir sorts by name
		if entry.IsDir() || !supportedExt(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		clip, err := LoadClip(path)
		if err != nil {
			slog.Warn("failed to load clip", "path", path, "error", err)
			continue
		}
		clips = append(clips, clip)
	}
	return clips
}

func supportedExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range clipExts {
		if ext == e {
			return true
		}
	}
	return false
}

// Play starts the next clip in the label's rotation. No-op while a session
// is live or when the category has no clips. The cursor advances only on a
// successful start.
func (s *Scheduler) Play(label string) {
	if s.session != nil {
		return
	}

	set := s.sets[strings.ToLower(label)]
	if set == nil || len(set.clips) == 0 {
		return
	}

	clip := set.clips[set.next]
	if err := s.engine.Play(clip); err != nil {
		slog.Warn("cue playback failed", "label", label, "clip", clip.Name, "error", err)
		return
	}

	set.next = (set.next + 1) % len(set.clips)
	s.session = &session{clip: clip, startedAt: s.now()}
	slog.Debug("playing cue", "label", label, "clip", clip.Name)
}

// Update must be polled every tick: it ends the session once elapsed time
// reaches the cap or the device reports natural completion, whichever comes
// first. Returns whether a clip is still playing.
func (s *Scheduler) Update() bool {
	if s.session == nil {
		return false
	}
	if s.now().Sub(s.session.startedAt) >= s.maxDuration || !s.engine.Busy() {
		s.Stop()
		return false
	}
	return true
}

// Playing reports whether a session is live.
func (s *Scheduler) Playing() bool { return s.session != nil }

// Progress returns elapsed/maxDuration clamped to [0,1], 0 when idle.
func (s *Scheduler) Progress() float64 {
	if s.session == nil {
		return 0
	}
	frac := float64(s.now().Sub(s.session.startedAt)) / float64(s.maxDuration)
	return min(1.0, max(0.0, frac))
}

// Stop force-ends any session. Idempotent.
func (s *Scheduler) Stop() {
	s.engine.Stop()
	s.session = nil
}

// Cleanup stops playback and releases the device. Idempotent.
func (s *Scheduler) Cleanup() {
	s.Stop()
	s.engine.Close()
}
