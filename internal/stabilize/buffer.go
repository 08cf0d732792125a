// Package stabilize converts noisy per-frame emotion predictions into one
// locked verdict using a sliding-window majority vote.
package stabilize

import (
	"sort"
	"time"
)

const (
	// Fraction of BufferDuration the buffered span must cover before a vote.
	minSpanFraction = 0.7
	// Share of buffered predictions the plurality label must hold.
	minPluralityShare = 0.4
)

// Config for the stabilization buffer.
type Config struct {
	BufferDuration time.Duration // sliding window size
	MinPredictions int           // minimum buffered count before a vote
}

func (c Config) withDefaults() Config {
	if c.BufferDuration <= 0 {
		c.BufferDuration = 3 * time.Second
	}
	if c.MinPredictions <= 0 {
		c.MinPredictions = 8
	}
	return c
}

// Verdict is a locked stable emotion. Immutable until Reset.
type Verdict struct {
	Label      string
	Confidence float64
	LockedAt   time.Time
}

type prediction struct {
	at         time.Time
	label      string
	confidence float64
}

// Buffer collects predictions over a time window and locks the first stable
// majority. Owned by the control-loop goroutine; not safe for concurrent use.
type Buffer struct {
	cfg    Config
	now    func() time.Time
	preds  []prediction
	locked *Verdict
}

// NewBuffer creates a stabilization buffer.
func NewBuffer(cfg Config) *Buffer {
	return &Buffer{cfg: cfg.withDefaults(), now: time.Now}
}

// AddPrediction appends a prediction and evicts entries older than the
// window. No-op once locked.
func (b *Buffer) AddPrediction(label string, confidence float64) {
	if b.locked != nil {
		return
	}

	now := b.now()
	b.preds = append(b.preds, prediction{at: now, label: label, confidence: confidence})

	cutoff := now.Add(-b.cfg.BufferDuration)
	kept := b.preds[:0]
	for _, p := range b.preds {
		if !p.at.Before(cutoff) {
			kept = append(kept, p)
		}
	}
	b.preds = kept
}

// StableEmotion returns the majority-vote emotion once the buffer holds
// enough predictions over enough time and one label has at least a 40%
// share. The first successful result locks permanently until Reset; later
// calls return the locked value without recomputation. Ties between labels
// with equal counts break to the lexicographically smallest label.
func (b *Buffer) StableEmotion() (string, float64, bool) {
	if b.locked != nil {
		return b.locked.Label, b.locked.Confidence, true
	}

	if len(b.preds) < b.cfg.MinPredictions {
		return "", 0, false
	}

	span := b.preds[len(b.preds)-1].at.Sub(b.preds[0].at)
	if span < time.Duration(float64(b.cfg.BufferDuration)*minSpanFraction) {
		return "", 0, false
	}

	label, count := b.plurality()
	if float64(count)/float64(len(b.preds)) < minPluralityShare {
		return "", 0, false
	}

	// Average confidence over the plurality label only.
	var sum float64
	var n int
	for _, p := range b.preds {
		if p.label == label {
			sum += p.confidence
			n++
		}
	}
	avg := sum / float64(n)

	b.locked = &Verdict{Label: label, Confidence: avg, LockedAt: b.now()}
	return label, avg, true
}

// plurality returns the most frequent buffered label and its count.
func (b *Buffer) plurality() (string, int) {
	counts := make(map[string]int, 4)
	for _, p := range b.preds {
		counts[p.label]++
	}

	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	best, bestCount := "", 0
	for _, l := range labels {
		if counts[l] > bestCount {
			best, bestCount = l, counts[l]
		}
	}
	return best, bestCount
}

// Locked reports whether a verdict has been captured.
func (b *Buffer) Locked() bool { return b.locked != nil }

// Verdict returns the locked verdict, or nil while unlocked.
func (b *Buffer) Verdict() *Verdict { return b.locked }

// Progress reports scan progress in [0,1]: the average of the time-span and
// count fractions, each capped at 1. Returns 1 once locked, 0 when empty.
func (b *Buffer) Progress() float64 {
	if b.locked != nil {
		return 1.0
	}
	if len(b.preds) == 0 {
		return 0.0
	}

	span := b.preds[len(b.preds)-1].at.Sub(b.preds[0].at)
	timeFrac := min(1.0, float64(span)/float64(b.cfg.BufferDuration))
	countFrac := min(1.0, float64(len(b.preds))/float64(b.cfg.MinPredictions))
	return min(1.0, (timeFrac+countFrac)/2)
}

// Reset clears the buffer and unlocks.
func (b *Buffer) Reset() {
	b.preds = b.preds[:0]
	b.locked = nil
}
