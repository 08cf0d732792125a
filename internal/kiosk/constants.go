// Package kiosk drives the attract-scan-result cycle of the installation.
package kiosk

import "time"

// State machine timing constants
const (
	// DetectHold is how long a face must persist before a scan starts.
	DetectHold = 800 * time.Millisecond

	// DetectGrace tolerates brief detector dropouts while arming.
	DetectGrace = 1 * time.Second

	// PlayWindow bounds how late after a verdict the audio cue may start.
	PlayWindow = 500 * time.Millisecond

	// Verdict history configuration
	HistoryMaxEntries  = 50
	HistoryEventBuffer = 100
)
