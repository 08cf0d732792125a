// Package display streams kiosk state to the front-of-house screen
package display

import "time"

// Display configuration constants
const (
	// State push cadence per websocket client
	PushInterval = 66 * time.Millisecond

	// Frame thumbnail encoding
	ThumbWidth  = 320
	JPEGQuality = 80
)
