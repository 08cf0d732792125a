package vision

import (
	"image"

	"github.com/corona10/goimagehash"
)

// CachedDetector wraps a Detector with perceptual-hash change detection:
// consecutive visually identical frames reuse the previous Detection instead
// of re-running the detector. Static kiosk scenes make this the common case.
type CachedDetector struct {
	inner    Detector
	lastHash *goimagehash.ImageHash
	last     Detection
}

// NewCachedDetector wraps a detector with duplicate-frame suppression.
func NewCachedDetector(inner Detector) *CachedDetector {
	return &CachedDetector{inner: inner}
}

// Detect returns the cached Detection when the frame hash matches the
// previous frame exactly, otherwise delegates to the wrapped detector.
func (c *CachedDetector) Detect(frame image.Image) (Detection, error) {
	hash, err := goimagehash.DifferenceHash(frame)
	if err != nil {
		// Hashing is an optimization only; fall through to the detector.
		return c.inner.Detect(frame)
	}

	if c.lastHash != nil {
		if dist, err := hash.Distance(c.lastHash); err == nil && dist == 0 {
			return c.last, nil
		}
	}

	det, err := c.inner.Detect(frame)
	if err != nil {
		return det, err
	}
	c.lastHash = hash
	c.last = det
	return det, nil
}
