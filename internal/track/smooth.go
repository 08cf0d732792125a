// Package track smooths detected bounding boxes across ticks.
package track

import "image"

// DefaultAlpha is the EMA weight applied to new observations.
const DefaultAlpha = 0.3

// Smoother applies an exponential moving average to face bounding boxes so
// the rendered box does not jitter frame to frame. Lower alpha = smoother.
type Smoother struct {
	alpha      float64
	x, y, w, h float64
	primed     bool
}

// NewSmoother creates a box smoother. alpha outside (0,1] falls back to the
// default.
func NewSmoother(alpha float64) *Smoother {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &Smoother{alpha: alpha}
}

// Update folds a new observation into the filter and returns the smoothed
// box. The first observation after a Reset seeds the filter unchanged.
func (s *Smoother) Update(box image.Rectangle) image.Rectangle {
	x, y := float64(box.Min.X), float64(box.Min.Y)
	w, h := float64(box.Dx()), float64(box.Dy())

	if !s.primed {
		s.x, s.y, s.w, s.h = x, y, w, h
		s.primed = true
	} else {
		a := s.alpha
		s.x += a * (x - s.x)
		s.y += a * (y - s.y)
		s.w += a * (w - s.w)
		s.h += a * (h - s.h)
	}

	return image.Rect(int(s.x), int(s.y), int(s.x+s.w), int(s.y+s.h))
}

// Reset clears the filter so the next observation seeds it.
func (s *Smoother) Reset() {
	s.primed = false
}
