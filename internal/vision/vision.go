// Package vision defines the face detection and emotion classification
// capabilities consumed by the kiosk control loop. Implementations live in
// subpackages so the loop itself stays free of native dependencies.
package vision

import "image"

// Display emotion labels.
const (
	LabelHappy     = "Happy"
	LabelNeutral   = "Neutral"
	LabelSad       = "Sad"
	LabelStressed  = "Stressed"
	LabelSurprised = "Surprised"
	LabelAngry     = "Angry"
)

// Labels lists every label a classifier may produce.
var Labels = []string{LabelHappy, LabelNeutral, LabelSad, LabelStressed, LabelSurprised, LabelAngry}

// Detection is the per-frame output of a face detector. When several faces
// are present the detector reports the largest one and an accurate count.
type Detection struct {
	Box    image.Rectangle
	HasBox bool
	Crop   image.Image // padded face region, nil when no face
	Faces  int
}

// Detector locates the subject's face in a frame.
type Detector interface {
	Detect(frame image.Image) (Detection, error)
}

// Classifier predicts an emotion label for a face crop. An empty label with
// a nil error means no usable prediction for this crop.
type Classifier interface {
	Predict(crop image.Image) (label string, confidence float64, err error)
}
