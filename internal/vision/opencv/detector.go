// Package opencv provides gocv-backed implementations of the vision
// capabilities: a Haar-cascade face detector and a FER DNN classifier.
package opencv

import (
	"image"
	"image/draw"

	"gocv.io/x/gocv"

	"github.com/emotion-kiosk/platform/internal/errors"
	"github.com/emotion-kiosk/platform/internal/vision"
)

// Detection tuning. The minimum size rejects background faces; the padding
// ratios widen the tight cascade box so the classifier sees forehead and
// chin.
const (
	detectScaleFactor  = 1.1
	detectMinNeighbors = 5
	detectMinSize      = 60

	padTopRatio    = 0.20
	padBottomRatio = 0.05
	padSideRatio   = 0.05
)

// FaceDetector locates the largest frontal face in a frame using a Haar
// cascade.
type FaceDetector struct {
	classifier gocv.CascadeClassifier
}

// NewFaceDetector loads the cascade from disk.
func NewFaceDetector(cascadePath string) (*FaceDetector, error) {
	c := gocv.NewCascadeClassifier()
	if !c.Load(cascadePath) {
		_ = c.Close()
		return nil, errors.Newf(errors.CodeResourceLoad, "cannot load face cascade from %s", cascadePath)
	}
	return &FaceDetector{classifier: c}, nil
}

// Detect finds faces in the frame. With multiple faces present the largest
// one wins and Faces reports the full count.
func (d *FaceDetector) Detect(frame image.Image) (vision.Detection, error) {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return vision.Detection{}, errors.Wrap(err, errors.CodeClassification, "frame conversion failed")
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorRGBToGray)

	rects := d.classifier.DetectMultiScaleWithParams(
		gray, detectScaleFactor, detectMinNeighbors, 0,
		image.Pt(detectMinSize, detectMinSize), image.Pt(0, 0))
	if len(rects) == 0 {
		return vision.Detection{}, nil
	}

	best := rects[0]
	for _, r := range rects[1:] {
		if r.Dx()*r.Dy() > best.Dx()*best.Dy() {
			best = r
		}
	}

	padded := padBox(best, frame.Bounds())
	return vision.Detection{
		Box:    padded,
		HasBox: true,
		Crop:   cropImage(frame, padded),
		Faces:  len(rects),
	}, nil
}

// Close releases the cascade.
func (d *FaceDetector) Close() {
	_ = d.classifier.Close()
}

// padBox widens a cascade box, clamped to the frame bounds.
func padBox(box, bounds image.Rectangle) image.Rectangle {
	padX := int(float64(box.Dx()) * padSideRatio)
	padTop := int(float64(box.Dy()) * padTopRatio)
	padBottom := int(float64(box.Dy()) * padBottomRatio)

	out := image.Rect(box.Min.X-padX, box.Min.Y-padTop, box.Max.X+padX, box.Max.Y+padBottom)
	return out.Intersect(bounds)
}

// cropImage copies the region into a standalone image.
func cropImage(img image.Image, r image.Rectangle) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}
