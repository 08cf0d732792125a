package opencv

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/emotion-kiosk/platform/internal/errors"
	"github.com/emotion-kiosk/platform/internal/vision"
)

// netInputSize is the model's expected square grayscale input.
const netInputSize = 64

// ferClasses is the standard FER-2013 output order.
var ferClasses = []string{"angry", "disgust", "fear", "happy", "neutral", "sad", "surprise"}

// ferToLabel maps the model's 7 classes to the 6 display labels.
var ferToLabel = map[string]string{
	"angry":    vision.LabelAngry,
	"disgust":  vision.LabelStressed,
	"fear":     vision.LabelStressed,
	"happy":    vision.LabelHappy,
	"neutral":  vision.LabelNeutral,
	"sad":      vision.LabelSad,
	"surprise": vision.LabelSurprised,
}

// EmotionNet classifies face crops with a FER-2013 ONNX model.
type EmotionNet struct {
	net gocv.Net
}

// NewEmotionNet loads the model from disk.
func NewEmotionNet(modelPath string) (*EmotionNet, error) {
	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, errors.Newf(errors.CodeResourceLoad, "cannot load emotion model from %s", modelPath)
	}
	return &EmotionNet{net: net}, nil
}

// Predict runs the model on a face crop and returns the best display label.
func (e *EmotionNet) Predict(crop image.Image) (string, float64, error) {
	mat, err := gocv.ImageToMatRGB(crop)
	if err != nil {
		return "", 0, errors.Wrap(err, errors.CodeClassification, "crop conversion failed")
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorRGBToGray)

	blob := gocv.BlobFromImage(gray, 1.0/255.0,
		image.Pt(netInputSize, netInputSize), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	defer out.Close()

	logits := make([]float64, len(ferClasses))
	for i := range ferClasses {
		logits[i] = float64(out.GetFloatAt(0, i))
	}
	probs := softmax(logits)

	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return ferToLabel[ferClasses[best]], probs[best], nil
}

// Close releases the network.
func (e *EmotionNet) Close() {
	_ = e.net.Close()
}

func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	out := make([]float64, len(logits))
	for i, v := range logits {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
