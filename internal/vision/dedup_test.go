package vision

import (
	"image"
	"image/color"
	"testing"
)

type countingDetector struct {
	calls int
	det   Detection
}

func (d *countingDetector) Detect(_ image.Image) (Detection, error) {
	d.calls++
	return d.det, nil
}

// gradient builds an image whose difference hash is direction-dependent.
func gradient(w, h int, reversed bool) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(255 * x / w)
			if reversed {
				v = 255 - v
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestIdenticalFrameUsesCache(t *testing.T) {
	inner := &countingDetector{det: Detection{HasBox: true, Box: image.Rect(10, 10, 50, 50), Faces: 1}}
	c := NewCachedDetector(inner)

	frame := gradient(64, 48, false)
	first, err := c.Detect(frame)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	second, err := c.Detect(frame)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("inner detector calls = %d, want 1 (second frame is identical)", inner.calls)
	}
	if first != second {
		t.Errorf("cached Detection = %+v, want %+v", second, first)
	}
}

func TestChangedFrameRunsDetector(t *testing.T) {
	inner := &countingDetector{det: Detection{Faces: 0}}
	c := NewCachedDetector(inner)

	if _, err := c.Detect(gradient(64, 48, false)); err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if _, err := c.Detect(gradient(64, 48, true)); err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}

	if inner.calls != 2 {
		t.Errorf("inner detector calls = %d, want 2 (frame changed)", inner.calls)
	}
}
