// Package camera acquires frames from a capture device on a background
// goroutine and exposes only the freshest one. Consumers never block on
// hardware cadence and never observe a stale backlog.
package camera

import (
	"image"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/emotion-kiosk/platform/internal/config"
	"github.com/emotion-kiosk/platform/internal/errors"
	"github.com/emotion-kiosk/platform/internal/syncx"
)

const (
	// startupTimeout bounds how long Open waits for the first decodable frame.
	startupTimeout = 5 * time.Second
	// releaseTimeout bounds how long Close waits for the acquisition
	// goroutine to exit.
	releaseTimeout = 2 * time.Second
	// readRetryDelay paces retries after a transient read failure.
	readRetryDelay = 10 * time.Millisecond
	// maxFrameWidth caps the width handed to consumers; wider frames are
	// downscaled preserving aspect ratio.
	maxFrameWidth = 1280
)

// Source owns a capture device and publishes frames to a single-slot
// mailbox.
type Source struct {
	vc     *gocv.VideoCapture
	mirror bool
	latest *syncx.Mailbox[image.Image]
	stop   chan struct{}
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// Open connects to the configured capture device, applies the requested
// format, and verifies a first frame arrives within the startup deadline.
// The acquisition loop is not running yet; call Start.
func Open(cfg *config.Config) (*Source, error) {
	vc, err := openDevice(cfg.CameraSource)
	if err != nil {
		return nil, err
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.FrameWidth))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.FrameHeight))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.TargetFPS))

	mat := gocv.NewMat()
	defer mat.Close()

	deadline := time.Now().Add(startupTimeout)
	for !vc.Read(&mat) || mat.Empty() {
		if time.Now().After(deadline) {
			_ = vc.Close()
			return nil, errors.Newf(errors.CodeConnection,
				"camera %q produced no frame within %s", cfg.CameraSource, startupTimeout)
		}
		time.Sleep(readRetryDelay)
	}

	slog.Info("camera ready",
		"source", cfg.CameraSource,
		"width", mat.Cols(),
		"height", mat.Rows())

	return &Source{
		vc:     vc,
		mirror: cfg.MirrorFrames,
		latest: syncx.NewMailbox[image.Image](),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// openDevice treats a numeric source as a device index and anything else as
// a file or stream path.
func openDevice(source string) (*gocv.VideoCapture, error) {
	if idx, err := strconv.Atoi(source); err == nil {
		vc, err := gocv.OpenVideoCapture(idx)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeConnection, "cannot open camera device %d", idx)
		}
		return vc, nil
	}

	vc, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeConnection, "cannot open video source %q", source)
	}
	return vc, nil
}

// Start launches the acquisition loop.
func (s *Source) Start() {
	go s.loop()
}

func (s *Source) loop() {
	defer close(s.done)

	mat := gocv.NewMat()
	defer mat.Close()
	scaled := gocv.NewMat()
	defer scaled.Close()

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if !s.vc.Read(&mat) || mat.Empty() {
			time.Sleep(readRetryDelay)
			continue
		}

		frame := &mat
		if w, h, ok := scaledSize(mat.Cols(), mat.Rows(), maxFrameWidth); ok {
			gocv.Resize(mat, &scaled, image.Pt(w, h), 0, 0, gocv.InterpolationArea)
			frame = &scaled
		}
		if s.mirror {
			gocv.Flip(*frame, frame, 1)
		}

		img, err := frame.ToImage()
		if err != nil {
			slog.Warn("frame conversion failed", "error", err)
			continue
		}
		s.latest.Put(img)
	}
}

// Latest returns the freshest frame, if any has been published.
func (s *Source) Latest() (image.Image, bool) {
	return s.latest.Latest()
}

// Close stops the acquisition loop and releases the device. Idempotent;
// repeat calls return the first call's result. Returns a release-timeout
// error if the loop does not exit within the deadline; the device is
// released either way.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)

		var timedOut bool
		select {
		case <-s.done:
		case <-time.After(releaseTimeout):
			timedOut = true
		}

		var err error
		if s.vc != nil {
			err = s.vc.Close()
		}
		switch {
		case timedOut:
			s.closeErr = errors.New(errors.CodeReleaseTimeout, "camera loop did not stop in time")
		case err != nil:
			s.closeErr = errors.Wrap(err, errors.CodeConnection, "camera release failed")
		}
	})
	return s.closeErr
}

// scaledSize returns the downscaled dimensions when width exceeds the
// limit, preserving aspect ratio. ok is false when no scaling is needed.
func scaledSize(w, h, maxW int) (int, int, bool) {
	if w <= maxW || w <= 0 || h <= 0 {
		return w, h, false
	}
	scale := float64(maxW) / float64(w)
	return maxW, int(float64(h)*scale + 0.5), true
}
