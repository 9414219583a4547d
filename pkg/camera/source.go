package camera

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/rocky-hockey/internal/log"
	"gocv.io/x/gocv"
)

// Device is the part of gocv.VideoCapture the source needs. It is only
// touched from one goroutine at a time: the opener before Start, then the
// capture loop.
type Device interface {
	Read(m *gocv.Mat) bool
	Set(prop gocv.VideoCaptureProperties, value float64)
	Close() error
}

// Frame is one oriented capture. The receiver owns Mat and must Close it.
type Frame struct {
	Mat        gocv.Mat
	CapturedAt time.Time
	Seq        uint64
}

// Close releases the pixel buffer.
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// Source reads frames on its own goroutine and keeps only the latest.
// Readers get a copy, so the capture loop never waits on the tracker.
type Source struct {
	dev    Device
	logger *slog.Logger

	// settings is what the device was last told; owned by the capture loop
	// once started. pending is the next change, applied at the top of a
	// capture iteration.
	settings Config
	pending  atomic.Pointer[Config]

	period atomic.Int64 // nanoseconds per frame
	flips  atomic.Int32

	mu         sync.RWMutex
	latest     gocv.Mat
	hasFrame   bool
	capturedAt time.Time
	seq        uint64

	newFrame atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stop      chan struct{}
	done      chan struct{}

	errMu sync.Mutex
	err   error
}

// NewSource wraps an open device. No goroutine runs until Start.
func NewSource(cfg Config, dev Device) *Source {
	s := &Source{
		dev:      dev,
		logger:   log.Component("camera"),
		settings: cfg,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.setTiming(cfg)
	return s
}

// Open opens the configured capture device and applies its settings.
func Open(cfg Config) (*Source, error) {
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("%w: invalid config: %v", ErrOpen, problems)
	}

	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", ErrOpen, cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d not available", ErrOpen, cfg.Device)
	}

	applyDeviceSettings(vc, nil, cfg)
	return NewSource(cfg, vc), nil
}

// applyDeviceSettings pushes cfg to the device. With a previous config only
// the properties that differ are sent; resolution writes restart the stream
// on V4L2 devices.
func applyDeviceSettings(dev Device, prev *Config, cfg Config) {
	all := prev == nil
	if all || prev.Width != cfg.Width {
		dev.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if all || prev.Height != cfg.Height {
		dev.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if all || prev.FPS != cfg.FPS {
		dev.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
	}
	if cfg.BufferSize > 0 && (all || prev.BufferSize != cfg.BufferSize) {
		dev.Set(gocv.VideoCaptureBufferSize, float64(cfg.BufferSize))
	}
	if cfg.Focus >= 0 && (all || prev.Focus != cfg.Focus) {
		dev.Set(gocv.VideoCaptureAutoFocus, 0)
		dev.Set(gocv.VideoCaptureFocus, cfg.Focus)
	}
}

func (s *Source) setTiming(cfg Config) {
	fps := cfg.FPS
	if fps < 1 {
		fps = 1
	}
	s.period.Store(int64(time.Second) / int64(fps))
	s.flips.Store(int32(cfg.Flips))
}

// Reconfigure queues new settings. Pacing and orientation change at once;
// device properties are pushed by the capture goroutine before its next
// read. A later call replaces a change that was not applied yet.
func (s *Source) Reconfigure(cfg Config) error {
	if problems := cfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("camera: invalid config: %v", problems)
	}
	s.setTiming(cfg)
	s.pending.Store(&cfg)
	return nil
}

// applyPending runs on the capture goroutine.
func (s *Source) applyPending() {
	cfg := s.pending.Swap(nil)
	if cfg == nil {
		return
	}
	applyDeviceSettings(s.dev, &s.settings, *cfg)
	s.settings = *cfg
	s.logger.Info("camera settings applied", "fps", cfg.FPS, "focus", cfg.Focus, "buffer", cfg.BufferSize, "flips", cfg.Flips)
}

// Start launches the capture goroutine.
func (s *Source) Start() error {
	if s.started.Swap(true) {
		return ErrAlreadyStarted
	}
	go s.loop()
	return nil
}

// Stop ends capture, waits for the goroutine and releases the device.
// Safe to call more than once, and before Start.
func (s *Source) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.started.Load() {
			<-s.done
		}
		if s.dev != nil {
			s.dev.Close()
		}
		s.mu.Lock()
		if s.hasFrame {
			s.latest.Close()
			s.hasFrame = false
		}
		s.mu.Unlock()
	})
}

// Done is closed when the capture goroutine exits.
func (s *Source) Done() <-chan struct{} {
	return s.done
}

// Err returns ErrSourceStopped after a read failure, nil otherwise.
func (s *Source) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// HasNewFrame reports whether a frame arrived since the last CurrentFrame.
func (s *Source) HasNewFrame() bool {
	return s.newFrame.Load()
}

// CurrentFrame returns a copy of the latest frame and clears the new-frame
// flag. It returns false until the first frame has been captured.
func (s *Source) CurrentFrame() (*Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasFrame {
		return nil, false
	}
	s.newFrame.Store(false)
	return &Frame{
		Mat:        s.latest.Clone(),
		CapturedAt: s.capturedAt,
		Seq:        s.seq,
	}, true
}

func (s *Source) loop() {
	defer close(s.done)

	raw := gocv.NewMat()
	defer raw.Close()
	oriented := gocv.NewMat()
	defer oriented.Close()
	scratch := gocv.NewMat()
	defer scratch.Close()

	s.logger.Info("capture started", "period", time.Duration(s.period.Load()))

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		s.applyPending()

		started := time.Now()
		if !s.dev.Read(&raw) || raw.Empty() {
			s.fail()
			return
		}

		orient(raw, &oriented, &scratch, int(s.flips.Load()))
		s.publish(oriented, started)

		residual := time.Duration(s.period.Load()) - time.Since(started)
		if residual <= 0 {
			continue
		}
		timer := time.NewTimer(residual)
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// orient rotates 90 degrees clockwise, then mirrors horizontally flips times.
func orient(raw gocv.Mat, dst, scratch *gocv.Mat, flips int) {
	gocv.Rotate(raw, dst, gocv.Rotate90Clockwise)
	for i := 0; i < flips; i++ {
		gocv.Flip(*dst, scratch, 1)
		scratch.CopyTo(dst)
	}
}

func (s *Source) publish(m gocv.Mat, at time.Time) {
	s.mu.Lock()
	if s.hasFrame {
		s.latest.Close()
	}
	s.latest = m.Clone()
	s.hasFrame = true
	s.capturedAt = at
	s.seq++
	s.mu.Unlock()
	s.newFrame.Store(true)
}

func (s *Source) fail() {
	s.errMu.Lock()
	s.err = ErrSourceStopped
	s.errMu.Unlock()
	s.logger.Error("frame read failed, capture stopped")
}
