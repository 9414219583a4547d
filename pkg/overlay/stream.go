package overlay

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/rocky-hockey/internal/log"
	"github.com/teslashibe/rocky-hockey/pkg/geometry"
	"github.com/teslashibe/rocky-hockey/pkg/tracking"
	"gocv.io/x/gocv"
)

// Viewer receives encoded frames.
type Viewer interface {
	WantsCamera() bool
	SendCameraFrame(jpeg []byte)
}

// StreamConfig controls the dashboard video feed.
type StreamConfig struct {
	FPS     int `json:"fps" mapstructure:"fps"`         // max frames per second sent
	Quality int `json:"quality" mapstructure:"quality"` // JPEG quality, 1-100
}

// DefaultStreamConfig returns a light feed suitable for a laptop browser.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{FPS: 15, Quality: 70}
}

// Validate returns a list of problems, or nil.
func (c StreamConfig) Validate() []string {
	var problems []string
	if c.FPS < 1 || c.FPS > 120 {
		problems = append(problems, "stream fps must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		problems = append(problems, "stream quality must be between 1 and 100")
	}
	return problems
}

// Streamer is a tracking.FrameSink that draws the overlay, encodes it and
// hands it to a Viewer at a capped rate.
type Streamer struct {
	cfg      tracking.Config
	out      Viewer
	interval time.Duration
	quality  int

	mu     sync.Mutex
	last   time.Time
	canvas gocv.Mat

	sent   atomic.Uint64
	logger *slog.Logger
}

var _ tracking.FrameSink = (*Streamer)(nil)

// NewStreamer creates a streamer drawing with cfg's geometry.
func NewStreamer(cfg tracking.Config, stream StreamConfig, out Viewer) *Streamer {
	if stream.FPS < 1 {
		stream.FPS = DefaultStreamConfig().FPS
	}
	return &Streamer{
		cfg:      cfg,
		out:      out,
		interval: time.Second / time.Duration(stream.FPS),
		quality:  stream.Quality,
		canvas:   gocv.NewMat(),
		logger:   log.Component("overlay"),
	}
}

// WantsFrame reports whether a viewer is connected and the rate cap allows
// another frame.
func (s *Streamer) WantsFrame() bool {
	if !s.out.WantsCamera() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.last) >= s.interval
}

// SendFrame draws the snapshot over a copy of frame and sends it.
func (s *Streamer) SendFrame(frame gocv.Mat, snap tracking.Snapshot, corners []geometry.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame.CopyTo(&s.canvas)
	Draw(&s.canvas, s.cfg, snap, corners)

	data, err := Encode(s.canvas, s.quality)
	if err != nil {
		s.logger.Debug("frame encode failed", "seq", snap.Seq, "err", err)
		return
	}
	s.last = time.Now()
	if s.sent.Add(1) == 1 {
		s.logger.Info("first frame streamed", "bytes", len(data))
	}
	s.out.SendCameraFrame(data)
}

// Sent returns the number of frames streamed.
func (s *Streamer) Sent() uint64 {
	return s.sent.Load()
}

// Close releases the drawing buffer.
func (s *Streamer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas.Close()
}

// Encode compresses img as JPEG.
func Encode(img gocv.Mat, quality int) ([]byte, error) {
	if img.Empty() {
		return nil, fmt.Errorf("overlay: empty frame")
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("overlay: encode: %w", err)
	}
	defer buf.Close()
	return bytes.Clone(buf.GetBytes()), nil
}
