// Package web serves the operator dashboard: a REST control surface for
// tuning, calibration and manual moves, plus websocket streams of
// telemetry, log lines and the annotated camera feed.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/rocky-hockey/internal/log"
	"github.com/teslashibe/rocky-hockey/pkg/calibration"
	"github.com/teslashibe/rocky-hockey/pkg/camera"
	"github.com/teslashibe/rocky-hockey/pkg/geometry"
	"github.com/teslashibe/rocky-hockey/pkg/hub"
	"github.com/teslashibe/rocky-hockey/pkg/journal"
	"github.com/teslashibe/rocky-hockey/pkg/robot"
	"github.com/teslashibe/rocky-hockey/pkg/tracking"
	"github.com/teslashibe/rocky-hockey/pkg/tracking/detection"
)

// Config controls the dashboard server.
type Config struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	Port        string `json:"port" mapstructure:"port"`
	StaticDir   string `json:"static_dir" mapstructure:"static_dir"`
	TelemetryHz int    `json:"telemetry_hz" mapstructure:"telemetry_hz"` // max telemetry messages per second
	LogBuffer   int    `json:"log_buffer" mapstructure:"log_buffer"`     // operator log lines kept
}

// DefaultConfig returns the dashboard defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		Port:        "8080",
		StaticDir:   "./web",
		TelemetryHz: 20,
		LogBuffer:   500,
	}
}

// Validate returns a list of problems, or nil.
func (c Config) Validate() []string {
	var problems []string
	if c.Port == "" {
		problems = append(problems, "web port must be set")
	}
	if c.TelemetryHz < 1 {
		problems = append(problems, "telemetry_hz must be at least 1")
	}
	if c.LogBuffer < 1 {
		problems = append(problems, "log_buffer must be at least 1")
	}
	return problems
}

// Tracker is the part of the tracker the dashboard controls.
type Tracker interface {
	Last() tracking.Snapshot
	Axes() calibration.Axes
	GetTuningParams() tracking.TuningParams
	ColorRange(target string) (detection.ColorRange, error)
	SetColorRange(target string, r detection.ColorRange) error
	SetArmed(armed bool)
}

// Corners manages the table rectification corners.
type Corners interface {
	AddCorner(p geometry.Point) error
	Apply() error
	Reset()
	Corners() []geometry.Point
	Applied() bool
}

// Commander sends manual stage commands.
type Commander interface {
	Move(p geometry.Point) bool
	Calibrate()
	Trim(x, y int)
	Stats() robot.CommanderStats
}

// DispatcherStats reports the command queue state.
type DispatcherStats interface {
	Stats() robot.Stats
}

// Journal serves recorded episodes and commands.
type Journal interface {
	RecentEpisodes(ctx context.Context, limit int) ([]journal.EpisodeRecord, error)
	RecentCommands(ctx context.Context, limit int) ([]journal.CommandRecord, error)
	Summarize(ctx context.Context) (journal.Summary, error)
}

// Deps wires the server to the running system. Nil members disable the
// endpoints that need them.
type Deps struct {
	Tracker    Tracker
	Corners    Corners
	Commander  Commander
	Dispatcher DispatcherStats
	Camera     *camera.Manager
	Journal    Journal
}

// LogEntry is an operator-facing log line.
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, warn, error, command, calibration
	Message string `json:"message"`
}

// Telemetry is one message on /ws/telemetry.
type Telemetry struct {
	Snapshot   tracking.Snapshot     `json:"snapshot"`
	Dispatcher *robot.Stats          `json:"dispatcher,omitempty"`
	Commander  *robot.CommanderStats `json:"commander,omitempty"`
}

// Server is the dashboard server.
type Server struct {
	cfg  Config
	deps Deps
	app  *fiber.App

	logs   []LogEntry
	logsMu sync.RWMutex

	telemetryHub *hub.Hub
	logHub       *hub.Hub
	cameraHub    *hub.Hub

	pubMu    sync.Mutex
	lastPub  time.Time
	interval time.Duration

	logger *slog.Logger
}

var _ tracking.Publisher = (*Server)(nil)

// NewServer builds the routes. Call Run to serve.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.TelemetryHz < 1 {
		cfg.TelemetryHz = DefaultConfig().TelemetryHz
	}
	if cfg.LogBuffer < 1 {
		cfg.LogBuffer = DefaultConfig().LogBuffer
	}

	s := &Server{
		cfg:          cfg,
		deps:         deps,
		logs:         make([]LogEntry, 0, cfg.LogBuffer),
		telemetryHub: hub.New("telemetry"),
		logHub:       hub.New("logs"),
		cameraHub:    hub.New("camera"),
		interval:     time.Second / time.Duration(cfg.TelemetryHz),
		logger:       log.Component("web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Rocky Hockey",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/logs", s.handleGetLogs)

	api.Get("/colors/:target", s.handleGetColors)
	api.Put("/colors/:target", s.handleSetColors)
	api.Post("/bot", s.handleSetBot)

	api.Get("/corners", s.handleGetCorners)
	api.Post("/corners", s.handleAddCorner)
	api.Post("/corners/apply", s.handleApplyCorners)
	api.Delete("/corners", s.handleResetCorners)
	api.Post("/click", s.handleClick)

	api.Post("/move", s.handleMove)
	api.Post("/calibrate", s.handleCalibrate)
	api.Post("/offset", s.handleOffset)

	api.Get("/camera", s.handleGetCamera)
	api.Put("/camera", s.handleSetCamera)
	api.Get("/camera/presets", s.handleCameraPresets)

	api.Get("/episodes", s.handleEpisodes)
	api.Get("/commands", s.handleCommands)
	api.Get("/summary", s.handleSummary)
	app.Get("/charts/episodes", s.handleEpisodeChart)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/telemetry", websocket.New(s.handleTelemetryWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// App returns the fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	go s.telemetryHub.Run(ctx)
	go s.logHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "url", fmt.Sprintf("http://localhost:%s", s.cfg.Port))
		errCh <- s.app.Listen(":" + s.cfg.Port)
	}()

	select {
	case <-ctx.Done():
		return s.app.ShutdownWithTimeout(5 * time.Second)
	case err := <-errCh:
		return fmt.Errorf("web: listen: %w", err)
	}
}

// Publish broadcasts a snapshot, at most TelemetryHz times per second.
func (s *Server) Publish(snap tracking.Snapshot) {
	if s.telemetryHub.ClientCount() == 0 {
		return
	}
	s.pubMu.Lock()
	if time.Since(s.lastPub) < s.interval {
		s.pubMu.Unlock()
		return
	}
	s.lastPub = time.Now()
	s.pubMu.Unlock()

	if err := s.telemetryHub.BroadcastJSON(s.telemetry(snap)); err != nil {
		s.logger.Debug("telemetry encode failed", "err", err)
	}
}

func (s *Server) telemetry(snap tracking.Snapshot) Telemetry {
	t := Telemetry{Snapshot: snap}
	if s.deps.Dispatcher != nil {
		st := s.deps.Dispatcher.Stats()
		t.Dispatcher = &st
	}
	if s.deps.Commander != nil {
		st := s.deps.Commander.Stats()
		t.Commander = &st
	}
	return t
}

// WantsCamera reports whether anyone is watching the camera feed.
func (s *Server) WantsCamera() bool {
	return s.cameraHub.ClientCount() > 0
}

// SendCameraFrame sends a JPEG frame to camera clients.
func (s *Server) SendCameraFrame(jpeg []byte) {
	s.cameraHub.BroadcastBinary(jpeg)
}

// AddLog records an operator log line and broadcasts it.
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > s.cfg.LogBuffer {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	s.logHub.BroadcastJSON(entry)
}

// Logs returns a copy of the operator log.
func (s *Server) Logs() []LogEntry {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return append([]LogEntry(nil), s.logs...)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
