// Package rink assembles the defender: camera, locator, tracker, stage
// link and dashboard, and runs them until shutdown.
package rink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/rocky-hockey/internal/config"
	"github.com/teslashibe/rocky-hockey/internal/log"
	"github.com/teslashibe/rocky-hockey/pkg/calibration"
	"github.com/teslashibe/rocky-hockey/pkg/camera"
	"github.com/teslashibe/rocky-hockey/pkg/journal"
	"github.com/teslashibe/rocky-hockey/pkg/overlay"
	"github.com/teslashibe/rocky-hockey/pkg/robot"
	"github.com/teslashibe/rocky-hockey/pkg/tracking"
	"github.com/teslashibe/rocky-hockey/pkg/tracking/detection"
	"github.com/teslashibe/rocky-hockey/pkg/web"
)

// ErrResolutionFixed is returned when the dashboard tries to change the
// capture resolution of a running source.
var ErrResolutionFixed = errors.New("rink: capture resolution cannot change while running")

// App owns every component and their lifecycle.
type App struct {
	config config.Config

	source    *camera.Source
	camera    *camera.Manager
	rectifier *calibration.Rectifier
	locator   *detection.HSVLocator

	dispatcher *robot.Dispatcher
	commander  *robot.Commander

	tracker  *tracking.Tracker
	journal  *journal.Store
	web      *web.Server
	streamer *overlay.Streamer

	shutdownOnce sync.Once
	logger       *slog.Logger
}

// New validates cfg and returns an uninitialized app.
func New(cfg config.Config) (*App, error) {
	cfg.AlignFrameWidth()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &App{config: cfg, logger: log.Component("rink")}, nil
}

// Init opens the camera and the stage link and builds the pipeline.
// A missing stage is not fatal: the app runs with moves discarded.
func (a *App) Init() error {
	cfg := a.config

	src, err := camera.Open(cfg.Camera)
	if err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	a.source = src
	a.camera = camera.NewManager(cfg.Camera)
	a.camera.OnConfigChange = a.applyCamera

	a.dispatcher = robot.NewDispatcher(a.connectStage())
	a.commander = robot.NewCommander(cfg.Commander, a.dispatcher)

	a.rectifier = calibration.NewRectifier()
	a.locator = detection.NewHSVLocator(cfg.Detector)

	a.tracker = tracking.New(cfg.Tracking, a.source, a.locator, a.rectifier, a.commander)
	if err := a.tracker.SetTuningParams(tracking.TuningParams{
		PuckRange:  cfg.Colors.Puck,
		RobotRange: cfg.Colors.Robot,
		Armed:      cfg.Armed,
	}); err != nil {
		return fmt.Errorf("tuning: %w", err)
	}

	if cfg.Journal.Enabled {
		store, err := journal.Open(cfg.Journal)
		if err != nil {
			a.logger.Warn("journal unavailable, episodes will not be recorded", "err", err)
		} else {
			a.journal = store
			a.tracker.SetRecorder(store)
			a.dispatcher.OnResult = store.RecordCommand
		}
	}

	if cfg.Web.Enabled {
		deps := web.Deps{
			Tracker:    a.tracker,
			Corners:    a.rectifier,
			Commander:  a.commander,
			Dispatcher: a.dispatcher,
			Camera:     a.camera,
		}
		if a.journal != nil {
			deps.Journal = a.journal
		}
		a.web = web.NewServer(cfg.Web, deps)
		a.streamer = overlay.NewStreamer(cfg.Tracking, cfg.Stream, a.web)
		a.tracker.SetPublisher(a.web)
		a.tracker.SetFrameSink(a.streamer)
	}

	a.logger.Info("initialized",
		"camera", cfg.Camera.Device,
		"frame_width", cfg.Tracking.FrameWidth,
		"serial", cfg.Serial.Port,
		"degraded", a.dispatcher.Degraded(),
		"armed", cfg.Armed,
		"web", cfg.Web.Enabled)
	return nil
}

// connectStage opens the serial link, or returns nil so the dispatcher
// runs degraded.
func (a *App) connectStage() robot.Link {
	link, err := robot.Connect(a.config.Serial)
	if err != nil {
		ports, _ := robot.ListPorts()
		a.logger.Error("stage link unavailable, moves will be discarded",
			"port", a.config.Serial.Port, "err", err, "available", ports)
		return nil
	}
	return link
}

func (a *App) applyCamera(cfg camera.Config) error {
	cur := a.camera.GetConfig()
	if cfg.Width != cur.Width || cfg.Height != cur.Height || cfg.Device != cur.Device {
		return ErrResolutionFixed
	}
	return a.source.Reconfigure(cfg)
}

// Run starts capture and serves until ctx is done or the camera stops.
// A stopped camera is returned as an error.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.source.Start(); err != nil {
		return err
	}
	a.dispatcher.Start(ctx)

	if a.web != nil {
		go func() {
			if err := a.web.Run(ctx); err != nil {
				a.logger.Error("dashboard stopped", "err", err)
			}
		}()
		a.web.AddLog("info", "rocky hockey started")
	}

	err := a.tracker.Run(ctx)
	if err != nil && a.web != nil {
		a.web.AddLog("error", "camera stopped: "+err.Error())
	}
	return err
}

// Shutdown stops every component. Safe to call more than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		if a.source != nil {
			a.source.Stop()
		}
		if a.dispatcher != nil {
			a.dispatcher.Stop()
			if err := a.dispatcher.Close(); err != nil {
				a.logger.Warn("closing stage link", "err", err)
			}
		}
		if a.journal != nil {
			if err := a.journal.Close(); err != nil {
				a.logger.Warn("closing journal", "err", err)
			}
		}
		if a.streamer != nil {
			a.streamer.Close()
		}
		if a.locator != nil {
			a.locator.Close()
		}
		if a.rectifier != nil {
			a.rectifier.Close()
		}
		a.logger.Info("shut down")
	})
}
