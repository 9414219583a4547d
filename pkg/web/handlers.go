package web

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/rocky-hockey/pkg/camera"
	"github.com/teslashibe/rocky-hockey/pkg/geometry"
	"github.com/teslashibe/rocky-hockey/pkg/hub"
	"github.com/teslashibe/rocky-hockey/pkg/tracking"
	"github.com/teslashibe/rocky-hockey/pkg/tracking/detection"
)

const defaultListLimit = 50

var errNotWired = fiber.NewError(fiber.StatusServiceUnavailable, "not available")

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Telemetry
	Tuning         tracking.TuningParams `json:"tuning"`
	CornersApplied bool                  `json:"corners_applied"`
	Corners        []geometry.Point      `json:"corners"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.deps.Tracker == nil {
		return errNotWired
	}
	resp := StatusResponse{
		Telemetry: s.telemetry(s.deps.Tracker.Last()),
		Tuning:    s.deps.Tracker.GetTuningParams(),
	}
	if s.deps.Corners != nil {
		resp.CornersApplied = s.deps.Corners.Applied()
		resp.Corners = s.deps.Corners.Corners()
	}
	return c.JSON(resp)
}

func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	return c.JSON(s.Logs())
}

func (s *Server) handleGetColors(c *fiber.Ctx) error {
	if s.deps.Tracker == nil {
		return errNotWired
	}
	r, err := s.deps.Tracker.ColorRange(c.Params("target"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return c.JSON(r)
}

func (s *Server) handleSetColors(c *fiber.Ctx) error {
	if s.deps.Tracker == nil {
		return errNotWired
	}
	target := c.Params("target")

	var r detection.ColorRange
	if err := c.BodyParser(&r); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid color range")
	}
	if err := s.deps.Tracker.SetColorRange(target, r); err != nil {
		if errors.Is(err, tracking.ErrUnknownTarget) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	s.AddLog("info", fmt.Sprintf("%s color range set to %v-%v", target, r.Lower, r.Upper))
	return c.JSON(r)
}

// BotRequest arms or disarms automatic moves.
type BotRequest struct {
	Armed bool `json:"armed"`
}

func (s *Server) handleSetBot(c *fiber.Ctx) error {
	if s.deps.Tracker == nil {
		return errNotWired
	}
	var req BotRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	s.deps.Tracker.SetArmed(req.Armed)
	if req.Armed {
		s.AddLog("info", "bot armed")
	} else {
		s.AddLog("info", "bot disarmed")
	}
	return c.JSON(req)
}

func (s *Server) cornersResponse(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"corners": s.deps.Corners.Corners(),
		"applied": s.deps.Corners.Applied(),
	})
}

func (s *Server) handleGetCorners(c *fiber.Ctx) error {
	if s.deps.Corners == nil {
		return errNotWired
	}
	return s.cornersResponse(c)
}

func (s *Server) handleAddCorner(c *fiber.Ctx) error {
	if s.deps.Corners == nil {
		return errNotWired
	}
	var p geometry.Point
	if err := c.BodyParser(&p); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid point")
	}
	return s.addCorner(c, p)
}

func (s *Server) handleApplyCorners(c *fiber.Ctx) error {
	if s.deps.Corners == nil {
		return errNotWired
	}
	if err := s.deps.Corners.Apply(); err != nil {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	s.AddLog("calibration", "rectification applied")
	return s.cornersResponse(c)
}

func (s *Server) handleResetCorners(c *fiber.Ctx) error {
	if s.deps.Corners == nil {
		return errNotWired
	}
	s.deps.Corners.Reset()
	s.AddLog("calibration", "rectification reset")
	return s.cornersResponse(c)
}

// ClickRequest is a click on the camera image, in frame pixels.
type ClickRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button string  `json:"button"` // "left" adds a corner, "right" moves the defender there
}

func (s *Server) handleClick(c *fiber.Ctx) error {
	var req ClickRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid click")
	}
	p := geometry.Pt(req.X, req.Y)

	switch req.Button {
	case "left", "":
		return s.addCorner(c, p)
	case "right":
		if s.deps.Tracker == nil || s.deps.Commander == nil {
			return errNotWired
		}
		target := s.deps.Tracker.Axes().ToTravel(p)
		sent := s.deps.Commander.Move(target)
		s.AddLog("command", fmt.Sprintf("click move to (%.0f, %.0f)", target.X, target.Y))
		return c.JSON(fiber.Map{"target": target, "sent": sent})
	default:
		return fiber.NewError(fiber.StatusBadRequest, "button must be left or right")
	}
}

func (s *Server) addCorner(c *fiber.Ctx, p geometry.Point) error {
	if s.deps.Corners == nil {
		return errNotWired
	}
	if err := s.deps.Corners.AddCorner(p); err != nil {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	s.AddLog("calibration", fmt.Sprintf("corner %d at (%.0f, %.0f)", len(s.deps.Corners.Corners()), p.X, p.Y))
	return s.cornersResponse(c)
}

// MoveRequest is a manual move in stage travel units.
type MoveRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (s *Server) handleMove(c *fiber.Ctx) error {
	if s.deps.Commander == nil {
		return errNotWired
	}
	var req MoveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid move")
	}
	sent := s.deps.Commander.Move(geometry.Pt(req.X, req.Y))
	s.AddLog("command", fmt.Sprintf("move to (%.0f, %.0f)", req.X, req.Y))
	return c.JSON(fiber.Map{"sent": sent})
}

func (s *Server) handleCalibrate(c *fiber.Ctx) error {
	if s.deps.Commander == nil {
		return errNotWired
	}
	if s.deps.Dispatcher != nil && s.deps.Dispatcher.Stats().Degraded {
		s.AddLog("warn", "cannot calibrate: stage controller not connected")
		return fiber.NewError(fiber.StatusServiceUnavailable, "stage controller not connected")
	}
	s.deps.Commander.Calibrate()
	s.AddLog("command", "calibrate")
	return c.SendStatus(fiber.StatusAccepted)
}

// OffsetRequest trims the stage zero point.
type OffsetRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (s *Server) handleOffset(c *fiber.Ctx) error {
	if s.deps.Commander == nil {
		return errNotWired
	}
	var req OffsetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid offset")
	}
	if req.X == 0 && req.Y == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "offset must be non-zero")
	}
	s.deps.Commander.Trim(req.X, req.Y)
	s.AddLog("command", fmt.Sprintf("offset x=%+d y=%+d", req.X, req.Y))
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.deps.Camera == nil {
		return errNotWired
	}
	return c.JSON(s.deps.Camera.GetConfig())
}

func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	if s.deps.Camera == nil {
		return errNotWired
	}
	var patch camera.Patch
	if err := c.BodyParser(&patch); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid camera settings")
	}
	cfg, err := s.deps.Camera.Update(patch)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	s.AddLog("info", fmt.Sprintf("camera settings updated: %dx%d@%d", cfg.Width, cfg.Height, cfg.FPS))
	return c.JSON(cfg)
}

func (s *Server) handleCameraPresets(c *fiber.Ctx) error {
	return c.JSON(camera.PresetNames())
}

func (s *Server) handleEpisodes(c *fiber.Ctx) error {
	if s.deps.Journal == nil {
		return errNotWired
	}
	eps, err := s.deps.Journal.RecentEpisodes(c.UserContext(), c.QueryInt("limit", defaultListLimit))
	if err != nil {
		return err
	}
	return c.JSON(eps)
}

func (s *Server) handleCommands(c *fiber.Ctx) error {
	if s.deps.Journal == nil {
		return errNotWired
	}
	cmds, err := s.deps.Journal.RecentCommands(c.UserContext(), c.QueryInt("limit", defaultListLimit))
	if err != nil {
		return err
	}
	return c.JSON(cmds)
}

func (s *Server) handleSummary(c *fiber.Ctx) error {
	if s.deps.Journal == nil {
		return errNotWired
	}
	sum, err := s.deps.Journal.Summarize(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(sum)
}

func (s *Server) handleTelemetryWS(c *websocket.Conn) {
	if s.deps.Tracker != nil {
		c.WriteJSON(s.telemetry(s.deps.Tracker.Last()))
	}
	hub.NewClient(s.telemetryHub, c).Run()
}

func (s *Server) handleLogsWS(c *websocket.Conn) {
	for _, entry := range s.Logs() {
		c.WriteJSON(entry)
	}
	hub.NewClient(s.logHub, c).Run()
}

func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}
