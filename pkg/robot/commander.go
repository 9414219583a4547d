package robot

import (
	"math"
	"sync"

	"github.com/teslashibe/rocky-hockey/pkg/geometry"
)

// CommanderConfig shapes positional commands before they are queued.
type CommanderConfig struct {
	TableMaxX   float64 `json:"table_max_x" mapstructure:"table_max_x"`
	BiasDivisor float64 `json:"bias_divisor" mapstructure:"bias_divisor"` // x += (x - center)/BiasDivisor
	LeadY       float64 `json:"lead_y" mapstructure:"lead_y"`             // subtracted from y
	Deadband    float64 `json:"deadband" mapstructure:"deadband"`         // per-axis, travel units
	HomeY       float64 `json:"home_y" mapstructure:"home_y"`             // where Calibrate parks the stage
}

// DefaultCommanderConfig returns the tuning used on the table.
func DefaultCommanderConfig() CommanderConfig {
	return CommanderConfig{
		TableMaxX:   1885,
		BiasDivisor: 9,
		LeadY:       50,
		Deadband:    50,
		HomeY:       200,
	}
}

// CommanderStats counts what the commander did with its input.
type CommanderStats struct {
	Sent       uint64         `json:"sent"`
	Suppressed uint64         `json:"suppressed"`
	LastSent   geometry.Point `json:"last_sent"`
}

// Commander debounces positional commands in front of an Enqueuer. A move
// is dropped when it is within the deadband of the last move actually
// sent on both axes. The dispatcher behind it never deduplicates.
type Commander struct {
	cfg  CommanderConfig
	sink Enqueuer

	mu      sync.Mutex
	last    geometry.Point
	hasLast bool
	stats   CommanderStats
}

// NewCommander creates a commander feeding sink.
func NewCommander(cfg CommanderConfig, sink Enqueuer) *Commander {
	if cfg.BiasDivisor == 0 {
		cfg.BiasDivisor = DefaultCommanderConfig().BiasDivisor
	}
	return &Commander{cfg: cfg, sink: sink}
}

// Compensate applies the horizontal bias and vertical lead.
func (c *Commander) Compensate(p geometry.Point) geometry.Point {
	center := c.cfg.TableMaxX / 2
	return geometry.Pt(p.X+(p.X-center)/c.cfg.BiasDivisor, p.Y-c.cfg.LeadY)
}

// Move compensates p and queues it unless it falls inside the deadband.
// It reports whether a command was queued.
func (c *Commander) Move(p geometry.Point) bool {
	target := c.Compensate(p)

	c.mu.Lock()
	if c.hasLast &&
		math.Abs(target.X-c.last.X) < c.cfg.Deadband &&
		math.Abs(target.Y-c.last.Y) < c.cfg.Deadband {
		c.stats.Suppressed++
		c.mu.Unlock()
		return false
	}
	c.last = target
	c.hasLast = true
	c.stats.Sent++
	c.stats.LastSent = target
	c.mu.Unlock()

	c.sink.Enqueue(NewMove(target.X, target.Y))
	return true
}

// Calibrate queues homing followed by a move to the parking spot. Homing
// invalidates the last sent position, so the parking move always goes out.
func (c *Commander) Calibrate() {
	c.mu.Lock()
	c.hasLast = false
	c.mu.Unlock()

	c.sink.Enqueue(NewCalibrate())
	c.Move(geometry.Pt(c.cfg.TableMaxX/2, c.cfg.HomeY))
}

// Trim queues a zero-point offset. Offsets bypass the deadband.
func (c *Commander) Trim(x, y int) {
	c.sink.Enqueue(NewTrim(x, y))
}

// Stats returns a copy of the counters.
func (c *Commander) Stats() CommanderStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
