// Package config loads rocky-hockey settings from defaults, an optional
// config file and ROCKY_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/teslashibe/rocky-hockey/pkg/camera"
	"github.com/teslashibe/rocky-hockey/pkg/journal"
	"github.com/teslashibe/rocky-hockey/pkg/overlay"
	"github.com/teslashibe/rocky-hockey/pkg/robot"
	"github.com/teslashibe/rocky-hockey/pkg/tracking"
	"github.com/teslashibe/rocky-hockey/pkg/tracking/detection"
	"github.com/teslashibe/rocky-hockey/pkg/web"
)

// EnvPrefix prefixes environment overrides: camera.fps is ROCKY_CAMERA_FPS.
const EnvPrefix = "ROCKY"

// configName is searched for in the working directory and
// $HOME/.config/rocky-hockey when no path is given.
const configName = "rocky-hockey"

// LogConfig controls logging.
type LogConfig struct {
	Level string `json:"level" mapstructure:"level"`
}

// Colors holds the HSV ranges for both tracked objects.
type Colors struct {
	Puck  detection.ColorRange `json:"puck" mapstructure:"puck"`
	Robot detection.ColorRange `json:"robot" mapstructure:"robot"`
}

// Config is the complete service configuration.
type Config struct {
	Log       LogConfig             `json:"log" mapstructure:"log"`
	Camera    camera.Config         `json:"camera" mapstructure:"camera"`
	Detector  detection.Config      `json:"detector" mapstructure:"detector"`
	Colors    Colors                `json:"colors" mapstructure:"colors"`
	Tracking  tracking.Config       `json:"tracking" mapstructure:"tracking"`
	Serial    robot.LinkConfig      `json:"serial" mapstructure:"serial"`
	Commander robot.CommanderConfig `json:"commander" mapstructure:"commander"`
	Stream    overlay.StreamConfig  `json:"stream" mapstructure:"stream"`
	Web       web.Config            `json:"web" mapstructure:"web"`
	Journal   journal.Config        `json:"journal" mapstructure:"journal"`
	Armed     bool                  `json:"armed" mapstructure:"armed"` // start with automatic moves enabled
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:       LogConfig{Level: "info"},
		Camera:    camera.DefaultConfig(),
		Detector:  detection.DefaultConfig(),
		Colors:    Colors{Puck: detection.DefaultPuckRange(), Robot: detection.DefaultRobotRange()},
		Tracking:  tracking.DefaultConfig(),
		Serial:    robot.DefaultLinkConfig(),
		Commander: robot.DefaultCommanderConfig(),
		Stream:    overlay.DefaultStreamConfig(),
		Web:       web.DefaultConfig(),
		Journal:   journal.DefaultConfig(),
	}
}

// Error lists everything wrong with a loaded configuration.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "config: " + strings.Join(e.Problems, "; ")
}

// setDefaults registers every key so environment overrides apply to
// Unmarshal even when the file does not mention them.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log.level", d.Log.Level)

	v.SetDefault("camera.index", d.Camera.Device)
	v.SetDefault("camera.width", d.Camera.Width)
	v.SetDefault("camera.height", d.Camera.Height)
	v.SetDefault("camera.fps", d.Camera.FPS)
	v.SetDefault("camera.focus", d.Camera.Focus)
	v.SetDefault("camera.buffer_size", d.Camera.BufferSize)
	v.SetDefault("camera.flips", d.Camera.Flips)

	v.SetDefault("detector.blur_kernel", d.Detector.BlurKernel)

	setRange := func(prefix string, r detection.ColorRange) {
		v.SetDefault(prefix+".lower.h", r.Lower.H)
		v.SetDefault(prefix+".lower.s", r.Lower.S)
		v.SetDefault(prefix+".lower.v", r.Lower.V)
		v.SetDefault(prefix+".upper.h", r.Upper.H)
		v.SetDefault(prefix+".upper.s", r.Upper.S)
		v.SetDefault(prefix+".upper.v", r.Upper.V)
	}
	setRange("colors.puck", d.Colors.Puck)
	setRange("colors.robot", d.Colors.Robot)

	t := d.Tracking
	v.SetDefault("tracking.frame_width", t.FrameWidth)
	v.SetDefault("tracking.defensive_line", t.DefensiveLine)
	v.SetDefault("tracking.robot_max_y", t.RobotMaxY)
	v.SetDefault("tracking.table_max_x", t.TableMaxX)
	v.SetDefault("tracking.table_max_y", t.TableMaxY)
	v.SetDefault("tracking.noise_threshold", t.NoiseThreshold)
	v.SetDefault("tracking.left_threshold", t.LeftThreshold)
	v.SetDefault("tracking.safety_margin", t.SafetyMargin)
	v.SetDefault("tracking.reflection_coefficient", t.ReflectionCoefficient)
	v.SetDefault("tracking.wall_offset_factor", t.WallOffsetFactor)
	v.SetDefault("tracking.puck_min_radius", t.PuckMinRadius)
	v.SetDefault("tracking.puck_max_radius", t.PuckMaxRadius)
	v.SetDefault("tracking.robot_min_radius", t.RobotMinRadius)
	v.SetDefault("tracking.robot_max_radius", t.RobotMaxRadius)
	v.SetDefault("tracking.cycle_interval", t.CycleInterval)
	v.SetDefault("tracking.lost_after", t.LostAfter)

	s := d.Serial
	v.SetDefault("serial.port", s.Port)
	v.SetDefault("serial.baud_rate", s.BaudRate)
	v.SetDefault("serial.data_bits", s.DataBits)
	v.SetDefault("serial.stop_bits", s.StopBits)
	v.SetDefault("serial.parity", s.Parity)
	v.SetDefault("serial.read_timeout", s.ReadTimeout)
	v.SetDefault("serial.homing_timeout", s.HomingTimeout)
	v.SetDefault("serial.reset_delay", s.ResetDelay)

	c := d.Commander
	v.SetDefault("commander.table_max_x", c.TableMaxX)
	v.SetDefault("commander.bias_divisor", c.BiasDivisor)
	v.SetDefault("commander.lead_y", c.LeadY)
	v.SetDefault("commander.deadband", c.Deadband)
	v.SetDefault("commander.home_y", c.HomeY)

	v.SetDefault("stream.fps", d.Stream.FPS)
	v.SetDefault("stream.quality", d.Stream.Quality)

	v.SetDefault("web.enabled", d.Web.Enabled)
	v.SetDefault("web.port", d.Web.Port)
	v.SetDefault("web.static_dir", d.Web.StaticDir)
	v.SetDefault("web.telemetry_hz", d.Web.TelemetryHz)
	v.SetDefault("web.log_buffer", d.Web.LogBuffer)

	v.SetDefault("journal.enabled", d.Journal.Enabled)
	v.SetDefault("journal.path", d.Journal.Path)
	v.SetDefault("journal.buffer", d.Journal.Buffer)

	v.SetDefault("armed", d.Armed)
}

// Load reads the configuration. path names a YAML, JSON or TOML file; when
// empty, an optional rocky-hockey.* file is searched for instead.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/rocky-hockey")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// Validate checks every section and returns an *Error listing all problems.
func (c *Config) Validate() error {
	var problems []string
	add := func(section string, ps []string) {
		for _, p := range ps {
			problems = append(problems, section+": "+p)
		}
	}

	add("camera", c.Camera.Validate())
	add("colors.puck", c.Colors.Puck.Validate())
	add("colors.robot", c.Colors.Robot.Validate())
	add("tracking", c.Tracking.Validate())
	add("stream", c.Stream.Validate())
	if c.Web.Enabled {
		add("web", c.Web.Validate())
	}
	if _, err := c.Serial.Normalize(); err != nil {
		problems = append(problems, "serial: "+err.Error())
	}
	if c.Commander.TableMaxX != c.Tracking.TableMaxX {
		problems = append(problems, "commander: table_max_x must match tracking.table_max_x")
	}
	if c.Commander.BiasDivisor == 0 {
		problems = append(problems, "commander: bias_divisor must not be zero")
	}
	if c.Detector.BlurKernel < 1 {
		problems = append(problems, "detector: blur_kernel must be at least 1")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		problems = append(problems, "journal: path must be set")
	}

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

// AlignFrameWidth sets the tracking frame width from the camera: frames
// are rotated a quarter turn, so the frame width is the capture height.
func (c *Config) AlignFrameWidth() {
	width, _ := c.Camera.FrameSize()
	c.Tracking.FrameWidth = float64(width)
}
