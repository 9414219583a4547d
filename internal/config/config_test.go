package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoad_DefaultValues(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 640, cfg.Camera.Width)
	assert.Equal(t, 2*time.Millisecond, cfg.Tracking.CycleInterval)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 2*time.Second, cfg.Serial.ResetDelay)
	assert.Equal(t, 19, cfg.Detector.BlurKernel)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_WithYAMLFile(t *testing.T) {
	path := writeFile(t, "rink.yaml", `
log:
  level: debug
camera:
  index: 2
  fps: 30
colors:
  puck:
    lower: {h: 40, s: 80, v: 80}
    upper: {h: 80, s: 255, v: 255}
tracking:
  defensive_line: 60
  cycle_interval: 5ms
serial:
  port: /dev/ttyUSB1
  read_timeout: 250ms
web:
  port: "9090"
armed: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Camera.Device)
	assert.Equal(t, 30, cfg.Camera.FPS)
	assert.Equal(t, 360, cfg.Camera.Height, "unset keys keep defaults")
	assert.Equal(t, 40.0, cfg.Colors.Puck.Lower.H)
	assert.Equal(t, 255.0, cfg.Colors.Puck.Upper.V)
	assert.Equal(t, 100.0, cfg.Colors.Robot.Lower.H)
	assert.Equal(t, 60.0, cfg.Tracking.DefensiveLine)
	assert.Equal(t, 5*time.Millisecond, cfg.Tracking.CycleInterval)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Serial.ReadTimeout)
	assert.Equal(t, "9090", cfg.Web.Port)
	assert.True(t, cfg.Armed)
}

func TestLoad_JSONFile(t *testing.T) {
	path := writeFile(t, "rink.json", `{"commander": {"deadband": 20}, "journal": {"enabled": false}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20.0, cfg.Commander.Deadband)
	assert.False(t, cfg.Journal.Enabled)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "rink.yaml", "camera:\n  fps: 30\n")
	t.Setenv("ROCKY_CAMERA_FPS", "90")
	t.Setenv("ROCKY_SERIAL_PORT", "/dev/ttyACM3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Camera.FPS)
	assert.Equal(t, "/dev/ttyACM3", cfg.Serial.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/rink.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read")
}

func TestLoad_SearchesWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rocky-hockey.yaml"), []byte("web:\n  port: \"7000\"\n"), 0644))
	chdir(t, dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Web.Port)
}

func TestValidate_CollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.Camera.FPS = 0
	cfg.Colors.Robot.Lower.H = 500
	cfg.Tracking.LostAfter = 0
	cfg.Serial.Parity = "Q"
	cfg.Commander.TableMaxX = 100

	err := cfg.Validate()
	require.Error(t, err)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.GreaterOrEqual(t, len(cerr.Problems), 5)
	assert.Contains(t, err.Error(), "serial: unsupported parity")
	assert.Contains(t, err.Error(), "colors.robot:")
}

func TestValidate_DisabledWebSkipsChecks(t *testing.T) {
	cfg := Default()
	cfg.Web.Enabled = false
	cfg.Web.Port = ""
	assert.NoError(t, cfg.Validate())
}

func TestAlignFrameWidth(t *testing.T) {
	cfg := Default()
	cfg.Camera.Width, cfg.Camera.Height = 1280, 720
	cfg.AlignFrameWidth()
	assert.Equal(t, 720.0, cfg.Tracking.FrameWidth)
}
