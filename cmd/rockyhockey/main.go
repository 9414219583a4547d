// Rocky Hockey - camera-guided air hockey defender.
// Watches the table, predicts where the puck will cross the defensive
// line and drives the stage there over serial.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/rocky-hockey/internal/config"
	"github.com/teslashibe/rocky-hockey/internal/log"
	"github.com/teslashibe/rocky-hockey/pkg/rink"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	log.Init(cfg.Log.Level)

	app, err := rink.New(cfg)
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(2)
	}

	if err := app.Init(); err != nil {
		log.Error("initialization failed", "err", err)
		app.Shutdown()
		os.Exit(1)
	}
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("stopped", "err", err)
		app.Shutdown()
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig() (config.Config, error) {
	path := flag.String("config", "", "Config file (default: ./rocky-hockey.yaml if present)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	port := flag.String("port", "", "Dashboard port")
	serialPort := flag.String("serial", "", "Serial device for the stage controller")
	cam := flag.Int("camera", -1, "Camera index")
	noWeb := flag.Bool("no-web", false, "Disable the dashboard")
	arm := flag.Bool("arm", false, "Start with automatic moves enabled")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		return cfg, err
	}

	if *debug {
		cfg.Log.Level = "debug"
	}
	if *port != "" {
		cfg.Web.Port = *port
	}
	if *serialPort != "" {
		cfg.Serial.Port = *serialPort
	}
	if *cam >= 0 {
		cfg.Camera.Device = *cam
	}
	if *noWeb {
		cfg.Web.Enabled = false
	}
	if *arm {
		cfg.Armed = true
	}
	return cfg, nil
}
