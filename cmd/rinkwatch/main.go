// rinkwatch prints the defender's live telemetry in the terminal.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/rocky-hockey/internal/httpc"
	"github.com/teslashibe/rocky-hockey/internal/log"
	"github.com/teslashibe/rocky-hockey/pkg/journal"
	"github.com/teslashibe/rocky-hockey/pkg/web"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "Dashboard host:port")
	raw := flag.Bool("json", false, "Print raw JSON messages")
	debug := flag.Bool("debug", false, "Enable debug logging")
	summary := flag.Bool("summary", false, "Print the journal summary and exit")
	arm := flag.String("arm", "", "Arm (on) or disarm (off) the defender before watching")
	flag.Parse()

	if *debug {
		log.Init("debug")
	} else {
		log.Init("info")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	api := httpc.New("http://" + *addr)
	if *summary {
		if err := printSummary(ctx, api, os.Stdout); err != nil {
			log.Error("summary failed", "err", err)
			os.Exit(1)
		}
		return
	}
	if *arm != "" {
		if err := setArmed(ctx, api, *arm); err != nil {
			log.Error("arm failed", "err", err)
			os.Exit(1)
		}
	}

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws/telemetry"}
	watch(ctx, u.String(), *raw, os.Stdout)
}

func printSummary(ctx context.Context, api *httpc.Client, out io.Writer) error {
	var sum journal.Summary
	if err := api.GetJSON(ctx, "/api/summary", &sum); err != nil {
		return err
	}
	fmt.Fprintf(out, "episodes %d (bank %d, commanded %d)  commands %d (failed %d)\n",
		sum.Episodes, sum.Bounced, sum.Commanded, sum.Commands, sum.Failed)
	return nil
}

func setArmed(ctx context.Context, api *httpc.Client, state string) error {
	var armed bool
	switch state {
	case "on":
		armed = true
	case "off":
	default:
		return fmt.Errorf("-arm wants on or off, got %q", state)
	}
	return api.PostJSON(ctx, "/api/bot", web.BotRequest{Armed: armed}, nil)
}

// watch prints telemetry until ctx is done, reconnecting with backoff.
func watch(ctx context.Context, endpoint string, raw bool, out io.Writer) {
	backoff := 250 * time.Millisecond
	for {
		err := stream(ctx, endpoint, raw, out)
		if ctx.Err() != nil {
			return
		}
		log.Warn("telemetry connection lost", "endpoint", endpoint, "err", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}

func stream(ctx context.Context, endpoint string, raw bool, out io.Writer) error {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	log.Info("connected", "endpoint", endpoint)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if raw {
			fmt.Fprintln(out, string(data))
			continue
		}
		var t web.Telemetry
		if err := json.Unmarshal(data, &t); err != nil {
			log.Debug("skipping malformed message", "err", err)
			continue
		}
		fmt.Fprintln(out, format(t))
	}
}

// format renders one telemetry message as a status line.
func format(t web.Telemetry) string {
	s := t.Snapshot
	line := fmt.Sprintf("#%-7d %-9s %5.1ffps", s.Seq, s.Result.Phase, s.FPS)

	if s.Puck.Present() {
		line += fmt.Sprintf("  puck (%3.0f,%3.0f) r%-3.0f", s.Puck.X, s.Puck.Y, s.Puck.Radius)
	} else {
		line += "  puck -              "
	}
	if s.Robot.Present() {
		line += fmt.Sprintf("  paddle (%3.0f,%3.0f)", s.Robot.X, s.Robot.Y)
	} else {
		line += "  paddle -         "
	}

	if p := s.Result.Prediction; p.Made {
		line += fmt.Sprintf("  -> x=%.0f", p.Predicted.X)
		if p.Bounced {
			line += " (bank)"
		}
		if !p.InMargin {
			line += " (wide)"
		}
	}
	if s.MoveQueued {
		line += "  MOVE"
	}
	if s.Armed {
		line += "  armed"
	}
	if d := t.Dispatcher; d != nil {
		if d.Degraded {
			line += "  [stage offline]"
		} else if d.Pending > 0 {
			line += fmt.Sprintf("  [%d queued]", d.Pending)
		}
	}
	return line
}
