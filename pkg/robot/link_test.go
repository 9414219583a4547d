package robot

import (
	"errors"
	"testing"
	"time"
)

func fastLinkConfig() LinkConfig {
	cfg := DefaultLinkConfig()
	cfg.ReadTimeout = 30 * time.Millisecond
	cfg.HomingTimeout = 30 * time.Millisecond
	cfg.ResetDelay = 0
	return cfg
}

func TestStepperLink_MoveTo(t *testing.T) {
	port := newScriptedPort("1042,250\n")
	link := NewStepperLink(port, fastLinkConfig())

	if err := link.MoveTo(1042, 250); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	if got := port.sent(); got != "1042,250\n" {
		t.Errorf("wire: got %q", got)
	}
}

func TestStepperLink_NegativeCoordinates(t *testing.T) {
	port := newScriptedPort("ok\n")
	link := NewStepperLink(port, fastLinkConfig())

	if err := link.MoveTo(-5, 0); err != nil {
		t.Fatal(err)
	}
	if got := port.sent(); got != "-5,0\n" {
		t.Errorf("wire: got %q", got)
	}
}

func TestStepperLink_ReplySplitAcrossReads(t *testing.T) {
	port := newScriptedPort("10,")
	link := NewStepperLink(port, fastLinkConfig())

	go func() {
		time.Sleep(5 * time.Millisecond)
		port.mu.Lock()
		port.pending.WriteString("20\r\n")
		port.mu.Unlock()
	}()

	if err := link.MoveTo(10, 20); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
}

func TestStepperLink_Timeout(t *testing.T) {
	port := newScriptedPort() // controller never answers
	link := NewStepperLink(port, fastLinkConfig())

	start := time.Now()
	err := link.MoveTo(1, 2)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("returned too early: %v", elapsed)
	}
	if !Recoverable(err) {
		t.Error("timeout should be recoverable")
	}
}

func TestStepperLink_LateReplyIgnored(t *testing.T) {
	port := newScriptedPort("", "reply-2\n")
	link := NewStepperLink(port, fastLinkConfig())

	if _, err := link.exchange("1,1\n", link.cfg.ReadTimeout); !errors.Is(err, ErrTimeout) {
		t.Fatalf("first: expected timeout, got %v", err)
	}

	// The controller answers the first command after it timed out.
	port.push("late-1\n")

	reply, err := link.exchange("2,2\n", link.cfg.ReadTimeout)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if reply != "reply-2" {
		t.Errorf("second command acknowledged by %q, want %q", reply, "reply-2")
	}
}

func TestStepperLink_SetOffset(t *testing.T) {
	tests := []struct {
		name    string
		x, y    int
		want    string
		replies int
	}{
		{"both axes, Y first", 5, -3, "OFFSETY-3\nOFFSETX+5\n", 2},
		{"x only", -12, 0, "OFFSETX-12\n", 1},
		{"y only", 0, 7, "OFFSETY+7\n", 1},
		{"nothing", 0, 0, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replies := make([]string, tt.replies)
			for i := range replies {
				replies[i] = "ok\n"
			}
			port := newScriptedPort(replies...)
			link := NewStepperLink(port, fastLinkConfig())

			if err := link.SetOffset(tt.x, tt.y); err != nil {
				t.Fatalf("SetOffset: %v", err)
			}
			if got := port.sent(); got != tt.want {
				t.Errorf("wire: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStepperLink_Calibrate(t *testing.T) {
	port := newScriptedPort("OK\n")
	link := NewStepperLink(port, fastLinkConfig())

	if err := link.Calibrate(); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if got := port.sent(); got != "CALIBRATE\n" {
		t.Errorf("wire: got %q", got)
	}

	port = newScriptedPort("ERR\n")
	link = NewStepperLink(port, fastLinkConfig())
	if err := link.Calibrate(); !errors.Is(err, ErrUnexpectedReply) {
		t.Errorf("expected ErrUnexpectedReply, got %v", err)
	}
}

func TestStepperLink_IOErrors(t *testing.T) {
	port := newScriptedPort()
	port.writeErr = errUnplugged
	link := NewStepperLink(port, fastLinkConfig())

	err := link.MoveTo(1, 1)
	var le *LinkError
	if !errors.As(err, &le) || le.Op != "write" {
		t.Fatalf("expected write LinkError, got %v", err)
	}
	if !errors.Is(err, errUnplugged) {
		t.Error("LinkError should unwrap to the cause")
	}
	if Recoverable(err) {
		t.Error("I/O errors are not recoverable")
	}

	port = newScriptedPort()
	port.readErr = errUnplugged
	link = NewStepperLink(port, fastLinkConfig())
	if err := link.MoveTo(1, 1); !errors.As(err, &le) || le.Op != "read" {
		t.Errorf("expected read LinkError, got %v", err)
	}
}

func TestStepperLink_SettleFlushes(t *testing.T) {
	port := newScriptedPort()
	port.pending.WriteString("boot banner\n")
	link := NewStepperLink(port, fastLinkConfig())

	if err := link.settle(); err != nil {
		t.Fatal(err)
	}
	if port.flushCalls != 1 {
		t.Errorf("flush calls: got %d, want 1", port.flushCalls)
	}
	if port.pending.Len() != 0 {
		t.Error("boot output should be discarded")
	}
}

func TestLinkConfig_Normalize(t *testing.T) {
	cfg, err := LinkConfig{Parity: "even"}.Normalize()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaudRate != 115200 || cfg.DataBits != 8 || cfg.StopBits != 1 || cfg.Parity != "E" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.ReadTimeout != time.Second {
		t.Errorf("read timeout: got %v", cfg.ReadTimeout)
	}

	bad := []LinkConfig{
		{DataBits: 9},
		{StopBits: 3},
		{Parity: "mark"},
	}
	for _, c := range bad {
		if _, err := c.Normalize(); err == nil {
			t.Errorf("expected error for %+v", c)
		}
	}
}

func TestLinkConfig_SerialMode(t *testing.T) {
	mode, err := LinkConfig{BaudRate: 9600, StopBits: 2, Parity: "O"}.SerialMode()
	if err != nil {
		t.Fatal(err)
	}
	if mode.BaudRate != 9600 || mode.DataBits != 8 {
		t.Errorf("mode: %+v", mode)
	}
}

func TestOpenPort_NoPort(t *testing.T) {
	if _, err := OpenPort(LinkConfig{}); !errors.Is(err, ErrNoPort) {
		t.Errorf("expected ErrNoPort, got %v", err)
	}
}

func TestDisabledLink(t *testing.T) {
	d := NewDisabledLink("test")
	if err := d.MoveTo(1, 2); err != nil {
		t.Error(err)
	}
	if err := d.Calibrate(); err != nil {
		t.Error(err)
	}
	if err := d.SetOffset(1, 1); err != nil {
		t.Error(err)
	}
	if d.Reason() != "test" {
		t.Errorf("reason: %q", d.Reason())
	}
}
