package robot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/rocky-hockey/internal/log"
)

// Controller replies.
const (
	replyOK = "OK"
)

// inputFlusher is implemented by go.bug.st/serial ports.
type inputFlusher interface {
	ResetInputBuffer() error
}

// StepperLink speaks the stage controller's line protocol:
//
//	<x>,<y>\n           absolute move
//	OFFSETX<sign><n>\n  trim X zero point
//	OFFSETY<sign><n>\n  trim Y zero point
//	CALIBRATE\n         home both axes, answers OK
//
// Every command is answered by one line. Calls are serialized.
type StepperLink struct {
	port   Port
	cfg    LinkConfig
	logger *slog.Logger

	mu    sync.Mutex
	buf   []byte
	chunk []byte

	// idle pause when a read returns nothing
	poll time.Duration
}

// NewStepperLink wraps an already open port.
func NewStepperLink(port Port, cfg LinkConfig) *StepperLink {
	norm, err := cfg.Normalize()
	if err != nil {
		norm = DefaultLinkConfig()
	}
	return &StepperLink{
		port:   port,
		cfg:    norm,
		logger: log.Component("stepper"),
		chunk:  make([]byte, 128),
		poll:   time.Millisecond,
	}
}

// Connect opens the serial port, waits for the controller to finish its
// reset, and discards whatever it printed while booting.
func Connect(cfg LinkConfig) (*StepperLink, error) {
	port, err := OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	link := NewStepperLink(port, cfg)
	if err := link.settle(); err != nil {
		port.Close()
		return nil, err
	}
	link.logger.Info("stepper link ready", "port", link.cfg.Port, "baud", link.cfg.BaudRate)
	return link, nil
}

func (l *StepperLink) settle() error {
	if l.cfg.ResetDelay > 0 {
		time.Sleep(l.cfg.ResetDelay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.discardInput()
}

// discardInput drops buffered bytes and whatever the port has received
// but not yet delivered. Callers hold mu.
func (l *StepperLink) discardInput() error {
	l.buf = l.buf[:0]
	if f, ok := l.port.(inputFlusher); ok {
		if err := f.ResetInputBuffer(); err != nil {
			return &LinkError{Op: "flush", Err: err}
		}
	}
	return nil
}

// MoveTo sends an absolute move and waits for the reply line.
func (l *StepperLink) MoveTo(x, y int) error {
	_, err := l.exchange(fmt.Sprintf("%d,%d\n", x, y), l.cfg.ReadTimeout)
	return err
}

// SetOffset trims the zero point. Zero axes are not sent; Y goes first.
func (l *StepperLink) SetOffset(x, y int) error {
	if y != 0 {
		if _, err := l.exchange(offsetLine('Y', y), l.cfg.ReadTimeout); err != nil {
			return err
		}
	}
	if x != 0 {
		if _, err := l.exchange(offsetLine('X', x), l.cfg.ReadTimeout); err != nil {
			return err
		}
	}
	return nil
}

// Calibrate homes the stage and waits for OK.
func (l *StepperLink) Calibrate() error {
	reply, err := l.exchange("CALIBRATE\n", l.cfg.HomingTimeout)
	if err != nil {
		return err
	}
	if reply != replyOK {
		return fmt.Errorf("%w: calibrate answered %q", ErrUnexpectedReply, reply)
	}
	return nil
}

// Close closes the port.
func (l *StepperLink) Close() error {
	return l.port.Close()
}

func offsetLine(axis byte, v int) string {
	sign := byte('+')
	if v < 0 {
		sign = '-'
		v = -v
	}
	return fmt.Sprintf("OFFSET%c%c%d\n", axis, sign, v)
}

func (l *StepperLink) exchange(line string, timeout time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// A reply that arrived after its command timed out must not be taken
	// as the answer to this one.
	if err := l.discardInput(); err != nil {
		return "", err
	}

	if _, err := io.WriteString(l.port, line); err != nil {
		return "", &LinkError{Op: "write", Err: err}
	}
	l.logger.Debug("sent", "cmd", strings.TrimSpace(line))

	reply, err := l.readLine(timeout)
	if err != nil {
		return "", err
	}
	l.logger.Debug("reply", "line", reply)
	return reply, nil
}

func (l *StepperLink) readLine(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		if i := bytes.IndexByte(l.buf, '\n'); i >= 0 {
			line := strings.TrimSpace(string(l.buf[:i]))
			l.buf = append(l.buf[:0], l.buf[i+1:]...)
			return line, nil
		}
		if time.Now().After(deadline) {
			return "", ErrTimeout
		}

		n, err := l.port.Read(l.chunk)
		if n > 0 {
			l.buf = append(l.buf, l.chunk[:n]...)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", &LinkError{Op: "read", Err: err}
		}
		if n == 0 {
			time.Sleep(l.poll)
		}
	}
}
