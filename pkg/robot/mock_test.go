package robot

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// scriptedPort is a Port whose controller answers each written line with
// the next scripted reply. An empty reply means "say nothing".
type scriptedPort struct {
	mu         sync.Mutex
	written    bytes.Buffer
	pending    bytes.Buffer
	replies    []string
	writeErr   error
	readErr    error
	closed     bool
	flushCalls int
}

func newScriptedPort(replies ...string) *scriptedPort {
	return &scriptedPort{replies: replies}
}

func (p *scriptedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written.Write(b)
	if len(p.replies) > 0 {
		p.pending.WriteString(p.replies[0])
		p.replies = p.replies[1:]
	}
	return len(b), nil
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr != nil {
		return 0, p.readErr
	}
	if p.pending.Len() == 0 {
		return 0, nil
	}
	return p.pending.Read(b)
}

func (p *scriptedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *scriptedPort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushCalls++
	p.pending.Reset()
	return nil
}

// push makes b readable as if the controller had printed it unprompted.
func (p *scriptedPort) push(b string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending.WriteString(b)
}

func (p *scriptedPort) sent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// recordingLink is a Link that records calls and can fail on demand.
type recordingLink struct {
	mu     sync.Mutex
	calls  []MoveCommand
	errs   map[int]error // call index -> error
	delay  time.Duration
	closed bool
}

func (l *recordingLink) record(cmd MoveCommand) error {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := len(l.calls)
	l.calls = append(l.calls, cmd)
	if err, ok := l.errs[idx]; ok {
		return err
	}
	return nil
}

func (l *recordingLink) MoveTo(x, y int) error {
	return l.record(MoveCommand{Kind: Normal, X: x, Y: y})
}

func (l *recordingLink) Calibrate() error {
	return l.record(MoveCommand{Kind: Calibrate})
}

func (l *recordingLink) SetOffset(x, y int) error {
	return l.record(MoveCommand{Kind: Trim, X: x, Y: y})
}

func (l *recordingLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *recordingLink) snapshot() []MoveCommand {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]MoveCommand, len(l.calls))
	copy(out, l.calls)
	return out
}

// captureSink is an Enqueuer that keeps what it is given.
type captureSink struct {
	mu   sync.Mutex
	cmds []MoveCommand
}

func (s *captureSink) Enqueue(cmd MoveCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmds = append(s.cmds, cmd)
}

func (s *captureSink) all() []MoveCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MoveCommand, len(s.cmds))
	copy(out, s.cmds)
	return out
}

var errUnplugged = errors.New("device unplugged")
