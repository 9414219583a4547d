package robot

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/rocky-hockey/internal/log"
	"github.com/teslashibe/rocky-hockey/internal/queue"
)

// Result reports how one command went.
type Result struct {
	Command  MoveCommand   `json:"command"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Enqueued  uint64 `json:"enqueued"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Pending   int    `json:"pending"`
	Degraded  bool   `json:"degraded"`
}

// Dispatcher runs commands against a Link on a single worker goroutine, in
// the order they were queued. Enqueue never blocks; the queue is unbounded.
// Each command blocks the worker until the link answers or times out.
type Dispatcher struct {
	logger *slog.Logger
	queue  *queue.Queue[MoveCommand]
	wake   chan struct{}

	mu       sync.Mutex
	link     Link
	degraded bool

	enqueued  atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	// OnResult is called on the worker goroutine after every command.
	// Set it before Start.
	OnResult func(Result)
}

var _ Enqueuer = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher for link. A nil link discards commands.
func NewDispatcher(link Link) *Dispatcher {
	d := &Dispatcher{
		logger: log.Component("dispatcher"),
		queue:  queue.New[MoveCommand](),
		wake:   make(chan struct{}, 1),
		link:   link,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if link == nil {
		d.link = NewDisabledLink("no link configured")
		d.degraded = true
	}
	return d
}

// Enqueue queues cmd for the worker.
func (d *Dispatcher) Enqueue(cmd MoveCommand) {
	d.queue.Push(cmd)
	d.enqueued.Add(1)
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Start launches the worker. It exits when ctx is done or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.started.Swap(true) {
		return
	}
	go d.run(ctx)
}

// Stop ends the worker and waits for it. Commands still queued are dropped.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
		if d.started.Load() {
			<-d.done
		}
		if n := d.queue.Len(); n > 0 {
			d.logger.Warn("dispatcher stopped with commands pending", "pending", n)
			d.queue.Clear()
		}
	})
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	degraded := d.degraded
	d.mu.Unlock()
	return Stats{
		Enqueued:  d.enqueued.Load(),
		Completed: d.completed.Load(),
		Failed:    d.failed.Load(),
		Pending:   d.queue.Len(),
		Degraded:  degraded,
	}
}

// Close releases the link. Call it after Stop.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.link.Close()
}

// Degraded reports whether commands are being discarded.
func (d *Dispatcher) Degraded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.degraded
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for {
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.stop:
				return
			default:
			}
			cmd, ok := d.queue.Pop()
			if !ok {
				break
			}
			d.execute(cmd)
		}

		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-d.wake:
		}
	}
}

func (d *Dispatcher) currentLink() Link {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.link
}

func (d *Dispatcher) execute(cmd MoveCommand) {
	link := d.currentLink()
	start := time.Now()

	var err error
	switch cmd.Kind {
	case Normal:
		err = link.MoveTo(cmd.X, cmd.Y)
	case Calibrate:
		err = link.Calibrate()
	case Trim:
		err = link.SetOffset(cmd.X, cmd.Y)
	}

	switch {
	case err == nil:
		d.completed.Add(1)
	case Recoverable(err):
		d.failed.Add(1)
		d.logger.Warn("command failed", "cmd", cmd.String(), "err", err)
	default:
		d.failed.Add(1)
		d.degrade(err)
	}

	if d.OnResult != nil {
		d.OnResult(Result{Command: cmd, Err: err, Duration: time.Since(start)})
	}
}

func (d *Dispatcher) degrade(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.degraded {
		return
	}
	d.logger.Error("actuator link lost, discarding further commands", "err", err)
	d.link.Close()
	disabled := NewDisabledLink(err.Error())
	disabled.once.Do(func() {})
	d.link = disabled
	d.degraded = true
}
