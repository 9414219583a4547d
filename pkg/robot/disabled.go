package robot

import (
	"sync"

	"github.com/teslashibe/rocky-hockey/internal/log"
)

// DisabledLink is a no-op Link used when no stage controller is reachable.
// The first command it swallows is reported once; the rest are silent.
type DisabledLink struct {
	reason string
	once   sync.Once
}

// NewDisabledLink returns a link that discards everything.
func NewDisabledLink(reason string) *DisabledLink {
	return &DisabledLink{reason: reason}
}

func (d *DisabledLink) note() {
	d.once.Do(func() {
		log.Warn("actuator unavailable, discarding commands", "reason", d.reason)
	})
}

func (d *DisabledLink) MoveTo(x, y int) error { d.note(); return nil }
func (d *DisabledLink) Calibrate() error { d.note(); return nil }
func (d *DisabledLink) SetOffset(x, y int) error { d.note(); return nil }
func (d *DisabledLink) Close() error { return nil }

// Reason returns why the link is disabled.
func (d *DisabledLink) Reason() string {
	return d.reason
}
