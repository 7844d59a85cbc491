// Package clipboard places finalized text on the system clipboard despite
// host-environment restrictions, falling through progressively more
// invasive methods until one succeeds.
package clipboard

import (
	"fmt"
	"log/slog"

	"github.com/atotto/clipboard"
)

// AttemptResult is the transient outcome of one delivery tier.
type AttemptResult struct {
	Tier string
	OK   bool
	Err  error
}

// tier is one delivery method. available is checked before write; a tier
// that is unavailable is skipped without counting as a failure.
type tier struct {
	name      string
	available func() bool
	write     func(text string) error
}

// Delivery attempts an ordered chain of clipboard tiers. The first success
// short-circuits the rest. Delivery never panics and never returns an
// error; the boolean outcome is the whole contract.
type Delivery struct {
	tiers []tier
	chime func()
}

// Option configures a Delivery.
type Option func(*Delivery)

// WithChime sets a confirmation sound played (on its own goroutine) after a
// successful delivery. Chime failures never affect the reported outcome.
func WithChime(chime func()) Option {
	return func(d *Delivery) { d.chime = chime }
}

// withTiers replaces the tier chain. Test hook.
func withTiers(tiers []tier) Option {
	return func(d *Delivery) { d.tiers = tiers }
}

// New creates a Delivery with the platform tier chain:
// native binding -> clipboard utility -> OSC 52 terminal escape.
func New(opts ...Option) *Delivery {
	d := &Delivery{
		tiers: []tier{
			{name: "native", available: nativeAvailable, write: nativeWrite},
			{name: "command", available: commandAvailable, write: commandWrite},
			{name: "osc52", available: osc52Available, write: osc52Write},
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver attempts each tier in order and reports whether any succeeded.
// Safe to call repeatedly: a retry is the same three-tier attempt.
func (d *Delivery) Deliver(text string) bool {
	ok, _ := d.deliver(text)
	return ok
}

// DeliverDetailed is Deliver plus the per-tier attempt log, for callers
// that surface a retry affordance.
func (d *Delivery) DeliverDetailed(text string) (bool, []AttemptResult) {
	return d.deliver(text)
}

func (d *Delivery) deliver(text string) (ok bool, attempts []AttemptResult) {
	for _, t := range d.tiers {
		if t.available != nil && !t.available() {
			continue
		}

		err := attempt(t, text)
		attempts = append(attempts, AttemptResult{Tier: t.name, OK: err == nil, Err: err})
		if err != nil {
			slog.Debug("clipboard tier failed", "tier", t.name, "error", err)
			continue
		}

		slog.Debug("clipboard delivered", "tier", t.name)
		if d.chime != nil {
			go d.chime()
		}
		return true, attempts
	}

	slog.Warn("clipboard delivery failed on all tiers", "tiers", len(attempts))
	return false, attempts
}

// attempt runs one tier's write. A panicking tier counts as that tier's
// failure so the chain still falls through to the next one.
func attempt(t tier, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("clipboard tier panicked", "tier", t.name, "panic", r)
			err = fmt.Errorf("tier %s panicked: %v", t.name, r)
		}
	}()
	return t.write(text)
}

// nativeAvailable reports whether the native clipboard binding can be used.
func nativeAvailable() bool {
	return !clipboard.Unsupported
}

// nativeWrite uses the platform clipboard binding directly.
func nativeWrite(text string) error {
	return clipboard.WriteAll(text)
}
