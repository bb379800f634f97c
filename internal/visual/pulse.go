// Package visual contains the two consumers of the frequency analyzer: a
// transient beat-pulse trigger and a frame renderer drawing frequency bars
// with a bass-reactive glow.
package visual

import (
	"sync"
	"time"
)

// PulseWindow is how long a pulse stays applied when no new beat
// retriggers it.
const PulseWindow = 120 * time.Millisecond

// PulseTrigger applies a short-lived visual state on every beat and clears
// it once beats stop arriving. The apply/clear functions are supplied by
// the embedding UI (toggling a style class, flashing a widget); the trigger
// only owns the timing.
type PulseTrigger struct {
	mu      sync.Mutex
	apply   func(intensity float64)
	clear   func()
	timer   *time.Timer
	active  bool
	stopped bool
}

// NewPulseTrigger creates a trigger with the given apply/clear callbacks.
// Either may be nil.
func NewPulseTrigger(apply func(intensity float64), clear func()) *PulseTrigger {
	return &PulseTrigger{
		apply: apply,
		clear: clear,
	}
}

// OnBeat applies the pulse state and (re)arms the auto-clear window.
// Intended to be registered as an analyzer beat callback.
func (p *PulseTrigger) OnBeat(intensity float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}

	p.active = true
	if p.apply != nil {
		p.apply(intensity)
	}

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(PulseWindow, p.expire)
}

func (p *PulseTrigger) expire() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active || p.stopped {
		return
	}
	p.active = false
	if p.clear != nil {
		p.clear()
	}
}

// Active reports whether the pulse state is currently applied.
func (p *PulseTrigger) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Stop cancels any pending auto-clear and clears the pulse state. After
// Stop no callback fires again; the trigger cannot be restarted.
func (p *PulseTrigger) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.stopped = true

	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.active {
		p.active = false
		if p.clear != nil {
			p.clear()
		}
	}
}
