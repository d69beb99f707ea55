package p2p

import (
	"sync"
	"time"

	"DCardGame/protocol"

	"github.com/sirupsen/logrus"
)

// DefaultMoveInterval is the cadence for board moves during a drag.
const DefaultMoveInterval = 100 * time.Millisecond

// Throttle is a trailing-edge rate limiter around a send func. The first
// Submit in an idle window arms one timer; later submits only replace the
// pending message. When the timer fires the latest message is sent, so at
// most one send happens per interval and the last state is never lost.
type Throttle struct {
	interval time.Duration
	send     func(protocol.Message) error
	metrics  *Metrics

	// sendMu is held from taking the pending message until send returns, so
	// messages reach send in the order they were taken.
	sendMu sync.Mutex

	mu       sync.Mutex
	pending  protocol.Message
	timer    *time.Timer
	gen      uint64
	lastSent time.Time
	stopped  bool
}

func NewThrottle(interval time.Duration, send func(protocol.Message) error) *Throttle {
	if interval <= 0 {
		interval = DefaultMoveInterval
	}
	return &Throttle{
		interval: interval,
		send:     send,
	}
}

// Submit queues msg as the newest state.
func (t *Throttle) Submit(msg protocol.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	if t.pending != nil {
		t.metrics.coalesced()
	}
	t.pending = msg
	if t.timer == nil {
		t.arm(t.interval)
	}
}

// arm replaces the timer. Callers hold t.mu.
func (t *Throttle) arm(d time.Duration) {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(d, func() { t.fire(gen) })
}

// untilNext is how long to wait before the next send is allowed. Callers
// hold t.mu.
func (t *Throttle) untilNext() time.Duration {
	if t.lastSent.IsZero() {
		return 0
	}
	return t.interval - time.Since(t.lastSent)
}

// take removes the pending message and stamps the send time. Callers hold
// t.mu.
func (t *Throttle) take() protocol.Message {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	msg := t.pending
	t.pending = nil
	t.lastSent = time.Now()
	return msg
}

func (t *Throttle) fire(gen uint64) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	if t.stopped || gen != t.gen {
		t.mu.Unlock()
		return
	}
	if wait := t.untilNext(); wait > 0 {
		t.arm(wait)
		t.mu.Unlock()
		return
	}
	msg := t.take()
	t.mu.Unlock()

	t.deliver(msg)
}

// Flush sends the pending message now if a full interval has passed since
// the last send. Otherwise the message goes out as soon as the interval
// allows.
func (t *Throttle) Flush() {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	if t.stopped || t.pending == nil {
		t.mu.Unlock()
		return
	}
	if wait := t.untilNext(); wait > 0 {
		t.arm(wait)
		t.mu.Unlock()
		return
	}
	msg := t.take()
	t.mu.Unlock()

	t.deliver(msg)
}

func (t *Throttle) deliver(msg protocol.Message) {
	if msg == nil {
		return
	}
	if err := t.send(msg); err != nil {
		logrus.WithFields(logrus.Fields{
			"kind": msg.Kind(),
		}).Error("throttled send failed: ", err)
	}
}

// Stop cancels the pending send. A stopped throttle ignores Submit.
func (t *Throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	t.pending = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Pending reports whether a message is waiting for the timer.
func (t *Throttle) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}
