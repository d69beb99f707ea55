package p2p

import (
	"context"
	"errors"
	"sync"

	"DCardGame/protocol"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "DCardGame/p2p"

type subscription struct {
	id uint64
	fn Handler
}

// Dispatcher decodes inbound frames and fans each one out, in subscription
// order, to the handlers registered for its kind. It is owned by one node and
// lives as long as that node's session.
type Dispatcher struct {
	metrics *Metrics
	tracer  trace.Tracer

	mu       sync.RWMutex
	handlers map[protocol.MessageKind][]subscription
	nextID   uint64
}

func NewDispatcher(metrics *Metrics) *Dispatcher {
	return &Dispatcher{
		metrics:  metrics,
		tracer:   otel.Tracer(tracerName),
		handlers: make(map[protocol.MessageKind][]subscription),
	}
}

// Subscribe registers fn for kind and returns a func that removes it.
// Subscribing to an undeclared kind panics.
func (d *Dispatcher) Subscribe(kind protocol.MessageKind, fn Handler) (unsubscribe func()) {
	protocol.MustSchemaFor(kind)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.handlers[kind] = append(d.handlers[kind], subscription{id: id, fn: fn})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		subs := d.handlers[kind]
		for i, s := range subs {
			if s.id == id {
				d.handlers[kind] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Dispatch decodes frame and delivers it. A frame that fails to decode is
// logged, counted and dropped; the error is returned for the caller's
// information only and never reaches subscribers.
func (d *Dispatcher) Dispatch(frame []byte) error {
	_, span := d.tracer.Start(context.Background(), "p2p.dispatch",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	msg, err := protocol.Decode(frame)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, protocol.ErrUnknownTag) {
			reason = "unknown_tag"
		}
		d.metrics.frameDropped(reason)
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)

		logrus.WithFields(logrus.Fields{
			"len":    len(frame),
			"reason": reason,
		}).Error("dropping frame: ", err)
		return err
	}

	ev := NewEvent(msg)
	span.SetAttributes(attribute.String("event", ev.Name))

	d.mu.RLock()
	subs := append([]subscription(nil), d.handlers[ev.Kind]...)
	d.mu.RUnlock()

	logrus.WithFields(logrus.Fields{
		"event":       ev.Name,
		"subscribers": len(subs),
		"payload":     msg,
	}).Debug("dispatching event")

	for _, s := range subs {
		d.deliver(s, ev)
	}
	d.metrics.frameDispatched(ev.Kind)
	return nil
}

func (d *Dispatcher) deliver(s subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.handlerPanicked()
			logrus.WithFields(logrus.Fields{
				"event": ev.Name,
				"panic": r,
			}).Error("event handler panicked")
		}
	}()
	s.fn(ev)
}

// Close drops every subscriber.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = make(map[protocol.MessageKind][]subscription)
}

// Len returns the number of subscribers for kind.
func (d *Dispatcher) Len(kind protocol.MessageKind) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[kind])
}

func (d *Dispatcher) OnMoveObject(fn func(protocol.MoveObject)) func() {
	return d.Subscribe(protocol.KindMoveObject, func(ev Event) {
		fn(ev.Message.(protocol.MoveObject))
	})
}

func (d *Dispatcher) OnTap(fn func(protocol.Tap)) func() {
	return d.Subscribe(protocol.KindTap, func(ev Event) {
		fn(ev.Message.(protocol.Tap))
	})
}

func (d *Dispatcher) OnUntap(fn func(protocol.Untap)) func() {
	return d.Subscribe(protocol.KindUntap, func(ev Event) {
		fn(ev.Message.(protocol.Untap))
	})
}

func (d *Dispatcher) OnDrawToHand(fn func(protocol.DrawToHand)) func() {
	return d.Subscribe(protocol.KindDrawToHand, func(ev Event) {
		fn(ev.Message.(protocol.DrawToHand))
	})
}

func (d *Dispatcher) OnDraw7(fn func(protocol.Draw7)) func() {
	return d.Subscribe(protocol.KindDraw7, func(ev Event) {
		fn(ev.Message.(protocol.Draw7))
	})
}

func (d *Dispatcher) OnShareDeckGUID(fn func(protocol.ShareDeckGUID)) func() {
	return d.Subscribe(protocol.KindShareDeckGUID, func(ev Event) {
		fn(ev.Message.(protocol.ShareDeckGUID))
	})
}

func (d *Dispatcher) OnRequestDeckGUID(fn func(protocol.RequestDeckGUID)) func() {
	return d.Subscribe(protocol.KindRequestDeckGUID, func(ev Event) {
		fn(ev.Message.(protocol.RequestDeckGUID))
	})
}
