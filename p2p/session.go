package p2p

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"DCardGame/protocol"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrConnectionFailure wraps every error that ends a Connect attempt.
	// The session goes back to Idle; retrying is up to the caller.
	ErrConnectionFailure = errors.New("p2p: connection failure")

	ErrSessionBusy    = errors.New("p2p: session already connecting or open")
	ErrSessionNotOpen = errors.New("p2p: session not open")
	ErrSessionClosed  = errors.New("p2p: session closed")
)

// Session is the link between the two players of one game. It moves through
// Idle -> Connecting -> Open -> Closed and, once open, feeds every inbound
// frame to its dispatcher.
type Session struct {
	Name string
	Role Role

	rendezvous Rendezvous
	dispatcher *Dispatcher
	metrics    *Metrics
	tracer     trace.Tracer

	mu            sync.Mutex
	state         SessionState
	ch            Channel
	cancelConnect context.CancelFunc
	throttles     []*Throttle
	ready         chan struct{}
	done          chan struct{}
}

func NewSession(name string, role Role, rv Rendezvous, d *Dispatcher) *Session {
	s := &Session{
		Name:       name,
		Role:       role,
		rendezvous: rv,
		dispatcher: d,
		metrics:    d.metrics,
		tracer:     d.tracer,
		state:      StateIdle,
		ready:      make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.metrics.setState(StateIdle)
	return s
}

// LocalID is the rendezvous id this side claims.
func (s *Session) LocalID() string {
	return RendezvousID(s.Name, s.Role)
}

// RemoteID is the rendezvous id of the other side.
func (s *Session) RemoteID() string {
	return RendezvousID(s.Name, s.Role.Other())
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready is closed once the session is open.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) setState(st SessionState) {
	s.state = st
	s.metrics.setState(st)
}

// Connect links this session to its peer. A host waits for exactly one
// inbound link on its id; a guest dials the host's id. Connect blocks until
// the link is open, the attempt fails, ctx ends or Close is called.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		st := s.state
		s.mu.Unlock()
		if st == StateClosed {
			return ErrSessionClosed
		}
		return fmt.Errorf("%w: session is %s", ErrSessionBusy, st)
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancelConnect = cancel
	s.setState(StateConnecting)
	s.mu.Unlock()
	defer cancel()

	logrus.WithFields(logrus.Fields{
		"game":   s.Name,
		"role":   s.Role,
		"we":     s.LocalID(),
		"remote": s.RemoteID(),
	}).Info("connecting")

	var (
		ch  Channel
		err error
	)
	switch s.Role {
	case RoleHost:
		ch, err = s.rendezvous.Listen(ctx, s.LocalID())
	case RoleGuest:
		ch, err = s.rendezvous.Dial(ctx, s.LocalID(), s.RemoteID())
	default:
		err = fmt.Errorf("invalid role %d", s.Role)
	}

	s.mu.Lock()
	s.cancelConnect = nil
	if s.state == StateClosed {
		s.mu.Unlock()
		if ch != nil {
			ch.Close()
		}
		return ErrSessionClosed
	}
	if err != nil {
		s.setState(StateIdle)
		s.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"we": s.LocalID(),
		}).Error("connection failed: ", err)
		return fmt.Errorf("%w: %s as %s: %w", ErrConnectionFailure, s.Name, s.Role, err)
	}
	s.ch = ch
	s.setState(StateOpen)
	close(s.ready)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"we":     s.LocalID(),
		"remote": s.RemoteID(),
	}).Info("session open")

	go s.readLoop(ch)
	return nil
}

func (s *Session) readLoop(ch Channel) {
	for {
		frame, err := ch.Recv()
		if err != nil {
			if !errors.Is(err, ErrChannelClosed) && s.State() == StateOpen {
				logrus.WithFields(logrus.Fields{
					"we": s.LocalID(),
				}).Error("read error: ", err)
			}
			break
		}
		s.metrics.frameReceived(len(frame))
		// decode errors are logged and counted by the dispatcher
		s.dispatcher.Dispatch(frame)
	}

	if s.State() == StateOpen {
		logrus.WithFields(logrus.Fields{
			"we":     s.LocalID(),
			"remote": s.RemoteID(),
		}).Info("peer disconnected")
	}
	s.Close()
}

// Send encodes msg and writes it to the peer. Range errors come back
// synchronously from the codec.
func (s *Session) Send(msg protocol.Message) error {
	_, span := s.tracer.Start(context.Background(), "p2p.send",
		trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	frame, err := protocol.Encode(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode")
		return err
	}
	span.SetAttributes(
		attribute.String("event", msg.Kind().String()),
		attribute.Int("bytes", len(frame)),
	)

	if err := s.SendFrame(frame); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send")
		return err
	}
	s.metrics.frameSent(msg.Kind(), len(frame))

	logrus.WithFields(logrus.Fields{
		"we":      s.LocalID(),
		"payload": msg,
	}).Debug("sent message")
	return nil
}

// SendFrame writes an already encoded frame.
func (s *Session) SendFrame(frame []byte) error {
	s.mu.Lock()
	if s.state != StateOpen {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: session is %s", ErrSessionNotOpen, st)
	}
	ch := s.ch
	s.mu.Unlock()

	if err := ch.SendFrame(frame); err != nil {
		s.metrics.sendFailed()
		return err
	}
	return nil
}

// Throttle returns a rate limiter bound to Send. It is stopped when the
// session closes.
func (s *Session) Throttle(interval time.Duration) *Throttle {
	t := NewThrottle(interval, s.Send)
	t.metrics = s.metrics

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		t.Stop()
		return t
	}
	s.throttles = append(s.throttles, t)
	return t
}

// Close ends the session, cancelling any Connect in progress and every
// pending throttled send. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	prev := s.state
	s.setState(StateClosed)
	throttles := s.throttles
	s.throttles = nil
	ch := s.ch
	cancel := s.cancelConnect
	close(s.done)
	s.mu.Unlock()

	for _, t := range throttles {
		t.Stop()
	}
	if cancel != nil {
		cancel()
	}

	logrus.WithFields(logrus.Fields{
		"we":   s.LocalID(),
		"from": prev,
	}).Info("session closed")

	if ch != nil {
		return ch.Close()
	}
	return nil
}
