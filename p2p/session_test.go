package p2p

import (
	"context"
	"errors"
	"testing"
	"time"

	"DCardGame/protocol"
)

// connectPair opens a host and a guest session for name over rv.
func connectPair(t *testing.T, name string, rv Rendezvous) (host, guest *Session) {
	t.Helper()

	host = NewSession(name, RoleHost, rv, NewDispatcher(nil))
	guest = NewSession(name, RoleGuest, rv, NewDispatcher(nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- host.Connect(ctx) }()

	// the host may not be listening yet
	for {
		err := guest.Connect(ctx)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrConnectionFailure) || ctx.Err() != nil {
			t.Fatalf("guest connect: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := <-errc; err != nil {
		t.Fatalf("host connect: %v", err)
	}

	t.Cleanup(func() {
		host.Close()
		guest.Close()
	})
	return host, guest
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionExchangesMoveObject(t *testing.T) {
	host, guest := connectPair(t, "game1", NewMemoryNetwork())

	if host.State() != StateOpen || guest.State() != StateOpen {
		t.Fatalf("want both OPEN but got %s and %s", host.State(), guest.State())
	}

	got := make(chan Event, 1)
	guest.dispatcher.Subscribe(protocol.KindMoveObject, func(ev Event) { got <- ev })

	msg := protocol.MoveObject{ObjectID: 42, Zone: protocol.ZoneBoard, X: 100, Y: 200}
	if err := host.Send(msg); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-got:
		if ev.Name != "move_object" || ev.Message != msg {
			t.Errorf("want this [%+v] but got [%+v]", msg, ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("guest never got the move")
	}
}

func TestSessionPreservesOrder(t *testing.T) {
	host, guest := connectPair(t, "ordered", NewMemoryNetwork())

	got := make(chan uint16, 20)
	host.dispatcher.OnTap(func(m protocol.Tap) { got <- m.ObjectID })

	for i := uint16(0); i < 20; i++ {
		if err := guest.Send(protocol.Tap{ObjectID: i}); err != nil {
			t.Fatal(err)
		}
	}
	for i := uint16(0); i < 20; i++ {
		select {
		case id := <-got:
			if id != i {
				t.Fatalf("want this [%d] but got [%d]", i, id)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("missing tap %d", i)
		}
	}
}

func TestSessionIDs(t *testing.T) {
	s := NewSession("game1", RoleGuest, NewMemoryNetwork(), NewDispatcher(nil))
	if s.LocalID() != "game1-guest" || s.RemoteID() != "game1-host" {
		t.Errorf("want game1-guest -> game1-host but got %s -> %s", s.LocalID(), s.RemoteID())
	}
}

func TestSessionConnectFailureReturnsToIdle(t *testing.T) {
	guest := NewSession("nobody", RoleGuest, NewMemoryNetwork(), NewDispatcher(nil))
	defer guest.Close()

	err := guest.Connect(context.Background())
	if !errors.Is(err, ErrConnectionFailure) || !errors.Is(err, ErrPeerUnavailable) {
		t.Fatalf("want connection failure but got %v", err)
	}
	if guest.State() != StateIdle {
		t.Errorf("want this [IDLE] but got [%s]", guest.State())
	}
}

func TestSessionConnectBusy(t *testing.T) {
	host, _ := connectPair(t, "busy", NewMemoryNetwork())

	if err := host.Connect(context.Background()); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("want this [%v] but got [%v]", ErrSessionBusy, err)
	}
}

func TestSessionSendWhenNotOpen(t *testing.T) {
	s := NewSession("idle", RoleHost, NewMemoryNetwork(), NewDispatcher(nil))

	if err := s.Send(protocol.Draw7{}); !errors.Is(err, ErrSessionNotOpen) {
		t.Errorf("want this [%v] but got [%v]", ErrSessionNotOpen, err)
	}
	s.Close()
	if err := s.Send(protocol.Draw7{}); !errors.Is(err, ErrSessionNotOpen) {
		t.Errorf("want this [%v] but got [%v]", ErrSessionNotOpen, err)
	}
	if err := s.Connect(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("want this [%v] but got [%v]", ErrSessionClosed, err)
	}
}

func TestSessionSendRejectsOutOfRange(t *testing.T) {
	host, _ := connectPair(t, "range", NewMemoryNetwork())

	var rangeErr *protocol.FieldRangeError
	err := host.Send(protocol.Tap{ObjectID: protocol.MaxObjectID + 1})
	if !errors.As(err, &rangeErr) {
		t.Fatalf("want a range error but got %v", err)
	}
	if rangeErr.Field != "object_id" {
		t.Errorf("want field object_id but got %s", rangeErr.Field)
	}
}

func TestSessionCloseCancelsConnect(t *testing.T) {
	host := NewSession("lonely", RoleHost, NewMemoryNetwork(), NewDispatcher(nil))

	errc := make(chan error, 1)
	go func() { errc <- host.Connect(context.Background()) }()

	waitFor(t, "CONNECTING", func() bool { return host.State() == StateConnecting })
	host.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrSessionClosed) {
			t.Errorf("want this [%v] but got [%v]", ErrSessionClosed, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Connect did not return after Close")
	}
}

func TestSessionConnectContextCancel(t *testing.T) {
	host := NewSession("timeout", RoleHost, NewMemoryNetwork(), NewDispatcher(nil))
	defer host.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := host.Connect(ctx)
	if !errors.Is(err, ErrConnectionFailure) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want a deadline failure but got %v", err)
	}
	if host.State() != StateIdle {
		t.Errorf("want this [IDLE] but got [%s]", host.State())
	}
}

func TestSessionPeerCloseClosesBoth(t *testing.T) {
	host, guest := connectPair(t, "bye", NewMemoryNetwork())

	guest.Close()

	select {
	case <-host.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("host did not notice the guest leaving")
	}
	if host.State() != StateClosed {
		t.Errorf("want this [CLOSED] but got [%s]", host.State())
	}
}

func TestSessionCloseStopsThrottles(t *testing.T) {
	host, guest := connectPair(t, "drag", NewMemoryNetwork())

	got := make(chan protocol.MoveObject, 1)
	guest.dispatcher.OnMoveObject(func(m protocol.MoveObject) { got <- m })

	th := host.Throttle(30 * time.Millisecond)
	th.Submit(protocol.MoveObject{ObjectID: 1, X: 5, Y: 5})
	host.Close()

	select {
	case m := <-got:
		t.Errorf("want no send after Close but got [%+v]", m)
	case <-time.After(100 * time.Millisecond):
	}
	if th.Pending() {
		t.Error("want nothing pending after Close")
	}
}

func TestSessionReadyAndDone(t *testing.T) {
	host, _ := connectPair(t, "chans", NewMemoryNetwork())

	select {
	case <-host.Ready():
	default:
		t.Error("want Ready closed once open")
	}
	select {
	case <-host.Done():
		t.Error("want Done open while the session is open")
	default:
	}
}

func TestSessionDropsMalformedInbound(t *testing.T) {
	host, guest := connectPair(t, "garbage", NewMemoryNetwork())

	got := make(chan protocol.Tap, 1)
	guest.dispatcher.OnTap(func(m protocol.Tap) { got <- m })

	if err := host.SendFrame([]byte{0xFF, 0xFF}); err != nil {
		t.Fatal(err)
	}
	if err := host.Send(protocol.Tap{ObjectID: 3}); err != nil {
		t.Fatal(err)
	}

	select {
	case m := <-got:
		if m.ObjectID != 3 {
			t.Errorf("want this [3] but got [%d]", m.ObjectID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session stopped after a malformed frame")
	}
	if guest.State() != StateOpen {
		t.Errorf("want this [OPEN] but got [%s]", guest.State())
	}
}
