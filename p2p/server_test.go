package p2p

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNodeRequiresGameName(t *testing.T) {
	if _, err := NewNode(NodeConfig{}, NewMemoryNetwork()); err == nil {
		t.Error("want an error without a game name")
	}
}

func TestNodeStartRetriesAfterFailure(t *testing.T) {
	network := NewMemoryNetwork()

	guest, err := NewNode(NodeConfig{GameName: "retry", Role: RoleGuest}, network)
	if err != nil {
		t.Fatal(err)
	}
	defer guest.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// nobody hosts yet
	if err := guest.Start(ctx); !errors.Is(err, ErrConnectionFailure) {
		t.Fatalf("want this [%v] but got [%v]", ErrConnectionFailure, err)
	}
	if guest.Session.State() != StateIdle {
		t.Fatalf("want this [IDLE] but got [%s]", guest.Session.State())
	}

	host, err := NewNode(NodeConfig{GameName: "retry", Role: RoleHost}, network)
	if err != nil {
		t.Fatal(err)
	}
	defer host.Close()

	hostDone := make(chan error, 1)
	go func() { hostDone <- host.Start(ctx) }()
	waitFor(t, "host listening", func() bool { return host.Session.State() == StateConnecting })

	guestDone := make(chan error, 1)
	go func() {
		for {
			err := guest.Start(ctx)
			if !errors.Is(err, ErrConnectionFailure) {
				guestDone <- err
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	waitFor(t, "both open", func() bool {
		return host.Session.State() == StateOpen && guest.Session.State() == StateOpen
	})

	// cancelling ends both nodes
	cancel()
	for _, done := range []chan error{guestDone, hostDone} {
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("want a clean stop but got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Start did not return")
		}
	}
	if host.Session.State() != StateClosed {
		t.Errorf("want this [CLOSED] but got [%s]", host.Session.State())
	}
}
