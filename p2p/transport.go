package p2p

import (
	"context"
	"errors"
)

var (
	// ErrChannelClosed is returned by SendFrame and Recv on a closed channel.
	ErrChannelClosed = errors.New("p2p: channel closed")

	// ErrPeerUnavailable means no one is listening on the dialed id.
	ErrPeerUnavailable = errors.New("p2p: peer unavailable")

	// ErrIDTaken means another peer already listens on the id.
	ErrIDTaken = errors.New("p2p: rendezvous id already taken")
)

// Channel is an open link to exactly one remote peer that carries whole
// frames in both directions, FIFO.
type Channel interface {
	SendFrame(frame []byte) error
	// Recv blocks until the next frame arrives. It returns an error once the
	// link is gone.
	Recv() ([]byte, error)
	Close() error
}

// Rendezvous lets two peers find each other by string ids alone.
type Rendezvous interface {
	// Listen claims localID and waits for exactly one inbound link.
	Listen(ctx context.Context, localID string) (Channel, error)
	// Dial links localID to whoever listens on remoteID.
	Dial(ctx context.Context, localID, remoteID string) (Channel, error)
}
