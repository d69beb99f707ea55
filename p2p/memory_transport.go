package p2p

import (
	"context"
	"fmt"
	"sync"
)

const memoryChannelBuffer = 64

// MemoryNetwork is an in-process Rendezvous. Both players of a solo table or
// a test share one network.
type MemoryNetwork struct {
	mu        sync.Mutex
	listeners map[string]chan *memoryChannel
}

func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{
		listeners: make(map[string]chan *memoryChannel),
	}
}

func (n *MemoryNetwork) Listen(ctx context.Context, localID string) (Channel, error) {
	n.mu.Lock()
	if _, taken := n.listeners[localID]; taken {
		n.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrIDTaken, localID)
	}
	accept := make(chan *memoryChannel, 1)
	n.listeners[localID] = accept
	n.mu.Unlock()

	select {
	case ch := <-accept:
		return ch, nil
	case <-ctx.Done():
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listeners[localID] == accept {
		delete(n.listeners, localID)
	}
	// Dial hands off under n.mu, so a dialer that won the race has already
	// queued its channel here.
	select {
	case ch := <-accept:
		ch.Close()
	default:
	}
	return nil, ctx.Err()
}

func (n *MemoryNetwork) Dial(ctx context.Context, localID, remoteID string) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	accept, ok := n.listeners[remoteID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPeerUnavailable, remoteID)
	}
	delete(n.listeners, remoteID)

	// accept holds one and only this dialer sees it, so the send never blocks
	local, remote := memoryPipe()
	accept <- remote
	return local, nil
}

type memoryChannel struct {
	in   <-chan []byte
	out  chan<- []byte
	done chan struct{}
	once *sync.Once
}

func memoryPipe() (*memoryChannel, *memoryChannel) {
	ab := make(chan []byte, memoryChannelBuffer)
	ba := make(chan []byte, memoryChannelBuffer)
	done := make(chan struct{})
	once := &sync.Once{}

	return &memoryChannel{in: ba, out: ab, done: done, once: once},
		&memoryChannel{in: ab, out: ba, done: done, once: once}
}

func (c *memoryChannel) SendFrame(frame []byte) error {
	cp := append([]byte(nil), frame...)
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}
	select {
	case c.out <- cp:
		return nil
	case <-c.done:
		return ErrChannelClosed
	}
}

func (c *memoryChannel) Recv() ([]byte, error) {
	select {
	case f := <-c.in:
		return f, nil
	default:
	}
	select {
	case f := <-c.in:
		return f, nil
	case <-c.done:
		return nil, ErrChannelClosed
	}
}

func (c *memoryChannel) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
