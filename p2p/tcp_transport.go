package p2p

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MaxFrameSize bounds the length prefix of a TCP frame.
const MaxFrameSize = 1<<16 - 1

// Peer is one end of a framed TCP link. Every frame is preceded by its
// length as a big-endian uint16.
type Peer struct {
	conn     net.Conn
	Outbound bool

	writeMu sync.Mutex
	header  [2]byte
}

func NewPeer(conn net.Conn, outbound bool) *Peer {
	return &Peer{
		conn:     conn,
		Outbound: outbound,
	}
}

func (p *Peer) SendFrame(frame []byte) error {
	if len(frame) > MaxFrameSize {
		return fmt.Errorf("p2p: frame of %d bytes exceeds %d", len(frame), MaxFrameSize)
	}

	buf := make([]byte, 2+len(frame))
	binary.BigEndian.PutUint16(buf, uint16(len(frame)))
	copy(buf[2:], frame)

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := p.conn.Write(buf); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrChannelClosed
		}
		return err
	}
	return nil
}

func (p *Peer) Recv() ([]byte, error) {
	if _, err := io.ReadFull(p.conn, p.header[:]); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
			return nil, ErrChannelClosed
		}
		return nil, err
	}

	frame := make([]byte, binary.BigEndian.Uint16(p.header[:]))
	if _, err := io.ReadFull(p.conn, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

func (p *Peer) Close() error {
	return p.conn.Close()
}

func (p *Peer) RemoteAddr() net.Addr {
	return p.conn.RemoteAddr()
}

// TCPTransport resolves rendezvous ids through a static directory of
// id -> host:port. Ids are matched case-insensitively.
type TCPTransport struct {
	directory   map[string]string
	DialTimeout time.Duration
}

func NewTCPTransport(directory map[string]string) *TCPTransport {
	dir := make(map[string]string, len(directory))
	for id, addr := range directory {
		dir[strings.ToLower(id)] = addr
	}
	return &TCPTransport{
		directory:   dir,
		DialTimeout: 5 * time.Second,
	}
}

func (t *TCPTransport) addrOf(id string) (string, error) {
	addr, ok := t.directory[strings.ToLower(id)]
	if !ok {
		return "", fmt.Errorf("%w: %s has no address", ErrPeerUnavailable, id)
	}
	return addr, nil
}

// Listen binds the address of localID and accepts a single connection.
func (t *TCPTransport) Listen(ctx context.Context, localID string) (Channel, error) {
	addr, err := t.addrOf(localID)
	if err != nil {
		return nil, err
	}

	var lc net.ListenConfig
	ls, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer ls.Close()

	logrus.WithFields(logrus.Fields{
		"id":   localID,
		"addr": ls.Addr(),
	}).Info("waiting for peer")

	stop := context.AfterFunc(ctx, func() { ls.Close() })
	defer stop()

	conn, err := ls.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	return NewPeer(conn, false), nil
}

func (t *TCPTransport) Dial(ctx context.Context, localID, remoteID string) (Channel, error) {
	addr, err := t.addrOf(remoteID)
	if err != nil {
		return nil, err
	}

	d := net.Dialer{Timeout: t.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"from": localID,
		"to":   remoteID,
		"addr": addr,
	}).Debug("dialed peer")

	return NewPeer(conn, true), nil
}
