package p2p

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"DCardGame/relay"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// RelayTransport finds peers through a relay server: the host waits on
// /listen/{id}, the guest connects to /dial/{id}, and the relay forwards
// frames once both ends got the open control message.
type RelayTransport struct {
	baseURL string
	dialer  *websocket.Dialer
}

// NewRelayTransport takes the relay's base URL. http(s) schemes are
// rewritten to ws(s).
func NewRelayTransport(baseURL string) *RelayTransport {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	}
	return &RelayTransport{
		baseURL: u,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func (t *RelayTransport) Listen(ctx context.Context, localID string) (Channel, error) {
	conn, err := t.connect(ctx, relay.ListenPath(localID))
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"id":    localID,
		"relay": t.baseURL,
	}).Info("waiting for peer")

	return t.awaitOpen(ctx, conn)
}

func (t *RelayTransport) Dial(ctx context.Context, localID, remoteID string) (Channel, error) {
	conn, err := t.connect(ctx, relay.DialPath(remoteID, localID))
	if err != nil {
		return nil, err
	}
	return t.awaitOpen(ctx, conn)
}

func (t *RelayTransport) connect(ctx context.Context, path string) (*websocket.Conn, error) {
	conn, resp, err := t.dialer.DialContext(ctx, t.baseURL+path, nil)
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusNotFound:
				return nil, fmt.Errorf("%w: %s", ErrPeerUnavailable, path)
			case http.StatusConflict:
				return nil, fmt.Errorf("%w: %s", ErrIDTaken, path)
			}
		}
		return nil, err
	}
	return conn, nil
}

// awaitOpen blocks until the relay reports the link paired.
func (t *RelayTransport) awaitOpen(ctx context.Context, conn *websocket.Conn) (Channel, error) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	var ctrl relay.Control
	err := conn.ReadJSON(&ctrl)
	if !stop() {
		conn.Close()
		return nil, ctx.Err()
	}
	if err != nil {
		conn.Close()
		return nil, err
	}
	if ctrl.Type != relay.ControlOpen {
		conn.Close()
		return nil, fmt.Errorf("%w: relay sent %q before open", ErrPeerUnavailable, ctrl.Type)
	}

	return &relayChannel{conn: conn, remote: ctrl.Peer}, nil
}

type relayChannel struct {
	conn   *websocket.Conn
	remote string

	writeMu sync.Mutex
}

func (c *relayChannel) SendFrame(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return ErrChannelClosed
		}
		return err
	}
	return nil
}

func (c *relayChannel) Recv() ([]byte, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, ErrChannelClosed
			}
			return nil, err
		}

		switch mt {
		case websocket.BinaryMessage:
			return data, nil
		case websocket.TextMessage:
			var ctrl relay.Control
			if err := json.Unmarshal(data, &ctrl); err == nil && ctrl.Type == relay.ControlClose {
				return nil, ErrChannelClosed
			}
		}
	}
}

func (c *relayChannel) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}
