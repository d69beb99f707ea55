package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait     = 5 * time.Second
	peerBacklog   = 64
	maxFrameBytes = 1 << 16
)

type peer struct {
	id   string
	conn *websocket.Conn

	writeMu sync.Mutex
	frames  chan []byte
	gone    chan struct{}
	closed  chan struct{}
	once    sync.Once
}

func newPeer(id string, conn *websocket.Conn) *peer {
	conn.SetReadLimit(maxFrameBytes)
	return &peer{
		id:     id,
		conn:   conn,
		frames: make(chan []byte, peerBacklog),
		gone:   make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// readLoop forwards binary messages to frames until the socket fails.
func (p *peer) readLoop() {
	defer close(p.gone)
	defer close(p.frames)

	for {
		mt, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				logrus.WithFields(logrus.Fields{
					"peer": p.id,
				}).Error("relay read error: ", err)
			}
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		select {
		case p.frames <- data:
		case <-p.closed:
			return
		}
	}
}

func (p *peer) writeBinary(frame []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (p *peer) writeControl(c Control) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteJSON(c)
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.closed)
		p.writeControl(Control{Type: ControlClose})
		p.writeMu.Lock()
		p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		p.writeMu.Unlock()
		p.conn.Close()
	})
}
