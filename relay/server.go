package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type ServerConfig struct {
	Version    string
	ListenAddr string
}

// Server pairs a host waiting on an id with the first guest that dials it,
// then copies binary frames between them until either side leaves.
type Server struct {
	ServerConfig
	upgrader websocket.Upgrader

	mu        sync.Mutex
	listeners map[string]*peer
	paired    int

	httpServer *http.Server
}

func NewServer(cfg ServerConfig) *Server {
	return &Server{
		ServerConfig: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		listeners: make(map[string]*peer),
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/listen/{id}", s.handleListen).Methods(http.MethodGet)
	r.HandleFunc("/dial/{id}", s.handleDial).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	return r
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logrus.WithFields(logrus.Fields{
		"addr":    s.ListenAddr,
		"version": s.Version,
	}).Info("Starting relay server")

	errc := make(chan error, 1)
	go func() {
		errc <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	if _, taken := s.listeners[id]; taken {
		s.mu.Unlock()
		http.Error(w, "id already listening", http.StatusConflict)
		return
	}
	// reserve the id before the upgrade so a racing listener gets 409
	s.listeners[id] = nil
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.unregister(id, nil)
		logrus.Error("relay upgrade failed: ", err)
		return
	}

	p := newPeer(id, conn)
	s.mu.Lock()
	s.listeners[id] = p
	s.mu.Unlock()

	go p.readLoop()
	go func() {
		<-p.gone
		if s.unregister(id, p) {
			logrus.WithFields(logrus.Fields{
				"id": id,
			}).Info("listener left before pairing")
		}
	}()

	logrus.WithFields(logrus.Fields{
		"id":     id,
		"remote": conn.RemoteAddr(),
	}).Info("peer listening")
}

func (s *Server) handleDial(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	from := r.URL.Query().Get("from")

	s.mu.Lock()
	host := s.listeners[id]
	if host != nil {
		delete(s.listeners, id)
	}
	s.mu.Unlock()

	if host == nil {
		http.Error(w, "no peer listening on "+id, http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Error("relay upgrade failed: ", err)
		host.close()
		return
	}
	guest := newPeer(from, conn)
	go guest.readLoop()

	if err := host.writeControl(Control{Type: ControlOpen, Peer: from}); err != nil {
		logrus.WithFields(logrus.Fields{
			"id": id,
		}).Error("host gone while pairing: ", err)
		host.close()
		guest.close()
		return
	}
	if err := guest.writeControl(Control{Type: ControlOpen, Peer: id}); err != nil {
		host.close()
		guest.close()
		return
	}

	s.mu.Lock()
	s.paired++
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"host":  id,
		"guest": from,
	}).Info("peers paired")

	go s.relay(host, guest)
}

func (s *Server) relay(a, b *peer) {
	done := make(chan struct{}, 2)
	pipe := func(src, dst *peer) {
		for f := range src.frames {
			if err := dst.writeBinary(f); err != nil {
				break
			}
		}
		done <- struct{}{}
	}
	go pipe(a, b)
	go pipe(b, a)

	<-done
	a.close()
	b.close()

	s.mu.Lock()
	s.paired--
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"host":  a.id,
		"guest": b.id,
	}).Info("relay closed")
}

// unregister removes id if it still maps to p.
func (s *Server) unregister(id string, p *peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.listeners[id]
	if ok && cur == p {
		delete(s.listeners, id)
		return true
	}
	return false
}

type Status struct {
	Version   string   `json:"version"`
	Listening []string `json:"listening"`
	Paired    int      `json:"paired"`
}

func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Version: s.Version, Listening: []string{}, Paired: s.paired}
	for id, p := range s.listeners {
		if p != nil {
			st.Listening = append(st.Listening, id)
		}
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Status())
}
