package p2p

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"DCardGame/protocol"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type apiFunc func(w http.ResponseWriter, r *http.Request) error

func makeHttpHandleFunc(f apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := f(w, r); err != nil {
			JSON(w, statusFor(err), map[string]any{"error": err.Error()})
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotOpen), errors.Is(err, ErrSessionClosed):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func JSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// APIServer is the local control surface of a node: the view layer drives
// the table through it and reads the table back.
type APIServer struct {
	listenAdrr string
	node       *Node
	gatherer   prometheus.Gatherer

	httpServer *http.Server
}

func NewAPIServer(addr string, n *Node, gatherer prometheus.Gatherer) *APIServer {
	apiServer := &APIServer{
		listenAdrr: addr,
		node:       n,
		gatherer:   gatherer,
	}
	apiServer.httpServer = &http.Server{
		Addr:              addr,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return apiServer
}

func (apiServer *APIServer) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/status", makeHttpHandleFunc(apiServer.handleStatus)).Methods(http.MethodGet)
	r.HandleFunc("/table", makeHttpHandleFunc(apiServer.handleTable)).Methods(http.MethodGet)
	r.HandleFunc("/move/{id}/{zone}/{x}/{y}", makeHttpHandleFunc(apiServer.handleMove)).Methods(http.MethodPost)
	r.HandleFunc("/tap/{id}", makeHttpHandleFunc(apiServer.handleTap)).Methods(http.MethodPost)
	r.HandleFunc("/untap/{id}", makeHttpHandleFunc(apiServer.handleUntap)).Methods(http.MethodPost)
	r.HandleFunc("/draw", makeHttpHandleFunc(apiServer.handleDraw)).Methods(http.MethodPost)
	r.HandleFunc("/draw7", makeHttpHandleFunc(apiServer.handleDraw7)).Methods(http.MethodPost)
	r.HandleFunc("/deck/share", makeHttpHandleFunc(apiServer.handleShareDeck)).Methods(http.MethodPost)
	r.HandleFunc("/deck/request", makeHttpHandleFunc(apiServer.handleRequestDeck)).Methods(http.MethodPost)
	if apiServer.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(apiServer.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return r
}

// Run serves until Shutdown is called. A server that was shut down does not
// run again.
func (apiServer *APIServer) Run() error {
	err := apiServer.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (apiServer *APIServer) Shutdown(ctx context.Context) error {
	return apiServer.httpServer.Shutdown(ctx)
}

func (apiServer *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) error {
	n := apiServer.node
	return JSON(w, http.StatusOK, map[string]any{
		"version":          n.Version,
		"protocol_version": protocol.Version,
		"game":             n.GameName,
		"role":             n.Role.String(),
		"we":               n.Session.LocalID(),
		"remote":           n.Session.RemoteID(),
		"state":            n.Session.State().String(),
	})
}

func (apiServer *APIServer) handleTable(w http.ResponseWriter, r *http.Request) error {
	return JSON(w, http.StatusOK, apiServer.node.Table.Snapshot())
}

func (apiServer *APIServer) handleMove(w http.ResponseWriter, r *http.Request) error {
	vars := mux.Vars(r)

	id, err := parseUint16(vars["id"])
	if err != nil {
		return err
	}
	zone, err := protocol.ParseZone(vars["zone"])
	if err != nil {
		return err
	}
	x, err := parseUint16(vars["x"])
	if err != nil {
		return err
	}
	y, err := parseUint16(vars["y"])
	if err != nil {
		return err
	}

	if err := apiServer.node.Table.MoveObject(id, zone, x, y); err != nil {
		return err
	}
	// a single request is a drop, not a drag: send once the interval allows
	if r.URL.Query().Get("drag") != "1" {
		apiServer.node.Table.FlushMoves()
	}

	p, _ := apiServer.node.Table.Object(id)
	return JSON(w, http.StatusOK, p)
}

func (apiServer *APIServer) handleTap(w http.ResponseWriter, r *http.Request) error {
	id, err := parseUint16(mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	if err := apiServer.node.Table.Tap(id); err != nil {
		return err
	}
	return JSON(w, http.StatusOK, fmt.Sprintf("tapped %d", id))
}

func (apiServer *APIServer) handleUntap(w http.ResponseWriter, r *http.Request) error {
	id, err := parseUint16(mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	if err := apiServer.node.Table.Untap(id); err != nil {
		return err
	}
	return JSON(w, http.StatusOK, fmt.Sprintf("untapped %d", id))
}

func (apiServer *APIServer) handleDraw(w http.ResponseWriter, r *http.Request) error {
	c, err := apiServer.node.Table.DrawToHand()
	if err != nil {
		return err
	}
	return JSON(w, http.StatusOK, c)
}

func (apiServer *APIServer) handleDraw7(w http.ResponseWriter, r *http.Request) error {
	cards, err := apiServer.node.Table.Draw7()
	if err != nil {
		return err
	}
	return JSON(w, http.StatusOK, cards)
}

func (apiServer *APIServer) handleShareDeck(w http.ResponseWriter, r *http.Request) error {
	if err := apiServer.node.Table.ShareDeck(); err != nil {
		return err
	}
	return JSON(w, http.StatusOK, "deck shared")
}

func (apiServer *APIServer) handleRequestDeck(w http.ResponseWriter, r *http.Request) error {
	if err := apiServer.node.Table.RequestDeck(); err != nil {
		return err
	}
	return JSON(w, http.StatusOK, "deck requested")
}

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"value": s,
		}).Debug("bad numeric path value")
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return uint16(v), nil
}
