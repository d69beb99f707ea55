package p2p

import (
	"context"
	"errors"
	"sync"
	"time"

	"DCardGame/protocol"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type NodeConfig struct {
	Version       string
	GameName      string
	Role          Role
	ApiListenAddr string
	MoveInterval  time.Duration
	Width         uint16
	Height        uint16
	DeckSize      int
}

// Node is one player's process: a session to the other player, the
// dispatcher feeding the table and the control API in front of it.
type Node struct {
	NodeConfig //this is struct embedding

	Session    *Session
	Dispatcher *Dispatcher
	Table      *Table
	Metrics    *Metrics

	registry *prometheus.Registry
	api      *APIServer
	apiOnce  sync.Once
}

func NewNode(cnf NodeConfig, rv Rendezvous) (*Node, error) {
	if cnf.GameName == "" {
		return nil, errors.New("game name is required")
	}

	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	dispatcher := NewDispatcher(metrics)
	session := NewSession(cnf.GameName, cnf.Role, rv, dispatcher)

	table, err := NewTable(TableConfig{
		Role:         cnf.Role,
		Width:        cnf.Width,
		Height:       cnf.Height,
		DeckSize:     cnf.DeckSize,
		MoveInterval: cnf.MoveInterval,
	}, session, dispatcher)
	if err != nil {
		return nil, err
	}

	n := &Node{
		NodeConfig: cnf,
		Session:    session,
		Dispatcher: dispatcher,
		Table:      table,
		Metrics:    metrics,
		registry:   registry,
	}
	if cnf.ApiListenAddr != "" {
		n.api = NewAPIServer(cnf.ApiListenAddr, n, registry)
	}
	return n, nil
}

// Registry exposes the node's metrics registry.
func (n *Node) Registry() *prometheus.Registry {
	return n.registry
}

// Start serves the API, connects the session and blocks until the peer
// leaves or ctx is cancelled. If the connection fails the session is back to
// idle and Start may be called again; callers that give up call Close.
func (n *Node) Start(ctx context.Context) error {
	if n.api != nil {
		n.apiOnce.Do(func() {
			go func() {
				logrus.WithFields(logrus.Fields{
					"port": n.ApiListenAddr,
				}).Info("STARTING API SERVER==>")
				if err := n.api.Run(); err != nil {
					logrus.Error("api server stopped: ", err)
				}
			}()
		})
	}

	logrus.WithFields(logrus.Fields{
		"game":     n.GameName,
		"role":     n.Role,
		"version":  n.Version,
		"protocol": protocol.Version,
	}).Info("Starting new game node")

	if err := n.Session.Connect(ctx); err != nil {
		return err
	}

	go n.loop(ctx)

	select {
	case <-n.Session.Done():
	case <-ctx.Done():
	}
	n.Close()
	return nil
}

// Close tears down the table, the session, the dispatcher and the API, in
// that order.
func (n *Node) Close() {
	n.Table.Close()
	n.Session.Close()
	n.Dispatcher.Close()

	if n.api != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		n.api.Shutdown(ctx)
	}
}

func (n *Node) loop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			view := n.Table.Snapshot()
			logrus.WithFields(logrus.Fields{
				"we":              n.Session.LocalID(),
				"state":           n.Session.State(),
				"objects":         len(view.Objects),
				"hand":            len(view.Hand),
				"deckLeft":        view.DeckLeft,
				"remoteHandCount": view.RemoteHandCount,
			}).Info("Info of table==>")
		case <-n.Session.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}
