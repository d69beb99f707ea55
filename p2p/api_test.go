package p2p

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"DCardGame/deck"
)

func newNodes(t *testing.T, name string) (host, guest *Node) {
	t.Helper()

	network := NewMemoryNetwork()
	cnf := NodeConfig{
		Version:      "test",
		GameName:     name,
		MoveInterval: 20 * time.Millisecond,
		DeckSize:     20,
	}

	var err error
	cnf.Role = RoleHost
	host, err = NewNode(cnf, network)
	if err != nil {
		t.Fatal(err)
	}
	cnf.Role = RoleGuest
	guest, err = NewNode(cnf, network)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- host.Session.Connect(ctx) }()
	waitFor(t, "host listening", func() bool { return host.Session.State() == StateConnecting })
	for guest.Session.Connect(ctx) != nil {
		if ctx.Err() != nil {
			t.Fatal("guest never connected")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := <-errc; err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		host.Close()
		guest.Close()
	})
	return host, guest
}

func serveAPI(t *testing.T, n *Node) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewAPIServer("", n, n.Registry()).Router())
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, method, url string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatal(err)
		}
	}
	return resp.StatusCode
}

func TestAPIStatus(t *testing.T) {
	host, _ := newNodes(t, "api-status")
	srv := serveAPI(t, host)

	var status map[string]any
	if code := call(t, http.MethodGet, srv.URL+"/status", &status); code != http.StatusOK {
		t.Fatalf("want this [200] but got [%d]", code)
	}
	if status["state"] != "OPEN" || status["we"] != "api-status-host" || status["remote"] != "api-status-guest" {
		t.Errorf("unexpected status [%+v]", status)
	}
}

func TestAPIMoveReachesPeer(t *testing.T) {
	host, guest := newNodes(t, "api-move")
	srv := serveAPI(t, host)

	var p Placement
	if code := call(t, http.MethodPost, srv.URL+"/move/42/board/100/200", &p); code != http.StatusOK {
		t.Fatalf("want this [200] but got [%d]", code)
	}
	if p.ObjectID != 42 || p.ZoneName != "Board" || p.X != 100 || p.Y != 200 {
		t.Errorf("unexpected placement [%+v]", p)
	}

	waitFor(t, "move on guest", func() bool {
		got, ok := guest.Table.Object(42)
		return ok && got.X == 100 && got.Y == 200
	})
}

func TestAPIBadRequests(t *testing.T) {
	host, _ := newNodes(t, "api-bad")
	srv := serveAPI(t, host)

	tests := []struct {
		name string
		path string
		code int
	}{
		{"unknown zone", "/move/1/nowhere/1/1", http.StatusBadRequest},
		{"id out of range", "/move/1024/board/1/1", http.StatusBadRequest},
		{"not a number", "/move/x/board/1/1", http.StatusBadRequest},
		{"off table", "/move/1/board/5000/1", http.StatusBadRequest},
		{"tap unknown", "/tap/9", http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var body map[string]string
			if code := call(t, http.MethodPost, srv.URL+tc.path, &body); code != tc.code {
				t.Errorf("want this [%d] but got [%d]", tc.code, code)
			}
			if body["error"] == "" {
				t.Error("want an error message")
			}
		})
	}
}

func TestAPIDrawAndTable(t *testing.T) {
	host, _ := newNodes(t, "api-draw")
	srv := serveAPI(t, host)

	var c deck.Card
	if code := call(t, http.MethodPost, srv.URL+"/draw", &c); code != http.StatusOK {
		t.Fatalf("want this [200] but got [%d]", code)
	}

	var cards []deck.Card
	if code := call(t, http.MethodPost, srv.URL+"/draw7", &cards); code != http.StatusOK || len(cards) != 7 {
		t.Fatalf("want 7 cards but got %d (%d)", len(cards), code)
	}

	var view TableView
	call(t, http.MethodGet, srv.URL+"/table", &view)
	if len(view.Hand) != 8 || view.DeckLeft != 12 {
		t.Errorf("want 8 in hand and 12 left but got %d and %d", len(view.Hand), view.DeckLeft)
	}
}

func TestAPIDeckExchange(t *testing.T) {
	host, guest := newNodes(t, "api-deck")
	srv := serveAPI(t, guest)

	if code := call(t, http.MethodPost, srv.URL+"/deck/request", nil); code != http.StatusOK {
		t.Fatalf("want this [200] but got [%d]", code)
	}
	waitFor(t, "host deck on guest", func() bool {
		return guest.Table.Snapshot().RemoteDeck == host.Table.Snapshot().Deck
	})
}

func TestAPIConflictWhenClosed(t *testing.T) {
	host, _ := newNodes(t, "api-closed")
	srv := serveAPI(t, host)
	host.Session.Close()

	if code := call(t, http.MethodPost, srv.URL+"/deck/share", nil); code != http.StatusConflict {
		t.Errorf("want this [409] but got [%d]", code)
	}
}

func TestAPIMetrics(t *testing.T) {
	host, _ := newNodes(t, "api-metrics")
	srv := serveAPI(t, host)

	call(t, http.MethodPost, srv.URL+"/draw", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`dcardgame_frames_sent_total{kind="draw_to_hand"} 1`,
		"dcardgame_session_state 2",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("want metrics to contain %q", want)
		}
	}
}
