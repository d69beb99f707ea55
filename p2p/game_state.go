package p2p

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"DCardGame/deck"
	"DCardGame/protocol"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Default playfield in pixels.
const (
	DefaultWidth  = 800
	DefaultHeight = 480
)

var ErrOffTable = errors.New("p2p: position outside the playfield")

// Placement is where one object currently sits.
type Placement struct {
	ObjectID uint16        `json:"object_id"`
	Zone     protocol.Zone `json:"-"`
	ZoneName string        `json:"zone"`
	X        uint16        `json:"x"`
	Y        uint16        `json:"y"`
	Tapped   bool          `json:"tapped"`
	Owner    string        `json:"owner"`
}

type TableConfig struct {
	Role         Role
	Width        uint16
	Height       uint16
	DeckSize     int
	MoveInterval time.Duration
}

// Table is the local view of the shared card table. Local actions update it
// and go out to the peer; remote events come in through the dispatcher.
type Table struct {
	TableConfig

	session *Session
	moves   *Throttle

	mu              sync.RWMutex
	objects         map[uint16]*Placement
	deck            *deck.Deck
	hand            []deck.Card
	drawn           map[uint16]deck.Card
	remoteDeck      uuid.UUID
	remoteHandCount int
	// cards the peer drew with Draw7 that we have not seen by id yet
	remoteUnplaced int
	unsubscribe     []func()
}

// Each role owns half of the object id space.
func firstObjectID(r Role) int {
	if r == RoleHost {
		return 0
	}
	return (protocol.MaxObjectID + 1) / 2
}

func NewTable(cfg TableConfig, s *Session, d *Dispatcher) (*Table, error) {
	if cfg.Width == 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height == 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.DeckSize > (protocol.MaxObjectID+1)/2 {
		return nil, fmt.Errorf("deck of %d cards exceeds %d", cfg.DeckSize, (protocol.MaxObjectID+1)/2)
	}

	t := &Table{
		TableConfig: cfg,
		session:     s,
		moves:       s.Throttle(cfg.MoveInterval),
		objects:     make(map[uint16]*Placement),
		drawn:       make(map[uint16]deck.Card),
	}

	if cfg.DeckSize > 0 {
		dk, err := deck.NewDeck(firstObjectID(cfg.Role), cfg.DeckSize)
		if err != nil {
			return nil, err
		}
		dk.Shuffle()
		t.deck = dk
	}

	t.unsubscribe = []func(){
		d.OnMoveObject(t.handleMoveObject),
		d.OnTap(func(m protocol.Tap) { t.setTapped(m.ObjectID, true, false) }),
		d.OnUntap(func(m protocol.Untap) { t.setTapped(m.ObjectID, false, false) }),
		d.OnDrawToHand(t.handleDrawToHand),
		d.OnDraw7(t.handleDraw7),
		d.OnShareDeckGUID(t.handleShareDeck),
		d.OnRequestDeckGUID(t.handleRequestDeck),
	}

	return t, nil
}

// Close stops listening for remote events.
func (t *Table) Close() {
	t.mu.Lock()
	unsub := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()

	for _, fn := range unsub {
		fn()
	}
	t.moves.Stop()
}

func (t *Table) owner(remote bool) string {
	if remote {
		return t.Role.Other().String()
	}
	return t.Role.String()
}

func (t *Table) place(id uint16, zone protocol.Zone, x, y uint16, remote bool) *Placement {
	p, ok := t.objects[id]
	if !ok {
		p = &Placement{ObjectID: id, Owner: t.owner(remote)}
		t.objects[id] = p
	}
	p.Zone = zone
	p.ZoneName = zone.String()
	p.X = x
	p.Y = y
	return p
}

// MoveObject moves an object locally and queues the move for the peer. Moves
// are throttled, so only the latest position of a drag goes out.
func (t *Table) MoveObject(id uint16, zone protocol.Zone, x, y uint16) error {
	msg := protocol.MoveObject{ObjectID: id, Zone: zone, X: x, Y: y}
	if _, err := protocol.Encode(msg); err != nil {
		return err
	}
	if x >= t.Width || y >= t.Height {
		return fmt.Errorf("%w: (%d,%d) on %dx%d", ErrOffTable, x, y, t.Width, t.Height)
	}

	t.mu.Lock()
	inHand := t.inZone(id, t.Role.HandZone())
	t.place(id, zone, x, y, false)
	toHand := zone == t.Role.HandZone()
	switch {
	case inHand && !toHand:
		t.removeFromHand(id)
	case !inHand && toHand:
		if c, ok := t.drawn[id]; ok {
			t.hand = append(t.hand, c)
		}
	}
	t.mu.Unlock()

	t.moves.Submit(msg)
	return nil
}

// FlushMoves sends a pending move as soon as the move interval allows,
// e.g. on drag release.
func (t *Table) FlushMoves() {
	t.moves.Flush()
}

// inZone reports whether id currently sits in zone. Callers hold t.mu.
func (t *Table) inZone(id uint16, zone protocol.Zone) bool {
	p, ok := t.objects[id]
	return ok && p.Zone == zone
}

func (t *Table) removeFromHand(id uint16) {
	for i, c := range t.hand {
		if c.ObjectID == id {
			t.hand = append(t.hand[:i], t.hand[i+1:]...)
			return
		}
	}
}

func (t *Table) handleMoveObject(m protocol.MoveObject) {
	their := t.Role.Other().HandZone()

	t.mu.Lock()
	_, known := t.objects[m.ObjectID]
	inHand := t.inZone(m.ObjectID, their)
	toHand := m.Zone == their
	switch {
	case !known && t.remoteUnplaced > 0:
		// first sight of a card from an opening hand
		t.remoteUnplaced--
		if !toHand && t.remoteHandCount > 0 {
			t.remoteHandCount--
		}
	case inHand && !toHand:
		if t.remoteHandCount > 0 {
			t.remoteHandCount--
		}
	case known && !inHand && toHand:
		t.remoteHandCount++
	}
	t.place(m.ObjectID, m.Zone, m.X, m.Y, true)
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"object": m.ObjectID,
		"zone":   m.Zone,
		"x":      m.X,
		"y":      m.Y,
	}).Debug("peer moved object")
}

func (t *Table) Tap(id uint16) error {
	return t.tap(id, true)
}

func (t *Table) Untap(id uint16) error {
	return t.tap(id, false)
}

func (t *Table) tap(id uint16, tapped bool) error {
	var msg protocol.Message = protocol.Untap{ObjectID: id}
	if tapped {
		msg = protocol.Tap{ObjectID: id}
	}
	if _, err := protocol.Encode(msg); err != nil {
		return err
	}
	if !t.setTapped(id, tapped, true) {
		return fmt.Errorf("object %d is not on the table", id)
	}
	return t.session.Send(msg)
}

func (t *Table) setTapped(id uint16, tapped, local bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.objects[id]
	if !ok {
		if local {
			return false
		}
		// the peer tapped something we have not seen move yet
		p = t.place(id, protocol.ZoneBoard, 0, 0, true)
	}
	p.Tapped = tapped
	return true
}

// DrawToHand draws the top card into this player's hand.
func (t *Table) DrawToHand() (deck.Card, error) {
	t.mu.Lock()
	if t.deck == nil {
		t.mu.Unlock()
		return deck.Card{}, deck.ErrEmptyDeck
	}
	c, err := t.deck.Draw()
	if err != nil {
		t.mu.Unlock()
		return deck.Card{}, err
	}
	t.hand = append(t.hand, c)
	t.drawn[c.ObjectID] = c
	t.place(c.ObjectID, t.Role.HandZone(), 0, 0, false)
	t.mu.Unlock()

	return c, t.session.Send(protocol.DrawToHand{ObjectID: c.ObjectID})
}

// Draw7 draws an opening hand of seven.
func (t *Table) Draw7() ([]deck.Card, error) {
	t.mu.Lock()
	if t.deck == nil {
		t.mu.Unlock()
		return nil, deck.ErrEmptyDeck
	}
	cards, err := t.deck.DrawN(7)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	t.hand = append(t.hand, cards...)
	for _, c := range cards {
		t.drawn[c.ObjectID] = c
		t.place(c.ObjectID, t.Role.HandZone(), 0, 0, false)
	}
	t.mu.Unlock()

	return cards, t.session.Send(protocol.Draw7{})
}

func (t *Table) handleDrawToHand(m protocol.DrawToHand) {
	t.mu.Lock()
	t.place(m.ObjectID, t.Role.Other().HandZone(), 0, 0, true)
	t.remoteHandCount++
	t.mu.Unlock()
}

func (t *Table) handleDraw7(protocol.Draw7) {
	t.mu.Lock()
	t.remoteHandCount += 7
	t.remoteUnplaced += 7
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"we": t.Role,
	}).Info("peer drew seven")
}

// ShareDeck tells the peer which deck this player uses.
func (t *Table) ShareDeck() error {
	t.mu.RLock()
	if t.deck == nil {
		t.mu.RUnlock()
		return errors.New("no deck loaded")
	}
	guid := t.deck.GUID
	t.mu.RUnlock()

	return t.session.Send(protocol.ShareDeckGUID{GUID: guid})
}

// RequestDeck asks the peer to share its deck guid.
func (t *Table) RequestDeck() error {
	return t.session.Send(protocol.RequestDeckGUID{})
}

func (t *Table) handleShareDeck(m protocol.ShareDeckGUID) {
	t.mu.Lock()
	t.remoteDeck = m.GUID
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"deck": m.GUID,
	}).Info("peer shared deck")
}

func (t *Table) handleRequestDeck(protocol.RequestDeckGUID) {
	if err := t.ShareDeck(); err != nil {
		logrus.Error("could not answer deck request: ", err)
	}
}

// Object looks up an object by its wire id.
func (t *Table) Object(id uint16) (Placement, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.objects[id]
	if !ok {
		return Placement{}, false
	}
	return *p, true
}

// RemoteDeck returns the guid the peer shared, if any.
func (t *Table) RemoteDeck() (uuid.UUID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.remoteDeck, t.remoteDeck != uuid.Nil
}

type TableView struct {
	Role            string      `json:"role"`
	Width           uint16      `json:"width"`
	Height          uint16      `json:"height"`
	Deck            string      `json:"deck,omitempty"`
	DeckLeft        int         `json:"deck_left"`
	Hand            []deck.Card `json:"hand"`
	RemoteDeck      string      `json:"remote_deck,omitempty"`
	RemoteHandCount int         `json:"remote_hand_count"`
	Objects         []Placement `json:"objects"`
}

// Snapshot copies the table for display.
func (t *Table) Snapshot() TableView {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v := TableView{
		Role:            t.Role.String(),
		Width:           t.Width,
		Height:          t.Height,
		Hand:            append([]deck.Card{}, t.hand...),
		RemoteHandCount: t.remoteHandCount,
		Objects:         make([]Placement, 0, len(t.objects)),
	}
	if t.deck != nil {
		v.Deck = t.deck.GUID.String()
		v.DeckLeft = t.deck.Len()
	}
	if t.remoteDeck != uuid.Nil {
		v.RemoteDeck = t.remoteDeck.String()
	}
	for _, p := range t.objects {
		v.Objects = append(v.Objects, *p)
	}
	sort.Slice(v.Objects, func(i, j int) bool {
		return v.Objects[i].ObjectID < v.Objects[j].ObjectID
	})
	return v
}
