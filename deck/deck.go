package deck

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"DCardGame/protocol"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrEmptyDeck = errors.New("deck: no cards left")

// Card is one physical card on the table. ObjectID is the id carried on the
// wire, so it must fit protocol.ObjectIDWidth.
type Card struct {
	ObjectID uint16 `json:"object_id"`
	Name     string `json:"name"`
}

func (c Card) String() string {
	return fmt.Sprintf("#%d %s", c.ObjectID, c.Name)
}

func NewCard(id int, name string) Card {
	if id < 0 || id > protocol.MaxObjectID {
		logrus.Fatalln("Invalid card object id", id)
	}
	return Card{
		ObjectID: uint16(id),
		Name:     name,
	}
}

// Deck is a player's library. The top of the deck is the end of the slice.
type Deck struct {
	GUID  uuid.UUID
	cards []Card
}

// NewDeck builds size cards numbered from firstID. Each player gets a
// disjoint id range so ids stay unique across the table.
func NewDeck(firstID, size int) (*Deck, error) {
	if size <= 0 {
		return nil, fmt.Errorf("deck: invalid size %d", size)
	}
	if firstID < 0 || firstID+size-1 > protocol.MaxObjectID {
		return nil, fmt.Errorf("deck: ids %d..%d do not fit %d bits",
			firstID, firstID+size-1, protocol.ObjectIDWidth)
	}

	d := &Deck{
		GUID:  uuid.New(),
		cards: make([]Card, size),
	}
	for i := 0; i < size; i++ {
		d.cards[i] = NewCard(firstID+i, fmt.Sprintf("card %d", i+1))
	}
	return d, nil
}

func (d *Deck) Shuffle() {
	for idx := len(d.cards) - 1; idx > 0; idx-- {
		newPosition := rand.Intn(idx + 1)
		d.cards[idx], d.cards[newPosition] = d.cards[newPosition], d.cards[idx]
	}
}

func (d *Deck) Len() int {
	return len(d.cards)
}

// Draw removes and returns the top card.
func (d *Deck) Draw() (Card, error) {
	if len(d.cards) == 0 {
		return Card{}, ErrEmptyDeck
	}
	top := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return top, nil
}

// DrawN draws n cards, or none if fewer than n are left.
func (d *Deck) DrawN(n int) ([]Card, error) {
	if n > len(d.cards) {
		return nil, fmt.Errorf("%w: want %d, have %d", ErrEmptyDeck, n, len(d.cards))
	}
	drawn := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		c, _ := d.Draw()
		drawn = append(drawn, c)
	}
	return drawn, nil
}

// Contains reports whether id belongs to a card still in the library.
func (d *Deck) Contains(id uint16) bool {
	for _, c := range d.cards {
		if c.ObjectID == id {
			return true
		}
	}
	return false
}

func (d *Deck) String() string {
	var s strings.Builder
	s.WriteString(d.GUID.String() + "\n")
	for _, c := range d.cards {
		s.WriteString(c.String() + "\n")
	}
	return s.String()
}
