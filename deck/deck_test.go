package deck

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"DCardGame/protocol"

	"github.com/google/uuid"
)

func TestNewDeck(t *testing.T) {
	d, err := NewDeck(512, 60)
	if err != nil {
		t.Fatal(err)
	}
	if d.Len() != 60 {
		t.Errorf("want 60 cards but got %d", d.Len())
	}
	if d.GUID == uuid.Nil {
		t.Error("want a deck guid")
	}
	if !d.Contains(512) || !d.Contains(571) || d.Contains(572) {
		t.Error("want ids 512..571")
	}
}

func TestNewDeckRejectsWideIDs(t *testing.T) {
	if _, err := NewDeck(protocol.MaxObjectID, 2); err == nil {
		t.Error("want error for ids past the object id width")
	}
	if _, err := NewDeck(0, 0); err == nil {
		t.Error("want error for empty deck")
	}
	if _, err := NewDeck(0, protocol.MaxObjectID+1); err != nil {
		t.Errorf("want the full id range to fit but got %v", err)
	}
}

func TestShuffleKeepsCards(t *testing.T) {
	d, err := NewDeck(0, 52)
	if err != nil {
		t.Fatal(err)
	}
	before := ids(d.cards)
	d.Shuffle()
	after := ids(d.cards)

	sort.Ints(before)
	sort.Ints(after)
	if !reflect.DeepEqual(before, after) {
		t.Errorf("want this [%v] but got [%v]", before, after)
	}
}

func TestDraw(t *testing.T) {
	d, err := NewDeck(10, 8)
	if err != nil {
		t.Fatal(err)
	}

	top, err := d.Draw()
	if err != nil {
		t.Fatal(err)
	}
	if top.ObjectID != 17 {
		t.Errorf("want top card 17 but got %d", top.ObjectID)
	}

	seven, err := d.DrawN(7)
	if err != nil {
		t.Fatal(err)
	}
	if len(seven) != 7 || d.Len() != 0 {
		t.Errorf("want 7 drawn and 0 left but got %d and %d", len(seven), d.Len())
	}

	if _, err := d.Draw(); !errors.Is(err, ErrEmptyDeck) {
		t.Errorf("want ErrEmptyDeck but got %v", err)
	}
}

func TestDrawNShort(t *testing.T) {
	d, err := NewDeck(0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.DrawN(7); !errors.Is(err, ErrEmptyDeck) {
		t.Errorf("want ErrEmptyDeck but got %v", err)
	}
	if d.Len() != 3 {
		t.Errorf("short draw must not remove cards, %d left", d.Len())
	}
}

func ids(cards []Card) []int {
	out := make([]int, len(cards))
	for i, c := range cards {
		out[i] = int(c.ObjectID)
	}
	return out
}
