package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Message is one decoded frame. The set of implementations is closed and
// matches the declared kinds.
type Message interface {
	Kind() MessageKind
	values() []uint64
}

// Zone is where an object sits on the table.
type Zone uint8

const (
	ZoneBoard Zone = iota
	ZoneHostHand
	ZoneHostGraveyard
	ZoneHostExile
	ZoneJoinerHand
	ZoneJoinerGraveyard
	ZoneJoinerExile

	zoneCount
)

// ZoneCount is the number of zone variants.
const ZoneCount = int(zoneCount)

func (z Zone) String() string {
	switch z {
	case ZoneBoard:
		return "Board"
	case ZoneHostHand:
		return "Host_Hand"
	case ZoneHostGraveyard:
		return "Host_Graveyard"
	case ZoneHostExile:
		return "Host_Exile"
	case ZoneJoinerHand:
		return "Joiner_Hand"
	case ZoneJoinerGraveyard:
		return "Joiner_Graveyard"
	case ZoneJoinerExile:
		return "Joiner_Exile"
	default:
		return "unknown"
	}
}

// ParseZone accepts a zone name, case-insensitively.
func ParseZone(s string) (Zone, error) {
	for z := Zone(0); z < zoneCount; z++ {
		if strings.EqualFold(z.String(), s) {
			return z, nil
		}
	}
	return 0, fmt.Errorf("protocol: unknown zone %q", s)
}

// DrawToHand announces that an object moved from the sender's library into
// the sender's hand.
type DrawToHand struct {
	ObjectID uint16
}

func (DrawToHand) Kind() MessageKind { return KindDrawToHand }

func (m DrawToHand) values() []uint64 { return []uint64{uint64(m.ObjectID)} }

// Draw7 announces an opening hand of seven.
type Draw7 struct{}

func (Draw7) Kind() MessageKind { return KindDraw7 }

func (Draw7) values() []uint64 { return nil }

// ShareDeckGUID tells the peer which deck the sender is playing.
type ShareDeckGUID struct {
	GUID uuid.UUID
}

func (ShareDeckGUID) Kind() MessageKind { return KindShareDeckGUID }

func (m ShareDeckGUID) values() []uint64 {
	return []uint64{
		binary.BigEndian.Uint64(m.GUID[:8]),
		binary.BigEndian.Uint64(m.GUID[8:]),
	}
}

func shareDeckFromHalves(hi, lo uint64) ShareDeckGUID {
	var m ShareDeckGUID
	binary.BigEndian.PutUint64(m.GUID[:8], hi)
	binary.BigEndian.PutUint64(m.GUID[8:], lo)
	return m
}

// RequestDeckGUID asks the peer to answer with ShareDeckGUID.
type RequestDeckGUID struct{}

func (RequestDeckGUID) Kind() MessageKind { return KindRequestDeckGUID }

func (RequestDeckGUID) values() []uint64 { return nil }

// MoveObject places an object at a pixel position inside a zone.
type MoveObject struct {
	ObjectID uint16
	Zone     Zone
	X        uint16
	Y        uint16
}

func (MoveObject) Kind() MessageKind { return KindMoveObject }

func (m MoveObject) values() []uint64 {
	return []uint64{uint64(m.ObjectID), uint64(m.Zone), uint64(m.X), uint64(m.Y)}
}

type Tap struct {
	ObjectID uint16
}

func (Tap) Kind() MessageKind { return KindTap }

func (m Tap) values() []uint64 { return []uint64{uint64(m.ObjectID)} }

type Untap struct {
	ObjectID uint16
}

func (Untap) Kind() MessageKind { return KindUntap }

func (m Untap) values() []uint64 { return []uint64{uint64(m.ObjectID)} }
