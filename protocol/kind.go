package protocol

// Version identifies the tag order and the field layouts below. Any change to
// either one must bump it.
const Version = 1

// MessageKind is the tag written at the start of every frame. The value is
// the kind's position in the declared order.
type MessageKind uint8

const (
	KindDrawToHand MessageKind = iota
	KindDraw7
	KindShareDeckGUID
	KindRequestDeckGUID
	KindMoveObject
	KindTap
	KindUntap

	kindCount
)

// KindCount is the number of declared message kinds.
const KindCount = int(kindCount)

func (k MessageKind) String() string {
	switch k {
	case KindDrawToHand:
		return "draw_to_hand"
	case KindDraw7:
		return "draw_7"
	case KindShareDeckGUID:
		return "share_deck_guid"
	case KindRequestDeckGUID:
		return "request_deck_guid"
	case KindMoveObject:
		return "move_object"
	case KindTap:
		return "tap"
	case KindUntap:
		return "untap"
	default:
		return "unknown"
	}
}

// Declared reports whether k is part of the current protocol version.
func (k MessageKind) Declared() bool {
	return k < kindCount
}

// Kinds returns every declared kind in tag order.
func Kinds() []MessageKind {
	kinds := make([]MessageKind, 0, kindCount)
	for k := MessageKind(0); k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}
