package protocol

import (
	"fmt"
	"math"
	"math/bits"
	"sync"
)

// TagWidth is the fixed width of the kind tag in every frame. It leaves room
// for 32 kinds.
const TagWidth = 5

// Field widths shared by several kinds.
const (
	ObjectIDWidth = 10
	CoordWidth    = 16
	GUIDHalfWidth = 64

	MaxObjectID = 1<<ObjectIDWidth - 1
)

type FieldType uint8

const (
	FieldUint FieldType = iota
	FieldEnum
)

func (t FieldType) String() string {
	switch t {
	case FieldUint:
		return "uint"
	case FieldEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Field is one entry of a schema: a name, a bit width and how to read the
// value back. Enum fields also carry the number of variants they admit.
type Field struct {
	Name     string
	Width    uint8
	Type     FieldType
	Variants int
}

// Uint declares an unsigned field of the given width.
func Uint(name string, width uint8) Field {
	return Field{Name: name, Width: width, Type: FieldUint}
}

// Enum declares an enumerated field just wide enough for variants values.
func Enum(name string, variants int) Field {
	return Field{Name: name, Width: EnumWidth(variants), Type: FieldEnum, Variants: variants}
}

// EnumWidth returns ceil(log2(variants)).
func EnumWidth(variants int) uint8 {
	if variants <= 1 {
		return 0
	}
	return uint8(bits.Len(uint(variants - 1)))
}

// Max returns the largest value the field accepts.
func (f Field) Max() uint64 {
	if f.Type == FieldEnum {
		return uint64(f.Variants - 1)
	}
	if f.Width >= 64 {
		return math.MaxUint64
	}
	return 1<<f.Width - 1
}

// Schema is the layout of one message kind.
type Schema struct {
	Kind   MessageKind
	Fields []Field

	build func(vals []uint64) Message
}

// PayloadBits is the sum of the field widths.
func (s Schema) PayloadBits() int {
	n := 0
	for _, f := range s.Fields {
		n += int(f.Width)
	}
	return n
}

// Bits is the frame length in bits before padding, tag included.
func (s Schema) Bits() int {
	return TagWidth + s.PayloadBits()
}

// FrameLen is the frame length in bytes after padding.
func (s Schema) FrameLen() int {
	return (s.Bits() + 7) / 8
}

var (
	registry     [kindCount]Schema
	registryOnce sync.Once
)

func initRegistry() {
	if bits.Len(uint(kindCount-1)) > TagWidth {
		panic(fmt.Sprintf("protocol: %d kinds do not fit a %d-bit tag", kindCount, TagWidth))
	}

	objectID := Uint("object_id", ObjectIDWidth)

	registry = [kindCount]Schema{
		KindDrawToHand: {
			Fields: []Field{objectID},
			build: func(v []uint64) Message {
				return DrawToHand{ObjectID: uint16(v[0])}
			},
		},
		KindDraw7: {
			build: func([]uint64) Message { return Draw7{} },
		},
		KindShareDeckGUID: {
			Fields: []Field{
				Uint("guid_hi", GUIDHalfWidth),
				Uint("guid_lo", GUIDHalfWidth),
			},
			build: func(v []uint64) Message {
				return shareDeckFromHalves(v[0], v[1])
			},
		},
		KindRequestDeckGUID: {
			build: func([]uint64) Message { return RequestDeckGUID{} },
		},
		KindMoveObject: {
			Fields: []Field{
				objectID,
				Enum("zone", ZoneCount),
				Uint("x", CoordWidth),
				Uint("y", CoordWidth),
			},
			build: func(v []uint64) Message {
				return MoveObject{
					ObjectID: uint16(v[0]),
					Zone:     Zone(v[1]),
					X:        uint16(v[2]),
					Y:        uint16(v[3]),
				}
			},
		},
		KindTap: {
			Fields: []Field{objectID},
			build: func(v []uint64) Message {
				return Tap{ObjectID: uint16(v[0])}
			},
		},
		KindUntap: {
			Fields: []Field{objectID},
			build: func(v []uint64) Message {
				return Untap{ObjectID: uint16(v[0])}
			},
		},
	}

	for k := range registry {
		registry[k].Kind = MessageKind(k)
		if registry[k].build == nil {
			panic(fmt.Sprintf("protocol: no schema declared for %s", MessageKind(k)))
		}
	}
}

func lookup(kind MessageKind) (Schema, bool) {
	registryOnce.Do(initRegistry)
	if !kind.Declared() {
		return Schema{}, false
	}
	return registry[kind], true
}

// SchemaFor returns the field layout of kind. The returned field slice is a
// copy.
func SchemaFor(kind MessageKind) (Schema, error) {
	s, ok := lookup(kind)
	if !ok {
		return Schema{}, fmt.Errorf("%w: kind %d", ErrSchemaNotFound, uint8(kind))
	}
	s.Fields = append([]Field(nil), s.Fields...)
	return s, nil
}

// MustSchemaFor is SchemaFor for kinds known at compile time. It panics on
// an undeclared kind.
func MustSchemaFor(kind MessageKind) Schema {
	s, err := SchemaFor(kind)
	if err != nil {
		panic(err)
	}
	return s
}

// MinTagWidth is the narrowest tag that still covers every declared kind.
// TagWidth is deliberately wider.
func MinTagWidth() int {
	return bits.Len(uint(kindCount - 1))
}
