package protocol

import (
	"errors"
	"testing"
)

func TestEnumWidth(t *testing.T) {
	tests := map[int]uint8{
		0:  0,
		1:  0,
		2:  1,
		3:  2,
		4:  2,
		7:  3,
		8:  3,
		9:  4,
		32: 5,
	}
	for variants, want := range tests {
		if got := EnumWidth(variants); got != want {
			t.Errorf("EnumWidth(%d): want %d but got %d", variants, want, got)
		}
	}
}

func TestSchemaForMoveObject(t *testing.T) {
	s, err := SchemaFor(KindMoveObject)
	if err != nil {
		t.Fatal(err)
	}

	want := []struct {
		name  string
		width uint8
		typ   FieldType
	}{
		{"object_id", 10, FieldUint},
		{"zone", 3, FieldEnum},
		{"x", 16, FieldUint},
		{"y", 16, FieldUint},
	}
	if len(s.Fields) != len(want) {
		t.Fatalf("want %d fields but got %d", len(want), len(s.Fields))
	}
	for i, w := range want {
		f := s.Fields[i]
		if f.Name != w.name || f.Width != w.width || f.Type != w.typ {
			t.Errorf("field %d: want %s/%d/%s but got %s/%d/%s", i, w.name, w.width, w.typ, f.Name, f.Width, f.Type)
		}
	}

	if s.Bits() != 50 {
		t.Errorf("want 50 bits but got %d", s.Bits())
	}
	if s.FrameLen() != 7 {
		t.Errorf("want 7 bytes but got %d", s.FrameLen())
	}
}

func TestSchemaForReturnsCopy(t *testing.T) {
	s := MustSchemaFor(KindTap)
	s.Fields[0].Width = 1

	again := MustSchemaFor(KindTap)
	if again.Fields[0].Width != ObjectIDWidth {
		t.Errorf("registry was mutated through SchemaFor: width %d", again.Fields[0].Width)
	}
}

func TestFrameLens(t *testing.T) {
	want := map[MessageKind]int{
		KindDrawToHand:      2,
		KindDraw7:           1,
		KindShareDeckGUID:   17,
		KindRequestDeckGUID: 1,
		KindMoveObject:      7,
		KindTap:             2,
		KindUntap:           2,
	}
	for _, kind := range Kinds() {
		n, err := FrameLen(kind)
		if err != nil {
			t.Fatal(err)
		}
		if n != want[kind] {
			t.Errorf("%s: want %d bytes but got %d", kind, want[kind], n)
		}
	}
}

func TestSchemaForUndeclaredKind(t *testing.T) {
	for _, kind := range []MessageKind{MessageKind(KindCount), 31, 255} {
		if _, err := SchemaFor(kind); !errors.Is(err, ErrSchemaNotFound) {
			t.Errorf("kind %d: want ErrSchemaNotFound but got %v", kind, err)
		}
	}

	defer func() {
		if recover() == nil {
			t.Error("want MustSchemaFor to panic on an undeclared kind")
		}
	}()
	MustSchemaFor(MessageKind(KindCount))
}

func TestTagWidthCoversKinds(t *testing.T) {
	if MinTagWidth() > TagWidth {
		t.Fatalf("%d kinds need %d bits, tag is %d", KindCount, MinTagWidth(), TagWidth)
	}
	if MinTagWidth() != 3 {
		t.Errorf("want 3 bits for 7 kinds but got %d", MinTagWidth())
	}
}

func TestKindNames(t *testing.T) {
	want := []string{
		"draw_to_hand", "draw_7", "share_deck_guid", "request_deck_guid",
		"move_object", "tap", "untap",
	}
	kinds := Kinds()
	if len(kinds) != len(want) {
		t.Fatalf("want %d kinds but got %d", len(want), len(kinds))
	}
	for i, k := range kinds {
		if int(k) != i {
			t.Errorf("want tag %d but got %d", i, k)
		}
		if k.String() != want[i] {
			t.Errorf("want this [%s] but got [%s]", want[i], k)
		}
	}
}

func TestParseZone(t *testing.T) {
	z, err := ParseZone("joiner_graveyard")
	if err != nil {
		t.Fatal(err)
	}
	if z != ZoneJoinerGraveyard {
		t.Errorf("want %s but got %s", ZoneJoinerGraveyard, z)
	}
	if _, err := ParseZone("library"); err == nil {
		t.Error("want error for unknown zone")
	}
}
