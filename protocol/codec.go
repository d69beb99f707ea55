package protocol

import (
	"errors"
	"fmt"
)

// Encode packs msg into a frame: the kind tag, then every schema field in
// order, most significant bit first, zero padded to a whole byte.
//
// A value that does not fit its field is rejected with a *FieldRangeError
// instead of being truncated.
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("protocol: cannot encode nil message")
	}

	schema, ok := lookup(msg.Kind())
	if !ok {
		return nil, fmt.Errorf("%w: kind %d", ErrSchemaNotFound, uint8(msg.Kind()))
	}

	vals := msg.values()
	if len(vals) != len(schema.Fields) {
		return nil, fmt.Errorf("protocol: %s carries %d values, schema declares %d",
			schema.Kind, len(vals), len(schema.Fields))
	}

	for i, f := range schema.Fields {
		if vals[i] > f.Max() {
			return nil, &FieldRangeError{
				Kind:  schema.Kind,
				Field: f.Name,
				Value: vals[i],
				Max:   f.Max(),
			}
		}
	}

	w := NewBitWriter(schema.Bits())
	w.WriteBits(uint64(schema.Kind), TagWidth)
	for i, f := range schema.Fields {
		w.WriteBits(vals[i], f.Width)
	}
	return w.Bytes(), nil
}

// Decode reads a frame produced by Encode. Every failure wraps
// ErrMalformedFrame; Decode never panics on bad input.
func Decode(frame []byte) (Message, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformedFrame)
	}

	r := NewBitReader(frame)
	tag, err := r.ReadBits(TagWidth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	schema, ok := lookup(MessageKind(tag))
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownTag, tag)
	}

	if want := schema.FrameLen(); len(frame) != want {
		return nil, fmt.Errorf("%w: %s frame is %d bytes, want %d",
			ErrMalformedFrame, schema.Kind, len(frame), want)
	}

	vals := make([]uint64, len(schema.Fields))
	for i, f := range schema.Fields {
		v, err := r.ReadBits(f.Width)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrMalformedFrame, schema.Kind, f.Name, err)
		}
		if v > f.Max() {
			return nil, fmt.Errorf("%w: %s.%s = %d, max %d",
				ErrMalformedFrame, schema.Kind, f.Name, v, f.Max())
		}
		vals[i] = v
	}

	return schema.build(vals), nil
}

// FrameLen returns the encoded size of kind in bytes.
func FrameLen(kind MessageKind) (int, error) {
	s, ok := lookup(kind)
	if !ok {
		return 0, fmt.Errorf("%w: kind %d", ErrSchemaNotFound, uint8(kind))
	}
	return s.FrameLen(), nil
}
