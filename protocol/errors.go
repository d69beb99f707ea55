package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaNotFound means a kind outside the declared set was used. It is
	// always a programming error on the local side.
	ErrSchemaNotFound = errors.New("protocol: schema not found")

	// ErrMalformedFrame is returned by Decode for any frame that cannot be
	// read back into a message. Receivers drop the frame and keep going.
	ErrMalformedFrame = errors.New("protocol: malformed frame")

	// ErrUnknownTag is a malformed frame whose tag names no declared kind.
	ErrUnknownTag = fmt.Errorf("%w: unknown message tag", ErrMalformedFrame)

	// ErrOutOfRangeField is returned by Encode when a value does not fit
	// its field.
	ErrOutOfRangeField = errors.New("protocol: field value out of range")
)

// FieldRangeError describes a value that does not fit its field's width or
// enum range.
type FieldRangeError struct {
	Kind  MessageKind
	Field string
	Value uint64
	Max   uint64
}

func (e *FieldRangeError) Error() string {
	return fmt.Sprintf("protocol: %s.%s = %d exceeds max %d", e.Kind, e.Field, e.Value, e.Max)
}

func (e *FieldRangeError) Unwrap() error {
	return ErrOutOfRangeField
}
