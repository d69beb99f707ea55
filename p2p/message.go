package p2p

import (
	"DCardGame/protocol"
)

// Event is a decoded inbound frame, named after its kind.
type Event struct {
	Name    string
	Kind    protocol.MessageKind
	Message protocol.Message
}

func NewEvent(msg protocol.Message) Event {
	return Event{
		Name:    msg.Kind().String(),
		Kind:    msg.Kind(),
		Message: msg,
	}
}

// Handler receives events from a Dispatcher on the session's read goroutine.
type Handler func(Event)
