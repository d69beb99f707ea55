package relay

import (
	"net/url"
)

// ControlType is sent as a JSON text message; game frames travel as binary
// messages.
type ControlType string

const (
	// ControlOpen tells both ends that their link is paired.
	ControlOpen ControlType = "open"
	// ControlClose tells the remaining end that the other one left.
	ControlClose ControlType = "close"
)

type Control struct {
	Type ControlType `json:"type"`
	Peer string      `json:"peer,omitempty"`
}

// ListenPath is where a host waits for its guest.
func ListenPath(id string) string {
	return "/listen/" + url.PathEscape(id)
}

// DialPath is where a guest asks to be linked to id.
func DialPath(id, from string) string {
	p := "/dial/" + url.PathEscape(id)
	if from != "" {
		p += "?from=" + url.QueryEscape(from)
	}
	return p
}
