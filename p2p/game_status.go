package p2p

import (
	"fmt"
	"strings"

	"DCardGame/protocol"
)

type SessionState int32

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	default:
		return "unknown"
	}
}

const (
	StateIdle SessionState = iota
	StateConnecting
	StateOpen
	StateClosed
)

// Role decides which rendezvous id a player claims and who dials whom.
type Role uint8

const (
	RoleHost Role = iota
	RoleGuest
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleGuest:
		return "guest"
	default:
		return "unknown"
	}
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "host":
		return RoleHost, nil
	case "guest", "join", "joiner":
		return RoleGuest, nil
	default:
		return 0, fmt.Errorf("invalid role %q", s)
	}
}

// Other returns the peer's role.
func (r Role) Other() Role {
	if r == RoleHost {
		return RoleGuest
	}
	return RoleHost
}

// HandZone is the zone holding this role's hand.
func (r Role) HandZone() protocol.Zone {
	if r == RoleHost {
		return protocol.ZoneHostHand
	}
	return protocol.ZoneJoinerHand
}

// RendezvousID derives the id a role claims for a game name.
func RendezvousID(gameName string, r Role) string {
	return gameName + "-" + r.String()
}
