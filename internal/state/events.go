package state

import "github.com/openfelt/tableclient/internal/protocol"

// Event is the closed union of state transitions. Anything else reaching
// the reducer is a programming error and panics rather than corrupting
// state.
type Event interface {
	isEvent()
}

// EventJoined is the server's join acknowledgment assigning our identity.
type EventJoined struct {
	UserID   string
	Username string
}

// EventSeatTaken records taking a seat. It is dispatched twice per seating:
// once from the wire acknowledgment with Media nil, and again when the
// asynchronous local capture completes. A capture failure never produces a
// third form; the seat simply stays video-less.
type EventSeatTaken struct {
	SeatID string
	Media  MediaStream
	// ClientSeatMap is the roster carried by the wire acknowledgment; empty
	// on the capture-completion dispatch.
	ClientSeatMap map[string]string
}

// EventChat appends one chat line.
type EventChat struct {
	Entry ChatEntry
}

// EventGameUpdate replaces the game snapshot wholesale.
type EventGameUpdate struct {
	Game *protocol.GameState
}

// EventError sets the user-visible error slot.
type EventError struct {
	Message string
}

// EventPeerSignal marks an inbound signaling payload. The payload itself is
// routed to the mesh orchestrator by the gateway; the state value does not
// change, but the kind is part of the union so every inbound source flows
// through the same dispatch path.
type EventPeerSignal struct {
	PeerID string
}

// EventPeerAdded upserts a peer entry. Dispatched at creation (pending, no
// stream) and again when the remote stream arrives (connected).
type EventPeerAdded struct {
	Peer Peer
}

// EventPeerRemoved drops a peer entry. Closed peers are removed, never
// reused.
type EventPeerRemoved struct {
	PeerID string
}

func (EventJoined) isEvent()      {}
func (EventSeatTaken) isEvent()   {}
func (EventChat) isEvent()        {}
func (EventGameUpdate) isEvent()  {}
func (EventError) isEvent()       {}
func (EventPeerSignal) isEvent()  {}
func (EventPeerAdded) isEvent()   {}
func (EventPeerRemoved) isEvent() {}
