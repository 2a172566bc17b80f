// Package state holds the client's single source of truth: an immutable
// AppState value advanced by a pure reducer over a closed set of events.
// Components read snapshots and subscribe to changes; only Dispatch writes.
package state

import "github.com/openfelt/tableclient/internal/protocol"

// MediaStream is an opaque handle to live media, either the local capture
// stream or a remote peer's stream. The state layer never dereferences it
// beyond identity; rendering and teardown belong to the components that
// created it.
type MediaStream interface {
	ID() string
}

// PeerState is the lifecycle state of one peer connection.
type PeerState int

const (
	// PeerPending means the handshake is in flight.
	PeerPending PeerState = iota
	// PeerConnected means the remote stream has arrived.
	PeerConnected
)

func (p PeerState) String() string {
	return [...]string{"pending", "connected"}[p]
}

// Peer is the store's view of one peer connection. The connection handle
// itself is owned exclusively by the mesh orchestrator; the store only sees
// lifecycle state and the remote stream once it arrives.
type Peer struct {
	PeerID string
	State  PeerState
	Stream MediaStream
}

// ChatEntry is one chat line. The log is append-only and is not deduped by
// ID; duplicate delivery shows up twice by design.
type ChatEntry struct {
	ID       string
	Username string
	Message  string
}

// AppState is the aggregate client state. It is a value: the reducer
// returns a fresh copy for every transition and clones any map or slice it
// touches, so a snapshot handed to a subscriber never changes underneath it.
type AppState struct {
	// Session identity, assigned once by the join acknowledgment.
	UserID   string
	Username string

	// SeatID is empty while spectating.
	SeatID string

	// Game is the latest server snapshot, replaced wholesale per update.
	Game *protocol.GameState

	Chat  []ChatEntry
	Peers map[string]Peer

	// LocalMedia is non-nil only while seated with capture running.
	LocalMedia MediaStream

	// Err is the last user-visible error, if any.
	Err string
}

// Seated reports whether the local player currently holds a seat.
func (s AppState) Seated() bool { return s.SeatID != "" }

// RemotePeerIDs derives the set of peers the mesh should be connected to:
// every occupant in the roster except ourselves.
func (s AppState) RemotePeerIDs() []string {
	if s.Game == nil || len(s.Game.ClientSeatMap) == 0 {
		return nil
	}
	ids := make([]string, 0, len(s.Game.ClientSeatMap))
	for _, clientID := range s.Game.ClientSeatMap {
		if clientID == "" || clientID == s.UserID {
			continue
		}
		ids = append(ids, clientID)
	}
	return ids
}
