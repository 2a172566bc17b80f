package state

import (
	"fmt"

	"github.com/openfelt/tableclient/internal/protocol"
)

// reduce computes the next state from the current state and one event. It
// is total over the Event union and pure: no side effects, no mutation of
// the input, clones for every map or slice it writes.
func reduce(s AppState, ev Event) AppState {
	switch ev := ev.(type) {
	case EventJoined:
		s.UserID = ev.UserID
		s.Username = ev.Username
		return s

	case EventSeatTaken:
		s.SeatID = ev.SeatID
		if ev.Media != nil {
			s.LocalMedia = ev.Media
		}
		if len(ev.ClientSeatMap) > 0 {
			// Before the first update-game there is no snapshot to hang the
			// roster on; seed a waiting-stage one so the mesh sees it now.
			game := protocol.GameState{Stage: protocol.StageWaiting}
			if s.Game != nil {
				game = *s.Game
			}
			game.ClientSeatMap = ev.ClientSeatMap
			s.Game = &game
		}
		return s

	case EventChat:
		chat := make([]ChatEntry, len(s.Chat), len(s.Chat)+1)
		copy(chat, s.Chat)
		s.Chat = append(chat, ev.Entry)
		return s

	case EventGameUpdate:
		s.Game = ev.Game
		// A snapshot showing our seat held by someone else (or nobody)
		// means the server vacated us: drop the seat and the local media
		// reference. The orchestrator reacts by stopping capture and
		// closing peers.
		if s.SeatID != "" && ev.Game != nil {
			if occupant, ok := ev.Game.SeatOccupant(s.SeatID); !ok || occupant != s.UserID {
				s.SeatID = ""
				s.LocalMedia = nil
			}
		}
		return s

	case EventError:
		s.Err = ev.Message
		return s

	case EventPeerSignal:
		// Signal payloads are consumed by the mesh orchestrator; the
		// state value is unchanged.
		return s

	case EventPeerAdded:
		peers := clonePeers(s.Peers)
		peers[ev.Peer.PeerID] = ev.Peer
		s.Peers = peers
		return s

	case EventPeerRemoved:
		if _, ok := s.Peers[ev.PeerID]; !ok {
			return s
		}
		peers := clonePeers(s.Peers)
		delete(peers, ev.PeerID)
		s.Peers = peers
		return s

	default:
		panic(fmt.Sprintf("state: unknown event kind %T", ev))
	}
}

func clonePeers(peers map[string]Peer) map[string]Peer {
	cloned := make(map[string]Peer, len(peers)+1)
	for id, p := range peers {
		cloned[id] = p
	}
	return cloned
}
