package state

import (
	"testing"

	"github.com/openfelt/tableclient/internal/protocol"
)

type fakeStream struct {
	id string
}

func (f fakeStream) ID() string { return f.id }

func TestReduceJoined(t *testing.T) {
	s := reduce(AppState{}, EventJoined{UserID: "u1", Username: "alice"})

	if s.UserID != "u1" || s.Username != "alice" {
		t.Errorf("Identity not set: %+v", s)
	}
}

func TestReduceSeatTakenTwoPhase(t *testing.T) {
	// Wire ack first, capture completion second.
	s := reduce(AppState{}, EventSeatTaken{SeatID: "seat-2"})
	if s.SeatID != "seat-2" || s.LocalMedia != nil {
		t.Errorf("Expected seat without media, got %+v", s)
	}

	stream := fakeStream{id: "local"}
	s = reduce(s, EventSeatTaken{SeatID: "seat-2", Media: stream})
	if s.LocalMedia == nil || s.LocalMedia.ID() != "local" {
		t.Error("Media not attached on second dispatch")
	}
}

func TestReduceSeatTakenUpdatesRoster(t *testing.T) {
	game := &protocol.GameState{ClientSeatMap: map[string]string{"seat-1": "a"}}
	s := AppState{UserID: "me", Game: game}

	s = reduce(s, EventSeatTaken{
		SeatID:        "seat-2",
		ClientSeatMap: map[string]string{"seat-1": "a", "seat-2": "me"},
	})

	if s.Game == game {
		t.Error("Roster update must not mutate the prior snapshot")
	}
	if occupant, ok := s.Game.SeatOccupant("seat-2"); !ok || occupant != "me" {
		t.Errorf("Roster not applied: %+v", s.Game.ClientSeatMap)
	}
	if len(game.ClientSeatMap) != 1 {
		t.Error("Prior game snapshot mutated")
	}
}

func TestReduceSeatTakenSeedsRosterWithoutGame(t *testing.T) {
	// First seating can land before any update-game arrives; the ack's
	// roster must still become visible.
	s := reduce(AppState{UserID: "me"}, EventSeatTaken{
		SeatID:        "seat-1",
		ClientSeatMap: map[string]string{"seat-1": "me", "seat-2": "b"},
	})

	if s.Game == nil {
		t.Fatal("Expected a seeded game snapshot holding the roster")
	}
	if s.Game.Stage != protocol.StageWaiting {
		t.Errorf("Expected waiting stage, got %s", s.Game.Stage)
	}
	if ids := s.RemotePeerIDs(); len(ids) != 1 || ids[0] != "b" {
		t.Errorf("Roster not visible to the mesh: %v", ids)
	}
}

func TestReduceChatAppends(t *testing.T) {
	s := reduce(AppState{}, EventChat{Entry: ChatEntry{ID: "1", Username: "alice", Message: "hi"}})
	s = reduce(s, EventChat{Entry: ChatEntry{ID: "2", Username: "bob", Message: "yo"}})

	if len(s.Chat) != 2 {
		t.Fatalf("Expected 2 chat entries, got %d", len(s.Chat))
	}
	if s.Chat[0].Message != "hi" || s.Chat[1].Message != "yo" {
		t.Errorf("Chat order wrong: %+v", s.Chat)
	}
}

func TestReduceChatDuplicateDeliveryDuplicates(t *testing.T) {
	// The log is append-only with no dedupe by ID.
	entry := ChatEntry{ID: "1", Username: "alice", Message: "hi"}
	s := reduce(AppState{}, EventChat{Entry: entry})
	s = reduce(s, EventChat{Entry: entry})

	if len(s.Chat) != 2 {
		t.Errorf("Expected duplicate delivery to duplicate, got %d entries", len(s.Chat))
	}
}

func TestReduceChatDoesNotMutatePrior(t *testing.T) {
	s1 := reduce(AppState{}, EventChat{Entry: ChatEntry{ID: "1", Message: "first"}})
	s2 := reduce(s1, EventChat{Entry: ChatEntry{ID: "2", Message: "second"}})
	_ = reduce(s1, EventChat{Entry: ChatEntry{ID: "3", Message: "fork"}})

	if len(s1.Chat) != 1 {
		t.Errorf("Earlier snapshot mutated: %+v", s1.Chat)
	}
	if s2.Chat[1].Message != "second" {
		t.Errorf("Fork overwrote sibling snapshot: %+v", s2.Chat)
	}
}

func TestReduceGameUpdateReplacesWholesale(t *testing.T) {
	first := &protocol.GameState{Stage: protocol.StagePreflop, Table: protocol.Table{Pot: 10}}
	second := &protocol.GameState{Stage: protocol.StageFlop}

	s := reduce(AppState{}, EventGameUpdate{Game: first})
	s = reduce(s, EventGameUpdate{Game: second})

	if s.Game != second {
		t.Error("Expected second snapshot verbatim")
	}
	if s.Game.Table.Pot != 0 {
		t.Error("Snapshots must not be merged")
	}
}

func TestReduceGameUpdateVacatesSeat(t *testing.T) {
	s := AppState{
		UserID:     "u1",
		SeatID:     "seat-1",
		LocalMedia: fakeStream{id: "local"},
	}

	// Our seat is now held by someone else.
	s = reduce(s, EventGameUpdate{Game: &protocol.GameState{
		ClientSeatMap: map[string]string{"seat-1": "u2"},
	}})

	if s.SeatID != "" {
		t.Errorf("Expected seat cleared, got %q", s.SeatID)
	}
	if s.LocalMedia != nil {
		t.Error("Expected local media cleared")
	}
}

func TestReduceGameUpdateKeepsHeldSeat(t *testing.T) {
	s := AppState{UserID: "u1", SeatID: "seat-1", LocalMedia: fakeStream{id: "local"}}

	s = reduce(s, EventGameUpdate{Game: &protocol.GameState{
		ClientSeatMap: map[string]string{"seat-1": "u1"},
	}})

	if s.SeatID != "seat-1" || s.LocalMedia == nil {
		t.Errorf("Seat should survive an update confirming it: %+v", s)
	}
}

func TestReduceErrorLeavesGameUnchanged(t *testing.T) {
	game := &protocol.GameState{Stage: protocol.StageTurn}
	s := AppState{Game: game}

	s = reduce(s, EventError{Message: "Unknown message received."})

	if s.Err != "Unknown message received." {
		t.Errorf("Expected error set, got %q", s.Err)
	}
	if s.Game != game {
		t.Error("Game must be untouched by error events")
	}
}

func TestReducePeerSignalIsNoOp(t *testing.T) {
	before := AppState{SeatID: "seat-1", Peers: map[string]Peer{"p": {PeerID: "p"}}}
	after := reduce(before, EventPeerSignal{PeerID: "p"})

	if after.SeatID != before.SeatID || len(after.Peers) != 1 {
		t.Errorf("Signal event changed state: %+v", after)
	}
}

func TestReducePeerAddUpsertRemove(t *testing.T) {
	s := AppState{Peers: map[string]Peer{}}

	s = reduce(s, EventPeerAdded{Peer: Peer{PeerID: "p1", State: PeerPending}})
	if s.Peers["p1"].State != PeerPending {
		t.Errorf("Expected pending peer, got %+v", s.Peers["p1"])
	}

	stream := fakeStream{id: "remote"}
	s = reduce(s, EventPeerAdded{Peer: Peer{PeerID: "p1", State: PeerConnected, Stream: stream}})
	if s.Peers["p1"].State != PeerConnected || s.Peers["p1"].Stream == nil {
		t.Errorf("Upsert did not promote peer: %+v", s.Peers["p1"])
	}
	if len(s.Peers) != 1 {
		t.Errorf("Upsert created a duplicate: %d entries", len(s.Peers))
	}

	s = reduce(s, EventPeerRemoved{PeerID: "p1"})
	if len(s.Peers) != 0 {
		t.Errorf("Expected peer removed, got %+v", s.Peers)
	}
}

func TestReducePeerRemoveUnknownIsNoOp(t *testing.T) {
	before := AppState{Peers: map[string]Peer{"p1": {PeerID: "p1"}}}
	after := reduce(before, EventPeerRemoved{PeerID: "p9"})

	if len(after.Peers) != 1 {
		t.Errorf("Removing unknown peer changed map: %+v", after.Peers)
	}
}

func TestReducePeerMapIsCloned(t *testing.T) {
	before := AppState{Peers: map[string]Peer{"p1": {PeerID: "p1"}}}
	after := reduce(before, EventPeerAdded{Peer: Peer{PeerID: "p2"}})

	if len(before.Peers) != 1 {
		t.Errorf("Input snapshot mutated: %+v", before.Peers)
	}
	if len(after.Peers) != 2 {
		t.Errorf("Expected 2 peers, got %+v", after.Peers)
	}
}

type bogusEvent struct{}

func (bogusEvent) isEvent() {}

func TestReduceUnknownEventPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for unknown event kind")
		}
	}()
	reduce(AppState{}, bogusEvent{})
}

func TestRemotePeerIDs(t *testing.T) {
	s := AppState{
		UserID: "me",
		Game: &protocol.GameState{ClientSeatMap: map[string]string{
			"seat-1": "me",
			"seat-2": "b",
			"seat-3": "c",
			"seat-4": "",
		}},
	}

	ids := s.RemotePeerIDs()
	if len(ids) != 2 {
		t.Fatalf("Expected 2 remote peers, got %v", ids)
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["b"] || !seen["c"] {
		t.Errorf("Expected b and c, got %v", ids)
	}
}

func TestRemotePeerIDsNoGame(t *testing.T) {
	if ids := (AppState{UserID: "me"}).RemotePeerIDs(); ids != nil {
		t.Errorf("Expected nil roster, got %v", ids)
	}
}
