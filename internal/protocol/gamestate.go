package protocol

// Stage is the current round of betting. The progression is strictly linear
// with Waiting as both the entry state and the re-entry state between hands.
type Stage string

// Stages of a hand, matching the server's string encoding.
const (
	StageWaiting  Stage = "Waiting"
	StagePreflop  Stage = "Preflop"
	StageFlop     Stage = "Flop"
	StageTurn     Stage = "Turn"
	StageRiver    Stage = "River"
	StageShowdown Stage = "Showdown"
)

// Seat occupancy statuses.
const (
	StatusVacated    = "vacated"
	StatusSittingOut = "sitting-out"
	StatusActive     = "active"
)

// Card is one playing card. Rank is 0 (deuce) through 12 (ace); suit is
// 0-3 in club/diamond/heart/spade order.
type Card struct {
	Rank int `json:"rank"`
	Suit int `json:"suit"`
}

// Player is the server's view of one seat. HoleCards are only populated
// for the local player; other seats see nulls until showdown.
type Player struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	Chips      int     `json:"chips"`
	ChipsInPot *int    `json:"chipsInPot"`
	HoleCards  []*Card `json:"holeCards"`
	HasFolded  bool    `json:"hasFolded"`
	IsActive   bool    `json:"isActive"`
	IsDealer   bool    `json:"isDealer"`
	Muted      bool    `json:"muted"`
}

// Table holds the community cards and pot. Flop carries zero to three
// cards; turn and river at most one each.
type Table struct {
	Flop  []*Card `json:"flop"`
	Turn  *Card   `json:"turn"`
	River *Card   `json:"river"`
	Pot   int     `json:"pot"`
}

// ActionBar describes what the acting player may do, as computed by the
// server. SeatID identifies whose turn it is.
type ActionBar struct {
	Actions        []string `json:"actions"`
	SeatID         string   `json:"seatID"`
	CallAmount     int      `json:"callAmount"`
	ChipsInPot     int      `json:"chipsInPot"`
	MinBetAmount   int      `json:"minBetAmount"`
	MinRaiseAmount int      `json:"minRaiseAmount"`
	MaxRaiseAmount int      `json:"maxRaiseAmount"`
	TotalChips     int      `json:"totalChips"`
}

// GameState is the server-authoritative table snapshot pushed on every
// update-game event. It is replaced wholesale; the client never diffs it.
// ClientSeatMap maps seat IDs to the connection IDs occupying them and is
// what drives the peer mesh.
type GameState struct {
	Stage         Stage             `json:"stage"`
	Players       []Player          `json:"players"`
	Table         Table             `json:"table"`
	ActionBar     ActionBar         `json:"actionBar"`
	ClientSeatMap map[string]string `json:"clientSeatMap"`
}

// SeatOccupant returns the connection ID seated at seatID, if any.
func (g *GameState) SeatOccupant(seatID string) (string, bool) {
	if g == nil || g.ClientSeatMap == nil {
		return "", false
	}
	id, ok := g.ClientSeatMap[seatID]
	return id, ok && id != ""
}
