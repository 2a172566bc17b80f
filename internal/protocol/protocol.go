// Package protocol defines the wire format shared with the table server:
// a JSON envelope of {action, params} with a closed action vocabulary.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client to server actions
const (
	ActionJoin        = "join"
	ActionTakeSeat    = "take-seat"
	ActionSendMessage = "send-message"
	ActionSendSignal  = "send-signal"
	ActionCall        = "call"
	ActionCheck       = "check"
	ActionFold        = "fold"
	ActionRaise       = "raise"
)

// Server to client actions
const (
	ActionOnJoin          = "on-join"
	ActionOnTakeSeat      = "on-take-seat"
	ActionUpdateGame      = "update-game"
	ActionNewMessage      = "new-message"
	ActionOnReceiveSignal = "on-receive-signal"
	ActionError           = "error"
)

// Envelope is one message on the wire, in either direction. Params stays
// raw until the action has been routed, so a bad payload for one action
// cannot poison the read loop.
type Envelope struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

// Encode marshals an envelope with its typed params.
func Encode(action string, params any) ([]byte, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", action, err)
	}
	return json.Marshal(Envelope{Action: action, Params: raw})
}

// Decode unmarshals a raw wire message into an envelope.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Action == "" {
		return nil, fmt.Errorf("decode envelope: missing action")
	}
	return &env, nil
}

// DecodeParams unmarshals an envelope's params into a typed struct.
func DecodeParams(env *Envelope, v any) error {
	if len(env.Params) == 0 {
		return fmt.Errorf("%s: missing params", env.Action)
	}
	if err := json.Unmarshal(env.Params, v); err != nil {
		return fmt.Errorf("%s: bad params: %w", env.Action, err)
	}
	return nil
}

// Client to server params

// JoinParams requests a session for a display name.
type JoinParams struct {
	Username string `json:"username"`
}

// TakeSeatParams claims a table seat.
type TakeSeatParams struct {
	SeatID string `json:"seatID"`
}

// SendMessageParams posts a chat line.
type SendMessageParams struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// SendSignalParams relays connection-setup data to one peer. SignalData is
// opaque to the server; it only routes on PeerID.
type SendSignalParams struct {
	PeerID     string          `json:"peerID"`
	SignalData json.RawMessage `json:"signalData"`
}

// RaiseParams carries the raise-to amount for a raise action. The other
// player actions (call, check, fold) have empty params.
type RaiseParams struct {
	Value int `json:"value"`
}

// Server to client params

// OnJoinParams acknowledges a join and assigns the session identity.
type OnJoinParams struct {
	UserID   string `json:"userID"`
	Username string `json:"username"`
}

// OnTakeSeatParams acknowledges a seat claim.
type OnTakeSeatParams struct {
	SeatID        string            `json:"seatID"`
	ClientSeatMap map[string]string `json:"clientSeatMap,omitempty"`
}

// NewMessageParams is one broadcast chat line.
type NewMessageParams struct {
	ID       string `json:"id"`
	Message  string `json:"message"`
	Username string `json:"username"`
}

// OnReceiveSignalParams relays connection-setup data from one peer.
type OnReceiveSignalParams struct {
	PeerID     string          `json:"peerID"`
	SignalData json.RawMessage `json:"signalData"`
}

// ErrorParams surfaces a server-side error to the user.
type ErrorParams struct {
	Error string `json:"error"`
}
