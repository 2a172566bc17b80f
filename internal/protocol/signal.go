package protocol

import "encoding/json"

// Signal payload types exchanged during connection setup.
const (
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "candidate"
)

// SignalData is the connection-setup payload relayed inside send-signal /
// on-receive-signal envelopes. The server never inspects it. SDP carries the
// session description for offers and answers; Candidate carries one ICE
// candidate in its native JSON shape.
type SignalData struct {
	Type      string          `json:"type"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// IsOffer reports whether the payload starts a handshake. Offers are the
// only signal allowed to create a peer entry on the receiving side.
func (s SignalData) IsOffer() bool { return s.Type == SignalOffer }

// DecodeSignal parses the opaque signalData payload from an envelope.
func DecodeSignal(raw json.RawMessage) (SignalData, error) {
	var sig SignalData
	err := json.Unmarshal(raw, &sig)
	return sig, err
}

// EncodeSignal marshals a signal payload for the wire.
func EncodeSignal(sig SignalData) (json.RawMessage, error) {
	return json.Marshal(sig)
}
