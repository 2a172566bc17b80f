// Package mesh keeps the set of direct peer media connections consistent
// with the seated-player roster. It owns every connection handle; nothing
// else in the process touches one.
package mesh

import (
	"github.com/openfelt/tableclient/internal/media"
	"github.com/openfelt/tableclient/internal/protocol"
	"github.com/openfelt/tableclient/internal/state"
)

// Signaler relays an outbound signaling payload to one peer. The gateway
// implements this by wrapping the payload in a send-signal envelope.
type Signaler interface {
	SendSignal(peerID string, sig protocol.SignalData) error
}

// Conn is one live peer connection. Signal feeds it a remote description or
// candidate; Close tears it down. Close is idempotent.
type Conn interface {
	Signal(sig protocol.SignalData) error
	Close() error
}

// ConnCallbacks are fired by a Conn implementation from its own goroutines.
// The orchestrator re-enters its loop for each one; callbacks never mutate
// orchestrator state directly.
type ConnCallbacks struct {
	// OnSignal fires when a local description or candidate is ready to be
	// relayed to the remote side.
	OnSignal func(sig protocol.SignalData)
	// OnStream fires once when the remote media stream arrives.
	OnStream func(stream state.MediaStream)
	// OnClose fires when the connection ends for any reason other than a
	// local Close call.
	OnClose func(err error)
}

// Dialer creates peer connections. Dial starts an offer handshake toward a
// newly seated peer; Accept answers an unsolicited inbound offer. local may
// be nil on the accepting side, in which case the connection is
// receive-only.
type Dialer interface {
	Dial(peerID string, local media.Source, cb ConnCallbacks) (Conn, error)
	Accept(peerID string, offer protocol.SignalData, local media.Source, cb ConnCallbacks) (Conn, error)
}
