// Package gateway owns the one persistent websocket to the table server.
// Inbound envelopes are demultiplexed into exactly one store dispatch each
// (or one orchestrator call for signaling); outbound user intents become
// envelopes. A gateway instance is single-use: once its connection errors
// or closes it stays disconnected, and reconnecting means building a new
// instance.
package gateway

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"

	"github.com/openfelt/tableclient/internal/protocol"
	"github.com/openfelt/tableclient/internal/state"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 54 * time.Second
)

// Error messages surfaced to the user.
const (
	errConnect = "Could not connect to the server."
	errLost    = "Lost connection to the server."
	errUnknown = "Unknown message received."
)

// SignalHandler consumes inbound signaling payloads. The mesh orchestrator
// implements it.
type SignalHandler interface {
	HandleSignal(peerID string, sig protocol.SignalData)
}

// Gateway is the channel between the wire and the store.
type Gateway struct {
	serverURL string
	store     *state.Store
	signals   SignalHandler
	logger    *log.Logger
	clock     quartz.Clock

	conn      *websocket.Conn
	send      chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	errOnce   sync.Once

	mu        sync.RWMutex
	connected bool
}

// New creates a gateway. Nothing happens on the wire until Connect.
func New(serverURL string, store *state.Store, signals SignalHandler, logger *log.Logger, clock quartz.Clock) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		serverURL: serverURL,
		store:     store,
		signals:   signals,
		logger:    logger.WithPrefix("gateway"),
		clock:     clock,
		send:      make(chan []byte, 256),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Connect dials the server and starts the read and write pumps. A dial
// failure is surfaced as an error event as well as returned, since the
// user-visible error slot is how connection state reaches the UI.
func (g *Gateway) Connect() error {
	u, err := url.Parse(g.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	g.logger.Info("connecting", "url", u.String())
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		g.dispatchConnError(errConnect)
		return fmt.Errorf("failed to connect: %w", err)
	}

	g.mu.Lock()
	g.conn = conn
	g.connected = true
	g.mu.Unlock()

	go g.readPump()
	go g.writePump()

	g.logger.Info("connected")
	return nil
}

// Close shuts the gateway down without surfacing an error to the user.
func (g *Gateway) Close() error {
	g.closeOnce.Do(func() {
		g.cancel()
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.conn != nil {
			_ = g.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			_ = g.conn.Close()
		}
		g.connected = false
		g.logger.Info("disconnected")
	})
	return nil
}

// IsConnected reports whether the connection is still live.
func (g *Gateway) IsConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}

// readPump reads envelopes until the connection dies, then surfaces a
// single error event and leaves the gateway in its terminal disconnected
// state.
func (g *Gateway) readPump() {
	defer func() {
		g.mu.Lock()
		g.connected = false
		g.mu.Unlock()
	}()

	for {
		_, data, err := g.conn.ReadMessage()
		if err != nil {
			select {
			case <-g.ctx.Done():
				// Local shutdown, not an error the user needs.
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					g.logger.Error("read failed", "err", err)
				}
				g.dispatchConnError(errLost)
			}
			return
		}
		g.route(data)
	}
}

// writePump owns all writes to the connection, including pings.
func (g *Gateway) writePump() {
	ticker := g.clock.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = g.conn.Close()
	}()

	for {
		select {
		case data := <-g.send:
			_ = g.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := g.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				g.logger.Error("write failed", "err", err)
				return
			}
		case <-ticker.C:
			_ = g.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := g.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-g.ctx.Done():
			return
		}
	}
}

// route demultiplexes one inbound wire message. Every message yields
// exactly one store dispatch, except signaling which yields one
// orchestrator call. Unroutable or malformed input becomes an error event;
// it never crashes the connection.
func (g *Gateway) route(data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		g.logger.Warn("undecodable message", "err", err)
		g.store.Dispatch(state.EventError{Message: errUnknown})
		return
	}

	switch env.Action {
	case protocol.ActionOnJoin:
		var p protocol.OnJoinParams
		if g.badParams(env, &p) {
			return
		}
		g.store.Dispatch(state.EventJoined{UserID: p.UserID, Username: p.Username})

	case protocol.ActionOnTakeSeat:
		var p protocol.OnTakeSeatParams
		if g.badParams(env, &p) {
			return
		}
		g.store.Dispatch(state.EventSeatTaken{SeatID: p.SeatID, ClientSeatMap: p.ClientSeatMap})

	case protocol.ActionNewMessage:
		var p protocol.NewMessageParams
		if g.badParams(env, &p) {
			return
		}
		g.store.Dispatch(state.EventChat{Entry: state.ChatEntry{
			ID:       p.ID,
			Username: p.Username,
			Message:  p.Message,
		}})

	case protocol.ActionUpdateGame:
		var game protocol.GameState
		if g.badParams(env, &game) {
			return
		}
		g.store.Dispatch(state.EventGameUpdate{Game: &game})

	case protocol.ActionOnReceiveSignal:
		var p protocol.OnReceiveSignalParams
		if g.badParams(env, &p) {
			return
		}
		sig, err := protocol.DecodeSignal(p.SignalData)
		if err != nil {
			g.logger.Warn("bad signal payload", "peer", p.PeerID, "err", err)
			g.store.Dispatch(state.EventError{Message: errUnknown})
			return
		}
		g.signals.HandleSignal(p.PeerID, sig)

	case protocol.ActionError:
		var p protocol.ErrorParams
		if g.badParams(env, &p) {
			return
		}
		g.store.Dispatch(state.EventError{Message: p.Error})

	default:
		g.logger.Warn("unroutable action", "action", env.Action)
		g.store.Dispatch(state.EventError{Message: errUnknown})
	}
}

// badParams dispatches a protocol error for a malformed payload. The
// connection stays open.
func (g *Gateway) badParams(env *protocol.Envelope, v any) bool {
	if err := protocol.DecodeParams(env, v); err != nil {
		g.logger.Warn("malformed params", "action", env.Action, "err", err)
		g.store.Dispatch(state.EventError{Message: errUnknown})
		return true
	}
	return false
}

// dispatchConnError surfaces at most one transport error per gateway
// instance.
func (g *Gateway) dispatchConnError(msg string) {
	g.errOnce.Do(func() {
		g.store.Dispatch(state.EventError{Message: msg})
	})
}

// Outbound intents

// Join requests a session under a display name.
func (g *Gateway) Join(username string) error {
	return g.sendEnvelope(protocol.ActionJoin, protocol.JoinParams{Username: username})
}

// TakeSeat claims a seat.
func (g *Gateway) TakeSeat(seatID string) error {
	return g.sendEnvelope(protocol.ActionTakeSeat, protocol.TakeSeatParams{SeatID: seatID})
}

// SendChat posts a chat line under the session's username.
func (g *Gateway) SendChat(message string) error {
	username := g.store.State().Username
	return g.sendEnvelope(protocol.ActionSendMessage, protocol.SendMessageParams{
		Username: username,
		Message:  message,
	})
}

// SendSignal relays a connection-setup payload to one peer. It implements
// the mesh Signaler interface.
func (g *Gateway) SendSignal(peerID string, sig protocol.SignalData) error {
	raw, err := protocol.EncodeSignal(sig)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}
	return g.sendEnvelope(protocol.ActionSendSignal, protocol.SendSignalParams{
		PeerID:     peerID,
		SignalData: raw,
	})
}

// Act sends a player action. Raise carries the raise-to amount; the other
// actions have empty params.
func (g *Gateway) Act(action string, raiseTo int) error {
	switch action {
	case protocol.ActionCall, protocol.ActionCheck, protocol.ActionFold:
		return g.sendEnvelope(action, struct{}{})
	case protocol.ActionRaise:
		return g.sendEnvelope(action, protocol.RaiseParams{Value: raiseTo})
	default:
		return fmt.Errorf("gateway: not a player action: %q", action)
	}
}

func (g *Gateway) sendEnvelope(action string, params any) error {
	data, err := protocol.Encode(action, params)
	if err != nil {
		return err
	}

	if !g.IsConnected() {
		return fmt.Errorf("gateway: not connected")
	}

	select {
	case g.send <- data:
		return nil
	case <-g.ctx.Done():
		return g.ctx.Err()
	default:
		return fmt.Errorf("gateway: send buffer full")
	}
}
