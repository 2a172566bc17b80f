package mesh

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/openfelt/tableclient/internal/media"
	"github.com/openfelt/tableclient/internal/protocol"
	"github.com/openfelt/tableclient/internal/state"
)

// CaptureFunc acquires the local media stream. It is called once per
// seating, off the orchestrator loop; an error degrades the session to
// no-video rather than blocking the seat.
type CaptureFunc func(ctx context.Context) (media.Source, error)

// peerEntry is the orchestrator's ownership record for one connection. The
// instance ID distinguishes a live entry from a superseded one so that
// late-arriving stream or close events for an old instance are discarded.
type peerEntry struct {
	instanceID string
	peerID     string
	conn       Conn
	closed     bool
}

// Orchestrator maintains exactly one peer connection per remote occupied
// seat. All of its state is confined to the Run goroutine: store
// notifications, inbound signals, and connection callbacks are funneled
// through channels onto that one goroutine, and every externally visible
// effect leaves through a store dispatch or the Signaler.
//
// The initiator rule is asymmetric by design: only the side that already
// has a local capture stream and observes a newly occupied remote seat
// sends an offer. The side receiving an offer always answers, creating its
// entry lazily, regardless of its own seat or media state. Two sides can
// therefore never offer to each other for the same pair.
type Orchestrator struct {
	store    *state.Store
	signaler Signaler
	dialer   Dialer
	capture  CaptureFunc
	logger   *log.Logger

	changes chan struct{}
	tasks   chan func()
	done    chan struct{}

	// Everything below is owned by the Run goroutine.
	peers         map[string]*peerEntry
	localSrc      media.Source
	acquiring     bool
	captureFailed bool
	wasSeated     bool
}

// New creates an orchestrator. It does nothing until Run is called.
func New(store *state.Store, signaler Signaler, dialer Dialer, capture CaptureFunc, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		signaler: signaler,
		dialer:   dialer,
		capture:  capture,
		logger:   logger.WithPrefix("mesh"),
		changes:  make(chan struct{}, 1),
		tasks:    make(chan func(), 256),
		done:     make(chan struct{}),
		peers:    make(map[string]*peerEntry),
	}
}

// Run drives the orchestrator until ctx is cancelled. It subscribes to the
// store and reconciles the mesh on every state change.
func (m *Orchestrator) Run(ctx context.Context) error {
	unsubscribe := m.store.Subscribe(func(state.AppState) {
		// Latest-wins: the loop reads a fresh snapshot, so coalescing
		// bursts of notifications is safe.
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()
	defer close(m.done)
	defer m.shutdown()

	m.sync(ctx, m.store.State())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.changes:
			m.sync(ctx, m.store.State())
		case task := <-m.tasks:
			task()
		}
	}
}

// HandleSignal is the gateway's entry point for one inbound signaling
// payload. Safe to call from any goroutine.
func (m *Orchestrator) HandleSignal(peerID string, sig protocol.SignalData) {
	m.do(func() {
		m.store.Dispatch(state.EventPeerSignal{PeerID: peerID})
		m.handleSignal(peerID, sig)
	})
}

// do schedules fn onto the Run goroutine.
func (m *Orchestrator) do(fn func()) {
	select {
	case m.tasks <- fn:
	case <-m.done:
	}
}

// sync reacts to one state snapshot: manages local capture and reconciles
// the peer set against the roster.
func (m *Orchestrator) sync(ctx context.Context, st state.AppState) {
	if m.wasSeated && !st.Seated() {
		// Vacated: release local media and close the whole mesh.
		m.releaseLocalMedia()
		m.closeAll()
	}
	m.wasSeated = st.Seated()

	if st.Seated() && m.localSrc == nil && !m.acquiring && !m.captureFailed && m.capture != nil {
		m.acquireMedia(ctx, st.SeatID)
	}

	m.reconcile(st.RemotePeerIDs())
}

// reconcile brings the peer set in line with the roster. Targets without an
// entry get an initiator connection when local media is available; entries
// whose target left the roster are closed and removed. Calling it twice
// with the same roster is a no-op.
func (m *Orchestrator) reconcile(roster []string) {
	targets := make(map[string]bool, len(roster))
	for _, peerID := range roster {
		targets[peerID] = true
		if _, ok := m.peers[peerID]; ok {
			continue
		}
		if m.localSrc == nil {
			// Without local media we never initiate; the remote side's
			// offer will create the entry in responder mode.
			continue
		}
		m.dial(peerID)
	}

	for peerID, entry := range m.peers {
		if !targets[peerID] {
			m.closePeer(entry)
		}
	}
}

// dial opens an initiator connection toward peerID.
func (m *Orchestrator) dial(peerID string) {
	entry := &peerEntry{instanceID: uuid.NewString(), peerID: peerID}
	conn, err := m.dialer.Dial(peerID, m.localSrc, m.callbacks(entry))
	if err != nil {
		m.logger.Warn("dial failed", "peer", peerID, "err", err)
		return
	}
	entry.conn = conn
	m.peers[peerID] = entry
	m.logger.Info("peer dialing", "peer", peerID)
	m.store.Dispatch(state.EventPeerAdded{Peer: state.Peer{PeerID: peerID, State: state.PeerPending}})
}

// handleSignal routes one inbound payload on the Run goroutine.
func (m *Orchestrator) handleSignal(peerID string, sig protocol.SignalData) {
	if entry, ok := m.peers[peerID]; ok {
		if err := entry.conn.Signal(sig); err != nil {
			m.logger.Warn("signal rejected", "peer", peerID, "type", sig.Type, "err", err)
		}
		return
	}

	if !sig.IsOffer() {
		// A candidate or answer for a peer we no longer (or never) track:
		// the remote side closed or raced a teardown. Expected, not an
		// error.
		m.logger.Debug("discarding signal for unknown peer", "peer", peerID, "type", sig.Type)
		return
	}

	// Unsolicited offer: answer it, creating the entry lazily. Local media
	// may be nil here; the connection is then receive-only.
	entry := &peerEntry{instanceID: uuid.NewString(), peerID: peerID}
	conn, err := m.dialer.Accept(peerID, sig, m.localSrc, m.callbacks(entry))
	if err != nil {
		m.logger.Warn("accept failed", "peer", peerID, "err", err)
		return
	}
	entry.conn = conn
	m.peers[peerID] = entry
	m.logger.Info("peer answering", "peer", peerID)
	m.store.Dispatch(state.EventPeerAdded{Peer: state.Peer{PeerID: peerID, State: state.PeerPending}})
}

// callbacks builds the connection callbacks for one entry. Each callback
// hops onto the Run goroutine and checks the instance ID so events from a
// superseded connection are dropped as benign races.
func (m *Orchestrator) callbacks(entry *peerEntry) ConnCallbacks {
	return ConnCallbacks{
		OnSignal: func(sig protocol.SignalData) {
			m.do(func() {
				if !m.isCurrent(entry) {
					return
				}
				if err := m.signaler.SendSignal(entry.peerID, sig); err != nil {
					m.logger.Warn("send signal failed", "peer", entry.peerID, "err", err)
				}
			})
		},
		OnStream: func(stream state.MediaStream) {
			m.do(func() {
				if !m.isCurrent(entry) {
					return
				}
				m.logger.Info("peer connected", "peer", entry.peerID)
				m.store.Dispatch(state.EventPeerAdded{Peer: state.Peer{
					PeerID: entry.peerID,
					State:  state.PeerConnected,
					Stream: stream,
				}})
			})
		},
		OnClose: func(err error) {
			m.do(func() {
				if !m.isCurrent(entry) {
					return
				}
				if err != nil {
					m.logger.Warn("peer connection lost", "peer", entry.peerID, "err", err)
				}
				m.closePeer(entry)
			})
		},
	}
}

// isCurrent reports whether entry is still the live record for its peer.
func (m *Orchestrator) isCurrent(entry *peerEntry) bool {
	current, ok := m.peers[entry.peerID]
	return ok && current.instanceID == entry.instanceID && !entry.closed
}

// closePeer closes the connection exactly once, removes the entry, and
// reflects the removal into the store. Closed entries are never reused.
func (m *Orchestrator) closePeer(entry *peerEntry) {
	if entry.closed {
		return
	}
	entry.closed = true
	if err := entry.conn.Close(); err != nil {
		m.logger.Debug("close error", "peer", entry.peerID, "err", err)
	}
	delete(m.peers, entry.peerID)
	m.logger.Info("peer closed", "peer", entry.peerID)
	m.store.Dispatch(state.EventPeerRemoved{PeerID: entry.peerID})
}

func (m *Orchestrator) closeAll() {
	for _, entry := range m.peers {
		m.closePeer(entry)
	}
}

// acquireMedia starts the asynchronous local capture for a seating. The
// completion hops back onto the Run goroutine; if the seat was vacated in
// the meantime the stream is closed and discarded rather than cancelled
// mid-acquisition.
func (m *Orchestrator) acquireMedia(ctx context.Context, seatID string) {
	m.acquiring = true
	go func() {
		src, err := m.capture(ctx)
		m.do(func() {
			m.acquiring = false
			if err != nil {
				// Deliberate suppression: a denied or absent capture
				// device means no video, not no seat.
				m.captureFailed = true
				m.logger.Warn("local media unavailable, continuing without video", "err", err)
				return
			}
			st := m.store.State()
			if !st.Seated() {
				_ = src.Close()
				return
			}
			m.localSrc = src
			m.store.Dispatch(state.EventSeatTaken{SeatID: st.SeatID, Media: src})
		})
	}()
}

func (m *Orchestrator) releaseLocalMedia() {
	if m.localSrc != nil {
		_ = m.localSrc.Close()
		m.localSrc = nil
	}
	m.captureFailed = false
}

func (m *Orchestrator) shutdown() {
	m.closeAll()
	m.releaseLocalMedia()
}
