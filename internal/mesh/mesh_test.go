package mesh

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfelt/tableclient/internal/media"
	"github.com/openfelt/tableclient/internal/protocol"
	"github.com/openfelt/tableclient/internal/state"
)

type fakeSource struct {
	closed int
}

func (f *fakeSource) ID() string                           { return "local" }
func (f *fakeSource) Tracks() []webrtc.TrackLocal          { return nil }
func (f *fakeSource) Populate(_ *webrtc.MediaEngine) error { return nil }
func (f *fakeSource) Close() error                         { f.closed++; return nil }

type fakeSignaler struct {
	sent []string
}

func (f *fakeSignaler) SendSignal(peerID string, _ protocol.SignalData) error {
	f.sent = append(f.sent, peerID)
	return nil
}

type fakeConn struct {
	peerID    string
	signals   []protocol.SignalData
	closed    int
	callbacks ConnCallbacks
}

func (f *fakeConn) Signal(sig protocol.SignalData) error {
	f.signals = append(f.signals, sig)
	return nil
}

func (f *fakeConn) Close() error {
	f.closed++
	return nil
}

type fakeDialer struct {
	dialed   []string
	accepted []string
	conns    map[string]*fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: map[string]*fakeConn{}}
}

func (f *fakeDialer) Dial(peerID string, _ media.Source, cb ConnCallbacks) (Conn, error) {
	f.dialed = append(f.dialed, peerID)
	conn := &fakeConn{peerID: peerID, callbacks: cb}
	f.conns[peerID] = conn
	return conn, nil
}

func (f *fakeDialer) Accept(peerID string, _ protocol.SignalData, _ media.Source, cb ConnCallbacks) (Conn, error) {
	f.accepted = append(f.accepted, peerID)
	conn := &fakeConn{peerID: peerID, callbacks: cb}
	f.conns[peerID] = conn
	return conn, nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *state.Store, *fakeDialer, *fakeSignaler) {
	t.Helper()
	logger := log.New(io.Discard)
	store := state.NewStore(logger)
	dialer := newFakeDialer()
	signaler := &fakeSignaler{}
	m := New(store, signaler, dialer, nil, logger)
	return m, store, dialer, signaler
}

// drainTasks runs everything the connection callbacks queued, standing in
// for the Run loop.
func drainTasks(m *Orchestrator) {
	for {
		select {
		case task := <-m.tasks:
			task()
		default:
			return
		}
	}
}

func TestReconcileDialsNewTargets(t *testing.T) {
	m, store, dialer, _ := newTestOrchestrator(t)
	m.localSrc = &fakeSource{}

	m.reconcile([]string{"B", "C"})

	assert.ElementsMatch(t, []string{"B", "C"}, dialer.dialed)
	assert.Len(t, m.peers, 2)

	peers := store.State().Peers
	require.Contains(t, peers, "B")
	require.Contains(t, peers, "C")
	assert.Equal(t, state.PeerPending, peers["B"].State)
	assert.Equal(t, state.PeerPending, peers["C"].State)
}

func TestReconcileIsIdempotent(t *testing.T) {
	m, _, dialer, _ := newTestOrchestrator(t)
	m.localSrc = &fakeSource{}

	m.reconcile([]string{"B", "C"})
	m.reconcile([]string{"B", "C"})

	assert.Len(t, dialer.dialed, 2, "second reconcile must not re-dial")
	assert.Len(t, m.peers, 2)
}

func TestReconcileWithoutLocalMediaNeverDials(t *testing.T) {
	m, _, dialer, _ := newTestOrchestrator(t)

	m.reconcile([]string{"B"})

	assert.Empty(t, dialer.dialed)
	assert.Empty(t, m.peers)
}

func TestReconcileClosesDepartedPeerOnce(t *testing.T) {
	m, store, dialer, _ := newTestOrchestrator(t)
	m.localSrc = &fakeSource{}

	m.reconcile([]string{"X"})
	conn := dialer.conns["X"]
	require.NotNil(t, conn)

	m.reconcile([]string{})
	m.reconcile([]string{})

	assert.Equal(t, 1, conn.closed, "connection must close exactly once")
	assert.Empty(t, m.peers)
	assert.NotContains(t, store.State().Peers, "X")
}

func TestHandleSignalForwardsToKnownPeer(t *testing.T) {
	m, _, dialer, _ := newTestOrchestrator(t)
	m.localSrc = &fakeSource{}
	m.reconcile([]string{"B"})

	sig := protocol.SignalData{Type: protocol.SignalAnswer, SDP: "v=0"}
	m.handleSignal("B", sig)

	require.Len(t, dialer.conns["B"].signals, 1)
	assert.Equal(t, protocol.SignalAnswer, dialer.conns["B"].signals[0].Type)
}

func TestHandleSignalNonOfferUnknownPeerDiscarded(t *testing.T) {
	m, store, dialer, _ := newTestOrchestrator(t)

	m.handleSignal("ghost", protocol.SignalData{Type: protocol.SignalCandidate})
	m.handleSignal("ghost", protocol.SignalData{Type: protocol.SignalAnswer})

	assert.Empty(t, m.peers)
	assert.Empty(t, dialer.accepted)
	assert.Empty(t, store.State().Peers)
}

func TestHandleSignalOfferCreatesResponder(t *testing.T) {
	m, store, dialer, _ := newTestOrchestrator(t)

	m.handleSignal("B", protocol.SignalData{Type: protocol.SignalOffer, SDP: "v=0"})

	assert.Equal(t, []string{"B"}, dialer.accepted)
	assert.Contains(t, m.peers, "B")
	assert.Equal(t, state.PeerPending, store.State().Peers["B"].State)
}

func TestStreamArrivalPromotesPeer(t *testing.T) {
	m, store, dialer, _ := newTestOrchestrator(t)
	m.localSrc = &fakeSource{}
	m.reconcile([]string{"B"})

	dialer.conns["B"].callbacks.OnStream(fakeRemoteStream{})
	drainTasks(m)

	peer := store.State().Peers["B"]
	assert.Equal(t, state.PeerConnected, peer.State)
	require.NotNil(t, peer.Stream)
	assert.Equal(t, "remote", peer.Stream.ID())
}

func TestStaleCallbacksDiscarded(t *testing.T) {
	m, store, dialer, _ := newTestOrchestrator(t)
	m.localSrc = &fakeSource{}
	m.reconcile([]string{"B"})
	stale := dialer.conns["B"]

	// Peer departs and comes back: a fresh instance replaces the entry.
	m.reconcile([]string{})
	m.reconcile([]string{"B"})

	stale.callbacks.OnStream(fakeRemoteStream{})
	drainTasks(m)

	assert.Equal(t, state.PeerPending, store.State().Peers["B"].State,
		"stream from a superseded connection must be ignored")
}

func TestConnectionLossRemovesPeer(t *testing.T) {
	m, store, dialer, _ := newTestOrchestrator(t)
	m.localSrc = &fakeSource{}
	m.reconcile([]string{"B"})

	dialer.conns["B"].callbacks.OnClose(context.Canceled)
	drainTasks(m)

	assert.Empty(t, m.peers)
	assert.NotContains(t, store.State().Peers, "B")
	assert.Equal(t, 1, dialer.conns["B"].closed)
}

func TestOutboundSignalRelayed(t *testing.T) {
	m, _, dialer, signaler := newTestOrchestrator(t)
	m.localSrc = &fakeSource{}
	m.reconcile([]string{"B"})

	dialer.conns["B"].callbacks.OnSignal(protocol.SignalData{Type: protocol.SignalOffer})
	drainTasks(m)

	assert.Equal(t, []string{"B"}, signaler.sent)
}

func TestVacatingClosesMeshAndReleasesMedia(t *testing.T) {
	m, _, dialer, _ := newTestOrchestrator(t)
	src := &fakeSource{}
	m.localSrc = src
	m.wasSeated = true
	m.reconcile([]string{"B"})

	// The next snapshot shows us unseated but the peer still rostered;
	// vacancy tears everything down regardless.
	m.sync(context.Background(), state.AppState{})

	assert.Equal(t, 1, src.closed)
	assert.Nil(t, m.localSrc)
	assert.Equal(t, 1, dialer.conns["B"].closed)
	assert.Empty(t, m.peers)
}

type fakeRemoteStream struct{}

func (fakeRemoteStream) ID() string { return "remote" }
