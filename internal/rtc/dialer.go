// Package rtc implements the mesh connection interfaces on pion/webrtc.
package rtc

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/openfelt/tableclient/internal/media"
	"github.com/openfelt/tableclient/internal/mesh"
	"github.com/openfelt/tableclient/internal/protocol"
)

// Config holds ICE settings for new peer connections.
type Config struct {
	STUNServers []string
}

// DefaultConfig uses Google's public STUN server.
func DefaultConfig() Config {
	return Config{STUNServers: []string{"stun:stun.l.google.com:19302"}}
}

// Dialer builds pion peer connections for the mesh.
type Dialer struct {
	cfg    Config
	logger *log.Logger
}

// NewDialer creates a Dialer.
func NewDialer(cfg Config, logger *log.Logger) *Dialer {
	if len(cfg.STUNServers) == 0 {
		cfg = DefaultConfig()
	}
	return &Dialer{cfg: cfg, logger: logger.WithPrefix("rtc")}
}

// Dial starts an offer handshake toward peerID, attaching the local tracks.
func (d *Dialer) Dial(peerID string, local media.Source, cb mesh.ConnCallbacks) (mesh.Conn, error) {
	conn, err := d.newConn(peerID, local, cb)
	if err != nil {
		return nil, err
	}

	offer, err := conn.pc.CreateOffer(nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := conn.pc.SetLocalDescription(offer); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set local description: %w", err)
	}
	cb.OnSignal(protocol.SignalData{Type: protocol.SignalOffer, SDP: offer.SDP})
	return conn, nil
}

// Accept answers an inbound offer. local may be nil; the connection is then
// receive-only.
func (d *Dialer) Accept(peerID string, offer protocol.SignalData, local media.Source, cb mesh.ConnCallbacks) (mesh.Conn, error) {
	conn, err := d.newConn(peerID, local, cb)
	if err != nil {
		return nil, err
	}

	if err := conn.setRemote(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set remote offer: %w", err)
	}

	answer, err := conn.pc.CreateAnswer(nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := conn.pc.SetLocalDescription(answer); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set local description: %w", err)
	}
	cb.OnSignal(protocol.SignalData{Type: protocol.SignalAnswer, SDP: answer.SDP})
	return conn, nil
}

// newConn builds the peer connection with media engine, interceptors, and
// callbacks wired.
func (d *Dialer) newConn(peerID string, local media.Source, cb mesh.ConnCallbacks) (*peerConn, error) {
	engine := &webrtc.MediaEngine{}
	if local != nil {
		if err := local.Populate(engine); err != nil {
			return nil, fmt.Errorf("populate media engine: %w", err)
		}
	} else if err := engine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(engine, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	// Generous ICE timeouts so a brief NAT or relay hiccup does not tear
	// the call down.
	se := webrtc.SettingEngine{}
	se.SetICETimeouts(30*time.Second, 120*time.Second, 2*time.Second)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(engine),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(se),
	)

	iceServers := make([]webrtc.ICEServer, 0, len(d.cfg.STUNServers))
	for _, url := range d.cfg.STUNServers {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{url}})
	}

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	conn := &peerConn{peerID: peerID, pc: pc, cb: cb, logger: d.logger}

	if local != nil {
		for _, track := range local.Tracks() {
			if _, err := pc.AddTrack(track); err != nil {
				d.logger.Warn("add track failed", "peer", peerID, "err", err)
			}
		}
	} else {
		addRecvOnlyTransceivers(pc, d.logger)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			d.logger.Warn("marshal candidate failed", "peer", peerID, "err", err)
			return
		}
		cb.OnSignal(protocol.SignalData{Type: protocol.SignalCandidate, Candidate: raw})
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		d.logger.Info("remote track", "peer", peerID, "kind", track.Kind().String())
		conn.streamOnce.Do(func() {
			cb.OnStream(remoteStream{id: track.StreamID()})
		})
		// Drain the track so congestion control keeps flowing even when
		// no renderer is attached.
		go drainTrack(track)
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		d.logger.Debug("connection state", "peer", peerID, "state", s.String())
		switch s {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			if !conn.isClosed() {
				cb.OnClose(fmt.Errorf("connection %s", s.String()))
			}
		}
	})

	return conn, nil
}

// addRecvOnlyTransceivers ensures offers and answers carry valid audio and
// video m-lines when there is nothing to send.
func addRecvOnlyTransceivers(pc *webrtc.PeerConnection, logger *log.Logger) {
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		_, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		})
		if err != nil {
			logger.Warn("add transceiver failed", "kind", kind.String(), "err", err)
		}
	}
}

func drainTrack(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}

// peerConn adapts one *webrtc.PeerConnection to mesh.Conn.
type peerConn struct {
	peerID string
	pc     *webrtc.PeerConnection
	cb     mesh.ConnCallbacks
	logger *log.Logger

	streamOnce sync.Once

	mu         sync.Mutex
	closed     bool
	haveRemote bool
	pending    []webrtc.ICECandidateInit
}

// Signal feeds one remote payload into the connection. Candidates arriving
// before the remote description are buffered and flushed afterward.
func (c *peerConn) Signal(sig protocol.SignalData) error {
	switch sig.Type {
	case protocol.SignalAnswer:
		return c.setRemote(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sig.SDP})

	case protocol.SignalOffer:
		// Renegotiation from the remote side: answer it and relay the
		// answer back, same as the initial Accept handshake.
		if err := c.setRemote(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sig.SDP}); err != nil {
			return err
		}
		answer, err := c.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		if err := c.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("set local description: %w", err)
		}
		c.cb.OnSignal(protocol.SignalData{Type: protocol.SignalAnswer, SDP: answer.SDP})
		return nil

	case protocol.SignalCandidate:
		var candidate webrtc.ICECandidateInit
		if err := json.Unmarshal(sig.Candidate, &candidate); err != nil {
			return fmt.Errorf("decode candidate: %w", err)
		}
		c.mu.Lock()
		if !c.haveRemote {
			c.pending = append(c.pending, candidate)
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()
		return c.pc.AddICECandidate(candidate)

	default:
		return fmt.Errorf("rtc: unknown signal type %q", sig.Type)
	}
}

func (c *peerConn) setRemote(desc webrtc.SessionDescription) error {
	if err := c.pc.SetRemoteDescription(desc); err != nil {
		return err
	}

	c.mu.Lock()
	c.haveRemote = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, candidate := range pending {
		if err := c.pc.AddICECandidate(candidate); err != nil {
			c.logger.Warn("buffered candidate rejected", "peer", c.peerID, "err", err)
		}
	}
	return nil
}

func (c *peerConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.pc.Close()
}

func (c *peerConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

var _ mesh.Dialer = (*Dialer)(nil)

// remoteStream is the opaque handle stored in AppState for a connected
// peer.
type remoteStream struct {
	id string
}

func (r remoteStream) ID() string { return r.id }
