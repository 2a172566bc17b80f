// Package media acquires the local capture stream shared by every outbound
// peer connection. Capture is platform dependent; unsupported platforms
// return ErrUnsupported and the caller degrades to a no-video session.
package media

import (
	"errors"

	"github.com/pion/webrtc/v4"
)

// ErrUnsupported is returned where no capture backend exists.
var ErrUnsupported = errors.New("media: capture not supported on this platform")

// Source is the local capture stream. It is acquired once after taking a
// seat, shared read-only by every outbound peer connection, and closed when
// the seat is vacated.
type Source interface {
	// ID identifies the stream for rendering.
	ID() string
	// Tracks returns the local tracks to attach to a peer connection.
	Tracks() []webrtc.TrackLocal
	// Populate registers the capture codecs on a media engine. Must be
	// called before building the API that will carry these tracks.
	Populate(engine *webrtc.MediaEngine) error
	// Close stops capture and releases the devices.
	Close() error
}

// Options bound what capture asks of the hardware.
type Options struct {
	Video     bool
	Audio     bool
	MaxWidth  int
	MaxHeight int
}

// DefaultOptions enables both tracks, capped at 640x480 to keep encoding
// latency down.
func DefaultOptions() Options {
	return Options{Video: true, Audio: true, MaxWidth: 640, MaxHeight: 480}
}
