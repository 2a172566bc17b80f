//go:build linux

package media

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
)

// captureSource wraps a mediadevices stream as a Source.
type captureSource struct {
	stream   mediadevices.MediaStream
	selector *mediadevices.CodecSelector
}

// Capture opens camera and microphone via V4L2/malgo with VP8+Opus
// encoding. GetUserMedia fails as a unit if either track cannot be opened,
// so it tries video+audio, then video-only, then audio-only before giving
// up; a busy microphone should not cost the camera and vice versa.
func Capture(opts Options, logger *log.Logger) (Source, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = 1_500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)

	type attempt struct {
		video, audio bool
		label        string
	}
	attempts := []attempt{
		{opts.Video, opts.Audio, "video+audio"},
		{opts.Video, false, "video-only"},
		{false, opts.Audio, "audio-only"},
	}

	var lastErr error
	for _, a := range attempts {
		if !a.video && !a.audio {
			continue
		}
		constraints := mediadevices.MediaStreamConstraints{Codec: selector}
		if a.video {
			constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
				// Raw formats only: some cameras expose an MJPEG node
				// whose malformed frames poison the VP8 encoder.
				c.FrameFormat = prop.FrameFormatOneOf{
					frame.FormatYUYV,
					frame.FormatI420,
					frame.FormatI444,
					frame.FormatRGBA,
				}
				if opts.MaxWidth > 0 {
					c.Width = prop.IntRanged{Max: opts.MaxWidth}
				}
				if opts.MaxHeight > 0 {
					c.Height = prop.IntRanged{Max: opts.MaxHeight}
				}
			}
		}
		if a.audio {
			constraints.Audio = func(_ *mediadevices.MediaTrackConstraints) {}
		}

		stream, err := mediadevices.GetUserMedia(constraints)
		if err != nil {
			lastErr = err
			logger.Warn("capture attempt failed", "constraints", a.label, "err", err)
			continue
		}

		logger.Info("local media captured", "constraints", a.label, "tracks", len(stream.GetTracks()))
		return &captureSource{stream: stream, selector: selector}, nil
	}

	if lastErr == nil {
		lastErr = ErrUnsupported
	}
	return nil, fmt.Errorf("media: no capture available: %w", lastErr)
}

func (s *captureSource) ID() string {
	tracks := s.stream.GetTracks()
	if len(tracks) == 0 {
		return "local"
	}
	return tracks[0].ID()
}

func (s *captureSource) Tracks() []webrtc.TrackLocal {
	mdTracks := s.stream.GetTracks()
	tracks := make([]webrtc.TrackLocal, 0, len(mdTracks))
	for _, t := range mdTracks {
		tracks = append(tracks, t)
	}
	return tracks
}

func (s *captureSource) Populate(engine *webrtc.MediaEngine) error {
	s.selector.Populate(engine)
	return nil
}

func (s *captureSource) Close() error {
	for _, t := range s.stream.GetTracks() {
		t.Close()
	}
	return nil
}
