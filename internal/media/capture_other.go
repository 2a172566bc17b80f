//go:build !linux

package media

import "github.com/charmbracelet/log"

// Capture is unavailable off Linux; callers fall back to a no-video
// session.
func Capture(_ Options, _ *log.Logger) (Source, error) {
	return nil, ErrUnsupported
}
