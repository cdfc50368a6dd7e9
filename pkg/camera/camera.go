// Package camera is the boundary to the camera platform. The gateway
// never talks to cameras directly: it asks a Provider for either a
// continuous multiplexed image stream or a single still frame, per camera
// identifier.
package camera

import (
	"context"
	"errors"
	"io"
)

// ErrUnavailable means the camera collaborator reports the camera
// unreachable. It is distinct from a frame that simply has not arrived
// yet: unavailability triggers the fallback path, "no data yet" does not.
var ErrUnavailable = errors.New("camera unavailable")

// Provider exposes per-camera access to the platform.
//
// OpenStream returns a continuous multiplexed image stream and its
// content type (typically multipart/x-mixed-replace). Providers that
// cannot stream return ErrUnavailable and callers fall back to Snapshot
// polling.
//
// Snapshot fetches one still JPEG frame.
//
// Name resolves the camera's display name; implementations fall back to
// the identifier when the platform has no friendly name.
type Provider interface {
	OpenStream(ctx context.Context, cameraID string) (io.ReadCloser, string, error)
	Snapshot(ctx context.Context, cameraID string) ([]byte, error)
	Name(ctx context.Context, cameraID string) (string, error)
}
