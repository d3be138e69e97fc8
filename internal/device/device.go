// Package device defines the camera acquisition boundary: facings,
// resolution hints, raw frames, and the Provider/Stream/Track contract
// the capture session drives. Two providers ship with the engine: a
// synthetic frame generator (this package) and a GStreamer V4L2
// backend (package gstcam).
package device

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by providers and streams. Callers receive
// them wrapped with context; match with errors.Is.
var (
	// ErrFacingUnavailable means the host has no camera pointing the
	// requested way.
	ErrFacingUnavailable = errors.New("device: requested facing unavailable")

	// ErrStreamEnded means the stream has been stopped or its backing
	// pipeline died; no further frames will be delivered.
	ErrStreamEnded = errors.New("device: stream ended")
)

// Facing identifies which way a camera points.
type Facing string

const (
	// FacingEnvironment is the world-facing (rear) camera.
	FacingEnvironment Facing = "environment"
	// FacingUser is the user-facing (front) camera.
	FacingUser Facing = "user"
)

// Valid reports whether f is a known facing.
func (f Facing) Valid() bool {
	return f == FacingEnvironment || f == FacingUser
}

// Opposite returns the other facing direction.
func (f Facing) Opposite() Facing {
	if f == FacingEnvironment {
		return FacingUser
	}
	return FacingEnvironment
}

// Resolution is a capture resolution hint. Providers treat it as a
// target, not a guarantee.
type Resolution int

const (
	// Res480p - 640x480, the conservative choice
	Res480p Resolution = iota
	// Res720p - 1280x720, default for interactive use
	Res720p
	// Res1080p - 1920x1080, desktop-class hosts
	Res1080p
)

// ResFallback is the conservative hint used by the session's single
// automatic fallback attempt.
const ResFallback = Res480p

// Dimensions returns width and height in pixels.
func (r Resolution) Dimensions() (width, height int) {
	switch r {
	case Res480p:
		return 640, 480
	case Res720p:
		return 1280, 720
	case Res1080p:
		return 1920, 1080
	default:
		return 1280, 720
	}
}

// String returns a human-readable label ("480p", "720p", "1080p").
func (r Resolution) String() string {
	switch r {
	case Res480p:
		return "480p"
	case Res720p:
		return "720p"
	case Res1080p:
		return "1080p"
	default:
		return "unknown"
	}
}

// ParseResolution maps a config or CLI label to a Resolution.
func ParseResolution(s string) (Resolution, error) {
	switch s {
	case "480p":
		return Res480p, nil
	case "720p":
		return Res720p, nil
	case "1080p":
		return Res1080p, nil
	default:
		return 0, fmt.Errorf("device: unknown resolution %q (expected 480p, 720p or 1080p)", s)
	}
}

// Frame is a single decoded video frame.
//
// Data is packed RGB24 (3 bytes per pixel, row-major). TraceID is a
// UUID carried through logs so one frame can be followed across
// components.
type Frame struct {
	Seq          uint64
	Timestamp    time.Time
	Width        int
	Height       int
	Data         []byte
	SourceStream string
	TraceID      string
}

// Request describes the stream a provider should open.
type Request struct {
	Facing     Facing
	Resolution Resolution
	FPS        float64
}

// Track is one stoppable constituent of a stream. Stop is idempotent.
// Stopping every track of a stream releases it completely; there is no
// partial release.
type Track interface {
	ID() string
	Kind() string
	Stop()
}

// Stream is a live video stream handle. It is exclusively owned by the
// capture session that acquired it; nothing else may release it.
type Stream interface {
	ID() string
	Facing() Facing
	Resolution() Resolution

	// Grab returns the most recent frame, blocking until one is
	// available or ctx is done. After the stream is released Grab
	// fails with ErrStreamEnded.
	Grab(ctx context.Context) (Frame, error)

	// Tracks returns the stream's constituent tracks. Releasing the
	// stream means stopping every one of them.
	Tracks() []Track
}

// Provider acquires live streams from a camera backend.
//
// Open attempts a single acquisition for the request and returns a
// delivering stream or an error (permission denial, missing device,
// negotiation failure). Open honors ctx cancellation and deadlines;
// the retry policy lives in the capture session, not here.
type Provider interface {
	Open(ctx context.Context, req Request) (Stream, error)
	Name() string
}
