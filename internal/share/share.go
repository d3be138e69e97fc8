// Package share delivers captured artifacts to an out-of-process
// destination. Delivery failures are reported to the caller but are
// never fatal to the capture flow that triggered them.
package share

import (
	"context"
	"errors"
	"time"

	"github.com/e7canasta/lyra-camera-engine/internal/exposure"
)

var (
	// ErrUnavailable reports that no share destination is reachable.
	ErrUnavailable = errors.New("share: destination unavailable")

	// ErrShareFailed reports a destination that was reachable but did
	// not accept the artifact.
	ErrShareFailed = errors.New("share: delivery failed")
)

// Payload describes one artifact offered to a destination. Data holds
// the encoded JPEG; the metadata mirrors what export writes next to
// the file on disk.
type Payload struct {
	ID         string
	Filename   string
	CapturedAt time.Time
	Mode       string
	Settings   exposure.Settings
	Data       []byte
}

// Sharer delivers payloads to a destination.
type Sharer interface {
	// Available reports whether the destination can currently accept
	// payloads.
	Available() bool

	// Share delivers one payload. It fails with ErrUnavailable when
	// the destination is unreachable and ErrShareFailed when delivery
	// was attempted but did not complete.
	Share(ctx context.Context, p Payload) error
}
