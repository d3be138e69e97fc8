package capture

import "errors"

var (
	// ErrAcquisitionFailed reports that neither the requested device
	// nor the fallback could be opened.
	ErrAcquisitionFailed = errors.New("capture: device acquisition failed")

	// ErrSessionActive reports a Start on a session that is already
	// acquiring or live.
	ErrSessionActive = errors.New("capture: session already active")

	// ErrStartSuperseded reports a Start whose acquisition completed
	// after a Stop had already retired it.
	ErrStartSuperseded = errors.New("capture: start superseded by stop")

	// ErrNotLive reports an operation that needs a live session.
	ErrNotLive = errors.New("capture: session is not live")

	// ErrNoArtifact reports an export or share with nothing captured
	// yet.
	ErrNoArtifact = errors.New("capture: no retained artifact")
)
