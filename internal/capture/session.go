package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/e7canasta/lyra-camera-engine/internal/device"
)

// State is the session lifecycle phase.
type State string

const (
	StateIdle      State = "idle"
	StateAcquiring State = "acquiring"
	StateLive      State = "live"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// Session owns one device stream at a time and serializes its
// lifecycle. Start acquires a stream (with one fallback retry), Stop
// releases it, and a generation counter retires acquisitions that
// finish after a Stop has already won.
type Session struct {
	provider device.Provider

	mu      sync.Mutex
	state   State
	gen     uint64
	stream  device.Stream
	lastErr error

	starts    atomic.Uint64
	fallbacks atomic.Uint64
	stops     atomic.Uint64
}

// SessionStats is a point-in-time snapshot of the session.
type SessionStats struct {
	State     State  `json:"state"`
	StreamID  string `json:"stream_id,omitempty"`
	Starts    uint64 `json:"starts"`
	Fallbacks uint64 `json:"fallbacks"`
	Stops     uint64 `json:"stops"`
}

// NewSession wraps the provider. The session starts Idle.
func NewSession(provider device.Provider) (*Session, error) {
	if provider == nil {
		return nil, fmt.Errorf("capture: provider is required")
	}
	return &Session{provider: provider, state: StateIdle}, nil
}

// Start acquires a stream for the request. If the primary acquisition
// fails it retries exactly once with the opposite facing at the
// conservative fallback resolution; if that also fails the session is
// Failed and the error wraps ErrAcquisitionFailed. A session that is
// already acquiring or live rejects Start with ErrSessionActive.
//
// A Stop that arrives while the acquisition is in flight wins: the
// late stream is released without ever becoming visible and Start
// returns ErrStartSuperseded.
func (s *Session) Start(ctx context.Context, req device.Request) error {
	if !req.Facing.Valid() {
		return fmt.Errorf("capture: invalid facing %q", req.Facing)
	}

	s.mu.Lock()
	if s.state == StateAcquiring || s.state == StateLive {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrSessionActive, state)
	}
	s.gen++
	gen := s.gen
	s.state = StateAcquiring
	s.lastErr = nil
	s.mu.Unlock()

	s.starts.Add(1)
	slog.Info("capture: acquiring device",
		"facing", req.Facing,
		"resolution", req.Resolution,
		"provider", s.provider.Name())

	stream, primaryErr := s.provider.Open(ctx, req)
	usedFallback := false
	if primaryErr != nil {
		fb := device.Request{
			Facing:     req.Facing.Opposite(),
			Resolution: device.ResFallback,
			FPS:        req.FPS,
		}
		slog.Warn("capture: primary acquisition failed, retrying with fallback",
			"error", primaryErr,
			"fallback_facing", fb.Facing,
			"fallback_resolution", fb.Resolution)

		var fallbackErr error
		stream, fallbackErr = s.provider.Open(ctx, fb)
		if fallbackErr != nil {
			acqErr := fmt.Errorf("%w (primary %s/%s: %v; fallback %s/%s: %v)",
				ErrAcquisitionFailed,
				req.Facing, req.Resolution, primaryErr,
				fb.Facing, fb.Resolution, fallbackErr)

			s.mu.Lock()
			stale := s.gen != gen
			if !stale {
				s.state = StateFailed
				s.lastErr = acqErr
			}
			s.mu.Unlock()
			if stale {
				return ErrStartSuperseded
			}
			slog.Error("capture: acquisition failed on both attempts", "error", acqErr)
			return acqErr
		}
		usedFallback = true
		s.fallbacks.Add(1)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		releaseTracks(stream)
		slog.Info("capture: released stale acquisition", "stream", stream.ID())
		return ErrStartSuperseded
	}
	s.stream = stream
	s.state = StateLive
	s.mu.Unlock()

	slog.Info("capture: session live",
		"stream", stream.ID(),
		"facing", stream.Facing(),
		"resolution", stream.Resolution(),
		"fallback", usedFallback)
	return nil
}

// Stop releases the current stream and moves the session to Stopped.
// It is idempotent: a second Stop finds no stream and releases
// nothing. Stopping an Idle or Failed session is a no-op (Failed
// keeps reporting its error until the next Start), and stopping while
// an acquisition is in flight retires that acquisition.
func (s *Session) Stop() {
	s.mu.Lock()
	// A Failed session never holds a stream: a failed Start binds
	// nothing and Grab releases before marking Failed.
	if s.state == StateIdle || s.state == StateFailed {
		s.mu.Unlock()
		return
	}
	s.gen++
	stream := s.stream
	s.stream = nil
	prev := s.state
	s.state = StateStopped
	s.mu.Unlock()

	if stream != nil {
		releaseTracks(stream)
		s.stops.Add(1)
		slog.Info("capture: session stopped", "stream", stream.ID())
		return
	}
	if prev == StateAcquiring {
		slog.Info("capture: stop requested while acquiring, pending acquisition will be discarded")
	}
}

// Grab returns one frame from the live stream. Without a live session
// it fails with ErrNotLive. If the stream turns out to have ended the
// session moves to Failed, which a later Start may recover from.
func (s *Session) Grab(ctx context.Context) (device.Frame, error) {
	s.mu.Lock()
	if s.state != StateLive || s.stream == nil {
		state := s.state
		s.mu.Unlock()
		return device.Frame{}, fmt.Errorf("%w (state %s)", ErrNotLive, state)
	}
	stream := s.stream
	s.mu.Unlock()

	frame, err := stream.Grab(ctx)
	if err != nil {
		if errors.Is(err, device.ErrStreamEnded) {
			s.mu.Lock()
			if s.stream == stream {
				s.state = StateFailed
				s.lastErr = err
				s.stream = nil
			}
			s.mu.Unlock()
			releaseTracks(stream)
			slog.Error("capture: stream ended underneath live session", "stream", stream.ID())
		}
		return device.Frame{}, fmt.Errorf("capture: grabbing frame: %w", err)
	}
	return frame, nil
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active reports the facing and resolution of the live stream, or
// ok=false when the session is not live.
func (s *Session) Active() (device.Facing, device.Resolution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLive || s.stream == nil {
		return "", 0, false
	}
	return s.stream.Facing(), s.stream.Resolution(), true
}

// LastError returns the error that put the session into Failed, if
// any.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	state := s.state
	streamID := ""
	if s.stream != nil {
		streamID = s.stream.ID()
	}
	s.mu.Unlock()

	return SessionStats{
		State:     state,
		StreamID:  streamID,
		Starts:    s.starts.Load(),
		Fallbacks: s.fallbacks.Load(),
		Stops:     s.stops.Load(),
	}
}

// releaseTracks stops every track of the stream. Track.Stop is
// idempotent at the device layer, so a stream that already ended on
// its own releases cleanly.
func releaseTracks(st device.Stream) {
	for _, tr := range st.Tracks() {
		tr.Stop()
	}
}
