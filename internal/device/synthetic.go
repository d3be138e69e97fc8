package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SyntheticConfig configures the synthetic provider.
type SyntheticConfig struct {
	// Facings lists the directions the simulated hardware exposes.
	// Empty means both.
	Facings []Facing

	// FPS is the frame generation rate (default 15).
	FPS float64

	// OpenDelay simulates acquisition latency before Open resolves.
	OpenDelay time.Duration

	// FailOpen makes every Open fail, simulating a permission denial.
	FailOpen bool
}

// Synthetic generates video frames without camera hardware. It backs
// development and tests, and keeps camera-less hosts runnable.
type Synthetic struct {
	cfg    SyntheticConfig
	opened atomic.Uint64
}

// NewSynthetic applies config defaults and returns the provider.
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	if cfg.FPS <= 0 {
		cfg.FPS = 15
	}
	if len(cfg.Facings) == 0 {
		cfg.Facings = []Facing{FacingEnvironment, FacingUser}
	}
	return &Synthetic{cfg: cfg}
}

func (p *Synthetic) Name() string { return "synthetic" }

// Open starts a frame generator for the requested facing. Facings not
// listed in the config fail with ErrFacingUnavailable, which is how
// tests and demos exercise the session's fallback path.
func (p *Synthetic) Open(ctx context.Context, req Request) (Stream, error) {
	if !req.Facing.Valid() {
		return nil, fmt.Errorf("device: invalid facing %q", req.Facing)
	}

	if p.cfg.OpenDelay > 0 {
		select {
		case <-time.After(p.cfg.OpenDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("device: synthetic open interrupted: %w", ctx.Err())
		}
	}

	if p.cfg.FailOpen {
		return nil, fmt.Errorf("device: synthetic acquisition denied for facing %q", req.Facing)
	}
	if !p.hasFacing(req.Facing) {
		return nil, fmt.Errorf("device: no synthetic camera facing %q: %w", req.Facing, ErrFacingUnavailable)
	}

	fps := req.FPS
	if fps <= 0 {
		fps = p.cfg.FPS
	}

	s := newSyntheticStream(fmt.Sprintf("synthetic-%d", p.opened.Add(1)), req.Facing, req.Resolution, fps)
	s.run()

	slog.Info("device: synthetic stream opened",
		"id", s.id,
		"facing", req.Facing,
		"resolution", req.Resolution.String(),
		"fps", fps,
	)
	return s, nil
}

func (p *Synthetic) hasFacing(f Facing) bool {
	for _, have := range p.cfg.Facings {
		if have == f {
			return true
		}
	}
	return false
}

// syntheticStream produces a moving RGB gradient so consecutive frames
// differ and encoded sizes stay realistic.
type syntheticStream struct {
	id     string
	facing Facing
	res    Resolution
	fps    float64

	frames  chan Frame
	stopCh  chan struct{}
	stopped atomic.Bool
	wg      sync.WaitGroup
	seq     atomic.Uint64

	track *syntheticTrack
}

func newSyntheticStream(id string, facing Facing, res Resolution, fps float64) *syntheticStream {
	s := &syntheticStream{
		id:     id,
		facing: facing,
		res:    res,
		fps:    fps,
		frames: make(chan Frame, 4),
		stopCh: make(chan struct{}),
	}
	s.track = &syntheticTrack{id: id + "-video", stream: s}
	return s
}

func (s *syntheticStream) run() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		interval := time.Duration(float64(time.Second) / s.fps)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				select {
				case s.frames <- s.makeFrame():
				default:
					// Consumer slower than generation; drop.
				}
			}
		}
	}()
}

func (s *syntheticStream) makeFrame() Frame {
	w, h := s.res.Dimensions()
	seq := s.seq.Add(1)
	shift := byte(seq)

	data := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		g := byte(y * 255 / h)
		row := y * w * 3
		for x := 0; x < w; x++ {
			i := row + x*3
			data[i] = byte(x*255/w) + shift
			data[i+1] = g
			data[i+2] = shift
		}
	}

	return Frame{
		Seq:          seq,
		Timestamp:    time.Now(),
		Width:        w,
		Height:       h,
		Data:         data,
		SourceStream: s.id,
		TraceID:      uuid.New().String(),
	}
}

func (s *syntheticStream) ID() string             { return s.id }
func (s *syntheticStream) Facing() Facing         { return s.facing }
func (s *syntheticStream) Resolution() Resolution { return s.res }
func (s *syntheticStream) Tracks() []Track        { return []Track{s.track} }

func (s *syntheticStream) Grab(ctx context.Context) (Frame, error) {
	if s.stopped.Load() {
		return Frame{}, fmt.Errorf("device: grab on stopped stream %s: %w", s.id, ErrStreamEnded)
	}
	select {
	case f := <-s.frames:
		return f, nil
	case <-s.stopCh:
		return Frame{}, fmt.Errorf("device: grab on stopped stream %s: %w", s.id, ErrStreamEnded)
	case <-ctx.Done():
		return Frame{}, fmt.Errorf("device: grab interrupted: %w", ctx.Err())
	}
}

type syntheticTrack struct {
	id     string
	stream *syntheticStream
}

func (t *syntheticTrack) ID() string   { return t.id }
func (t *syntheticTrack) Kind() string { return "video" }

// Stop shuts the generator down exactly once; further calls are no-ops.
func (t *syntheticTrack) Stop() {
	s := t.stream
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	close(s.stopCh)
	s.wg.Wait()
	slog.Debug("device: synthetic track stopped", "track", t.id)
}
