package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/e7canasta/lyra-camera-engine/internal/exposure"
	"github.com/e7canasta/lyra-camera-engine/internal/share"
)

// PipelineConfig tunes the capture pipeline.
type PipelineConfig struct {
	// JPEGQuality is the encoder quality (1-100). Zero means 90.
	JPEGQuality int

	// AutoExportDir, when set, exports every capture into this
	// directory immediately. Auto-export failures are logged, never
	// surfaced to the capture caller.
	AutoExportDir string

	// Sharer is the optional share destination. Without one, Share
	// fails with share.ErrUnavailable.
	Sharer share.Sharer
}

// Pipeline turns live frames into JPEG artifacts. It retains exactly
// one artifact, the most recent capture, and overwrites it on every
// new capture.
type Pipeline struct {
	session *Session
	quality int
	autoDir string
	sharer  share.Sharer

	mu       sync.Mutex
	artifact *Artifact

	seq           atomic.Uint64
	captures      atomic.Uint64
	exports       atomic.Uint64
	shares        atomic.Uint64
	shareFailures atomic.Uint64
}

// PipelineStats is a point-in-time snapshot of the pipeline counters.
type PipelineStats struct {
	Captures      uint64 `json:"captures"`
	Exports       uint64 `json:"exports"`
	Shares        uint64 `json:"shares"`
	ShareFailures uint64 `json:"share_failures"`
	HasArtifact   bool   `json:"has_artifact"`
}

// NewPipeline wires the pipeline to a session.
func NewPipeline(session *Session, cfg PipelineConfig) (*Pipeline, error) {
	if session == nil {
		return nil, fmt.Errorf("capture: session is required")
	}
	if cfg.JPEGQuality == 0 {
		cfg.JPEGQuality = 90
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		return nil, fmt.Errorf("capture: jpeg quality %d outside 1-100", cfg.JPEGQuality)
	}
	return &Pipeline{
		session: session,
		quality: cfg.JPEGQuality,
		autoDir: cfg.AutoExportDir,
		sharer:  cfg.Sharer,
	}, nil
}

// Capture grabs one frame from the live session, encodes it, and
// retains the result as the current artifact. The settings and mode
// are stamped into the artifact as capture-time metadata. Without a
// live session it fails with ErrNotLive.
func (p *Pipeline) Capture(ctx context.Context, settings exposure.Settings, mode string) (Artifact, error) {
	frame, err := p.session.Grab(ctx)
	if err != nil {
		return Artifact{}, err
	}

	data, err := encodeJPEG(frame, p.quality)
	if err != nil {
		return Artifact{}, err
	}

	art := Artifact{
		ID:         uuid.NewString(),
		Seq:        p.seq.Add(1),
		CapturedAt: frame.Timestamp,
		Width:      frame.Width,
		Height:     frame.Height,
		Mode:       mode,
		Settings:   settings,
		Data:       data,
	}

	p.mu.Lock()
	p.artifact = &art
	p.mu.Unlock()
	p.captures.Add(1)

	slog.Info("capture: frame captured",
		"seq", art.Seq,
		"id", art.ID,
		"bytes", len(data),
		"width", art.Width,
		"height", art.Height,
		"mode", mode)

	if p.autoDir != "" {
		if path, err := p.exportArtifact(art, p.autoDir); err != nil {
			slog.Warn("capture: auto-export failed", "error", err, "dir", p.autoDir)
		} else {
			slog.Debug("capture: auto-exported", "path", path)
		}
	}
	return art, nil
}

// Artifact returns the retained capture, or ok=false when nothing has
// been captured yet. The artifact's Data is shared with the pipeline
// and must be treated as read-only.
func (p *Pipeline) Artifact() (Artifact, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.artifact == nil {
		return Artifact{}, false
	}
	return *p.artifact, true
}

// Share offers the retained artifact to the configured destination.
// Failures are reported but leave the retained artifact and the
// session untouched. Without a destination it fails with
// share.ErrUnavailable and without an artifact with ErrNoArtifact.
func (p *Pipeline) Share(ctx context.Context) error {
	art, ok := p.Artifact()
	if !ok {
		return ErrNoArtifact
	}
	if p.sharer == nil {
		p.shareFailures.Add(1)
		return fmt.Errorf("%w: no destination configured", share.ErrUnavailable)
	}

	err := p.sharer.Share(ctx, share.Payload{
		ID:         art.ID,
		Filename:   art.Filename(),
		CapturedAt: art.CapturedAt,
		Mode:       art.Mode,
		Settings:   art.Settings,
		Data:       art.Data,
	})
	if err != nil {
		p.shareFailures.Add(1)
		slog.Warn("capture: share failed", "error", err, "id", art.ID)
		return err
	}
	p.shares.Add(1)
	return nil
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() PipelineStats {
	p.mu.Lock()
	has := p.artifact != nil
	p.mu.Unlock()

	return PipelineStats{
		Captures:      p.captures.Load(),
		Exports:       p.exports.Load(),
		Shares:        p.shares.Load(),
		ShareFailures: p.shareFailures.Load(),
		HasArtifact:   has,
	}
}
