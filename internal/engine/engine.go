// Package engine composes the settings store, the mode catalog, the
// device session, and the capture pipeline into one camera-control
// surface. The CLI commands and the MQTT control plane both talk to
// the Engine and never to the parts directly.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/e7canasta/lyra-camera-engine/internal/capture"
	"github.com/e7canasta/lyra-camera-engine/internal/device"
	"github.com/e7canasta/lyra-camera-engine/internal/exposure"
	"github.com/e7canasta/lyra-camera-engine/internal/modes"
)

// Options wires an Engine.
type Options struct {
	// InstanceID labels this engine in status reports.
	InstanceID string

	// Provider opens device streams.
	Provider device.Provider

	// DefaultRequest is used by Start and fills the blanks in
	// StartWith.
	DefaultRequest device.Request

	// ExportDir receives artifacts when Export is called with an
	// empty directory.
	ExportDir string

	// Pipeline tunes the capture pipeline.
	Pipeline capture.PipelineConfig
}

// Engine is the camera-control surface.
type Engine struct {
	instanceID string
	store      *exposure.Store
	catalog    *modes.Catalog
	session    *capture.Session
	pipeline   *capture.Pipeline

	defaultReq device.Request
	exportDir  string

	mu         sync.Mutex
	activeMode string
}

// New builds an engine. The catalog, store, session, and pipeline are
// all owned by the returned engine.
func New(opts Options) (*Engine, error) {
	if opts.InstanceID == "" {
		return nil, fmt.Errorf("engine: instance id is required")
	}
	if !opts.DefaultRequest.Facing.Valid() {
		return nil, fmt.Errorf("engine: default facing %q is invalid", opts.DefaultRequest.Facing)
	}
	if opts.ExportDir == "" {
		return nil, fmt.Errorf("engine: export directory is required")
	}

	catalog, err := modes.NewCatalog()
	if err != nil {
		return nil, err
	}
	session, err := capture.NewSession(opts.Provider)
	if err != nil {
		return nil, err
	}
	pipeline, err := capture.NewPipeline(session, opts.Pipeline)
	if err != nil {
		return nil, err
	}

	return &Engine{
		instanceID: opts.InstanceID,
		store:      exposure.NewStore(),
		catalog:    catalog,
		session:    session,
		pipeline:   pipeline,
		defaultReq: opts.DefaultRequest,
		exportDir:  opts.ExportDir,
		activeMode: modes.ManualID,
	}, nil
}

// Settings returns the current exposure parameters.
func (e *Engine) Settings() exposure.Settings { return e.store.Settings() }

// ApplyOverride merges a partial settings update. Numeric values are
// clamped into domain; direct writes leave the active mode label
// alone.
func (e *Engine) ApplyOverride(o exposure.Override) exposure.Settings {
	return e.store.Apply(o)
}

// SetField updates one settings field from its string form, e.g.
// ("shutterSpeed", "1/250").
func (e *Engine) SetField(field, value string) (exposure.Settings, error) {
	var o exposure.Override
	if err := o.Set(field, value); err != nil {
		return e.store.Settings(), err
	}
	return e.store.Apply(o), nil
}

// ResetSettings restores the default parameters and the manual mode.
func (e *Engine) ResetSettings() exposure.Settings {
	e.mu.Lock()
	e.activeMode = modes.ManualID
	e.mu.Unlock()
	return e.store.Reset()
}

// Modes lists the catalog in declaration order.
func (e *Engine) Modes() []modes.Mode { return e.catalog.List() }

// Mode resolves one mode id, failing with modes.ErrNotFound for ids
// the catalog does not declare.
func (e *Engine) Mode(id string) (modes.Mode, error) { return e.catalog.Get(id) }

// SelectMode applies the mode's overrides to the settings and records
// it as active. Selecting manual changes no settings, and selecting
// the same mode again yields the same values.
func (e *Engine) SelectMode(id string) (exposure.Settings, error) {
	m, err := e.catalog.Get(id)
	if err != nil {
		return e.store.Settings(), err
	}
	after := e.store.Apply(m.Override)
	e.mu.Lock()
	e.activeMode = m.ID
	e.mu.Unlock()
	slog.Info("engine: mode selected", "mode", m.ID)
	return after, nil
}

// ActiveMode returns the last selected mode id.
func (e *Engine) ActiveMode() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeMode
}

// Start acquires the default device.
func (e *Engine) Start(ctx context.Context) error {
	return e.session.Start(ctx, e.defaultReq)
}

// StartWith acquires a device, overriding the default facing and/or
// resolution. Empty strings keep the configured defaults.
func (e *Engine) StartWith(ctx context.Context, facing, resolution string) error {
	req := e.defaultReq
	if facing != "" {
		f := device.Facing(facing)
		if !f.Valid() {
			return fmt.Errorf("engine: invalid facing %q (expected environment or user)", facing)
		}
		req.Facing = f
	}
	if resolution != "" {
		r, err := device.ParseResolution(resolution)
		if err != nil {
			return err
		}
		req.Resolution = r
	}
	return e.session.Start(ctx, req)
}

// Stop releases the device. Idempotent.
func (e *Engine) Stop() { e.session.Stop() }

// Capture takes one frame with the current settings and the active
// mode stamped into the artifact.
func (e *Engine) Capture(ctx context.Context) (capture.Artifact, error) {
	return e.pipeline.Capture(ctx, e.store.Settings(), e.ActiveMode())
}

// Export writes the retained artifact to dir, or to the engine's
// export directory when dir is empty. Returns the written path.
func (e *Engine) Export(dir string) (string, error) {
	if dir == "" {
		dir = e.exportDir
	}
	return e.pipeline.Export(dir)
}

// Share offers the retained artifact to the configured destination.
func (e *Engine) Share(ctx context.Context) error { return e.pipeline.Share(ctx) }

// Artifact returns the retained artifact, if any.
func (e *Engine) Artifact() (capture.Artifact, bool) { return e.pipeline.Artifact() }

// ArtifactInfo is artifact metadata without the image bytes.
type ArtifactInfo struct {
	ID         string    `json:"id"`
	Seq        uint64    `json:"seq"`
	Filename   string    `json:"filename"`
	CapturedAt time.Time `json:"captured_at"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Mode       string    `json:"mode,omitempty"`
	SizeBytes  int       `json:"size_bytes"`
}

// InfoOf strips the image bytes from an artifact.
func InfoOf(a capture.Artifact) ArtifactInfo {
	return ArtifactInfo{
		ID:         a.ID,
		Seq:        a.Seq,
		Filename:   a.Filename(),
		CapturedAt: a.CapturedAt,
		Width:      a.Width,
		Height:     a.Height,
		Mode:       a.Mode,
		SizeBytes:  len(a.Data),
	}
}

// Status is a point-in-time snapshot of the whole engine.
type Status struct {
	InstanceID string                `json:"instance_id"`
	State      capture.State         `json:"state"`
	ActiveMode string                `json:"active_mode"`
	Facing     string                `json:"facing,omitempty"`
	Resolution string                `json:"resolution,omitempty"`
	Settings   exposure.Settings     `json:"settings"`
	Session    capture.SessionStats  `json:"session"`
	Pipeline   capture.PipelineStats `json:"pipeline"`
	Artifact   *ArtifactInfo         `json:"artifact,omitempty"`
}

// Status assembles the snapshot.
func (e *Engine) Status() Status {
	st := Status{
		InstanceID: e.instanceID,
		State:      e.session.State(),
		ActiveMode: e.ActiveMode(),
		Settings:   e.store.Settings(),
		Session:    e.session.Stats(),
		Pipeline:   e.pipeline.Stats(),
	}
	if facing, res, ok := e.session.Active(); ok {
		st.Facing = string(facing)
		st.Resolution = res.String()
	}
	if art, ok := e.pipeline.Artifact(); ok {
		info := InfoOf(art)
		st.Artifact = &info
	}
	return st
}

// Shutdown releases the device. Safe to call repeatedly.
func (e *Engine) Shutdown() {
	e.session.Stop()
	slog.Info("engine: shut down", "instance", e.instanceID)
}
