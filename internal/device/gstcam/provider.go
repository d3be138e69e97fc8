// Package gstcam implements the device provider on local V4L2 cameras
// through GStreamer. Each acquisition builds a dedicated pipeline with
// an appsink mailbox; releasing the stream's track sets the pipeline to
// NULL and frees the camera node.
package gstcam

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/lyra-camera-engine/internal/device"
)

// Config maps the two facings to V4L2 device nodes. An empty node
// means the host has no camera pointing that way.
type Config struct {
	EnvironmentNode string
	UserNode        string
}

// Provider opens GStreamer capture pipelines on local camera nodes.
type Provider struct {
	cfg    Config
	opened atomic.Uint64
}

// NewProvider validates that at least one facing has a device node.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.EnvironmentNode == "" && cfg.UserNode == "" {
		return nil, fmt.Errorf("gstcam: no device nodes configured")
	}
	return &Provider{cfg: cfg}, nil
}

func (p *Provider) Name() string { return "gstreamer" }

// Open builds and starts a pipeline for the requested facing, then
// waits for the first sample so a returned stream is known to deliver
// frames. Missing nodes, busy devices and negotiation failures surface
// as errors and feed the session's fallback policy.
func (p *Provider) Open(ctx context.Context, req device.Request) (device.Stream, error) {
	if !req.Facing.Valid() {
		return nil, fmt.Errorf("gstcam: invalid facing %q", req.Facing)
	}

	node := p.node(req.Facing)
	if node == "" {
		return nil, fmt.Errorf("gstcam: no camera node for facing %q: %w", req.Facing, device.ErrFacingUnavailable)
	}

	fps := req.FPS
	if fps <= 0 {
		fps = 15
	}
	width, height := req.Resolution.Dimensions()

	elements, err := buildPipeline(pipelineConfig{
		DeviceNode: node,
		Width:      width,
		Height:     height,
		FPS:        fps,
	})
	if err != nil {
		return nil, err
	}

	id := fmt.Sprintf("gstcam-%s-%d", req.Facing, p.opened.Add(1))
	s := newStream(id, req.Facing, req.Resolution, elements)

	elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onNewSample,
	})

	if err := elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		destroyPipeline(elements)
		return nil, fmt.Errorf("gstcam: starting pipeline on %s: %w", node, err)
	}

	if err := s.waitFirstFrame(ctx); err != nil {
		destroyPipeline(elements)
		return nil, fmt.Errorf("gstcam: waiting for first frame from %s: %w", node, err)
	}

	go s.watchBus()

	slog.Info("gstcam: stream opened",
		"id", id,
		"node", node,
		"resolution", req.Resolution.String(),
		"fps", fps,
	)
	return s, nil
}

func (p *Provider) node(f device.Facing) string {
	if f == device.FacingUser {
		return p.cfg.UserNode
	}
	return p.cfg.EnvironmentNode
}
