package gstcam

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/lyra-camera-engine/internal/device"
)

// stream adapts a running GStreamer pipeline to device.Stream. The
// appsink callback feeds a single-slot mailbox so Grab always sees the
// newest frame.
type stream struct {
	id     string
	facing device.Facing
	res    device.Resolution
	width  int
	height int

	elements *pipelineElements

	frames     chan device.Frame
	firstFrame chan struct{}
	firstOnce  sync.Once
	seq        atomic.Uint64
	ended      atomic.Bool
	stopped    atomic.Bool

	track *gstTrack
}

func newStream(id string, facing device.Facing, res device.Resolution, el *pipelineElements) *stream {
	w, h := res.Dimensions()
	s := &stream{
		id:         id,
		facing:     facing,
		res:        res,
		width:      w,
		height:     h,
		elements:   el,
		frames:     make(chan device.Frame, 1),
		firstFrame: make(chan struct{}),
	}
	s.track = &gstTrack{id: id + "-video", stream: s}
	return s
}

func (s *stream) ID() string                    { return s.id }
func (s *stream) Facing() device.Facing         { return s.facing }
func (s *stream) Resolution() device.Resolution { return s.res }
func (s *stream) Tracks() []device.Track        { return []device.Track{s.track} }

// onNewSample pulls the sample, copies the pixel data (GStreamer will
// reuse the buffer) and replaces the mailbox frame. A bad sample skips
// the frame rather than killing the pipeline.
func (s *stream) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("gstcam: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("gstcam: sample without buffer, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("gstcam: empty buffer received")
		return gst.FlowOK
	}

	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	frame := device.Frame{
		Seq:          s.seq.Add(1),
		Timestamp:    time.Now(),
		Width:        s.width,
		Height:       s.height,
		Data:         frameData,
		SourceStream: s.id,
		TraceID:      uuid.New().String(),
	}

	// Mailbox semantics: evict the stale frame, keep the newest.
	select {
	case s.frames <- frame:
	default:
		select {
		case <-s.frames:
		default:
		}
		select {
		case s.frames <- frame:
		default:
		}
	}

	s.firstOnce.Do(func() { close(s.firstFrame) })
	return gst.FlowOK
}

// waitFirstFrame bounds preroll: acquisition only counts as done once
// frames actually flow.
func (s *stream) waitFirstFrame(ctx context.Context) error {
	select {
	case <-s.firstFrame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Grab returns the newest frame from the mailbox.
func (s *stream) Grab(ctx context.Context) (device.Frame, error) {
	if s.stopped.Load() || s.ended.Load() {
		return device.Frame{}, fmt.Errorf("gstcam: grab on stopped stream %s: %w", s.id, device.ErrStreamEnded)
	}
	select {
	case f := <-s.frames:
		return f, nil
	case <-ctx.Done():
		return device.Frame{}, fmt.Errorf("gstcam: grab interrupted: %w", ctx.Err())
	}
}

// watchBus marks the stream ended on EOS or pipeline error so Grab
// fails instead of blocking on a dead pipeline.
func (s *stream) watchBus() {
	bus := s.elements.Pipeline.GetPipelineBus()

	for !s.stopped.Load() {
		msg := bus.TimedPop(250 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("gstcam: end of stream", "id", s.id, "frames", s.seq.Load())
			s.ended.Store(true)
			return

		case gst.MessageError:
			gerr := msg.ParseError()
			slog.Error("gstcam: pipeline error",
				"id", s.id,
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"frames", s.seq.Load(),
			)
			s.ended.Store(true)
			return
		}
	}
}

// gstTrack is the single video track of a camera stream; stopping it
// releases the device node.
type gstTrack struct {
	id     string
	stream *stream
}

func (t *gstTrack) ID() string   { return t.id }
func (t *gstTrack) Kind() string { return "video" }

// Stop sets the pipeline to NULL exactly once; further calls are
// no-ops.
func (t *gstTrack) Stop() {
	s := t.stream
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	if err := destroyPipeline(s.elements); err != nil {
		slog.Warn("gstcam: tearing down pipeline", "id", s.id, "error", err)
	}
	slog.Debug("gstcam: track stopped", "track", t.id, "frames_delivered", s.seq.Load())
}
