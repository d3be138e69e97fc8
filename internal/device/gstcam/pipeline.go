package gstcam

import (
	"fmt"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// pipelineConfig describes one capture pipeline.
type pipelineConfig struct {
	DeviceNode string
	Width      int
	Height     int
	FPS        float64
}

// pipelineElements holds the references needed for teardown.
type pipelineElements struct {
	Pipeline *gst.Pipeline
	AppSink  *app.Sink
}

// buildPipeline creates a local-camera capture pipeline:
//
//	v4l2src → videoconvert → videoscale → videorate → capsfilter → appsink
//
// The pipeline is configured but left in NULL state; the caller sets it
// PLAYING. videorate only drops (never duplicates) so the appsink sees
// at most the requested rate; the appsink keeps only the latest buffer.
func buildPipeline(cfg pipelineConfig) (*pipelineElements, error) {
	// Safe to call multiple times.
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("gstcam: creating pipeline: %w", err)
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, fmt.Errorf("gstcam: creating v4l2src: %w", err)
	}
	src.SetProperty("device", cfg.DeviceNode)

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("gstcam: creating videoconvert: %w", err)
	}

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("gstcam: creating videoscale: %w", err)
	}

	videorate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, fmt.Errorf("gstcam: creating videorate: %w", err)
	}
	videorate.SetProperty("drop-only", true)
	videorate.SetProperty("skip-to-first", true)

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("gstcam: creating capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(buildCaps(cfg.Width, cfg.Height, cfg.FPS)))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("gstcam: creating appsink: %w", err)
	}
	appsink.SetProperty("sync", false)    // real-time, no clock sync
	appsink.SetProperty("max-buffers", 1) // keep only the latest frame
	appsink.SetProperty("drop", true)

	pipeline.AddMany(src, converter, scaler, videorate, capsfilter, appsink.Element)

	if err := gst.ElementLinkMany(src, converter, scaler, videorate, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("gstcam: linking pipeline elements: %w", err)
	}

	return &pipelineElements{Pipeline: pipeline, AppSink: appsink}, nil
}

// buildCaps builds the raw-RGB caps string with a framerate lock.
// Fractional rates use a unit numerator (0.5 → 1/2).
func buildCaps(width, height int, fps float64) string {
	numerator := 1
	denominator := 1
	if fps < 1.0 {
		denominator = int(1.0 / fps)
	} else {
		numerator = int(fps)
	}
	return fmt.Sprintf(
		"video/x-raw,format=RGB,width=%d,height=%d,framerate=%d/%d",
		width, height, numerator, denominator,
	)
}

// destroyPipeline sets the pipeline to NULL, which stops it and
// releases the camera node. Safe on a nil or already-destroyed
// pipeline.
func destroyPipeline(el *pipelineElements) error {
	if el == nil || el.Pipeline == nil {
		return nil
	}
	if err := el.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("gstcam: setting pipeline to NULL: %w", err)
	}
	return nil
}
