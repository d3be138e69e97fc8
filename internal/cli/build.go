package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/e7canasta/lyra-camera-engine/internal/capture"
	"github.com/e7canasta/lyra-camera-engine/internal/config"
	"github.com/e7canasta/lyra-camera-engine/internal/device"
	"github.com/e7canasta/lyra-camera-engine/internal/device/gstcam"
	"github.com/e7canasta/lyra-camera-engine/internal/engine"
	"github.com/e7canasta/lyra-camera-engine/internal/share"
)

// buildProvider selects the camera backend from the configuration.
func buildProvider(cfg *config.Config) (device.Provider, error) {
	switch cfg.Device.Backend {
	case "synthetic":
		return device.NewSynthetic(device.SyntheticConfig{FPS: cfg.Device.FPS}), nil
	case "gstreamer":
		return gstcam.NewProvider(gstcam.Config{
			EnvironmentNode: cfg.Device.EnvironmentNode,
			UserNode:        cfg.Device.UserNode,
		})
	default:
		return nil, fmt.Errorf("unknown device backend %q (expected synthetic or gstreamer)", cfg.Device.Backend)
	}
}

// defaultRequest translates the configured facing and resolution into
// the acquisition request used when a command gives no overrides.
func defaultRequest(cfg *config.Config) (device.Request, error) {
	res, err := device.ParseResolution(cfg.Device.Resolution)
	if err != nil {
		return device.Request{}, err
	}
	return device.Request{
		Facing:     device.Facing(cfg.Device.Facing),
		Resolution: res,
		FPS:        cfg.Device.FPS,
	}, nil
}

// buildEngine assembles the engine from the configuration. sharer may
// be nil, leaving the pipeline without a share destination.
func buildEngine(cfg *config.Config, sharer share.Sharer) (*engine.Engine, error) {
	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}
	req, err := defaultRequest(cfg)
	if err != nil {
		return nil, err
	}

	autoDir := ""
	if cfg.Capture.AutoExport {
		autoDir = cfg.Capture.ExportDir
	}

	return engine.New(engine.Options{
		InstanceID:     cfg.InstanceID,
		Provider:       provider,
		DefaultRequest: req,
		ExportDir:      cfg.Capture.ExportDir,
		Pipeline: capture.PipelineConfig{
			JPEGQuality:   cfg.Capture.JPEGQuality,
			AutoExportDir: autoDir,
			Sharer:        sharer,
		},
	})
}

// buildSharer connects the MQTT share destination. A broker that is
// not reachable yet is logged and tolerated: the client keeps retrying
// in the background and deliveries fail soft until it comes up.
func buildSharer(ctx context.Context, cfg *config.Config) (*share.MQTTSharer, error) {
	sharer, err := share.NewMQTTSharer(share.MQTTConfig{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.InstanceID + "-share",
		Topic:    cfg.MQTT.ShareTopic(),
		QoS:      byte(cfg.MQTT.QoS),
	})
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sharer.Connect(connectCtx); err != nil {
		slog.Warn("share destination unreachable, deliveries fail soft until it returns",
			"broker", cfg.MQTT.Broker,
			"error", err,
		)
	}
	return sharer, nil
}

// toMap flattens a struct into the generic payload shape carried by
// control plane responses.
func toMap(v interface{}) map[string]interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding response payload", "error", err)
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		slog.Error("decoding response payload", "error", err)
		return nil
	}
	return out
}
