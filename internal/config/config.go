// Package config loads the engine configuration from an optional YAML
// file, LYRA_-prefixed environment variables, and built-in defaults,
// in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/e7canasta/lyra-camera-engine/internal/device"
)

// Config is the complete engine configuration.
type Config struct {
	InstanceID string
	LogLevel   string

	Device  DeviceConfig
	Capture CaptureConfig
	MQTT    MQTTConfig
}

// DeviceConfig selects the camera backend and the default acquisition
// request.
type DeviceConfig struct {
	Backend         string // synthetic or gstreamer
	Facing          string // environment or user
	Resolution      string // 480p, 720p or 1080p
	FPS             float64
	EnvironmentNode string // v4l2 device node for the environment facing
	UserNode        string // v4l2 device node for the user facing
}

// CaptureConfig tunes the capture pipeline.
type CaptureConfig struct {
	JPEGQuality  int
	ExportDir    string
	AutoExport   bool
	StartTimeout time.Duration
}

// MQTTConfig holds the broker settings shared by the control plane
// and the share destination.
type MQTTConfig struct {
	Broker      string
	TopicPrefix string
	QoS         int
}

// ControlTopic is where the control plane listens for commands.
func (m MQTTConfig) ControlTopic() string { return m.TopicPrefix + "/control" }

// ResponseTopic is where command responses are published.
func (m MQTTConfig) ResponseTopic() string { return m.TopicPrefix + "/control/response" }

// ShareTopic is where shared artifacts are published.
func (m MQTTConfig) ShareTopic() string { return m.TopicPrefix + "/shares" }

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		InstanceID: "lyra-dev",
		LogLevel:   "info",
		Device: DeviceConfig{
			Backend:         "synthetic",
			Facing:          string(device.FacingEnvironment),
			Resolution:      "720p",
			FPS:             15,
			EnvironmentNode: "/dev/video0",
			UserNode:        "",
		},
		Capture: CaptureConfig{
			JPEGQuality:  90,
			ExportDir:    "./captures",
			AutoExport:   false,
			StartTimeout: 10 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			TopicPrefix: "lyra/camera",
			QoS:         1,
		},
	}
}

// Load reads the configuration. With a path the file must exist; with
// an empty path it searches the working directory and /etc/lyra for
// lyra.yaml and falls back to defaults when none is found. Environment
// variables override file values: LYRA_DEVICE_BACKEND overrides
// device.backend, and so on.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lyra")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/lyra")
	}

	v.SetEnvPrefix("LYRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("instance_id", cfg.InstanceID)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("device.backend", cfg.Device.Backend)
	v.SetDefault("device.facing", cfg.Device.Facing)
	v.SetDefault("device.resolution", cfg.Device.Resolution)
	v.SetDefault("device.fps", cfg.Device.FPS)
	v.SetDefault("device.environment_node", cfg.Device.EnvironmentNode)
	v.SetDefault("device.user_node", cfg.Device.UserNode)
	v.SetDefault("capture.jpeg_quality", cfg.Capture.JPEGQuality)
	v.SetDefault("capture.export_dir", cfg.Capture.ExportDir)
	v.SetDefault("capture.auto_export", cfg.Capture.AutoExport)
	v.SetDefault("capture.start_timeout", cfg.Capture.StartTimeout)
	v.SetDefault("mqtt.broker", cfg.MQTT.Broker)
	v.SetDefault("mqtt.topic_prefix", cfg.MQTT.TopicPrefix)
	v.SetDefault("mqtt.qos", cfg.MQTT.QoS)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading %s: %w", v.ConfigFileUsed(), err)
		}
		// No config file anywhere on the search path: defaults and
		// environment still apply.
	}

	cfg.InstanceID = v.GetString("instance_id")
	cfg.LogLevel = v.GetString("log_level")
	cfg.Device.Backend = v.GetString("device.backend")
	cfg.Device.Facing = v.GetString("device.facing")
	cfg.Device.Resolution = v.GetString("device.resolution")
	cfg.Device.FPS = v.GetFloat64("device.fps")
	cfg.Device.EnvironmentNode = v.GetString("device.environment_node")
	cfg.Device.UserNode = v.GetString("device.user_node")
	cfg.Capture.JPEGQuality = v.GetInt("capture.jpeg_quality")
	cfg.Capture.ExportDir = v.GetString("capture.export_dir")
	cfg.Capture.AutoExport = v.GetBool("capture.auto_export")
	cfg.Capture.StartTimeout = v.GetDuration("capture.start_timeout")
	cfg.MQTT.Broker = v.GetString("mqtt.broker")
	cfg.MQTT.TopicPrefix = v.GetString("mqtt.topic_prefix")
	cfg.MQTT.QoS = v.GetInt("mqtt.qos")

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validBackends = map[string]bool{
	"synthetic": true,
	"gstreamer": true,
}

// Validate checks every field for invalid values and reports them all
// at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.InstanceID == "" {
		errs = append(errs, "instance_id must not be empty")
	}
	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Sprintf("log_level %q is invalid, must be one of: debug, info, warn, error", cfg.LogLevel))
	}
	if !validBackends[cfg.Device.Backend] {
		errs = append(errs, fmt.Sprintf("device.backend %q is invalid, must be synthetic or gstreamer", cfg.Device.Backend))
	}
	if !device.Facing(cfg.Device.Facing).Valid() {
		errs = append(errs, fmt.Sprintf("device.facing %q is invalid, must be environment or user", cfg.Device.Facing))
	}
	if _, err := device.ParseResolution(cfg.Device.Resolution); err != nil {
		errs = append(errs, fmt.Sprintf("device.resolution %q is invalid, must be 480p, 720p or 1080p", cfg.Device.Resolution))
	}
	if cfg.Device.FPS <= 0 || cfg.Device.FPS > 60 {
		errs = append(errs, fmt.Sprintf("device.fps %v is invalid, must be within (0, 60]", cfg.Device.FPS))
	}
	if cfg.Device.Backend == "gstreamer" && cfg.Device.EnvironmentNode == "" && cfg.Device.UserNode == "" {
		errs = append(errs, "gstreamer backend needs at least one of device.environment_node or device.user_node")
	}
	if cfg.Capture.JPEGQuality < 1 || cfg.Capture.JPEGQuality > 100 {
		errs = append(errs, fmt.Sprintf("capture.jpeg_quality %d is invalid, must be within 1-100", cfg.Capture.JPEGQuality))
	}
	if cfg.Capture.ExportDir == "" {
		errs = append(errs, "capture.export_dir must not be empty")
	}
	if cfg.Capture.StartTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("capture.start_timeout %v is invalid, must be positive", cfg.Capture.StartTimeout))
	}
	if cfg.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker must not be empty")
	}
	if cfg.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix must not be empty")
	}
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		errs = append(errs, fmt.Sprintf("mqtt.qos %d is invalid, must be 0, 1 or 2", cfg.MQTT.QoS))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
