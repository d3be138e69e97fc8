package share

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/e7canasta/lyra-camera-engine/internal/exposure"
)

// MQTTConfig describes the broker-backed share destination.
type MQTTConfig struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Topic    string
	QoS      byte
	Timeout  time.Duration // per-delivery wait, default 5s
}

// MQTTSharer publishes artifacts as JSON envelopes to an MQTT topic.
// The zero value is not usable; construct with NewMQTTSharer and call
// Connect before sharing.
type MQTTSharer struct {
	cfg    MQTTConfig
	client mqtt.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// envelope is the wire form of a shared artifact. The image travels
// base64-encoded inside the JSON document.
type envelope struct {
	ID         string            `json:"id"`
	Filename   string            `json:"filename"`
	CapturedAt time.Time         `json:"captured_at"`
	Mode       string            `json:"mode,omitempty"`
	Settings   exposure.Settings `json:"settings"`
	SizeBytes  int               `json:"size_bytes"`
	Image      []byte            `json:"image"`
}

// NewMQTTSharer validates the configuration and prepares a sharer.
// It does not touch the network; Connect does.
func NewMQTTSharer(cfg MQTTConfig) (*MQTTSharer, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("share: broker address is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("share: topic is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("share: client id is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &MQTTSharer{cfg: cfg}, nil
}

// Connect establishes the broker connection and keeps it alive with
// automatic reconnection.
func (s *MQTTSharer) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		s.mu.Lock()
		s.connected = true
		s.mu.Unlock()
		slog.Info("share: mqtt connection established",
			"broker", s.cfg.Broker,
			"client_id", s.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		slog.Warn("share: mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", s.cfg.Broker)
	}

	s.client = mqtt.NewClient(opts)

	token := s.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("share: connecting to %s: %w", s.cfg.Broker, ctx.Err())
	case <-time.After(s.cfg.Timeout):
		return fmt.Errorf("share: connecting to %s: timeout after %s", s.cfg.Broker, s.cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("share: connecting to %s: %w", s.cfg.Broker, err)
	}

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

// Available reports whether the broker connection is up.
func (s *MQTTSharer) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Share publishes the payload envelope. Unreachable broker fails with
// ErrUnavailable; an attempted delivery that does not complete within
// the configured timeout fails with ErrShareFailed.
func (s *MQTTSharer) Share(ctx context.Context, p Payload) error {
	if !s.Available() {
		s.countError()
		return fmt.Errorf("%w: broker %s", ErrUnavailable, s.cfg.Broker)
	}

	body, err := json.Marshal(envelopeFrom(p))
	if err != nil {
		s.countError()
		return fmt.Errorf("%w: encoding envelope: %v", ErrShareFailed, err)
	}

	token := s.client.Publish(s.cfg.Topic, s.cfg.QoS, false, body)
	select {
	case <-token.Done():
	case <-ctx.Done():
		s.countError()
		return fmt.Errorf("%w: %v", ErrShareFailed, ctx.Err())
	case <-time.After(s.cfg.Timeout):
		s.countError()
		return fmt.Errorf("%w: publish timeout after %s", ErrShareFailed, s.cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		s.countError()
		return fmt.Errorf("%w: %v", ErrShareFailed, err)
	}

	s.mu.Lock()
	s.published++
	s.mu.Unlock()

	slog.Debug("share: artifact published",
		"topic", s.cfg.Topic,
		"qos", s.cfg.QoS,
		"id", p.ID,
		"size", len(body))
	return nil
}

// Close drops the broker connection. Safe to call more than once and
// before Connect.
func (s *MQTTSharer) Close() error {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
		slog.Info("share: mqtt disconnected", "broker", s.cfg.Broker)
	}
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

// Stats is a point-in-time snapshot of delivery counters.
type Stats struct {
	Connected bool
	Published uint64
	Errors    uint64
}

// Stats returns the current delivery counters.
func (s *MQTTSharer) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Connected: s.connected, Published: s.published, Errors: s.errors}
}

func (s *MQTTSharer) countError() {
	s.mu.Lock()
	s.errors++
	s.mu.Unlock()
}

func envelopeFrom(p Payload) envelope {
	return envelope{
		ID:         p.ID,
		Filename:   p.Filename,
		CapturedAt: p.CapturedAt,
		Mode:       p.Mode,
		Settings:   p.Settings,
		SizeBytes:  len(p.Data),
		Image:      p.Data,
	}
}
