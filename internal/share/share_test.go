package share

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/e7canasta/lyra-camera-engine/internal/exposure"
)

func TestNewMQTTSharerValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     MQTTConfig
		wantErr bool
	}{
		{
			name:    "complete config",
			cfg:     MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "lyra-test", Topic: "lyra/camera/shares"},
			wantErr: false,
		},
		{
			name:    "missing broker",
			cfg:     MQTTConfig{ClientID: "lyra-test", Topic: "lyra/camera/shares"},
			wantErr: true,
		},
		{
			name:    "missing topic",
			cfg:     MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "lyra-test"},
			wantErr: true,
		},
		{
			name:    "missing client id",
			cfg:     MQTTConfig{Broker: "tcp://localhost:1883", Topic: "lyra/camera/shares"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewMQTTSharer(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewMQTTSharer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && s.cfg.Timeout != 5*time.Second {
				t.Errorf("default timeout = %v, want 5s", s.cfg.Timeout)
			}
		})
	}
}

func TestShareBeforeConnectIsUnavailable(t *testing.T) {
	s, err := NewMQTTSharer(MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "lyra-test", Topic: "t"})
	if err != nil {
		t.Fatalf("NewMQTTSharer() failed: %v", err)
	}

	if s.Available() {
		t.Error("Available() = true before Connect")
	}
	err = s.Share(context.Background(), Payload{ID: "a"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Share() error = %v, want ErrUnavailable", err)
	}
	if got := s.Stats(); got.Errors != 1 || got.Published != 0 {
		t.Errorf("Stats() = %+v, want one error and no publishes", got)
	}
}

func TestCloseBeforeConnect(t *testing.T) {
	s, err := NewMQTTSharer(MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "lyra-test", Topic: "t"})
	if err != nil {
		t.Fatalf("NewMQTTSharer() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() before Connect failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}

func TestEnvelopeFrom(t *testing.T) {
	captured := time.Date(2025, 3, 9, 14, 30, 5, 0, time.UTC)
	p := Payload{
		ID:         "01936bca",
		Filename:   "capture_000001_20250309_143005.000.jpg",
		CapturedAt: captured,
		Mode:       "freezeMotion",
		Settings:   exposure.Defaults(),
		Data:       []byte{0xff, 0xd8, 0xff, 0xd9},
	}

	e := envelopeFrom(p)
	if e.ID != p.ID || e.Filename != p.Filename || e.Mode != p.Mode {
		t.Errorf("envelope metadata mismatch: %+v", e)
	}
	if e.SizeBytes != len(p.Data) {
		t.Errorf("SizeBytes = %d, want %d", e.SizeBytes, len(p.Data))
	}

	body, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshaling envelope failed: %v", err)
	}
	var decoded envelope
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decoding envelope failed: %v", err)
	}
	if !decoded.CapturedAt.Equal(captured) {
		t.Errorf("CapturedAt = %v, want %v", decoded.CapturedAt, captured)
	}
	if string(decoded.Image) != string(p.Data) {
		t.Error("image bytes did not survive the envelope")
	}
}
