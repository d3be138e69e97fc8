// Package control exposes the engine over an MQTT control plane.
// Commands arrive as JSON on the control topic and every command is
// acknowledged on the response topic.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/e7canasta/lyra-camera-engine/internal/config"
)

// Command represents a control plane command
type Command struct {
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a command response
type Response struct {
	CommandAck string                 `json:"command_ack"`
	Status     string                 `json:"status"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Timestamp  string                 `json:"timestamp"`
}

// CommandCallbacks contains callback functions for commands
type CommandCallbacks struct {
	OnGetStatus     func() map[string]interface{}
	OnGetSettings   func() map[string]interface{}
	OnSetSetting    func(field, value string) error
	OnResetSettings func() error
	OnListModes     func() map[string]interface{}
	OnSelectMode    func(id string) error
	OnStartSession  func(facing, resolution string) error
	OnStopSession   func() error
	OnCapture       func() (map[string]interface{}, error)
	OnExport        func(dir string) (string, error)
	OnShare         func() error
	OnShutdown      func() error
}

// Handler handles control plane commands
type Handler struct {
	cfg       config.MQTTConfig
	client    mqtt.Client
	commands  chan Command
	callbacks CommandCallbacks
	stopped   atomic.Bool // flips before commands closes; late deliveries are dropped
}

// NewHandler creates a new control plane handler
func NewHandler(cfg config.MQTTConfig, client mqtt.Client, callbacks CommandCallbacks) *Handler {
	return &Handler{
		cfg:       cfg,
		client:    client,
		commands:  make(chan Command, 10),
		callbacks: callbacks,
	}
}

// Start starts listening for control commands
func (h *Handler) Start(ctx context.Context) error {
	topic := h.cfg.ControlTopic()
	qos := byte(h.cfg.QoS)

	slog.Info("subscribing to control plane", "topic", topic, "qos", qos)

	token := h.client.Subscribe(topic, qos, h.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control plane subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control plane subscription failed: %w", err)
	}

	slog.Info("control plane handler started")

	go h.processCommands(ctx)

	return nil
}

// Stop stops the control plane handler. Idempotent: only the first
// call unsubscribes and closes the command queue.
func (h *Handler) Stop() error {
	if !h.stopped.CompareAndSwap(false, true) {
		return nil
	}

	if h.client != nil && h.client.IsConnected() {
		token := h.client.Unsubscribe(h.cfg.ControlTopic())
		token.Wait()
	}

	close(h.commands)

	slog.Info("control plane handler stopped")
	return nil
}

// messageHandler is called when a control message is received
func (h *Handler) messageHandler(client mqtt.Client, msg mqtt.Message) {
	// Deliveries that race the teardown are dropped so nothing sends
	// on the closed command queue.
	if h.stopped.Load() {
		slog.Debug("control plane stopping, dropping message")
		return
	}

	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		slog.Error("failed to parse control command", "error", err)
		h.sendResponse(Response{
			CommandAck: "unknown",
			Status:     "error",
			Error:      "invalid JSON",
		})
		return
	}

	slog.Info("control command received", "command", cmd.Command)

	select {
	case h.commands <- cmd:
	default:
		slog.Warn("command queue full, dropping command", "command", cmd.Command)
	}
}

// processCommands processes commands from the queue
func (h *Handler) processCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-h.commands:
			if !ok {
				return
			}
			h.sendResponse(h.dispatch(cmd))
		}
	}
}

// dispatch executes one command and builds its response.
func (h *Handler) dispatch(cmd Command) Response {
	var resp Response
	resp.CommandAck = cmd.Command

	switch cmd.Command {
	case "get_status":
		if h.callbacks.OnGetStatus != nil {
			resp.Status = "success"
			resp.Data = h.callbacks.OnGetStatus()
		} else {
			resp.Status = "error"
			resp.Error = "get_status not implemented"
		}

	case "get_settings":
		if h.callbacks.OnGetSettings != nil {
			resp.Status = "success"
			resp.Data = h.callbacks.OnGetSettings()
		} else {
			resp.Status = "error"
			resp.Error = "get_settings not implemented"
		}

	case "set_setting":
		if h.callbacks.OnSetSetting != nil {
			field, okField := cmd.Params["field"].(string)
			value, okValue := cmd.Params["value"].(string)
			if !okField || !okValue {
				resp.Status = "error"
				resp.Error = "missing or invalid 'field'/'value' parameters (expected strings)"
			} else {
				if err := h.callbacks.OnSetSetting(field, value); err != nil {
					resp.Status = "error"
					resp.Error = err.Error()
				} else {
					resp.Status = "success"
					resp.Data = map[string]interface{}{
						"field":    field,
						"value":    value,
						"settings": h.settingsData(),
					}
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "set_setting not implemented"
		}

	case "reset_settings":
		if h.callbacks.OnResetSettings != nil {
			if err := h.callbacks.OnResetSettings(); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = map[string]interface{}{
					"settings_reset": true,
					"settings":       h.settingsData(),
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "reset_settings not implemented"
		}

	case "list_modes":
		if h.callbacks.OnListModes != nil {
			resp.Status = "success"
			resp.Data = h.callbacks.OnListModes()
		} else {
			resp.Status = "error"
			resp.Error = "list_modes not implemented"
		}

	case "select_mode":
		if h.callbacks.OnSelectMode != nil {
			id, ok := cmd.Params["mode"].(string)
			if !ok {
				resp.Status = "error"
				resp.Error = "missing or invalid 'mode' parameter (expected string)"
			} else {
				if err := h.callbacks.OnSelectMode(id); err != nil {
					resp.Status = "error"
					resp.Error = err.Error()
				} else {
					resp.Status = "success"
					resp.Data = map[string]interface{}{
						"mode":     id,
						"settings": h.settingsData(),
					}
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "select_mode not implemented"
		}

	case "start_session":
		if h.callbacks.OnStartSession != nil {
			facing, _ := cmd.Params["facing"].(string)         // empty keeps the default
			resolution, _ := cmd.Params["resolution"].(string) // empty keeps the default

			if err := h.callbacks.OnStartSession(facing, resolution); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = map[string]interface{}{
					"session_live": true,
					"message":      "capture session started",
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "start_session not implemented"
		}

	case "stop_session":
		if h.callbacks.OnStopSession != nil {
			if err := h.callbacks.OnStopSession(); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = map[string]interface{}{
					"session_live": false,
					"message":      "capture session stopped",
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "stop_session not implemented"
		}

	case "capture":
		if h.callbacks.OnCapture != nil {
			artifact, err := h.callbacks.OnCapture()
			if err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = artifact
			}
		} else {
			resp.Status = "error"
			resp.Error = "capture not implemented"
		}

	case "export_artifact":
		if h.callbacks.OnExport != nil {
			dir, _ := cmd.Params["dir"].(string) // empty exports to the configured directory

			path, err := h.callbacks.OnExport(dir)
			if err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = map[string]interface{}{
					"path":    path,
					"message": "artifact exported",
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "export_artifact not implemented"
		}

	case "share_artifact":
		if h.callbacks.OnShare != nil {
			if err := h.callbacks.OnShare(); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = map[string]interface{}{
					"message": "artifact shared",
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "share_artifact not implemented"
		}

	case "shutdown":
		if h.callbacks.OnShutdown != nil {
			slog.Warn("shutdown command received via MQTT control plane")
			resp.Status = "success"
			resp.Data = map[string]interface{}{
				"shutdown_initiated": true,
				"message":            "graceful shutdown in progress",
			}

			// Give the acknowledgement time to leave before the
			// process starts tearing down.
			go func() {
				time.Sleep(500 * time.Millisecond)
				if err := h.callbacks.OnShutdown(); err != nil {
					slog.Error("shutdown callback failed", "error", err)
				}
			}()
		} else {
			resp.Status = "error"
			resp.Error = "shutdown not implemented"
		}

	default:
		resp.Status = "error"
		resp.Error = fmt.Sprintf("unknown command: %s", cmd.Command)
	}

	return resp
}

func (h *Handler) settingsData() map[string]interface{} {
	if h.callbacks.OnGetSettings == nil {
		return nil
	}
	return h.callbacks.OnGetSettings()
}

// sendResponse sends a response to the response topic
func (h *Handler) sendResponse(resp Response) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		return
	}

	token := h.client.Publish(h.cfg.ResponseTopic(), byte(h.cfg.QoS), false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		slog.Error("response publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		slog.Error("failed to publish response", "error", err)
		return
	}

	slog.Debug("response sent", "command_ack", resp.CommandAck, "status", resp.Status)
}
