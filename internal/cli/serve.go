package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"

	"github.com/e7canasta/lyra-camera-engine/internal/config"
	"github.com/e7canasta/lyra-camera-engine/internal/control"
	"github.com/e7canasta/lyra-camera-engine/internal/engine"
)

// serveStart holds the --start flag value.
var serveStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the camera engine as a daemon on the MQTT control plane",
	Long: `Run the engine as a long-lived service. Commands arrive as JSON on
the control topic and every command is acknowledged on the response
topic; captures can be shared to the share topic.

The session is acquired lazily through the start_session command
unless --start brings it up immediately.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveStart, "start", false, "Acquire the capture session immediately")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Daemon logs are structured for ingestion.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("starting lyra engine",
		"instance", cfg.InstanceID,
		"backend", cfg.Device.Backend,
		"broker", cfg.MQTT.Broker,
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sharer, err := buildSharer(ctx, cfg)
	if err != nil {
		return err
	}
	defer sharer.Close()

	eng, err := buildEngine(cfg, sharer)
	if err != nil {
		return err
	}
	defer eng.Shutdown()

	if serveStart {
		startCtx, startCancel := context.WithTimeout(ctx, cfg.Capture.StartTimeout)
		err := eng.Start(startCtx)
		startCancel()
		if err != nil {
			return fmt.Errorf("starting capture session: %w", err)
		}
	}

	client, err := connectControlClient(cfg)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	handler := control.NewHandler(cfg.MQTT, client, engineCallbacks(ctx, eng, cfg, cancel))
	if err := handler.Start(ctx); err != nil {
		return err
	}
	defer handler.Stop()

	slog.Info("lyra engine ready",
		"control_topic", cfg.MQTT.ControlTopic(),
		"response_topic", cfg.MQTT.ResponseTopic(),
		"session_live", serveStart,
	)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		slog.Info("service stopped (via MQTT shutdown command)")
	}

	slog.Info("shutting down gracefully")
	return nil
}

// connectControlClient dials the broker for the control plane. Unlike
// the share destination, the control plane is the reason serve exists,
// so a broker that never answers is fatal.
func connectControlClient(cfg *config.Config) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID(cfg.InstanceID + "-control")
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		slog.Info("control plane connected", "broker", cfg.MQTT.Broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		slog.Warn("control plane connection lost", "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		client.Disconnect(0)
		return nil, fmt.Errorf("control plane connect timeout (broker %s)", cfg.MQTT.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("control plane connect failed: %w", err)
	}
	return client, nil
}

// engineCallbacks bridges control plane commands onto the engine.
func engineCallbacks(ctx context.Context, eng *engine.Engine, cfg *config.Config, shutdown context.CancelFunc) control.CommandCallbacks {
	return control.CommandCallbacks{
		OnGetStatus: func() map[string]interface{} {
			return toMap(eng.Status())
		},
		OnGetSettings: func() map[string]interface{} {
			return toMap(eng.Settings())
		},
		OnSetSetting: func(field, value string) error {
			_, err := eng.SetField(field, value)
			return err
		},
		OnResetSettings: func() error {
			eng.ResetSettings()
			return nil
		},
		OnListModes: func() map[string]interface{} {
			list := eng.Modes()
			items := make([]map[string]interface{}, 0, len(list))
			for _, m := range list {
				items = append(items, map[string]interface{}{
					"id":          m.ID,
					"label":       m.Label,
					"description": m.Description,
				})
			}
			return map[string]interface{}{
				"modes":  items,
				"active": eng.ActiveMode(),
			}
		},
		OnSelectMode: func(id string) error {
			_, err := eng.SelectMode(id)
			return err
		},
		OnStartSession: func(facing, resolution string) error {
			startCtx, cancel := context.WithTimeout(ctx, cfg.Capture.StartTimeout)
			defer cancel()
			return eng.StartWith(startCtx, facing, resolution)
		},
		OnStopSession: func() error {
			eng.Stop()
			return nil
		},
		OnCapture: func() (map[string]interface{}, error) {
			art, err := eng.Capture(ctx)
			if err != nil {
				return nil, err
			}
			return toMap(engine.InfoOf(art)), nil
		},
		OnExport: func(dir string) (string, error) {
			return eng.Export(dir)
		},
		OnShare: func() error {
			return eng.Share(ctx)
		},
		OnShutdown: func() error {
			shutdown()
			return nil
		},
	}
}
