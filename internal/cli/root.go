// Package cli implements the lyra command line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/e7canasta/lyra-camera-engine/internal/config"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

// configPathFlag holds the --config flag value.
var configPathFlag string

// logLevelFlag holds the --log-level flag value, overriding the file.
var logLevelFlag string

var rootCmd = &cobra.Command{
	Use:   "lyra",
	Short: "Lyra - camera control and capture engine",
	Long: `Lyra drives a camera through a small control surface: exposure
settings with domain clamping, a catalog of shooting modes, a capture
session with automatic device fallback, and a JPEG capture pipeline
with export and share destinations.

It runs either as a one-shot capture tool or as a daemon commanded
over an MQTT control plane.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPathFlag)
		if err != nil {
			return err
		}
		if logLevelFlag != "" {
			loaded.LogLevel = logLevelFlag
		}
		if err := config.Validate(loaded); err != nil {
			return err
		}
		cfg = loaded

		setupLogging(cfg.LogLevel)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lyra %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "Path to configuration file (default: lyra.yaml in . or /etc/lyra)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn or error (overrides the file)")

	rootCmd.AddCommand(versionCmd)
}

// setupLogging installs a text handler on stderr so command output on
// stdout stays clean. The serve command swaps in a JSON handler.
func setupLogging(level string) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	})
	slog.SetDefault(slog.New(handler))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
