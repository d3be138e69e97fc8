package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/e7canasta/lyra-camera-engine/internal/exposure"
	"github.com/e7canasta/lyra-camera-engine/internal/share"
)

var (
	captureFacing     string
	captureResolution string
	captureMode       string
	captureSet        []string
	captureOut        string
	captureShare      bool
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Acquire the camera, take one frame and export it",
	Long: `Acquire a capture session, take a single JPEG frame and export it
to disk. The session falls back once to the opposite facing at a
conservative resolution when the requested camera cannot be opened.

Settings come from the defaults, optionally shaped by --mode and then
by --set overrides applied on top, e.g.:

  lyra capture --mode freezeMotion --set iso=800 --out ./shots`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var sharer share.Sharer
		if captureShare {
			s, err := buildSharer(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			sharer = s
		}

		eng, err := buildEngine(cfg, sharer)
		if err != nil {
			return err
		}
		defer eng.Shutdown()

		startCtx, cancel := context.WithTimeout(ctx, cfg.Capture.StartTimeout)
		defer cancel()
		if err := eng.StartWith(startCtx, captureFacing, captureResolution); err != nil {
			return fmt.Errorf("starting capture session: %w", err)
		}

		if captureMode != "" {
			if _, err := eng.SelectMode(captureMode); err != nil {
				return err
			}
		}
		for _, pair := range captureSet {
			field, value, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("invalid --set %q (expected field=value)", pair)
			}
			if _, err := eng.SetField(field, value); err != nil {
				return err
			}
		}

		art, err := eng.Capture(ctx)
		if err != nil {
			return fmt.Errorf("capturing frame: %w", err)
		}

		path, err := eng.Export(captureOut)
		if err != nil {
			return fmt.Errorf("exporting artifact: %w", err)
		}

		s := art.Settings
		fmt.Printf("Captured %dx%d frame\n", art.Width, art.Height)
		fmt.Printf("  Mode:     %s\n", art.Mode)
		fmt.Printf("  Exposure: f/%g  %s  ISO %d\n", s.Aperture, exposure.FormatShutterSpeed(s.ShutterSpeed), s.ISO)
		fmt.Printf("  Saved:    %s\n", path)

		if captureShare {
			if err := eng.Share(ctx); err != nil {
				// The capture and export already succeeded; report and
				// move on.
				fmt.Printf("  Share:    failed (%v)\n", err)
			} else {
				fmt.Printf("  Share:    delivered to %s\n", cfg.MQTT.ShareTopic())
			}
		}

		return nil
	},
}

func init() {
	captureCmd.Flags().StringVar(&captureFacing, "facing", "", "Camera facing: environment or user (default from config)")
	captureCmd.Flags().StringVar(&captureResolution, "resolution", "", "Resolution: 480p, 720p or 1080p (default from config)")
	captureCmd.Flags().StringVar(&captureMode, "mode", "", "Shooting mode to apply before capturing")
	captureCmd.Flags().StringArrayVar(&captureSet, "set", nil, "Settings override as field=value, repeatable (e.g. --set iso=800)")
	captureCmd.Flags().StringVar(&captureOut, "out", "", "Export directory (default from config)")
	captureCmd.Flags().BoolVar(&captureShare, "share", false, "Share the capture to the MQTT destination after exporting")

	rootCmd.AddCommand(captureCmd)
}
