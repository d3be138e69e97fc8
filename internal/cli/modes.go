package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/e7canasta/lyra-camera-engine/internal/exposure"
	"github.com/e7canasta/lyra-camera-engine/internal/modes"
)

var modesCmd = &cobra.Command{
	Use:   "modes [mode-id]",
	Short: "List shooting modes or show one in detail",
	Long: `List the built-in shooting modes in their catalog order, or show
one mode with its settings overrides and shooting tips.

Selecting a mode applies only the settings it names; everything else
keeps its current value. The manual mode names none and changes
nothing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := modes.NewCatalog()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			m, err := catalog.Get(args[0])
			if err != nil {
				return err
			}
			return renderModeDetail(cmd.OutOrStdout(), m)
		}
		return renderModeList(cmd.OutOrStdout(), catalog.List())
	},
}

func init() {
	rootCmd.AddCommand(modesCmd)
}

func renderModeList(w io.Writer, list []modes.Mode) error {
	for _, m := range list {
		if _, err := fmt.Fprintf(w, "%-14s %-18s %s\n", m.ID, m.Label, m.Description); err != nil {
			return err
		}
	}
	return nil
}

func renderModeDetail(w io.Writer, m modes.Mode) error {
	fmt.Fprintf(w, "%s (%s)\n", m.Label, m.ID)
	fmt.Fprintf(w, "  %s\n", m.Description)

	lines := overrideLines(m.Override)
	if len(lines) == 0 {
		fmt.Fprintln(w, "  Overrides: none (keeps current settings)")
	} else {
		fmt.Fprintln(w, "  Overrides:")
		for _, line := range lines {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}

	if len(m.Tips) > 0 {
		fmt.Fprintln(w, "  Tips:")
		for _, tip := range m.Tips {
			fmt.Fprintf(w, "    - %s\n", tip)
		}
	}
	return nil
}

// overrideLines renders the fields a mode pins, one per line, in the
// shared field vocabulary.
func overrideLines(o exposure.Override) []string {
	var lines []string
	if o.Aperture != nil {
		lines = append(lines, fmt.Sprintf("aperture: f/%g", *o.Aperture))
	}
	if o.ShutterSpeed != nil {
		lines = append(lines, "shutterSpeed: "+exposure.FormatShutterSpeed(*o.ShutterSpeed))
	}
	if o.ISO != nil {
		lines = append(lines, fmt.Sprintf("iso: %d", *o.ISO))
	}
	if o.WhiteBalance != nil {
		lines = append(lines, fmt.Sprintf("whiteBalance: %s", *o.WhiteBalance))
	}
	if o.FocusMode != nil {
		lines = append(lines, fmt.Sprintf("focusMode: %s", *o.FocusMode))
	}
	if o.FlashMode != nil {
		lines = append(lines, fmt.Sprintf("flashMode: %s", *o.FlashMode))
	}
	if o.ExposureCompensation != nil {
		lines = append(lines, fmt.Sprintf("exposureCompensation: %+g EV", *o.ExposureCompensation))
	}
	if o.MeteringMode != nil {
		lines = append(lines, fmt.Sprintf("meteringMode: %s", *o.MeteringMode))
	}
	return lines
}
