package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stillcap/stillcap/internal/xconn"
	"github.com/stillcap/stillcap/internal/xwin"
)

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "List windows on the display",
	Long: `List the windows stillcap sees, in front-to-back stacking order.

By default only capturable windows are shown: desktop and dock windows,
minimized windows, windows on other workspaces and windows below the
minimum size are filtered out. With --all every window is listed along
with its filter verdict.`,
	Example: `  # List capturable windows in table format (default)
  stillcap windows

  # List every window with its filter verdict
  stillcap windows --all

  # List windows in JSON format
  stillcap windows --format json

  # Show the window currently under a point
  stillcap windows --at 512,384`,
	RunE: runWindows,
}

var (
	windowsFormat string
	windowsAll    bool
	windowsAt     string
)

func init() {
	rootCmd.AddCommand(windowsCmd)

	windowsCmd.Flags().StringVarP(&windowsFormat, "format", "f", "table", "output format (table or json)")
	windowsCmd.Flags().BoolVarP(&windowsAll, "all", "a", false, "show every window, unfiltered")
	windowsCmd.Flags().StringVar(&windowsAt, "at", "", "show only the window under the point x,y")
}

func runWindows(cmd *cobra.Command, args []string) error {
	_, cfg, err := initRuntime()
	if err != nil {
		return err
	}

	d, err := xconn.Open(cfg.Display)
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}
	defer d.Close()

	enum := xwin.NewEnumerator(d)

	if windowsAt != "" {
		return showWindowAt(enum)
	}

	windows, err := enum.Enumerate()
	if err != nil {
		return fmt.Errorf("failed to enumerate windows: %w", err)
	}

	desk, known := enum.CurrentDesktop()
	opts := xwin.FilterOptions{
		MinSize:      cfg.Capture.MinWindowSize,
		Desktop:      desk,
		DesktopKnown: known,
	}

	// With --all the filter still runs, but as a verdict column instead
	// of actually dropping rows.
	var capturable map[xwin.Handle]bool
	if windowsAll {
		capturable = make(map[xwin.Handle]bool)
		for _, w := range xwin.FilterForCapture(windows, opts) {
			capturable[w.Handle] = true
		}
	} else {
		windows = xwin.FilterForCapture(windows, opts)
	}

	switch windowsFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(windows)
	case "table":
		return printWindowsTable(windows, capturable)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", windowsFormat)
	}
}

func showWindowAt(enum *xwin.Enumerator) error {
	x, y, err := parsePoint(windowsAt)
	if err != nil {
		return err
	}

	info, err := enum.TopmostWindowAt(x, y)
	if err != nil {
		return fmt.Errorf("failed to resolve window under point: %w", err)
	}

	if windowsFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	}

	if info.IsRoot {
		fmt.Printf("Only the desktop is under (%d, %d)\n", x, y)
		return nil
	}

	fmt.Printf("Title:    %s\n", info.Title)
	fmt.Printf("Class:    %s\n", info.Class)
	fmt.Printf("ID:       0x%x\n", info.Handle.ID())
	fmt.Printf("Geometry: %dx%d at (%d, %d)\n",
		info.Bounds.Width, info.Bounds.Height,
		info.Bounds.X, info.Bounds.Y)

	return nil
}

func printWindowsTable(windows []xwin.WindowInfo, capturable map[xwin.Handle]bool) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	if capturable != nil {
		fmt.Fprintln(w, "ID\tTITLE\tCLASS\tGEOMETRY\tDESKTOP\tCAPTURE")
		fmt.Fprintln(w, "--\t-----\t-----\t--------\t-------\t-------")
	} else {
		fmt.Fprintln(w, "ID\tTITLE\tCLASS\tGEOMETRY\tDESKTOP")
		fmt.Fprintln(w, "--\t-----\t-----\t--------\t-------")
	}

	for _, win := range windows {
		desktop := "-"
		switch {
		case win.Sticky():
			desktop = "all"
		case win.DesktopKnown:
			desktop = fmt.Sprintf("%d", win.Desktop)
		}

		fmt.Fprintf(w, "0x%x\t%s\t%s\t%dx%d+%d+%d\t%s",
			win.Handle.ID(), win.Title, win.Class,
			win.Bounds.Width, win.Bounds.Height,
			win.Bounds.X, win.Bounds.Y,
			desktop)

		if capturable != nil {
			verdict := "no"
			if capturable[win.Handle] {
				verdict = "yes"
			}
			fmt.Fprintf(w, "\t%s", verdict)
		}
		fmt.Fprintln(w)
	}

	return nil
}
