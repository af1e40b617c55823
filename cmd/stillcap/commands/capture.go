package commands

import (
	"context"
	"fmt"
	"image/png"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stillcap/stillcap/internal/capture"
	"github.com/stillcap/stillcap/internal/snapshot"
	"github.com/stillcap/stillcap/internal/xconn"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Freeze a snapshot and write one surface as PNG",
	Long: `Capture freezes the desktop, every capturable window and the cursor at
a single instant, then writes the selected surface as PNG.

Without a selector the frozen desktop is written. The surface goes to
stdout unless --out names a file, so output can be piped straight into
other tools.`,
	Example: `  # Frozen desktop to a file
  stillcap capture -o desktop.png

  # Crop of the frozen desktop
  stillcap capture --area 100,100,800,600 -o region.png

  # Pure content of the window under a point
  stillcap capture --window-at 512,384 -o window.png

  # Pure content of a window by id (as printed by 'stillcap windows')
  stillcap capture --window 0x3a00007 -o window.png

  # Pipe the frozen desktop into another tool
  stillcap capture | convert png:- desktop.jpg`,
	RunE: runCapture,
}

var (
	captureOut      string
	captureArea     string
	captureAt       string
	captureWindow   string
	captureDesktop  bool
	captureNoCursor bool
)

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().StringVarP(&captureOut, "out", "o", "", "output file (default stdout)")
	captureCmd.Flags().StringVar(&captureArea, "area", "", "desktop crop as x,y,w,h")
	captureCmd.Flags().StringVar(&captureAt, "window-at", "", "window under the point x,y")
	captureCmd.Flags().StringVar(&captureWindow, "window", "", "window id (decimal or 0x hex)")
	captureCmd.Flags().BoolVar(&captureDesktop, "desktop", false, "the full frozen desktop (the default)")
	captureCmd.Flags().BoolVar(&captureNoCursor, "no-cursor", false, "leave the cursor out of the capture")
}

func runCapture(cmd *cobra.Command, args []string) error {
	selectors := 0
	for _, sel := range []string{captureArea, captureAt, captureWindow} {
		if sel != "" {
			selectors++
		}
	}
	if captureDesktop {
		selectors++
	}
	if selectors > 1 {
		return fmt.Errorf("--desktop, --area, --window-at and --window are mutually exclusive")
	}

	_, cfg, err := initRuntime()
	if err != nil {
		return err
	}

	d, err := xconn.Open(cfg.Display)
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}
	defer d.Close()

	opts := snapshotOptions(cfg)
	if captureNoCursor {
		opts.IncludeCursor = false
	}

	sess, err := snapshot.Begin(context.Background(), snapshot.FromDisplay(d), opts)
	if err != nil {
		return err
	}
	defer sess.End()

	ctx, cancel := context.WithTimeout(context.Background(), opts.SessionTimeout+time.Second)
	defer cancel()

	surface, err := selectSurface(ctx, sess)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if captureOut != "" {
		f, err := os.Create(captureOut)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := png.Encode(out, surface.RGBA()); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}

func selectSurface(ctx context.Context, sess *snapshot.Session) (*capture.Surface, error) {
	switch {
	case captureWindow != "":
		// Base 0 accepts both decimal and 0x-prefixed ids.
		id, err := strconv.ParseUint(captureWindow, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid window id %q", captureWindow)
		}
		snap, err := sess.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		surface, _, err := snap.Window(uint32(id))
		return surface, err

	case captureAt != "":
		x, y, err := parsePoint(captureAt)
		if err != nil {
			return nil, err
		}
		surface, info, err := sess.WindowAt(ctx, x, y)
		if err != nil {
			return nil, err
		}
		if info != nil {
			log.Printf("Window under (%d,%d): %q (0x%x)", x, y, info.Title, info.Handle.ID())
		} else {
			log.Printf("No window under (%d,%d); writing the desktop", x, y)
		}
		return surface, nil

	case captureArea != "":
		rect, err := parseArea(captureArea)
		if err != nil {
			return nil, err
		}
		return sess.Area(ctx, rect)

	default:
		return sess.Desktop(ctx)
	}
}

func parsePoint(s string) (int, int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid point %q (want x,y)", s)
	}
	x, errX := strconv.Atoi(strings.TrimSpace(parts[0]))
	y, errY := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errX != nil || errY != nil {
		return 0, 0, fmt.Errorf("invalid point %q (want x,y)", s)
	}
	return x, y, nil
}

func parseArea(s string) (xconn.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return xconn.Rect{}, fmt.Errorf("invalid area %q (want x,y,w,h)", s)
	}
	nums := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return xconn.Rect{}, fmt.Errorf("invalid area %q (want x,y,w,h)", s)
		}
		nums[i] = n
	}
	if nums[2] <= 0 || nums[3] <= 0 {
		return xconn.Rect{}, fmt.Errorf("area width and height must be positive")
	}
	return xconn.Rect{X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3]}, nil
}
