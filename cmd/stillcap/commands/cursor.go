package commands

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/stillcap/stillcap/internal/capture"
	"github.com/stillcap/stillcap/internal/xconn"
)

var cursorCmd = &cobra.Command{
	Use:   "cursor",
	Short: "Show the current cursor",
	Long: `Show the pointer position, hotspot and shape serial of the current
cursor, or dump its image with correct transparency as PNG.`,
	Example: `  # Print cursor position and shape info
  stillcap cursor

  # Print as JSON
  stillcap cursor --format json

  # Dump the cursor image
  stillcap cursor -o cursor.png`,
	RunE: runCursor,
}

var (
	cursorFormat string
	cursorOut    string
)

func init() {
	rootCmd.AddCommand(cursorCmd)

	cursorCmd.Flags().StringVarP(&cursorFormat, "format", "f", "text", "output format (text or json)")
	cursorCmd.Flags().StringVarP(&cursorOut, "out", "o", "", "write the cursor image as PNG to this file")
}

func runCursor(cmd *cobra.Command, args []string) error {
	_, cfg, err := initRuntime()
	if err != nil {
		return err
	}

	d, err := xconn.Open(cfg.Display)
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}
	defer d.Close()

	cur, err := capture.NewCursorCapturer(d).CaptureCursor()
	if err != nil {
		return err
	}

	if cursorOut != "" {
		img := &image.RGBA{
			Pix:    cur.Pix,
			Stride: cur.Width * 4,
			Rect:   image.Rect(0, 0, cur.Width, cur.Height),
		}
		f, err := os.Create(cursorOut)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		return png.Encode(f, img)
	}

	if cursorFormat == "json" {
		meta := struct {
			X      int    `json:"x"`
			Y      int    `json:"y"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
			HotX   int    `json:"hot_x"`
			HotY   int    `json:"hot_y"`
			Serial uint32 `json:"serial"`
		}{cur.X, cur.Y, cur.Width, cur.Height, cur.HotX, cur.HotY, cur.Serial}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(meta)
	}

	fmt.Printf("Position: (%d, %d)\n", cur.X, cur.Y)
	fmt.Printf("Size:     %dx%d\n", cur.Width, cur.Height)
	fmt.Printf("Hotspot:  (%d, %d)\n", cur.HotX, cur.HotY)
	fmt.Printf("Serial:   %d\n", cur.Serial)

	return nil
}
