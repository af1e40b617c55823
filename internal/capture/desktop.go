package capture

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/stillcap/stillcap/internal/logger"
	"github.com/stillcap/stillcap/internal/xconn"
)

// DesktopCapturer freezes the full desktop image across all monitors.
type DesktopCapturer struct {
	d display
}

// NewDesktopCapturer creates a desktop capturer over the display.
func NewDesktopCapturer(d display) *DesktopCapturer {
	return &DesktopCapturer{d: d}
}

// Capture reads the entire screen in one request and returns the
// surface together with its absolute bounds. A non-nil cursor is
// blended in at its frozen position. Unlike window captures, a desktop
// capture failure is fatal to the session; there is no fallback tier
// for the temporal origin.
func (c *DesktopCapturer) Capture(cursor *Cursor) (*Surface, xconn.Rect, error) {
	bounds := c.d.ScreenGeometry()
	if bounds.Empty() {
		return nil, xconn.Rect{}, fmt.Errorf("desktop capture failed: empty screen geometry")
	}

	reply, err := c.d.Image(xproto.Drawable(c.d.Root()), bounds.X, bounds.Y, bounds.Width, bounds.Height)
	if err != nil {
		return nil, xconn.Rect{}, fmt.Errorf("desktop capture failed: %w", err)
	}

	surface, err := FromZPixmap(reply.Data, bounds.Width, bounds.Height, int(reply.Depth))
	if err != nil {
		return nil, xconn.Rect{}, fmt.Errorf("desktop capture failed: %w", err)
	}
	surface.CompositeCursor(cursor, bounds.X, bounds.Y)

	logger.WithComponent("desktop-capture").Debug().
		Int("width", bounds.Width).
		Int("height", bounds.Height).
		Bool("cursor", cursor != nil).
		Msg("Desktop captured")

	return surface, bounds, nil
}
