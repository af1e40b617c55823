package xconn

import (
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/stillcap/stillcap/internal/logger"
)

// Rect is a rectangle in absolute screen coordinates. Multi-monitor
// layouts can place the origin left of or above (0,0).
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Geometry returns a window's geometry relative to its parent.
func (d *Display) Geometry(win xproto.Window) (Rect, error) {
	geom, err := xproto.GetGeometry(d.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return Rect{}, err
	}
	return Rect{
		X:      int(geom.X),
		Y:      int(geom.Y),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, nil
}

// Parent returns a window's parent, zero for the root itself.
func (d *Display) Parent(win xproto.Window) (xproto.Window, error) {
	tree, err := xproto.QueryTree(d.conn, win).Reply()
	if err != nil {
		return 0, err
	}
	return tree.Parent, nil
}

// TreeChildren returns a window's children in bottom-to-top stacking
// order, as the server reports them.
func (d *Display) TreeChildren(win xproto.Window) ([]xproto.Window, error) {
	tree, err := xproto.QueryTree(d.conn, win).Reply()
	if err != nil {
		return nil, err
	}
	return tree.Children, nil
}

// Attributes returns raw window attributes (class, map state).
func (d *Display) Attributes(win xproto.Window) (*xproto.GetWindowAttributesReply, error) {
	return xproto.GetWindowAttributes(d.conn, win).Reply()
}

// Image reads pixel data from a drawable in ZPixmap format.
func (d *Display) Image(drawable xproto.Drawable, x, y, width, height int) (*xproto.GetImageReply, error) {
	return xproto.GetImage(
		d.conn,
		xproto.ImageFormatZPixmap,
		drawable,
		int16(x),
		int16(y),
		uint16(width),
		uint16(height),
		0xffffffff,
	).Reply()
}

// ScreenGeometry returns the bounding box of all connected monitors.
// Without RandR, or when it reports no usable CRTC, the root window
// geometry serves instead.
func (d *Display) ScreenGeometry() Rect {
	if d.randr {
		if r, ok := d.randrBounds(); ok {
			return r
		}
	}
	return Rect{
		Width:  int(d.screen.WidthInPixels),
		Height: int(d.screen.HeightInPixels),
	}
}

// randrBounds unions the geometry of every connected CRTC.
func (d *Display) randrBounds() (Rect, bool) {
	log := logger.WithComponent("display")

	res, err := randr.GetScreenResources(d.conn, d.screen.Root).Reply()
	if err != nil {
		log.Debug().Err(err).Msg("RandR screen resources unavailable")
		return Rect{}, false
	}

	var (
		minX, minY int
		maxX, maxY int
		found      bool
	)
	for _, output := range res.Outputs {
		info, err := randr.GetOutputInfo(d.conn, output, res.ConfigTimestamp).Reply()
		if err != nil || info.Connection != randr.ConnectionConnected || info.Crtc == 0 {
			continue
		}
		crtc, err := randr.GetCrtcInfo(d.conn, info.Crtc, res.ConfigTimestamp).Reply()
		if err != nil || crtc.Width == 0 || crtc.Height == 0 {
			continue
		}

		x, y := int(crtc.X), int(crtc.Y)
		right, bottom := x+int(crtc.Width), y+int(crtc.Height)
		if !found {
			minX, minY, maxX, maxY = x, y, right, bottom
			found = true
			continue
		}
		if x < minX {
			minX = x
		}
		if y < minY {
			minY = y
		}
		if right > maxX {
			maxX = right
		}
		if bottom > maxY {
			maxY = bottom
		}
	}
	if !found {
		return Rect{}, false
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}
