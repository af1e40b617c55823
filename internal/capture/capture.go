// Package capture reads pixel data out of the X server: the full
// desktop, pure per-window content via the composite extension, and the
// native cursor image. All results are straight-RGBA Surfaces whose
// ownership passes to the caller.
package capture

import (
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/stillcap/stillcap/internal/xconn"
)

// display is the slice of the connection the capturers depend on;
// *xconn.Display satisfies it. Narrowing it here keeps capture logic
// exercisable against a fake server.
type display interface {
	Root() xproto.Window
	ScreenGeometry() xconn.Rect
	CompositeEnabled() bool
	XFixesEnabled() bool
	Geometry(win xproto.Window) (xconn.Rect, error)
	Attributes(win xproto.Window) (*xproto.GetWindowAttributesReply, error)
	Image(drawable xproto.Drawable, x, y, width, height int) (*xproto.GetImageReply, error)
	CompositePixmap(win xproto.Window) (xproto.Pixmap, func(), error)
	CursorImage() (*xfixes.GetCursorImageReply, error)
}

// Tier names the strategy that produced a window surface.
type Tier int

const (
	// TierComposite reads the off-screen pixmap; content is complete
	// regardless of stacking.
	TierComposite Tier = iota + 1

	// TierDirect reads the window drawable as displayed; overlapping
	// windows may appear in the result. This is the accepted degraded
	// mode when compositing is unavailable.
	TierDirect
)

func (t Tier) String() string {
	switch t {
	case TierComposite:
		return "composite"
	case TierDirect:
		return "direct"
	default:
		return "unknown"
	}
}
