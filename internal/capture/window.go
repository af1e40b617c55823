package capture

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/stillcap/stillcap/internal/logger"
	"github.com/stillcap/stillcap/internal/xconn"
	"github.com/stillcap/stillcap/internal/xwin"
)

// WindowCapturer reads the pure content of single windows: the
// undecorated client area, unaffected by overlapping windows when the
// composite extension cooperates.
type WindowCapturer struct {
	d       display
	extents *xwin.ExtentsCache
}

// NewWindowCapturer creates a capturer sharing the session's extents
// cache.
func NewWindowCapturer(d display, extents *xwin.ExtentsCache) *WindowCapturer {
	return &WindowCapturer{d: d, extents: extents}
}

// Capture reads one window's content at its exact source size. The
// composite tier is tried first: the window is redirected to an
// off-screen pixmap whose pixels are complete regardless of stacking.
// Any composite failure falls back to reading the window drawable
// directly, which accepts whatever occlusion is on screen. A non-nil
// cursor is blended in window-relative, adjusted by the frame extents.
// Failures of both tiers wrap ErrCapture.
func (w *WindowCapturer) Capture(info xwin.WindowInfo, cursor *Cursor) (*Surface, Tier, error) {
	log := logger.WithComponent("window-capture")
	target := info.Handle.Frame

	attrs, err := w.d.Attributes(target)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: window %d attributes: %v", ErrCapture, target, err)
	}
	if attrs.Class != xproto.WindowClassInputOutput || attrs.MapState != xproto.MapStateViewable {
		return nil, 0, fmt.Errorf("%w: window %d is not viewable", ErrCapture, target)
	}

	geom, err := w.d.Geometry(target)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: window %d geometry: %v", ErrCapture, target, err)
	}

	// Decoration offsets shrink the read to the client content. When the
	// extents are nonsense the full window is captured with zero offsets.
	extents := w.extents.Get(info.Handle.Client)
	content, ok := extents.ContentRect(geom.Width, geom.Height)
	if !ok && !extents.Zero() {
		log.Debug().
			Uint32("window", info.Handle.ID()).
			Int("width", geom.Width).
			Int("height", geom.Height).
			Msg("Frame extents exceed window, capturing full geometry")
		extents = xwin.FrameExtents{}
	}

	if w.d.CompositeEnabled() {
		surface, err := w.captureComposited(target, content)
		if err == nil {
			w.blendCursor(surface, info, extents, cursor)
			return surface, TierComposite, nil
		}
		log.Warn().
			Err(err).
			Uint32("window", info.Handle.ID()).
			Msg("Composite capture failed, falling back to direct readback")
	}

	surface, err := w.captureDirect(target, content)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: window %d: %v", ErrCapture, target, err)
	}
	w.blendCursor(surface, info, extents, cursor)
	return surface, TierDirect, nil
}

// captureComposited reads the content rectangle out of the window's
// off-screen pixmap.
func (w *WindowCapturer) captureComposited(win xproto.Window, content xconn.Rect) (*Surface, error) {
	pixmap, release, err := w.d.CompositePixmap(win)
	if err != nil {
		return nil, err
	}
	defer release()

	reply, err := w.d.Image(xproto.Drawable(pixmap), content.X, content.Y, content.Width, content.Height)
	if err != nil {
		return nil, fmt.Errorf("failed to read composite pixmap: %w", err)
	}
	return FromZPixmap(reply.Data, content.Width, content.Height, int(reply.Depth))
}

// captureDirect reads the window drawable as it is displayed.
func (w *WindowCapturer) captureDirect(win xproto.Window, content xconn.Rect) (*Surface, error) {
	reply, err := w.d.Image(xproto.Drawable(win), content.X, content.Y, content.Width, content.Height)
	if err != nil {
		return nil, fmt.Errorf("failed to read window drawable: %w", err)
	}
	return FromZPixmap(reply.Data, content.Width, content.Height, int(reply.Depth))
}

// blendCursor composites the frozen cursor when it overlaps the window
// content. The content origin is the window's absolute position plus
// the decoration offsets.
func (w *WindowCapturer) blendCursor(surface *Surface, info xwin.WindowInfo, extents xwin.FrameExtents, cursor *Cursor) {
	if cursor == nil {
		return
	}
	surface.CompositeCursor(cursor, info.Bounds.X+extents.Left, info.Bounds.Y+extents.Top)
}
