// Package snapshot freezes the screen at interaction start: one
// full-desktop surface captured synchronously as the temporal origin,
// then pure per-window content captured concurrently. Every read after
// that is served from the frozen surfaces with no further display
// round-trips, so the user can take their time picking a region while
// the screen they saw stays exactly as it was.
package snapshot

import (
	"fmt"
	"time"

	"github.com/stillcap/stillcap/internal/capture"
	"github.com/stillcap/stillcap/internal/xconn"
	"github.com/stillcap/stillcap/internal/xwin"
)

// WindowCapture is one window frozen inside a snapshot.
type WindowCapture struct {
	Info    xwin.WindowInfo
	Surface *capture.Surface
	Tier    capture.Tier
}

// Snapshot is the frozen state of the desktop. Stacking holds every
// window that was eligible for capture, front to back as it was on
// screen; Windows holds the pure content captures that landed before
// the session finalized. Windows whose capture failed or timed out are
// still present in Stacking and fall back to desktop crops.
type Snapshot struct {
	Desktop       *capture.Surface
	DesktopBounds xconn.Rect
	Stacking      []xwin.WindowInfo
	Windows       map[xwin.Handle]*WindowCapture
	Partial       bool
	TakenAt       time.Time
}

// Area crops the frozen desktop. The rectangle is in absolute screen
// coordinates; multi-monitor layouts whose union origin is negative
// translate into the surface.
func (s *Snapshot) Area(r xconn.Rect) (*capture.Surface, error) {
	local := xconn.Rect{
		X:      r.X - s.DesktopBounds.X,
		Y:      r.Y - s.DesktopBounds.Y,
		Width:  r.Width,
		Height: r.Height,
	}
	return s.Desktop.Crop(local)
}

// At returns the topmost frozen window under the point, nil when only
// the desktop is there. The hit-test runs against the stacking list
// frozen at capture time, never against the live display.
func (s *Snapshot) At(x, y int) *xwin.WindowInfo {
	return xwin.TopmostAt(s.Stacking, x, y)
}

// WindowAt resolves the surface for the topmost window under the
// point: pure content when its capture landed, otherwise its bounds
// cropped out of the frozen desktop. With nothing under the point the
// full desktop is returned with a nil info.
func (s *Snapshot) WindowAt(x, y int) (*capture.Surface, *xwin.WindowInfo, error) {
	info := s.At(x, y)
	if info == nil {
		return s.Desktop, nil, nil
	}
	return s.surfaceFor(info)
}

// Window resolves a frozen window by its client id.
func (s *Snapshot) Window(id uint32) (*capture.Surface, *xwin.WindowInfo, error) {
	for i := range s.Stacking {
		if s.Stacking[i].Handle.ID() == id {
			return s.surfaceFor(&s.Stacking[i])
		}
	}
	return nil, nil, fmt.Errorf("window %d not in snapshot", id)
}

func (s *Snapshot) surfaceFor(info *xwin.WindowInfo) (*capture.Surface, *xwin.WindowInfo, error) {
	if wc, ok := s.Windows[info.Handle]; ok {
		return wc.Surface, info, nil
	}
	surface, err := s.Area(info.Bounds)
	if err != nil {
		return nil, info, fmt.Errorf("window %d fallback crop: %w", info.Handle.ID(), err)
	}
	return surface, info, nil
}
