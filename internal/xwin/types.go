// Package xwin resolves the window landscape: which windows exist, where
// they really are on screen, which ones are worth capturing, and how
// thick their decorations are.
package xwin

import (
	"github.com/BurntSushi/xgb/xproto"

	"github.com/stillcap/stillcap/internal/xconn"
)

// Handle identifies a window for the lifetime of a session. Client is
// the window the WM manages (the one carrying title, class and state
// properties); Frame is its top-level ancestor under the root, which is
// what actually occupies screen space once a reparenting WM has added
// decorations. For undecorated or non-reparented windows the two are
// the same. Handles are immutable and usable as map keys.
type Handle struct {
	Client xproto.Window `json:"client"`
	Frame  xproto.Window `json:"frame"`
}

// ID returns the client window id, the stable public identity.
func (h Handle) ID() uint32 {
	return uint32(h.Client)
}

// IsZero reports whether the handle identifies nothing.
func (h Handle) IsZero() bool {
	return h.Client == 0 && h.Frame == 0
}

// Matches reports whether the raw window id refers to this handle's
// client or frame.
func (h Handle) Matches(win xproto.Window) bool {
	return win != 0 && (win == h.Client || win == h.Frame)
}

// WindowInfo is an immutable snapshot of one window's externally
// observable state. Re-enumeration replaces values wholesale; nothing
// mutates a WindowInfo after it is built.
type WindowInfo struct {
	Handle Handle     `json:"handle"`
	Bounds xconn.Rect `json:"bounds"`

	Title string `json:"title"`
	Class string `json:"class"`
	PID   int    `json:"pid,omitempty"`

	// Desktop is the workspace index; -1 means sticky (all workspaces).
	// DesktopKnown is false when the WM publishes nothing, in which case
	// the window is assumed to be on the current workspace.
	Desktop      int  `json:"desktop"`
	DesktopKnown bool `json:"desktop_known"`

	Minimized bool `json:"minimized"`
	Viewable  bool `json:"viewable"`

	IsRoot bool `json:"is_root"`

	// NonCapturable marks desktop, dock, toolbar, menu and splash type
	// windows that never qualify as capture targets.
	NonCapturable bool `json:"non_capturable"`
}

// Sticky reports whether the window lives on every workspace.
func (w WindowInfo) Sticky() bool {
	return w.DesktopKnown && w.Desktop == -1
}

// FrameExtents is the decoration thickness around a window's content:
// WM title bars and borders, or the invisible shadow margins of
// client-side decorated windows. The zero value means no decorations
// are known, which is always a safe answer.
type FrameExtents struct {
	Left   int `json:"left"`
	Right  int `json:"right"`
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

// Zero reports whether no decoration is present.
func (f FrameExtents) Zero() bool {
	return f == FrameExtents{}
}

// ContentRect shrinks the window-local rectangle (0,0,w,h) by the
// extents. ok is false when the extents swallow the whole window, in
// which case callers should capture the full window instead.
func (f FrameExtents) ContentRect(width, height int) (xconn.Rect, bool) {
	r := xconn.Rect{
		X:      f.Left,
		Y:      f.Top,
		Width:  width - f.Left - f.Right,
		Height: height - f.Top - f.Bottom,
	}
	if r.Width <= 0 || r.Height <= 0 {
		return xconn.Rect{Width: width, Height: height}, false
	}
	return r, true
}
