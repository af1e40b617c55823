package xwin

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/stillcap/stillcap/internal/logger"
	"github.com/stillcap/stillcap/internal/xconn"
)

// wmStateIconic is the ICCCM WM_STATE value for a minimized window.
const wmStateIconic = 3

// Enumerator lists the windows on a display and materializes their
// externally observable state.
type Enumerator struct {
	d *xconn.Display
}

// NewEnumerator creates an enumerator over an open display.
func NewEnumerator(d *xconn.Display) *Enumerator {
	return &Enumerator{d: d}
}

// CurrentDesktop returns the active workspace index. ok is false when
// the WM does not publish one.
func (e *Enumerator) CurrentDesktop() (int, bool) {
	value, ok, err := e.d.Cardinal(e.d.Root(), e.d.Atoms.NetCurrentDesktop)
	if err != nil || !ok {
		return 0, false
	}
	return int(value), true
}

// Enumerate returns all top-level windows in front-to-back stacking
// order. The EWMH stacking list is preferred; the plain client list and
// finally the raw window tree serve as fallbacks. Windows that vanish
// while being inspected are skipped.
func (e *Enumerator) Enumerate() ([]WindowInfo, error) {
	log := logger.WithComponent("enumerate")

	clients, err := e.d.WindowList(e.d.Root(), e.d.Atoms.NetClientListStacking)
	if err == nil && len(clients) > 0 {
		// EWMH publishes bottom-to-top.
		reverse(clients)
		log.Debug().Int("count", len(clients)).Msg("Enumerating via _NET_CLIENT_LIST_STACKING")
		return e.materializeAll(clients, false), nil
	}

	clients, err = e.d.WindowList(e.d.Root(), e.d.Atoms.NetClientList)
	if err == nil && len(clients) > 0 {
		// Mapping order only approximates stacking; newest windows tend
		// to be on top.
		reverse(clients)
		log.Debug().Int("count", len(clients)).Msg("Enumerating via _NET_CLIENT_LIST")
		return e.materializeAll(clients, false), nil
	}

	children, err := e.d.TreeChildren(e.d.Root())
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate windows: %w", err)
	}
	reverse(children)
	log.Debug().Int("count", len(children)).Msg("Enumerating via QueryTree")
	return e.materializeAll(children, true), nil
}

// materializeAll resolves per-window state, dropping windows that
// disappear mid-flight. treeWalk marks the QueryTree fallback, where the
// candidates are raw frames and invisible helper windows are legion.
func (e *Enumerator) materializeAll(candidates []xproto.Window, treeWalk bool) []WindowInfo {
	log := logger.WithComponent("enumerate")

	windows := make([]WindowInfo, 0, len(candidates))
	for _, win := range candidates {
		if treeWalk {
			attrs, err := e.d.Attributes(win)
			if err != nil {
				continue
			}
			if attrs.Class != xproto.WindowClassInputOutput || attrs.MapState != xproto.MapStateViewable {
				continue
			}
		}

		info, err := e.Materialize(win)
		if err != nil {
			log.Debug().Uint32("window", uint32(win)).Err(err).Msg("Window vanished during enumeration")
			continue
		}
		windows = append(windows, info)
	}
	return windows
}

// Materialize builds the WindowInfo for one client window.
func (e *Enumerator) Materialize(client xproto.Window) (WindowInfo, error) {
	d := e.d
	atoms := d.Atoms

	if client == d.Root() {
		return e.RootInfo(), nil
	}

	frame, err := TopLevelAncestor(d, client, d.Root())
	if err != nil {
		return WindowInfo{}, err
	}

	bounds, err := ResolveAbsolutePosition(d, frame, d.Root())
	if err != nil {
		return WindowInfo{}, err
	}

	info := WindowInfo{
		Handle: Handle{Client: client, Frame: frame},
		Bounds: bounds,
	}

	if attrs, err := d.Attributes(frame); err == nil {
		info.Viewable = attrs.Class == xproto.WindowClassInputOutput &&
			attrs.MapState == xproto.MapStateViewable
	}

	info.Title = e.windowTitle(client)
	info.Class = e.windowClass(client)

	if pid, ok, err := d.Cardinal(client, atoms.NetWmPid); err == nil && ok {
		info.PID = int(pid)
	}

	if desktop, ok, err := d.Cardinal(client, atoms.NetWmDesktop); err == nil && ok {
		info.DesktopKnown = true
		if desktop == 0xFFFFFFFF {
			info.Desktop = -1
		} else {
			info.Desktop = int(desktop)
		}
	}

	info.Minimized = e.isMinimized(client)
	info.NonCapturable = e.isNonCapturableType(client)

	return info, nil
}

// RootInfo describes the desktop itself, the fallback answer when no
// window contains a point.
func (e *Enumerator) RootInfo() WindowInfo {
	root := e.d.Root()
	bounds, err := e.d.Geometry(root)
	if err != nil {
		screen := e.d.Screen()
		bounds = xconn.Rect{Width: int(screen.WidthInPixels), Height: int(screen.HeightInPixels)}
	}
	return WindowInfo{
		Handle:   Handle{Client: root, Frame: root},
		Bounds:   bounds,
		Title:    "Desktop",
		Class:    "Desktop",
		IsRoot:   true,
		Viewable: true,
	}
}

// windowTitle tries _NET_WM_NAME (UTF-8) before the legacy WM_NAME.
func (e *Enumerator) windowTitle(win xproto.Window) string {
	if title, err := e.d.Text(win, e.d.Atoms.NetWmName); err == nil && title != "" {
		return title
	}
	title, _ := e.d.Text(win, xproto.AtomWmName)
	return title
}

// windowClass parses WM_CLASS, two NUL-terminated strings of which the
// second is the class name and the first the instance.
func (e *Enumerator) windowClass(win xproto.Window) string {
	raw, err := e.d.Text(win, xproto.AtomWmClass)
	if err != nil || raw == "" {
		return ""
	}
	parts := strings.Split(raw, "\x00")
	if len(parts) >= 2 && parts[1] != "" {
		return parts[1]
	}
	if parts[0] != "" {
		return parts[0]
	}
	return ""
}

// isMinimized checks _NET_WM_STATE for the hidden or minimized atoms,
// then falls back to the ICCCM WM_STATE iconic value. Either signal
// alone marks the window minimized.
func (e *Enumerator) isMinimized(win xproto.Window) bool {
	atoms := e.d.Atoms

	states, err := e.d.AtomList(win, atoms.NetWmState)
	if err == nil {
		for _, state := range states {
			if state != 0 && (state == atoms.NetWmStateHidden || state == atoms.NetWmStateMinimized) {
				return true
			}
		}
	}

	if state, ok, err := e.d.Cardinal(win, atoms.WmState); err == nil && ok {
		return state == wmStateIconic
	}
	return false
}

// isNonCapturableType reports whether the window declares itself as a
// desktop, dock, toolbar, menu or splash surface. Windows without a
// type are assumed to be normal.
func (e *Enumerator) isNonCapturableType(win xproto.Window) bool {
	atoms := e.d.Atoms

	types, err := e.d.AtomList(win, atoms.NetWmWindowType)
	if err != nil {
		return false
	}
	for _, t := range types {
		if t == 0 {
			continue
		}
		switch t {
		case atoms.NetWmWindowTypeDesktop, atoms.NetWmWindowTypeDock,
			atoms.NetWmWindowTypeToolbar, atoms.NetWmWindowTypeMenu,
			atoms.NetWmWindowTypeSplash:
			return true
		}
	}
	return false
}

// TopmostWindowAt finds the frontmost window containing the point,
// skipping the excluded window ids (an overlay passing its own handle
// sees through itself). When nothing but the desktop matches, the root
// info is returned.
func (e *Enumerator) TopmostWindowAt(x, y int, exclude ...xproto.Window) (WindowInfo, error) {
	windows, err := e.Enumerate()
	if err != nil {
		return WindowInfo{}, err
	}
	if hit := TopmostAt(windows, x, y, exclude...); hit != nil {
		return *hit, nil
	}
	return e.RootInfo(), nil
}

func reverse(wins []xproto.Window) {
	for i, j := 0, len(wins)-1; i < j; i, j = i+1, j-1 {
		wins[i], wins[j] = wins[j], wins[i]
	}
}
