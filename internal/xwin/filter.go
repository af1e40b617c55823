package xwin

import (
	"github.com/BurntSushi/xgb/xproto"

	"github.com/stillcap/stillcap/internal/logger"
)

// DefaultMinWindowSize is the shortest side, in pixels, below which a
// window makes a useless capture target.
const DefaultMinWindowSize = 200

// FilterOptions parameterizes FilterForCapture.
type FilterOptions struct {
	// MinSize drops windows whose shortest side is smaller. Zero or
	// negative disables the size check.
	MinSize int

	// Desktop is the current workspace; DesktopKnown false skips the
	// workspace check entirely (the WM publishes nothing).
	Desktop      int
	DesktopKnown bool
}

// FilterForCapture reduces an enumeration to the windows worth
// capturing. It runs over already materialized info and performs no
// display calls; order is preserved. The checks run in a fixed order:
// desktop-class windows first, then size, then visibility, then
// workspace. Sticky windows pass the workspace check on every desktop,
// and a window whose workspace is unknown is kept.
func FilterForCapture(windows []WindowInfo, opts FilterOptions) []WindowInfo {
	log := logger.WithComponent("enumerate")

	filtered := make([]WindowInfo, 0, len(windows))
	for _, w := range windows {
		if w.IsRoot || w.NonCapturable {
			continue
		}

		if opts.MinSize > 0 && (w.Bounds.Width < opts.MinSize || w.Bounds.Height < opts.MinSize) {
			continue
		}

		if w.Minimized || !w.Viewable {
			continue
		}

		if opts.DesktopKnown && w.DesktopKnown && !w.Sticky() && w.Desktop != opts.Desktop {
			log.Debug().
				Uint32("window", w.Handle.ID()).
				Str("title", w.Title).
				Int("desktop", w.Desktop).
				Int("current", opts.Desktop).
				Msg("Skipping off-workspace window")
			continue
		}

		filtered = append(filtered, w)
	}
	return filtered
}

// TopmostAt returns the first window in front-to-back order that is
// visible, capturable, not excluded, and contains the point. It returns
// nil when only the desktop is under the point.
func TopmostAt(windows []WindowInfo, x, y int, exclude ...xproto.Window) *WindowInfo {
	for i := range windows {
		w := &windows[i]
		if w.IsRoot || w.NonCapturable || !w.Viewable {
			continue
		}
		if excluded(w.Handle, exclude) {
			continue
		}
		if w.Bounds.Contains(x, y) {
			return w
		}
	}
	return nil
}

func excluded(h Handle, exclude []xproto.Window) bool {
	for _, win := range exclude {
		if h.Matches(win) {
			return true
		}
	}
	return false
}
