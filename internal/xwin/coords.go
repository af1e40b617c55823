package xwin

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/stillcap/stillcap/internal/xconn"
)

// ErrResolve marks a window whose position or ancestry could not be
// determined: a malformed hierarchy, or a window destroyed while we were
// walking toward the root. Callers drop the window and move on.
var ErrResolve = errors.New("window position unresolvable")

// maxWalkDepth bounds the ancestry walk; a deeper chain means the
// hierarchy is cyclic or corrupt.
const maxWalkDepth = 64

// TreeQuerier is the slice of the display connection the coordinate
// walk needs. *xconn.Display satisfies it.
type TreeQuerier interface {
	Geometry(win xproto.Window) (xconn.Rect, error)
	Parent(win xproto.Window) (xproto.Window, error)
}

// ResolveAbsolutePosition returns a window's bounds in absolute screen
// coordinates by walking up the parent chain and accumulating each
// level's offset. A single translate-to-root request is not equivalent:
// with reparenting window managers it answers relative to the decoration
// frame and can land outside the visible window, including at negative
// coordinates.
func ResolveAbsolutePosition(q TreeQuerier, win, root xproto.Window) (xconn.Rect, error) {
	var bounds xconn.Rect

	current := win
	for depth := 0; ; depth++ {
		if depth >= maxWalkDepth {
			return xconn.Rect{}, fmt.Errorf("%w: ancestry deeper than %d at window %d", ErrResolve, maxWalkDepth, win)
		}

		geom, err := q.Geometry(current)
		if err != nil {
			return xconn.Rect{}, fmt.Errorf("%w: geometry of %d: %v", ErrResolve, current, err)
		}
		bounds.X += geom.X
		bounds.Y += geom.Y
		if depth == 0 {
			bounds.Width = geom.Width
			bounds.Height = geom.Height
		}

		parent, err := q.Parent(current)
		if err != nil {
			return xconn.Rect{}, fmt.Errorf("%w: parent of %d: %v", ErrResolve, current, err)
		}
		if parent == 0 || parent == root {
			return bounds, nil
		}
		current = parent
	}
}

// TopLevelAncestor returns the ancestor of win that sits directly under
// the root window. The root maps to itself; a direct root child maps to
// itself.
func TopLevelAncestor(q TreeQuerier, win, root xproto.Window) (xproto.Window, error) {
	if win == root {
		return root, nil
	}

	current := win
	for depth := 0; ; depth++ {
		if depth >= maxWalkDepth {
			return 0, fmt.Errorf("%w: ancestry deeper than %d at window %d", ErrResolve, maxWalkDepth, win)
		}

		parent, err := q.Parent(current)
		if err != nil {
			return 0, fmt.Errorf("%w: parent of %d: %v", ErrResolve, current, err)
		}
		if parent == 0 || parent == root {
			return current, nil
		}
		current = parent
	}
}
