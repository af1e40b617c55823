package xconn

import (
	"fmt"

	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
)

// CompositePixmap redirects a window off-screen and binds the pixmap
// holding its full content. The release function unredirects and frees
// the pixmap; callers must invoke it on every path, normally via defer.
func (d *Display) CompositePixmap(win xproto.Window) (xproto.Pixmap, func(), error) {
	if !d.composite {
		return 0, nil, fmt.Errorf("composite extension unavailable")
	}

	if err := composite.RedirectWindowChecked(d.conn, win, composite.RedirectAutomatic).Check(); err != nil {
		return 0, nil, fmt.Errorf("failed to redirect window %d: %w", win, err)
	}

	pixmap, err := xproto.NewPixmapId(d.conn)
	if err != nil {
		composite.UnredirectWindow(d.conn, win, composite.RedirectAutomatic)
		return 0, nil, fmt.Errorf("failed to allocate pixmap id: %w", err)
	}

	if err := composite.NameWindowPixmapChecked(d.conn, win, pixmap).Check(); err != nil {
		composite.UnredirectWindow(d.conn, win, composite.RedirectAutomatic)
		return 0, nil, fmt.Errorf("failed to name window pixmap for %d: %w", win, err)
	}

	release := func() {
		xproto.FreePixmap(d.conn, pixmap)
		composite.UnredirectWindow(d.conn, win, composite.RedirectAutomatic)
	}
	return pixmap, release, nil
}

// CursorImage fetches the current cursor shape and position via XFixes.
func (d *Display) CursorImage() (*xfixes.GetCursorImageReply, error) {
	if !d.xfixes {
		return nil, fmt.Errorf("xfixes extension unavailable")
	}
	return xfixes.GetCursorImage(d.conn).Reply()
}
