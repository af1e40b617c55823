// Package xconn owns the X server connection: it opens the display,
// probes the extensions the capture engine can use, resolves the window
// manager atoms once, and exposes typed helpers over the raw protocol.
// Everything above this package receives a *Display explicitly; there is
// no global connection state.
package xconn

import (
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/stillcap/stillcap/internal/logger"
)

// Display is an open X connection plus everything resolved at open time:
// the default screen, the atom table, and extension availability. The
// underlying xgb connection serializes requests internally and is safe
// for concurrent use, so a single Display is shared across capture
// workers.
type Display struct {
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	name   string

	// Atoms is the closed set of WM atoms interned at open. A zero atom
	// means the intern failed; accessors treat it as absent.
	Atoms Atoms

	composite bool
	xfixes    bool
	randr     bool

	closeOnce sync.Once
}

// Open connects to the X display (empty means $DISPLAY), probes the
// composite, xfixes and randr extensions, and interns the atom table.
// A connection failure is fatal to the caller; a missing extension only
// clears its flag and the dependent features degrade.
func Open(display string) (*Display, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	if display == "" {
		display = os.Getenv("DISPLAY")
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	d := &Display{
		conn:   conn,
		screen: screen,
		name:   display,
	}
	d.probeExtensions()
	d.Atoms = internAtoms(conn)

	logger.WithComponent("display").Debug().
		Uint32("root", uint32(screen.Root)).
		Int("width", int(screen.WidthInPixels)).
		Int("height", int(screen.HeightInPixels)).
		Bool("composite", d.composite).
		Bool("xfixes", d.xfixes).
		Bool("randr", d.randr).
		Msg("Display opened")

	return d, nil
}

// probeExtensions negotiates each optional extension. XFixes and RandR
// require a version handshake before any other request; Composite needs
// 0.2 for NameWindowPixmap.
func (d *Display) probeExtensions() {
	log := logger.WithComponent("display")

	if err := composite.Init(d.conn); err == nil {
		ver, err := composite.QueryVersion(d.conn, 0, 4).Reply()
		if err == nil && (ver.MajorVersion > 0 || ver.MinorVersion >= 2) {
			d.composite = true
		} else {
			log.Debug().Err(err).Msg("Composite version handshake failed")
		}
	} else {
		log.Debug().Err(err).Msg("Composite extension unavailable")
	}

	if err := xfixes.Init(d.conn); err == nil {
		ver, err := xfixes.QueryVersion(d.conn, 4, 0).Reply()
		if err == nil && ver.MajorVersion >= 2 {
			d.xfixes = true
		} else {
			log.Debug().Err(err).Msg("XFixes version handshake failed")
		}
	} else {
		log.Debug().Err(err).Msg("XFixes extension unavailable")
	}

	if err := randr.Init(d.conn); err == nil {
		ver, err := randr.QueryVersion(d.conn, 1, 2).Reply()
		if err == nil && (ver.MajorVersion > 1 || ver.MinorVersion >= 2) {
			d.randr = true
		} else {
			log.Debug().Err(err).Msg("RandR version handshake failed")
		}
	} else {
		log.Debug().Err(err).Msg("RandR extension unavailable")
	}
}

// Close shuts the connection down. Safe to call more than once.
func (d *Display) Close() {
	d.closeOnce.Do(func() {
		d.conn.Close()
		logger.WithComponent("display").Debug().Msg("Display closed")
	})
}

// Conn returns the underlying xgb connection for protocol calls the
// typed helpers do not cover.
func (d *Display) Conn() *xgb.Conn {
	return d.conn
}

// Name returns the display string the connection was opened against,
// e.g. ":0".
func (d *Display) Name() string {
	return d.name
}

// Root returns the root window of the default screen.
func (d *Display) Root() xproto.Window {
	return d.screen.Root
}

// Screen returns the default screen info.
func (d *Display) Screen() *xproto.ScreenInfo {
	return d.screen
}

// CompositeEnabled reports whether off-screen window pixmaps can be used.
func (d *Display) CompositeEnabled() bool {
	return d.composite
}

// XFixesEnabled reports whether the cursor image can be fetched.
func (d *Display) XFixesEnabled() bool {
	return d.xfixes
}

// RandREnabled reports whether per-CRTC monitor geometry is available.
func (d *Display) RandREnabled() bool {
	return d.randr
}
