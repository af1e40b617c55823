package xconn

import (
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/stillcap/stillcap/internal/logger"
)

// Atoms is the closed set of window manager atoms the engine needs,
// resolved once when the display opens. A field left zero means the
// intern failed and the property it names is treated as absent.
type Atoms struct {
	NetClientListStacking xproto.Atom
	NetClientList         xproto.Atom
	NetCurrentDesktop     xproto.Atom
	NetWmDesktop          xproto.Atom

	NetWmState          xproto.Atom
	NetWmStateHidden    xproto.Atom
	NetWmStateMinimized xproto.Atom
	WmState             xproto.Atom

	GtkFrameExtents xproto.Atom
	NetFrameExtents xproto.Atom

	NetWmName  xproto.Atom
	Utf8String xproto.Atom
	NetWmPid   xproto.Atom

	NetWmWindowType        xproto.Atom
	NetWmWindowTypeDesktop xproto.Atom
	NetWmWindowTypeDock    xproto.Atom
	NetWmWindowTypeToolbar xproto.Atom
	NetWmWindowTypeMenu    xproto.Atom
	NetWmWindowTypeSplash  xproto.Atom
}

// internAtoms resolves the whole table in one round trip batch: all
// cookies are issued before any reply is collected.
func internAtoms(conn *xgb.Conn) Atoms {
	var a Atoms

	table := []struct {
		name string
		dst  *xproto.Atom
	}{
		{"_NET_CLIENT_LIST_STACKING", &a.NetClientListStacking},
		{"_NET_CLIENT_LIST", &a.NetClientList},
		{"_NET_CURRENT_DESKTOP", &a.NetCurrentDesktop},
		{"_NET_WM_DESKTOP", &a.NetWmDesktop},
		{"_NET_WM_STATE", &a.NetWmState},
		{"_NET_WM_STATE_HIDDEN", &a.NetWmStateHidden},
		{"_NET_WM_STATE_MINIMIZED", &a.NetWmStateMinimized},
		{"WM_STATE", &a.WmState},
		{"_GTK_FRAME_EXTENTS", &a.GtkFrameExtents},
		{"_NET_FRAME_EXTENTS", &a.NetFrameExtents},
		{"_NET_WM_NAME", &a.NetWmName},
		{"UTF8_STRING", &a.Utf8String},
		{"_NET_WM_PID", &a.NetWmPid},
		{"_NET_WM_WINDOW_TYPE", &a.NetWmWindowType},
		{"_NET_WM_WINDOW_TYPE_DESKTOP", &a.NetWmWindowTypeDesktop},
		{"_NET_WM_WINDOW_TYPE_DOCK", &a.NetWmWindowTypeDock},
		{"_NET_WM_WINDOW_TYPE_TOOLBAR", &a.NetWmWindowTypeToolbar},
		{"_NET_WM_WINDOW_TYPE_MENU", &a.NetWmWindowTypeMenu},
		{"_NET_WM_WINDOW_TYPE_SPLASH", &a.NetWmWindowTypeSplash},
	}

	cookies := make([]xproto.InternAtomCookie, len(table))
	for i, entry := range table {
		cookies[i] = xproto.InternAtom(conn, false, uint16(len(entry.name)), entry.name)
	}
	for i, entry := range table {
		reply, err := cookies[i].Reply()
		if err != nil {
			logger.WithComponent("display").Debug().
				Err(err).
				Str("atom", entry.name).
				Msg("Failed to intern atom")
			continue
		}
		*entry.dst = reply.Atom
	}

	return a
}
