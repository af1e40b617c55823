package xwin

import (
	"sync"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/stillcap/stillcap/internal/logger"
	"github.com/stillcap/stillcap/internal/xconn"
)

// CardinalSource is the property access extents resolution needs;
// *xconn.Display satisfies it.
type CardinalSource interface {
	Cardinals(win xproto.Window, prop xproto.Atom, max uint32) ([]uint32, error)
}

// ResolveExtents reads a window's decoration thickness.
// _GTK_FRAME_EXTENTS comes first: client-side decorated windows carry
// invisible shadow margins there that the standard property does not
// describe. _NET_FRAME_EXTENTS covers ordinary WM decorations. Any
// failure or absence yields zero extents, never an error.
func ResolveExtents(src CardinalSource, atoms xconn.Atoms, win xproto.Window) FrameExtents {
	for _, prop := range []xproto.Atom{atoms.GtkFrameExtents, atoms.NetFrameExtents} {
		values, err := src.Cardinals(win, prop, 4)
		if err != nil {
			logger.WithComponent("extents").Debug().
				Uint32("window", uint32(win)).
				Err(err).
				Msg("Frame extents read failed")
			continue
		}
		if len(values) >= 4 {
			return FrameExtents{
				Left:   int(values[0]),
				Right:  int(values[1]),
				Top:    int(values[2]),
				Bottom: int(values[3]),
			}
		}
	}
	return FrameExtents{}
}

// ExtentsCache memoizes frame extents per window for the lifetime of a
// session; decorations do not change mid-interaction. Safe for
// concurrent use by capture workers.
type ExtentsCache struct {
	src   CardinalSource
	atoms xconn.Atoms

	mu      sync.Mutex
	extents map[xproto.Window]FrameExtents
}

// NewExtentsCache creates an empty cache over the given source.
func NewExtentsCache(src CardinalSource, atoms xconn.Atoms) *ExtentsCache {
	return &ExtentsCache{
		src:     src,
		atoms:   atoms,
		extents: make(map[xproto.Window]FrameExtents),
	}
}

// Get returns the extents for a window, resolving and caching them on
// first use.
func (c *ExtentsCache) Get(win xproto.Window) FrameExtents {
	c.mu.Lock()
	if f, ok := c.extents[win]; ok {
		c.mu.Unlock()
		return f
	}
	c.mu.Unlock()

	// Resolve outside the lock; a duplicate read of the same window is
	// cheaper than holding the lock across a display round trip.
	f := ResolveExtents(c.src, c.atoms, win)

	c.mu.Lock()
	c.extents[win] = f
	c.mu.Unlock()
	return f
}
