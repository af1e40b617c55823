package xwin

import (
	"errors"
	"testing"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/stillcap/stillcap/internal/xconn"
)

type fakeCardinals struct {
	props map[xproto.Atom][]uint32
	err   error
	calls int
}

func (f *fakeCardinals) Cardinals(win xproto.Window, prop xproto.Atom, max uint32) ([]uint32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.props[prop], nil
}

var testAtoms = xconn.Atoms{
	GtkFrameExtents: 101,
	NetFrameExtents: 102,
}

func TestResolveExtentsPrefersGtk(t *testing.T) {
	src := &fakeCardinals{props: map[xproto.Atom][]uint32{
		101: {26, 26, 23, 29},
		102: {2, 2, 30, 2},
	}}

	got := ResolveExtents(src, testAtoms, 5)
	want := FrameExtents{Left: 26, Right: 26, Top: 23, Bottom: 29}
	if got != want {
		t.Errorf("extents = %+v, want GTK values %+v", got, want)
	}
}

func TestResolveExtentsFallsBackToNet(t *testing.T) {
	src := &fakeCardinals{props: map[xproto.Atom][]uint32{
		102: {2, 2, 30, 2},
	}}

	got := ResolveExtents(src, testAtoms, 5)
	want := FrameExtents{Left: 2, Right: 2, Top: 30, Bottom: 2}
	if got != want {
		t.Errorf("extents = %+v, want NET values %+v", got, want)
	}
}

func TestResolveExtentsAbsentOrBroken(t *testing.T) {
	if got := ResolveExtents(&fakeCardinals{}, testAtoms, 5); !got.Zero() {
		t.Errorf("absent properties: extents = %+v, want zero", got)
	}

	short := &fakeCardinals{props: map[xproto.Atom][]uint32{101: {1, 2}}}
	if got := ResolveExtents(short, testAtoms, 5); !got.Zero() {
		t.Errorf("truncated property: extents = %+v, want zero", got)
	}

	failing := &fakeCardinals{err: errors.New("BadWindow")}
	if got := ResolveExtents(failing, testAtoms, 5); !got.Zero() {
		t.Errorf("protocol failure: extents = %+v, want zero", got)
	}
}

func TestExtentsCacheResolvesOnce(t *testing.T) {
	src := &fakeCardinals{props: map[xproto.Atom][]uint32{
		101: {10, 10, 10, 10},
	}}
	cache := NewExtentsCache(src, testAtoms)

	first := cache.Get(7)
	callsAfterFirst := src.calls
	second := cache.Get(7)

	if first != second {
		t.Errorf("cache returned different values: %+v then %+v", first, second)
	}
	if src.calls != callsAfterFirst {
		t.Errorf("second lookup hit the source (%d calls, want %d)", src.calls, callsAfterFirst)
	}

	// Zero extents are cached too; failure answers should not be
	// re-queried every capture.
	empty := NewExtentsCache(&fakeCardinals{}, testAtoms)
	empty.Get(8)
	calls := empty.src.(*fakeCardinals).calls
	empty.Get(8)
	if got := empty.src.(*fakeCardinals).calls; got != calls {
		t.Errorf("zero extents re-resolved: %d calls, want %d", got, calls)
	}
}

func TestContentRect(t *testing.T) {
	f := FrameExtents{Left: 26, Right: 26, Top: 23, Bottom: 29}

	r, ok := f.ContentRect(800, 600)
	if !ok {
		t.Fatal("ContentRect should be valid for a normal window")
	}
	want := xconn.Rect{X: 26, Y: 23, Width: 748, Height: 548}
	if r != want {
		t.Errorf("content rect = %+v, want %+v", r, want)
	}

	// Extents larger than the window fall back to the full geometry.
	r, ok = f.ContentRect(40, 40)
	if ok {
		t.Error("ContentRect should be invalid when extents swallow the window")
	}
	if r.Width != 40 || r.Height != 40 || r.X != 0 || r.Y != 0 {
		t.Errorf("fallback rect = %+v, want full 40x40 at origin", r)
	}

	// Zero extents keep the full window and stay valid.
	r, ok = FrameExtents{}.ContentRect(640, 480)
	if !ok || r != (xconn.Rect{Width: 640, Height: 480}) {
		t.Errorf("zero extents rect = %+v ok=%v, want full size", r, ok)
	}
}
