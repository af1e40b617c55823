package capture

import (
	"errors"
	"testing"

	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/stillcap/stillcap/internal/xconn"
	"github.com/stillcap/stillcap/internal/xwin"
)

type imageRequest struct {
	drawable   xproto.Drawable
	x, y, w, h int
}

// fakeDisplay stands in for the X server. Drawables render as solid
// gray levels so tests can tell which drawable a surface came from.
type fakeDisplay struct {
	root      xproto.Window
	screen    xconn.Rect
	composite bool
	xfixes    bool

	geoms map[xproto.Window]xconn.Rect
	attrs map[xproto.Window]*xproto.GetWindowAttributesReply

	pixmap    xproto.Pixmap
	pixmapErr error
	acquired  int
	released  int

	fill      map[xproto.Drawable]byte
	imageErr  map[xproto.Drawable]error
	imageReqs []imageRequest

	cursor    *xfixes.GetCursorImageReply
	cursorErr error
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{
		root:      1,
		screen:    xconn.Rect{Width: 640, Height: 480},
		composite: true,
		xfixes:    true,
		geoms:     make(map[xproto.Window]xconn.Rect),
		attrs:     make(map[xproto.Window]*xproto.GetWindowAttributesReply),
		pixmap:    900,
		fill:      make(map[xproto.Drawable]byte),
		imageErr:  make(map[xproto.Drawable]error),
	}
}

func (f *fakeDisplay) Root() xproto.Window {
	return f.root
}

func (f *fakeDisplay) ScreenGeometry() xconn.Rect {
	return f.screen
}

func (f *fakeDisplay) CompositeEnabled() bool {
	return f.composite
}

func (f *fakeDisplay) XFixesEnabled() bool {
	return f.xfixes
}

func (f *fakeDisplay) Geometry(win xproto.Window) (xconn.Rect, error) {
	g, ok := f.geoms[win]
	if !ok {
		return xconn.Rect{}, errors.New("BadWindow")
	}
	return g, nil
}

func (f *fakeDisplay) Attributes(win xproto.Window) (*xproto.GetWindowAttributesReply, error) {
	a, ok := f.attrs[win]
	if !ok {
		return nil, errors.New("BadWindow")
	}
	return a, nil
}

func (f *fakeDisplay) Image(drawable xproto.Drawable, x, y, width, height int) (*xproto.GetImageReply, error) {
	f.imageReqs = append(f.imageReqs, imageRequest{drawable, x, y, width, height})
	if err := f.imageErr[drawable]; err != nil {
		return nil, err
	}
	v, ok := f.fill[drawable]
	if !ok {
		return nil, errors.New("BadDrawable")
	}
	data := make([]byte, width*height*4)
	for i := range data {
		data[i] = v
	}
	return &xproto.GetImageReply{Depth: 24, Data: data}, nil
}

func (f *fakeDisplay) CompositePixmap(win xproto.Window) (xproto.Pixmap, func(), error) {
	if f.pixmapErr != nil {
		return 0, nil, f.pixmapErr
	}
	f.acquired++
	return f.pixmap, func() { f.released++ }, nil
}

func (f *fakeDisplay) CursorImage() (*xfixes.GetCursorImageReply, error) {
	if f.cursorErr != nil {
		return nil, f.cursorErr
	}
	if f.cursor == nil {
		return nil, errors.New("no cursor")
	}
	return f.cursor, nil
}

// fakeCardinals feeds the extents cache a fixed property value.
type fakeCardinals struct {
	values []uint32
}

func (f *fakeCardinals) Cardinals(win xproto.Window, prop xproto.Atom, max uint32) ([]uint32, error) {
	if prop == 0 {
		return nil, nil
	}
	return f.values, nil
}

var extentsAtoms = xconn.Atoms{GtkFrameExtents: 101, NetFrameExtents: 102}

func viewableAttrs() *xproto.GetWindowAttributesReply {
	return &xproto.GetWindowAttributesReply{
		Class:    xproto.WindowClassInputOutput,
		MapState: xproto.MapStateViewable,
	}
}

func testInfo(client, frame xproto.Window, bounds xconn.Rect) xwin.WindowInfo {
	return xwin.WindowInfo{
		Handle:   xwin.Handle{Client: client, Frame: frame},
		Bounds:   bounds,
		Viewable: true,
	}
}

func newTestCapturer(d *fakeDisplay, extents []uint32) *WindowCapturer {
	return NewWindowCapturer(d, xwin.NewExtentsCache(&fakeCardinals{values: extents}, extentsAtoms))
}

func TestCaptureCompositeTier(t *testing.T) {
	d := newFakeDisplay()
	frame := xproto.Window(10)
	d.geoms[frame] = xconn.Rect{X: 100, Y: 50, Width: 8, Height: 6}
	d.attrs[frame] = viewableAttrs()
	d.fill[xproto.Drawable(d.pixmap)] = 10
	d.fill[xproto.Drawable(frame)] = 20

	w := newTestCapturer(d, nil)
	surface, tier, err := w.Capture(testInfo(5, frame, xconn.Rect{X: 100, Y: 50, Width: 8, Height: 6}), nil)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if tier != TierComposite {
		t.Errorf("tier = %v, want composite", tier)
	}
	if surface.Width != 8 || surface.Height != 6 {
		t.Errorf("surface = %dx%d, want 8x6", surface.Width, surface.Height)
	}
	if surface.Pix[0] != 10 {
		t.Errorf("pixel = %d, want pixmap fill 10, not the on-screen drawable", surface.Pix[0])
	}
	if d.acquired != 1 || d.released != 1 {
		t.Errorf("pixmap acquired %d released %d, want 1 and 1", d.acquired, d.released)
	}
}

func TestCaptureContentRectRespectsExtents(t *testing.T) {
	d := newFakeDisplay()
	frame := xproto.Window(10)
	d.geoms[frame] = xconn.Rect{X: 0, Y: 0, Width: 200, Height: 100}
	d.attrs[frame] = viewableAttrs()
	d.fill[xproto.Drawable(d.pixmap)] = 10

	// left 2, right 2, top 20, bottom 4.
	w := newTestCapturer(d, []uint32{2, 2, 20, 4})
	surface, _, err := w.Capture(testInfo(5, frame, xconn.Rect{Width: 200, Height: 100}), nil)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if surface.Width != 196 || surface.Height != 76 {
		t.Errorf("surface = %dx%d, want 196x76", surface.Width, surface.Height)
	}

	req := d.imageReqs[len(d.imageReqs)-1]
	if req.x != 2 || req.y != 20 || req.w != 196 || req.h != 76 {
		t.Errorf("image request = %+v, want content rect 2,20 196x76", req)
	}
}

func TestCaptureOversizedExtentsIgnored(t *testing.T) {
	d := newFakeDisplay()
	frame := xproto.Window(10)
	d.geoms[frame] = xconn.Rect{Width: 8, Height: 6}
	d.attrs[frame] = viewableAttrs()
	d.fill[xproto.Drawable(d.pixmap)] = 10

	// Extents taller than the window itself: fall back to the full
	// geometry instead of a negative-sized read.
	w := newTestCapturer(d, []uint32{2, 2, 20, 4})
	surface, _, err := w.Capture(testInfo(5, frame, xconn.Rect{Width: 8, Height: 6}), nil)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if surface.Width != 8 || surface.Height != 6 {
		t.Errorf("surface = %dx%d, want full 8x6", surface.Width, surface.Height)
	}
}

func TestCaptureFallsBackWhenCompositeFails(t *testing.T) {
	d := newFakeDisplay()
	frame := xproto.Window(10)
	d.geoms[frame] = xconn.Rect{Width: 8, Height: 6}
	d.attrs[frame] = viewableAttrs()
	d.pixmapErr = errors.New("BadAccess")
	d.fill[xproto.Drawable(frame)] = 20

	w := newTestCapturer(d, nil)
	surface, tier, err := w.Capture(testInfo(5, frame, xconn.Rect{Width: 8, Height: 6}), nil)
	if err != nil {
		t.Fatalf("Capture should fall back, got %v", err)
	}
	if tier != TierDirect {
		t.Errorf("tier = %v, want direct", tier)
	}
	if surface.Pix[0] != 20 {
		t.Errorf("pixel = %d, want on-screen drawable fill 20", surface.Pix[0])
	}
	if d.released != 0 {
		t.Errorf("released = %d, want 0 when acquisition failed", d.released)
	}
}

func TestCaptureDirectTierWithoutComposite(t *testing.T) {
	d := newFakeDisplay()
	d.composite = false
	frame := xproto.Window(10)
	d.geoms[frame] = xconn.Rect{Width: 8, Height: 6}
	d.attrs[frame] = viewableAttrs()
	d.fill[xproto.Drawable(frame)] = 20

	w := newTestCapturer(d, nil)
	surface, tier, err := w.Capture(testInfo(5, frame, xconn.Rect{Width: 8, Height: 6}), nil)
	if err != nil {
		t.Fatalf("missing composite extension must not fail the capture: %v", err)
	}
	if tier != TierDirect {
		t.Errorf("tier = %v, want direct", tier)
	}
	if surface == nil || surface.Width != 8 {
		t.Error("expected a surface from the direct tier")
	}
	if d.acquired != 0 {
		t.Errorf("acquired = %d, composite should never be attempted", d.acquired)
	}
}

func TestCaptureFailsWhenBothTiersFail(t *testing.T) {
	d := newFakeDisplay()
	frame := xproto.Window(10)
	d.geoms[frame] = xconn.Rect{Width: 8, Height: 6}
	d.attrs[frame] = viewableAttrs()
	d.pixmapErr = errors.New("BadAccess")
	d.imageErr[xproto.Drawable(frame)] = errors.New("BadDrawable")

	w := newTestCapturer(d, nil)
	_, _, err := w.Capture(testInfo(5, frame, xconn.Rect{Width: 8, Height: 6}), nil)
	if !errors.Is(err, ErrCapture) {
		t.Errorf("err = %v, want ErrCapture", err)
	}
}

func TestCaptureRejectsUnviewableWindow(t *testing.T) {
	d := newFakeDisplay()
	frame := xproto.Window(10)
	d.geoms[frame] = xconn.Rect{Width: 8, Height: 6}
	d.attrs[frame] = &xproto.GetWindowAttributesReply{
		Class:    xproto.WindowClassInputOutput,
		MapState: xproto.MapStateUnmapped,
	}

	w := newTestCapturer(d, nil)
	if _, _, err := w.Capture(testInfo(5, frame, xconn.Rect{}), nil); !errors.Is(err, ErrCapture) {
		t.Errorf("unmapped window: err = %v, want ErrCapture", err)
	}

	// Window gone entirely.
	delete(d.attrs, frame)
	if _, _, err := w.Capture(testInfo(5, frame, xconn.Rect{}), nil); !errors.Is(err, ErrCapture) {
		t.Errorf("destroyed window: err = %v, want ErrCapture", err)
	}
}

func TestCaptureBlendsCursorWindowRelative(t *testing.T) {
	d := newFakeDisplay()
	frame := xproto.Window(10)
	d.geoms[frame] = xconn.Rect{X: 100, Y: 50, Width: 8, Height: 6}
	d.attrs[frame] = viewableAttrs()
	d.fill[xproto.Drawable(d.pixmap)] = 255

	cursor := &Cursor{
		Width: 1, Height: 1,
		X: 101, Y: 51,
		Pix: []byte{255, 0, 0, 255},
	}

	w := newTestCapturer(d, nil)
	surface, _, err := w.Capture(testInfo(5, frame, xconn.Rect{X: 100, Y: 50, Width: 8, Height: 6}), cursor)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	// Absolute (101,51) is window-relative (1,1).
	o := (1*surface.Width + 1) * 4
	if surface.Pix[o] != 255 || surface.Pix[o+1] != 0 || surface.Pix[o+2] != 0 {
		t.Errorf("pixel at cursor = %v, want red", surface.Pix[o:o+3])
	}
	// Neighbor untouched.
	if surface.Pix[0] != 255 || surface.Pix[1] != 255 {
		t.Error("pixels away from the cursor should keep the window content")
	}
}
