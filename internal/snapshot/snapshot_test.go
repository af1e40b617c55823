package snapshot

import (
	"testing"
	"time"

	"github.com/stillcap/stillcap/internal/capture"
	"github.com/stillcap/stillcap/internal/xconn"
	"github.com/stillcap/stillcap/internal/xwin"
)

// frozenSnapshot builds a snapshot by hand: a 100x100 desktop filled
// with 1, an editor window with a pure capture, and a dialog in front
// of it whose capture never landed.
func frozenSnapshot() *Snapshot {
	editor := window(10, 10, 10, 40, 40)
	dialog := window(20, 30, 30, 40, 40)

	return &Snapshot{
		Desktop:       solidSurface(100, 100, 1),
		DesktopBounds: xconn.Rect{Width: 100, Height: 100},
		Stacking:      []xwin.WindowInfo{dialog, editor},
		Windows: map[xwin.Handle]*WindowCapture{
			editor.Handle: {
				Info:    editor,
				Surface: solidSurface(40, 40, 10),
				Tier:    capture.TierComposite,
			},
		},
		TakenAt: time.Now(),
	}
}

func TestSnapshotWindowAtPureContent(t *testing.T) {
	snap := frozenSnapshot()

	// (15,15) is inside the editor only.
	surface, info, err := snap.WindowAt(15, 15)
	if err != nil {
		t.Fatalf("WindowAt: %v", err)
	}
	if info == nil || info.Handle.ID() != 10 {
		t.Fatalf("info = %+v, want the editor", info)
	}
	if surface.Pix[0] != 10 {
		t.Errorf("pixel = %d, want the pure capture, not a desktop crop", surface.Pix[0])
	}
}

func TestSnapshotWindowAtFallbackCrop(t *testing.T) {
	snap := frozenSnapshot()

	// (60,60) is inside the dialog only, and the dialog has no capture.
	surface, info, err := snap.WindowAt(60, 60)
	if err != nil {
		t.Fatalf("WindowAt: %v", err)
	}
	if info == nil || info.Handle.ID() != 20 {
		t.Fatalf("info = %+v, want the dialog", info)
	}
	if surface.Width != 40 || surface.Height != 40 {
		t.Errorf("surface = %dx%d, want the dialog bounds", surface.Width, surface.Height)
	}
	if surface.Pix[0] != 1 {
		t.Errorf("pixel = %d, want desktop content as the fallback", surface.Pix[0])
	}
}

func TestSnapshotWindowAtStackingOrder(t *testing.T) {
	snap := frozenSnapshot()

	// (35,35) is inside both; the dialog is in front.
	_, info, err := snap.WindowAt(35, 35)
	if err != nil {
		t.Fatalf("WindowAt: %v", err)
	}
	if info == nil || info.Handle.ID() != 20 {
		t.Errorf("info = %+v, want the frontmost dialog", info)
	}
}

func TestSnapshotWindowAtDesktop(t *testing.T) {
	snap := frozenSnapshot()

	surface, info, err := snap.WindowAt(90, 90)
	if err != nil {
		t.Fatalf("WindowAt: %v", err)
	}
	if info != nil {
		t.Errorf("info = %+v, want nil for bare desktop", info)
	}
	if surface != snap.Desktop {
		t.Error("bare desktop should serve the full frozen surface")
	}
}

func TestSnapshotWindowByID(t *testing.T) {
	snap := frozenSnapshot()

	surface, info, err := snap.Window(20)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if info.Handle.ID() != 20 || surface.Pix[0] != 1 {
		t.Error("dialog lookup should fall back to a desktop crop")
	}

	if _, _, err := snap.Window(999); err == nil {
		t.Error("unknown window id must fail")
	}
}

func TestSnapshotAreaOutsideDesktop(t *testing.T) {
	snap := frozenSnapshot()

	if _, err := snap.Area(xconn.Rect{X: 500, Y: 500, Width: 10, Height: 10}); err == nil {
		t.Error("area entirely off the desktop must fail")
	}
}
