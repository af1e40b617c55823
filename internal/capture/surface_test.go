package capture

import (
	"errors"
	"testing"

	"github.com/stillcap/stillcap/internal/xconn"
)

// gridSurface builds a surface whose red channel encodes the pixel
// index, making copies easy to verify.
func gridSurface(t *testing.T, w, h int) *Surface {
	t.Helper()
	s := &Surface{Pix: make([]byte, w*h*4), Width: w, Height: h, Depth: 24}
	for i := 0; i < w*h; i++ {
		s.Pix[i*4] = byte(i)
		s.Pix[i*4+3] = 255
	}
	return s
}

func TestFromZPixmapSwapsChannels(t *testing.T) {
	// One pixel, little-endian BGRx with a garbage alpha byte.
	data := []byte{0x10, 0x20, 0x30, 0x77}

	s, err := FromZPixmap(data, 1, 1, 24)
	if err != nil {
		t.Fatalf("FromZPixmap: %v", err)
	}
	if s.Pix[0] != 0x30 || s.Pix[1] != 0x20 || s.Pix[2] != 0x10 {
		t.Errorf("pixel = %v, want RGB 30 20 10", s.Pix[:3])
	}
	if s.Pix[3] != 255 {
		t.Errorf("alpha = %d, want forced 255", s.Pix[3])
	}
	if s.Depth != 24 {
		t.Errorf("depth = %d, want 24", s.Depth)
	}
}

func TestFromZPixmapDepth32ForcesOpaque(t *testing.T) {
	data := []byte{1, 2, 3, 0}

	s, err := FromZPixmap(data, 1, 1, 32)
	if err != nil {
		t.Fatalf("FromZPixmap: %v", err)
	}
	if s.Pix[3] != 255 {
		t.Errorf("alpha = %d, want 255 regardless of source alpha", s.Pix[3])
	}
}

func TestFromZPixmapRejectsBadInput(t *testing.T) {
	if _, err := FromZPixmap(make([]byte, 64), 4, 4, 16); !errors.Is(err, ErrCapture) {
		t.Errorf("depth 16: err = %v, want ErrCapture", err)
	}
	if _, err := FromZPixmap(make([]byte, 8), 4, 4, 24); !errors.Is(err, ErrCapture) {
		t.Errorf("short data: err = %v, want ErrCapture", err)
	}
	if _, err := FromZPixmap(nil, 0, 4, 24); !errors.Is(err, ErrCapture) {
		t.Errorf("zero width: err = %v, want ErrCapture", err)
	}
}

func TestCrop(t *testing.T) {
	s := gridSurface(t, 4, 4)

	c, err := s.Crop(xconn.Rect{X: 1, Y: 1, Width: 2, Height: 2})
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	if c.Width != 2 || c.Height != 2 {
		t.Fatalf("crop size = %dx%d, want 2x2", c.Width, c.Height)
	}
	// Row-major indexes of the source pixels: 5, 6, 9, 10.
	want := []byte{5, 6, 9, 10}
	for i, idx := range want {
		if got := c.Pix[i*4]; got != idx {
			t.Errorf("crop pixel %d = %d, want %d", i, got, idx)
		}
	}

	// The crop owns its pixels.
	c.Pix[0] = 200
	if s.Pix[(1*4+1)*4] == 200 {
		t.Error("mutating the crop leaked into the source surface")
	}
}

func TestCropClampsToSurface(t *testing.T) {
	s := gridSurface(t, 4, 4)

	c, err := s.Crop(xconn.Rect{X: -2, Y: -2, Width: 3, Height: 3})
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	if c.Width != 1 || c.Height != 1 {
		t.Fatalf("clamped crop = %dx%d, want 1x1", c.Width, c.Height)
	}
	if c.Pix[0] != 0 {
		t.Errorf("clamped crop pixel = %d, want 0", c.Pix[0])
	}

	c, err = s.Crop(xconn.Rect{X: 2, Y: 2, Width: 100, Height: 100})
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	if c.Width != 2 || c.Height != 2 {
		t.Fatalf("clamped crop = %dx%d, want 2x2", c.Width, c.Height)
	}
}

func TestCropOutsideSurfaceFails(t *testing.T) {
	s := gridSurface(t, 4, 4)

	if _, err := s.Crop(xconn.Rect{X: 10, Y: 10, Width: 2, Height: 2}); err == nil {
		t.Error("crop entirely outside the surface should fail")
	}
	if _, err := s.Crop(xconn.Rect{X: 1, Y: 1, Width: 0, Height: 2}); err == nil {
		t.Error("empty crop should fail")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := gridSurface(t, 2, 2)
	c := s.Clone()

	c.Pix[0] = 99
	if s.Pix[0] == 99 {
		t.Error("mutating the clone leaked into the source")
	}
}

func TestRGBASharesPixels(t *testing.T) {
	s := gridSurface(t, 2, 2)
	img := s.RGBA()

	if img.Rect.Dx() != 2 || img.Rect.Dy() != 2 {
		t.Fatalf("image bounds = %v, want 2x2", img.Rect)
	}
	s.Pix[0] = 42
	if img.Pix[0] != 42 {
		t.Error("RGBA view should share the surface pixels")
	}
}

func TestThumbnail(t *testing.T) {
	s := gridSurface(t, 100, 50)

	thumb := s.Thumbnail(10)
	if thumb.Rect.Dx() != 10 || thumb.Rect.Dy() != 5 {
		t.Errorf("thumbnail = %dx%d, want 10x5", thumb.Rect.Dx(), thumb.Rect.Dy())
	}

	// Already small enough: full size comes back.
	same := s.Thumbnail(200)
	if same.Rect.Dx() != 100 || same.Rect.Dy() != 50 {
		t.Errorf("undersized thumbnail = %dx%d, want original size", same.Rect.Dx(), same.Rect.Dy())
	}
}
