package capture

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/stillcap/stillcap/internal/xconn"
)

// ErrCapture marks a window capture that failed on both tiers. It is
// recoverable per window: the caller drops the window and keeps the
// session alive.
var ErrCapture = errors.New("window capture failed")

// Surface is raw captured pixel data: straight RGBA, row-major, four
// bytes per pixel. A Surface belongs to its producer until handed off;
// once inside a completed snapshot it is never written again.
type Surface struct {
	Pix    []byte
	Width  int
	Height int

	// Depth is the source drawable depth the pixels came from.
	Depth int
}

// FromZPixmap converts little-endian ZPixmap wire data (BGRx at depth
// 24, BGRA at depth 32) into a Surface. Alpha is forced opaque; window
// alpha channels carry garbage often enough that honoring them produces
// worse images than ignoring them.
func FromZPixmap(data []byte, width, height, depth int) (*Surface, error) {
	if depth != 24 && depth != 32 {
		return nil, fmt.Errorf("%w: unsupported drawable depth %d", ErrCapture, depth)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrCapture, width, height)
	}
	need := width * height * 4
	if len(data) < need {
		return nil, fmt.Errorf("%w: short pixel data, got %d bytes for %dx%d", ErrCapture, len(data), width, height)
	}

	pix := make([]byte, need)
	for i := 0; i < need; i += 4 {
		pix[i] = data[i+2]
		pix[i+1] = data[i+1]
		pix[i+2] = data[i]
		pix[i+3] = 255
	}

	return &Surface{
		Pix:    pix,
		Width:  width,
		Height: height,
		Depth:  depth,
	}, nil
}

// Bounds returns the surface rectangle at the origin.
func (s *Surface) Bounds() xconn.Rect {
	return xconn.Rect{Width: s.Width, Height: s.Height}
}

// Clone returns an independent copy.
func (s *Surface) Clone() *Surface {
	pix := make([]byte, len(s.Pix))
	copy(pix, s.Pix)
	return &Surface{Pix: pix, Width: s.Width, Height: s.Height, Depth: s.Depth}
}

// Crop copies the given surface-local rectangle into a new Surface. The
// rectangle is clamped to the surface; an empty intersection is an
// error.
func (s *Surface) Crop(r xconn.Rect) (*Surface, error) {
	x0, y0 := r.X, r.Y
	if x0 < 0 {
		r.Width += x0
		x0 = 0
	}
	if y0 < 0 {
		r.Height += y0
		y0 = 0
	}
	x1, y1 := x0+r.Width, y0+r.Height
	if x1 > s.Width {
		x1 = s.Width
	}
	if y1 > s.Height {
		y1 = s.Height
	}
	if x0 >= x1 || y0 >= y1 {
		return nil, fmt.Errorf("crop %+v outside surface %dx%d", r, s.Width, s.Height)
	}

	w, h := x1-x0, y1-y0
	pix := make([]byte, w*h*4)
	for row := 0; row < h; row++ {
		src := ((y0+row)*s.Width + x0) * 4
		copy(pix[row*w*4:(row+1)*w*4], s.Pix[src:src+w*4])
	}
	return &Surface{Pix: pix, Width: w, Height: h, Depth: s.Depth}, nil
}

// RGBA wraps the surface as an image without copying pixels.
func (s *Surface) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    s.Pix,
		Stride: s.Width * 4,
		Rect:   image.Rect(0, 0, s.Width, s.Height),
	}
}

// Thumbnail scales the surface down to at most maxWidth pixels wide,
// preserving aspect ratio. Surfaces already narrow enough are returned
// as-is.
func (s *Surface) Thumbnail(maxWidth int) *image.RGBA {
	src := s.RGBA()
	if maxWidth <= 0 || s.Width <= maxWidth {
		return src
	}
	h := s.Height * maxWidth / s.Width
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
	return dst
}
