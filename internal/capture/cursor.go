package capture

import (
	"errors"
	"fmt"

	"github.com/stillcap/stillcap/internal/logger"
)

// ErrCursorUnavailable marks a cursor that could not be fetched: the
// XFixes extension is missing or the server refused the request.
// Callers proceed without a cursor.
var ErrCursorUnavailable = errors.New("cursor unavailable")

// Cursor is the pointer image at one instant: straight (non
// premultiplied) RGBA pixels, the hotspot offset within the image, and
// the absolute pointer position at fetch time. Serial changes when the
// cursor shape changes.
type Cursor struct {
	Width  int
	Height int
	HotX   int
	HotY   int
	X      int
	Y      int
	Serial uint32
	Pix    []byte
}

// CursorCapturer fetches cursors from one display connection.
type CursorCapturer struct {
	d display
}

// NewCursorCapturer creates a cursor capturer over the display.
func NewCursorCapturer(d display) *CursorCapturer {
	return &CursorCapturer{d: d}
}

// CaptureCursor fetches the current cursor image.
func (c *CursorCapturer) CaptureCursor() (*Cursor, error) {
	return CaptureCursor(c.d)
}

// CaptureCursor fetches the current cursor through XFixes and converts
// its premultiplied ARGB words to straight RGBA.
func CaptureCursor(d display) (*Cursor, error) {
	if !d.XFixesEnabled() {
		return nil, fmt.Errorf("%w: xfixes extension missing", ErrCursorUnavailable)
	}

	reply, err := d.CursorImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCursorUnavailable, err)
	}
	width, height := int(reply.Width), int(reply.Height)
	if width <= 0 || height <= 0 || len(reply.CursorImage) < width*height {
		return nil, fmt.Errorf("%w: malformed cursor image %dx%d", ErrCursorUnavailable, width, height)
	}

	c := &Cursor{
		Width:  width,
		Height: height,
		HotX:   int(reply.Xhot),
		HotY:   int(reply.Yhot),
		X:      int(reply.X),
		Y:      int(reply.Y),
		Serial: reply.CursorSerial,
		Pix:    unpremultiplyARGB(reply.CursorImage, width, height),
	}

	logger.WithComponent("cursor").Debug().
		Int("width", width).
		Int("height", height).
		Int("x", c.X).
		Int("y", c.Y).
		Uint32("serial", c.Serial).
		Msg("Cursor captured")

	return c, nil
}

// unpremultiplyARGB converts packed premultiplied ARGB words to straight
// RGBA bytes. Each color channel is divided back out by its alpha with
// rounding; fully transparent pixels skip the division and stay zero,
// and corrupt inputs where a channel exceeds its alpha clamp at 255.
func unpremultiplyARGB(words []uint32, width, height int) []byte {
	pix := make([]byte, width*height*4)
	for i := 0; i < width*height; i++ {
		argb := words[i]
		a := uint32(argb >> 24)
		r := uint32(argb>>16) & 0xff
		g := uint32(argb>>8) & 0xff
		b := uint32(argb) & 0xff

		switch a {
		case 0:
			r, g, b = 0, 0, 0
		case 255:
			// Already straight.
		default:
			r = unmultiply(r, a)
			g = unmultiply(g, a)
			b = unmultiply(b, a)
		}

		o := i * 4
		pix[o] = byte(r)
		pix[o+1] = byte(g)
		pix[o+2] = byte(b)
		pix[o+3] = byte(a)
	}
	return pix
}

func unmultiply(channel, alpha uint32) uint32 {
	v := (channel*255 + alpha/2) / alpha
	if v > 255 {
		v = 255
	}
	return v
}

// CompositeCursor alpha-blends the cursor into the surface. originX and
// originY are the surface's absolute screen position, so the cursor
// lands where it was pointing; the hotspot offset is subtracted so the
// image is anchored at the click point, not its top-left corner.
// Cursors partially or fully outside the surface are clipped.
func (s *Surface) CompositeCursor(c *Cursor, originX, originY int) {
	if c == nil {
		return
	}

	cx := c.X - originX - c.HotX
	cy := c.Y - originY - c.HotY

	for y := 0; y < c.Height; y++ {
		dy := cy + y
		if dy < 0 || dy >= s.Height {
			continue
		}
		for x := 0; x < c.Width; x++ {
			dx := cx + x
			if dx < 0 || dx >= s.Width {
				continue
			}

			src := (y*c.Width + x) * 4
			a := uint32(c.Pix[src+3])
			if a == 0 {
				continue
			}

			dst := (dy*s.Width + dx) * 4
			if a == 255 {
				s.Pix[dst] = c.Pix[src]
				s.Pix[dst+1] = c.Pix[src+1]
				s.Pix[dst+2] = c.Pix[src+2]
				continue
			}
			s.Pix[dst] = byte((uint32(c.Pix[src])*a + uint32(s.Pix[dst])*(255-a)) / 255)
			s.Pix[dst+1] = byte((uint32(c.Pix[src+1])*a + uint32(s.Pix[dst+1])*(255-a)) / 255)
			s.Pix[dst+2] = byte((uint32(c.Pix[src+2])*a + uint32(s.Pix[dst+2])*(255-a)) / 255)
		}
	}
}
