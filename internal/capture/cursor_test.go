package capture

import (
	"errors"
	"testing"

	"github.com/BurntSushi/xgb/xfixes"
)

func TestUnpremultiplyARGB(t *testing.T) {
	tests := []struct {
		name string
		word uint32
		want [4]byte // straight RGBA
	}{
		{
			name: "opaque pixel unchanged",
			word: 0xFF336699,
			want: [4]byte{0x33, 0x66, 0x99, 0xFF},
		},
		{
			name: "transparent pixel zeroed without division",
			word: 0x00112233,
			want: [4]byte{0, 0, 0, 0},
		},
		{
			name: "half alpha divides back out",
			word: 0x80404040,
			want: [4]byte{128, 128, 128, 128},
		},
		{
			name: "quarter alpha rounds",
			word: 0x40202020, // 32 premultiplied at alpha 64
			want: [4]byte{128, 128, 128, 64},
		},
		{
			name: "corrupt channel above alpha clamps",
			word: 0x10202020, // channel 32 cannot come from alpha 16
			want: [4]byte{255, 255, 255, 16},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pix := unpremultiplyARGB([]uint32{tt.word}, 1, 1)
			got := [4]byte{pix[0], pix[1], pix[2], pix[3]}
			if got != tt.want {
				t.Errorf("unpremultiplyARGB(%#x) = %v, want %v", tt.word, got, tt.want)
			}
		})
	}
}

func TestCaptureCursor(t *testing.T) {
	d := newFakeDisplay()
	d.cursor = &xfixes.GetCursorImageReply{
		X: 320, Y: 240,
		Width: 2, Height: 1,
		Xhot: 1, Yhot: 0,
		CursorSerial: 7,
		CursorImage:  []uint32{0xFFFF0000, 0x80800000},
	}

	c, err := CaptureCursor(d)
	if err != nil {
		t.Fatalf("CaptureCursor: %v", err)
	}
	if c.X != 320 || c.Y != 240 || c.HotX != 1 || c.HotY != 0 {
		t.Errorf("position = (%d,%d) hot (%d,%d), want (320,240) hot (1,0)", c.X, c.Y, c.HotX, c.HotY)
	}
	if c.Serial != 7 {
		t.Errorf("serial = %d, want 7", c.Serial)
	}
	if c.Pix[0] != 255 || c.Pix[3] != 255 {
		t.Errorf("opaque pixel = %v, want straight red", c.Pix[:4])
	}
	if c.Pix[4] != 255 || c.Pix[7] != 128 {
		t.Errorf("translucent pixel = %v, want red unmultiplied at alpha 128", c.Pix[4:8])
	}
}

func TestCaptureCursorWithoutXFixes(t *testing.T) {
	d := newFakeDisplay()
	d.xfixes = false

	if _, err := CaptureCursor(d); !errors.Is(err, ErrCursorUnavailable) {
		t.Errorf("err = %v, want ErrCursorUnavailable", err)
	}
}

func TestCaptureCursorServerError(t *testing.T) {
	d := newFakeDisplay()
	d.cursorErr = errors.New("connection reset")

	if _, err := CaptureCursor(d); !errors.Is(err, ErrCursorUnavailable) {
		t.Errorf("err = %v, want ErrCursorUnavailable", err)
	}
}

func TestCaptureCursorMalformedImage(t *testing.T) {
	d := newFakeDisplay()
	d.cursor = &xfixes.GetCursorImageReply{
		Width: 4, Height: 4,
		CursorImage: []uint32{0xFFFFFFFF}, // far too short
	}

	if _, err := CaptureCursor(d); !errors.Is(err, ErrCursorUnavailable) {
		t.Errorf("err = %v, want ErrCursorUnavailable", err)
	}
}

func TestCompositeCursorPlacement(t *testing.T) {
	s := gridSurface(t, 4, 4)
	for i := range s.Pix {
		s.Pix[i] = 255 // white, fully opaque
	}

	// 2x2 cursor with the hotspot at its center pixel: opaque red,
	// transparent, half red, opaque green.
	c := &Cursor{
		Width: 2, Height: 2,
		HotX: 1, HotY: 1,
		X: 2, Y: 2,
		Pix: []byte{
			255, 0, 0, 255,
			0, 0, 0, 0,
			255, 0, 0, 128,
			0, 255, 0, 255,
		},
	}

	s.CompositeCursor(c, 0, 0)

	at := func(x, y int) []byte {
		o := (y*s.Width + x) * 4
		return s.Pix[o : o+4]
	}

	// Hotspot subtraction anchors the image at (1,1).
	if p := at(1, 1); p[0] != 255 || p[1] != 0 || p[2] != 0 {
		t.Errorf("(1,1) = %v, want opaque red", p)
	}
	if p := at(2, 1); p[0] != 255 || p[1] != 255 || p[2] != 255 {
		t.Errorf("(2,1) = %v, transparent cursor pixel must not touch the surface", p)
	}
	if p := at(1, 2); p[0] != 255 || p[1] != 127 || p[2] != 127 {
		t.Errorf("(1,2) = %v, want red blended into white at alpha 128", p)
	}
	if p := at(2, 2); p[0] != 0 || p[1] != 255 || p[2] != 0 {
		t.Errorf("(2,2) = %v, want opaque green", p)
	}
	if p := at(0, 0); p[0] != 255 || p[1] != 255 || p[2] != 255 {
		t.Errorf("(0,0) = %v, pixels outside the cursor must stay untouched", p)
	}
}

func TestCompositeCursorClipsAtEdges(t *testing.T) {
	s := gridSurface(t, 4, 4)

	c := &Cursor{
		Width: 3, Height: 3,
		X: -1, Y: -1,
		Pix: func() []byte {
			p := make([]byte, 3*3*4)
			for i := 0; i < len(p); i += 4 {
				p[i], p[i+3] = 200, 255
			}
			return p
		}(),
	}

	// Top-left corner hangs off the surface; only the overlap lands.
	s.CompositeCursor(c, 0, 0)

	if s.Pix[0] != 200 {
		t.Errorf("(0,0) = %d, want cursor overlap written", s.Pix[0])
	}
	o := (3*4 + 3) * 4
	if s.Pix[o] == 200 {
		t.Error("(3,3) is outside the cursor and must stay untouched")
	}
}

func TestCompositeCursorFullyOutside(t *testing.T) {
	s := gridSurface(t, 4, 4)
	before := append([]byte(nil), s.Pix...)

	c := &Cursor{
		Width: 2, Height: 2,
		X: 100, Y: 100,
		Pix: make([]byte, 2*2*4),
	}
	s.CompositeCursor(c, 0, 0)

	for i := range before {
		if s.Pix[i] != before[i] {
			t.Fatal("cursor entirely outside the surface must not modify it")
		}
	}
}

func TestCompositeCursorNil(t *testing.T) {
	s := gridSurface(t, 2, 2)
	before := append([]byte(nil), s.Pix...)

	s.CompositeCursor(nil, 0, 0)

	for i := range before {
		if s.Pix[i] != before[i] {
			t.Fatal("nil cursor must be a no-op")
		}
	}
}
