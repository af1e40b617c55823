package xconn

import (
	"github.com/BurntSushi/xgb/xproto"
)

// Property values are little-endian on the wire regardless of host
// order; all accessors assemble 32-bit items by hand.

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// property fetches a raw property reply. A nil reply with nil error
// means the property is absent (unset atom, missing property, or empty
// value); a non-nil error is a protocol failure.
func (d *Display) property(win xproto.Window, prop xproto.Atom, longLength uint32) (*xproto.GetPropertyReply, error) {
	if prop == 0 {
		return nil, nil
	}
	reply, err := xproto.GetProperty(
		d.conn,
		false,
		win,
		prop,
		xproto.GetPropertyTypeAny,
		0,
		longLength,
	).Reply()
	if err != nil {
		return nil, err
	}
	if reply.Type == 0 || reply.ValueLen == 0 {
		return nil, nil
	}
	return reply, nil
}

// Cardinal reads a single 32-bit CARDINAL. ok is false when the
// property is absent.
func (d *Display) Cardinal(win xproto.Window, prop xproto.Atom) (value uint32, ok bool, err error) {
	reply, err := d.property(win, prop, 1)
	if err != nil || reply == nil {
		return 0, false, err
	}
	if len(reply.Value) < 4 {
		return 0, false, nil
	}
	return le32(reply.Value), true, nil
}

// Cardinals reads up to max 32-bit CARDINALs. Absent properties yield a
// nil slice and nil error.
func (d *Display) Cardinals(win xproto.Window, prop xproto.Atom, max uint32) ([]uint32, error) {
	reply, err := d.property(win, prop, max)
	if err != nil || reply == nil {
		return nil, err
	}
	values := make([]uint32, 0, len(reply.Value)/4)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		values = append(values, le32(reply.Value[i:]))
	}
	return values, nil
}

// WindowList parses a WINDOW[] property such as _NET_CLIENT_LIST.
func (d *Display) WindowList(win xproto.Window, prop xproto.Atom) ([]xproto.Window, error) {
	reply, err := d.property(win, prop, (1<<32)-1)
	if err != nil || reply == nil {
		return nil, err
	}
	windows := make([]xproto.Window, 0, len(reply.Value)/4)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		windows = append(windows, xproto.Window(le32(reply.Value[i:])))
	}
	return windows, nil
}

// AtomList parses an ATOM[] property such as _NET_WM_STATE.
func (d *Display) AtomList(win xproto.Window, prop xproto.Atom) ([]xproto.Atom, error) {
	reply, err := d.property(win, prop, (1<<32)-1)
	if err != nil || reply == nil {
		return nil, err
	}
	atoms := make([]xproto.Atom, 0, len(reply.Value)/4)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		atoms = append(atoms, xproto.Atom(le32(reply.Value[i:])))
	}
	return atoms, nil
}

// Text reads a STRING or UTF8_STRING property. Absent properties yield
// the empty string.
func (d *Display) Text(win xproto.Window, prop xproto.Atom) (string, error) {
	reply, err := d.property(win, prop, (1<<32)-1)
	if err != nil || reply == nil {
		return "", err
	}
	return string(reply.Value), nil
}
