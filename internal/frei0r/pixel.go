// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package frei0r

import "encoding/binary"

// RGBA is one 8-bit-per-channel pixel independent of byte order.
type RGBA struct {
	R, G, B, A uint8
}

// Pack lays p out in memory the way the color model expects and returns the
// resulting 32-bit word. Packed32 plugins do not care about channel order;
// they get RGBA.
func (c ColorModel) Pack(p RGBA) uint32 {
	var b [4]byte
	if c == ColorModelBGRA8888 {
		b = [4]byte{p.B, p.G, p.R, p.A}
	} else {
		b = [4]byte{p.R, p.G, p.B, p.A}
	}
	return binary.NativeEndian.Uint32(b[:])
}

// Unpack is the inverse of Pack.
func (c ColorModel) Unpack(v uint32) RGBA {
	var b [4]byte
	binary.NativeEndian.PutUint32(b[:], v)
	if c == ColorModelBGRA8888 {
		return RGBA{R: b[2], G: b[1], B: b[0], A: b[3]}
	}
	return RGBA{R: b[0], G: b[1], B: b[2], A: b[3]}
}
