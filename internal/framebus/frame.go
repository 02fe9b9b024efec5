// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

// Package framebus carries rendered frames from the host to whoever wants
// them: an in-process broadcaster, a gRPC service for remote subscribers and
// a websocket preview for browsers.
package framebus

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

// Format names the byte order of a frame's 4-byte pixels.
type Format string

// Pixel formats published on the bus.
const (
	FormatBGRA8    Format = "bgra8"
	FormatRGBA8    Format = "rgba8"
	FormatPacked32 Format = "packed32"
)

// FormatFor returns the bus format matching a plugin color model.
func FormatFor(model frei0r.ColorModel) Format {
	switch model {
	case frei0r.ColorModelBGRA8888:
		return FormatBGRA8
	case frei0r.ColorModelPacked32:
		return FormatPacked32
	default:
		return FormatRGBA8
	}
}

// ColorModel is the inverse of FormatFor. Unknown formats read as RGBA.
func (f Format) ColorModel() frei0r.ColorModel {
	switch f {
	case FormatBGRA8:
		return frei0r.ColorModelBGRA8888
	case FormatPacked32:
		return frei0r.ColorModelPacked32
	default:
		return frei0r.ColorModelRGBA8888
	}
}

// Frame is one published image. Data holds Width*Height pixels of 4 bytes
// each in Format order. Frames are values; publishers never mutate Data after
// handing a frame over.
type Frame struct {
	ID        ulid.ULID
	Seq       uint64
	Topic     string
	Width     int
	Height    int
	Format    Format
	Timestamp time.Time
	Data      []byte
}

// Publisher is the frame bus as seen by the host: fire-and-forget, no
// acknowledgment and no backpressure.
type Publisher interface {
	Publish(ctx context.Context, f Frame)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, f Frame)

// Publish implements Publisher.
func (fn PublisherFunc) Publish(ctx context.Context, f Frame) { fn(ctx, f) }

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewID generates a frame ID.
func NewID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// FromPixels copies a plugin buffer into a new frame. The words keep the
// plugin's byte order, which Format records. at is the instant the pixels
// were rendered for.
func FromPixels(topic string, at time.Time, width, height int, model frei0r.ColorModel, px []uint32) Frame {
	data := make([]byte, 4*len(px))
	for i, v := range px {
		binary.NativeEndian.PutUint32(data[4*i:], v)
	}
	return Frame{
		ID:        NewID(),
		Topic:     topic,
		Width:     width,
		Height:    height,
		Format:    FormatFor(model),
		Timestamp: at,
		Data:      data,
	}
}

// Validate checks that Data matches the declared geometry.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("frame %s: invalid size %dx%d", f.ID, f.Width, f.Height)
	}
	if want := 4 * f.Width * f.Height; len(f.Data) != want {
		return fmt.Errorf("frame %s: %d bytes of data, want %d", f.ID, len(f.Data), want)
	}
	return nil
}

// pixel returns the pixel at (x, y).
func (f Frame) pixel(x, y int) frei0r.RGBA {
	i := 4 * (y*f.Width + x)
	b := f.Data[i : i+4]
	if f.Format == FormatBGRA8 {
		return frei0r.RGBA{R: b[2], G: b[1], B: b[0], A: b[3]}
	}
	return frei0r.RGBA{R: b[0], G: b[1], B: b[2], A: b[3]}
}

// Scale writes f into dst, a width*height buffer in model's byte order,
// using nearest-neighbour sampling. An invalid frame leaves dst black.
func Scale(f Frame, dst []uint32, width, height int, model frei0r.ColorModel) {
	if f.Validate() != nil || width <= 0 || height <= 0 {
		clear(dst)
		return
	}
	for y := range height {
		sy := y * f.Height / height
		row := dst[y*width : (y+1)*width]
		for x := range row {
			sx := x * f.Width / width
			row[x] = model.Pack(f.pixel(sx, sy))
		}
	}
}
