// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package framebus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

func TestFormatFor(t *testing.T) {
	tests := []struct {
		model  frei0r.ColorModel
		format Format
	}{
		{frei0r.ColorModelBGRA8888, FormatBGRA8},
		{frei0r.ColorModelRGBA8888, FormatRGBA8},
		{frei0r.ColorModelPacked32, FormatPacked32},
	}
	for _, tt := range tests {
		t.Run(tt.model.String(), func(t *testing.T) {
			assert.Equal(t, tt.format, FormatFor(tt.model))
			assert.Equal(t, tt.model, tt.format.ColorModel())
		})
	}
	assert.Equal(t, frei0r.ColorModelRGBA8888, Format("yuv").ColorModel())
}

func TestFromPixels(t *testing.T) {
	model := frei0r.ColorModelBGRA8888
	px := []uint32{
		model.Pack(frei0r.RGBA{R: 1, G: 2, B: 3, A: 4}),
		model.Pack(frei0r.RGBA{R: 5, G: 6, B: 7, A: 8}),
	}
	at := time.Date(2030, 1, 1, 0, 0, 10, 0, time.UTC)
	f := FromPixels("out", at, 2, 1, model, px)

	require.NoError(t, f.Validate())
	assert.False(t, f.ID.IsZero())
	assert.True(t, at.Equal(f.Timestamp))
	assert.Equal(t, FormatBGRA8, f.Format)
	assert.Equal(t, []byte{3, 2, 1, 4, 7, 6, 5, 8}, f.Data)

	px[0] = 0
	assert.Equal(t, byte(3), f.Data[0], "frame owns a copy")
}

func TestFrame_Validate(t *testing.T) {
	assert.Error(t, Frame{Width: 0, Height: 1}.Validate())
	assert.Error(t, Frame{Width: 2, Height: 2, Data: make([]byte, 15)}.Validate())
	assert.NoError(t, Frame{Width: 2, Height: 2, Data: make([]byte, 16)}.Validate())
}

func TestScale_SameSizeConvertsByteOrder(t *testing.T) {
	src := FromPixels("in", time.Now(), 2, 2, frei0r.ColorModelBGRA8888, []uint32{
		frei0r.ColorModelBGRA8888.Pack(frei0r.RGBA{R: 10, A: 255}),
		frei0r.ColorModelBGRA8888.Pack(frei0r.RGBA{G: 20, A: 255}),
		frei0r.ColorModelBGRA8888.Pack(frei0r.RGBA{B: 30, A: 255}),
		frei0r.ColorModelBGRA8888.Pack(frei0r.RGBA{R: 40, G: 40, B: 40, A: 128}),
	})

	dst := make([]uint32, 4)
	Scale(src, dst, 2, 2, frei0r.ColorModelRGBA8888)

	model := frei0r.ColorModelRGBA8888
	assert.Equal(t, frei0r.RGBA{R: 10, A: 255}, model.Unpack(dst[0]))
	assert.Equal(t, frei0r.RGBA{G: 20, A: 255}, model.Unpack(dst[1]))
	assert.Equal(t, frei0r.RGBA{B: 30, A: 255}, model.Unpack(dst[2]))
	assert.Equal(t, frei0r.RGBA{R: 40, G: 40, B: 40, A: 128}, model.Unpack(dst[3]))
}

func TestScale_NearestNeighbour(t *testing.T) {
	model := frei0r.ColorModelRGBA8888
	a := model.Pack(frei0r.RGBA{R: 255, A: 255})
	b := model.Pack(frei0r.RGBA{B: 255, A: 255})
	src := FromPixels("in", time.Now(), 2, 1, model, []uint32{a, b})

	dst := make([]uint32, 4*2)
	Scale(src, dst, 4, 2, model)
	assert.Equal(t, []uint32{a, a, b, b, a, a, b, b}, dst)

	small := make([]uint32, 1)
	Scale(src, small, 1, 1, model)
	assert.Equal(t, []uint32{a}, small)
}

func TestScale_InvalidFrameIsBlack(t *testing.T) {
	dst := []uint32{1, 2, 3, 4}
	Scale(Frame{}, dst, 2, 2, frei0r.ColorModelRGBA8888)
	assert.Equal(t, []uint32{0, 0, 0, 0}, dst)
}
