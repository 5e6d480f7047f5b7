package raster

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
)

// fakeSurface has a fixed size
type fakeSurface struct {
	width, height float64
	err           error
}

func (s *fakeSurface) Size(ctx context.Context) (float64, float64, error) {
	return s.width, s.height, s.err
}

// paintRasterizer returns a copy of a prepared bitmap and counts calls
type paintRasterizer struct {
	img   image.Image
	err   error
	calls atomic.Int32
}

func (r *paintRasterizer) Rasterize(ctx context.Context, s Surface, cfg RenderConfig) (image.Image, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return r.img, nil
}

var errFake = errors.New("boom")

// whiteBuffer returns an opaque white w x h buffer
func whiteBuffer(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i++ {
		img.Pix[i] = 0xff
	}
	return img
}

// fillRect paints [x0,x1) x [y0,y1) with c
func fillRect(img *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

var red = color.NRGBA{R: 200, G: 10, B: 10, A: 255}
