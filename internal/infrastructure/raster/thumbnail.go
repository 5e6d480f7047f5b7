package raster

import (
	"image"

	"github.com/anthonynsimon/bild/transform"
)

// Thumbnail scales img down to at most maxWidth pixels wide, keeping the
// aspect ratio. Images that already fit are returned unchanged.
func Thumbnail(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	height := b.Dy() * maxWidth / b.Dx()
	if height < 1 {
		height = 1
	}
	return transform.Resize(img, maxWidth, height, transform.Linear)
}
