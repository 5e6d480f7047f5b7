package raster

import (
	"image"
)

// isBackground reports whether the pixel whose RGBA bytes start at pix[0]
// belongs to the backdrop: nearly transparent, or near-white in every
// color channel.
func isBackground(pix []uint8, whiteThreshold int) bool {
	if pix[3] < alphaThreshold {
		return true
	}
	t := uint8(whiteThreshold)
	return pix[0] >= t && pix[1] >= t && pix[2] >= t
}

// ContentBounds scans the sampled grid of img and returns the smallest
// rectangle holding every non-background sample. The second result is false
// when no foreground pixel was sampled.
func ContentBounds(img *image.NRGBA, cfg TrimConfig) (image.Rectangle, bool) {
	step := cfg.SampleStep
	if step < 1 {
		step = 1
	}
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1

	for y := b.Min.Y; y < b.Max.Y; y += step {
		row := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x += step {
			i := row + (x-b.Min.X)*4
			if isBackground(img.Pix[i:i+4], cfg.WhiteThreshold) {
				continue
			}
			minX = min(minX, x)
			maxX = max(maxX, x)
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}

	if maxX < minX || maxY < minY {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// CropRect expands content by padding on every side and clamps the result
// to bounds.
func CropRect(content, bounds image.Rectangle, padding int) image.Rectangle {
	if padding < 0 {
		padding = 0
	}
	r := image.Rect(
		content.Min.X-padding,
		content.Min.Y-padding,
		content.Max.X+padding,
		content.Max.Y+padding,
	)
	return r.Intersect(bounds)
}

// Trim removes the uniform background margin from img. It returns the
// trimmed buffer, the region of img it covers and whether a crop happened.
// A fully blank buffer, or one whose padded content already spans the whole
// buffer, is returned as is.
func Trim(img *image.NRGBA, cfg TrimConfig) (*image.NRGBA, image.Rectangle, bool) {
	bounds := img.Bounds()
	content, ok := ContentBounds(img, cfg)
	if !ok {
		return img, bounds, false
	}

	crop := CropRect(content, bounds, cfg.Padding)
	if crop.Eq(bounds) || crop.Empty() {
		return img, bounds, false
	}
	return copyRegion(img, crop), crop, true
}

// copyRegion copies r out of src into a new buffer anchored at the origin.
func copyRegion(src *image.NRGBA, r image.Rectangle) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	rowLen := r.Dx() * 4
	for y := 0; y < r.Dy(); y++ {
		si := src.PixOffset(r.Min.X, r.Min.Y+y)
		di := dst.PixOffset(0, y)
		copy(dst.Pix[di:di+rowLen], src.Pix[si:si+rowLen])
	}
	return dst
}
