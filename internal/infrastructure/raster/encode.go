package raster

import (
	"bytes"
	"image"
	"image/png"

	"github.com/h2non/filetype"
)

// ContentTypePNG is the MIME type of every exported image
const ContentTypePNG = "image/png"

// EncodePNG serializes img as a PNG at the best compression level.
// The output is verified to be a PNG before it is returned.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, NewEncodeError(ErrCodeEncodeFailed, "nothing to encode", nil)
	}

	var buf bytes.Buffer
	enc := &png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, NewEncodeError(ErrCodeEncodeFailed, "PNG encoding failed", err)
	}

	return checkPNG(buf.Bytes())
}

// checkPNG rejects empty or non-PNG encoder output
func checkPNG(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, NewEncodeError(ErrCodeEmptyOutput, "encoder produced no data", nil)
	}
	if !filetype.Is(data, "png") {
		return nil, NewEncodeError(ErrCodeBadOutputFormat, "encoder output is not a PNG image", nil)
	}
	return data, nil
}
