package export

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/storefront/backend/internal/domain/shared"
)

// Default render options, mirrored by the raster engine defaults
const (
	DefaultScale          = 2.0
	DefaultPadding        = 12
	DefaultWhiteThreshold = 250
	DefaultSampleStep     = 2
	DefaultBackground     = "#ffffff"
)

// RenderOptions captures the knobs an export was produced with
type RenderOptions struct {
	Scale          float64
	Padding        int
	WhiteThreshold int
	SampleStep     int
	Background     string // #rrggbb or #rrggbbaa
}

// DefaultRenderOptions returns the options used when a caller supplies none
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		Scale:          DefaultScale,
		Padding:        DefaultPadding,
		WhiteThreshold: DefaultWhiteThreshold,
		SampleStep:     DefaultSampleStep,
		Background:     DefaultBackground,
	}
}

// Validate checks every option against its allowed range
func (o RenderOptions) Validate() error {
	if o.Scale <= 0 || math.IsNaN(o.Scale) || math.IsInf(o.Scale, 0) {
		return shared.NewDomainError("INVALID_SCALE", "Scale must be a positive number")
	}
	if o.Padding < 0 {
		return shared.NewDomainError("INVALID_PADDING", "Padding cannot be negative")
	}
	if o.WhiteThreshold < 0 || o.WhiteThreshold > 255 {
		return shared.NewDomainError("INVALID_WHITE_THRESHOLD", "White threshold must be between 0 and 255")
	}
	if o.SampleStep < 1 {
		return shared.NewDomainError("INVALID_SAMPLE_STEP", "Sample step must be at least 1")
	}
	if _, err := ParseHexColor(o.Background); err != nil {
		return shared.NewDomainError("INVALID_BACKGROUND", err.Error())
	}
	return nil
}

// BackgroundColor returns the parsed background, falling back to white
func (o RenderOptions) BackgroundColor() color.NRGBA {
	c, err := ParseHexColor(o.Background)
	if err != nil {
		return color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	}
	return c
}

// ParseHexColor parses #rgb, #rrggbb or #rrggbbaa. An empty string is white.
func ParseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, nil
	}
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return color.NRGBA{}, fmt.Errorf("color %q must start with #", s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("color %q must have 3, 6 or 8 hex digits", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("color %q is not valid hex", s)
	}
	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}

// Artifact describes a stored export result
type Artifact struct {
	Path      string
	URL       string
	Width     int
	Height    int
	SizeBytes int64
}
