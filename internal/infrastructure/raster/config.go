package raster

import (
	"fmt"
	"image/color"
	"math"
)

const (
	DefaultScale          = 2.0
	DefaultPadding        = 12
	DefaultWhiteThreshold = 250
	DefaultSampleStep     = 2

	// alphaThreshold is the alpha below which a pixel counts as background
	// regardless of its color.
	alphaThreshold = 10
)

// RenderConfig controls rasterization of the surface.
type RenderConfig struct {
	// Scale multiplies surface dimensions into bitmap dimensions (default: 2)
	Scale float64
	// Background is composited under every non-opaque surface pixel
	// (default: opaque white)
	Background color.Color
}

// TrimConfig controls background margin removal.
type TrimConfig struct {
	// Padding in pixels kept around the detected content (default: 12)
	Padding int
	// WhiteThreshold is the channel value at or above which R, G and B are
	// all considered white (default: 250)
	WhiteThreshold int
	// SampleStep scans only every n-th row and column (default: 2). Features
	// thinner than the step that fall between sample points are not detected.
	SampleStep int
}

// Config is the full set of options for one export.
type Config struct {
	Render RenderConfig
	Trim   TrimConfig
}

// DefaultRenderConfig returns the default render options
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Scale:      DefaultScale,
		Background: color.White,
	}
}

// DefaultTrimConfig returns the default trim options
func DefaultTrimConfig() TrimConfig {
	return TrimConfig{
		Padding:        DefaultPadding,
		WhiteThreshold: DefaultWhiteThreshold,
		SampleStep:     DefaultSampleStep,
	}
}

// DefaultConfig returns the default export options
func DefaultConfig() Config {
	return Config{
		Render: DefaultRenderConfig(),
		Trim:   DefaultTrimConfig(),
	}
}

// Validate checks the render options
func (c RenderConfig) Validate() error {
	if math.IsNaN(c.Scale) || math.IsInf(c.Scale, 0) || c.Scale <= 0 {
		return NewConfigError(ErrCodeInvalidScale, fmt.Sprintf("scale must be a positive number, got %v", c.Scale))
	}
	return nil
}

// Validate checks the trim options
func (c TrimConfig) Validate() error {
	if c.Padding < 0 {
		return NewConfigError(ErrCodeInvalidPadding, fmt.Sprintf("padding cannot be negative, got %d", c.Padding))
	}
	if c.WhiteThreshold < 0 || c.WhiteThreshold > 255 {
		return NewConfigError(ErrCodeInvalidThreshold,
			fmt.Sprintf("white threshold must be between 0 and 255, got %d", c.WhiteThreshold))
	}
	if c.SampleStep < 1 {
		return NewConfigError(ErrCodeInvalidStep, fmt.Sprintf("sample step must be at least 1, got %d", c.SampleStep))
	}
	return nil
}

// Validate checks all options
func (c Config) Validate() error {
	if err := c.Render.Validate(); err != nil {
		return err
	}
	return c.Trim.Validate()
}

// background returns the configured background, falling back to white
func (c RenderConfig) background() color.Color {
	if c.Background == nil {
		return color.White
	}
	return c.Background
}
