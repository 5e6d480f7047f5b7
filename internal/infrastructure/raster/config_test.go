package raster

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 2.0, cfg.Render.Scale)
	assert.Equal(t, color.White, cfg.Render.Background)
	assert.Equal(t, 12, cfg.Trim.Padding)
	assert.Equal(t, 250, cfg.Trim.WhiteThreshold)
	assert.Equal(t, 2, cfg.Trim.SampleStep)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantCode string
	}{
		{"zero scale", func(c *Config) { c.Render.Scale = 0 }, ErrCodeInvalidScale},
		{"negative scale", func(c *Config) { c.Render.Scale = -1 }, ErrCodeInvalidScale},
		{"NaN scale", func(c *Config) { c.Render.Scale = math.NaN() }, ErrCodeInvalidScale},
		{"infinite scale", func(c *Config) { c.Render.Scale = math.Inf(1) }, ErrCodeInvalidScale},
		{"zero sample step", func(c *Config) { c.Trim.SampleStep = 0 }, ErrCodeInvalidStep},
		{"threshold above range", func(c *Config) { c.Trim.WhiteThreshold = 300 }, ErrCodeInvalidThreshold},
		{"threshold below range", func(c *Config) { c.Trim.WhiteThreshold = -1 }, ErrCodeInvalidThreshold},
		{"negative padding", func(c *Config) { c.Trim.Padding = -5 }, ErrCodeInvalidPadding},
		{"fractional scale is fine", func(c *Config) { c.Render.Scale = 0.5 }, ""},
		{"zero padding is fine", func(c *Config) { c.Trim.Padding = 0 }, ""},
		{"threshold bounds are fine", func(c *Config) { c.Trim.WhiteThreshold = 255 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}

			var cfgErr *ConfigError
			if assert.True(t, errors.As(err, &cfgErr)) {
				assert.Equal(t, tt.wantCode, cfgErr.Code)
			}
		})
	}
}

func TestRenderConfig_BackgroundFallback(t *testing.T) {
	assert.Equal(t, color.White, RenderConfig{Scale: 1}.background())
	assert.Equal(t, color.Black, RenderConfig{Scale: 1, Background: color.Black}.background())
}
