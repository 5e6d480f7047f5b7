package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

const (
	defaultReadinessTimeout = 3 * time.Second
	// DefaultMaxPixels caps the target bitmap at 40 megapixels (160 MB of NRGBA)
	DefaultMaxPixels = 40_000_000
	// MaxDimension caps either side of the target bitmap
	MaxDimension = 1 << 15
	tracerName              = "github.com/storefront/backend/internal/infrastructure/raster"
)

// Surface is the visual element being exported. The engine only asks it for
// its size; drawing it is the Rasterizer's job.
type Surface interface {
	// Size returns the surface dimensions in layout units (CSS pixels)
	Size(ctx context.Context) (width, height float64, err error)
}

// Rasterizer renders a surface into a bitmap. The returned image should be
// about ceil(width*scale) x ceil(height*scale) pixels.
type Rasterizer interface {
	Rasterize(ctx context.Context, surface Surface, cfg RenderConfig) (image.Image, error)
}

// ReadinessSignal blocks until the surface's pending assets have loaded.
// Errors are tolerated by the engine.
type ReadinessSignal interface {
	Ready(ctx context.Context, surface Surface) error
}

// ReadinessFunc adapts a function to ReadinessSignal
type ReadinessFunc func(ctx context.Context, surface Surface) error

// Ready calls f(ctx, surface)
func (f ReadinessFunc) Ready(ctx context.Context, surface Surface) error {
	return f(ctx, surface)
}

// ExportedImage is the result of one export
type ExportedImage struct {
	// Data is the encoded PNG
	Data []byte
	// ContentType is always image/png
	ContentType string
	// Width and Height of the encoded image in pixels
	Width  int
	Height int
	// SourceWidth and SourceHeight of the rasterized bitmap before trimming
	SourceWidth  int
	SourceHeight int
	// Crop is the region of the source bitmap that was kept
	Crop image.Rectangle
	// Trimmed reports whether any margin was removed
	Trimmed bool
	// Image is the final pixel buffer that was encoded
	Image *image.NRGBA
	// Duration of the whole export
	Duration time.Duration
}

// EngineConfig contains configuration for the export engine
type EngineConfig struct {
	// ReadinessTimeout bounds the asset readiness wait (default: 3s)
	ReadinessTimeout time.Duration
	// MaxPixels bounds width*height of the target bitmap (default: DefaultMaxPixels)
	MaxPixels int
	// Logger for debug output
	Logger *zap.Logger
}

// Engine exports surfaces as trimmed PNG images. It holds no per-export
// state and is safe for concurrent use.
type Engine struct {
	rasterizer       Rasterizer
	readiness        ReadinessSignal
	readinessTimeout time.Duration
	maxPixels        int
	logger           *zap.Logger
	tracer           trace.Tracer
	encode           func(image.Image) ([]byte, error)
}

// NewEngine creates a new export engine. readiness may be nil, in which case
// no asset wait is performed.
func NewEngine(rasterizer Rasterizer, readiness ReadinessSignal, config *EngineConfig) (*Engine, error) {
	if rasterizer == nil {
		return nil, errors.New("rasterizer is required")
	}
	if config == nil {
		config = &EngineConfig{}
	}

	timeout := config.ReadinessTimeout
	if timeout <= 0 {
		timeout = defaultReadinessTimeout
	}

	maxPixels := config.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		rasterizer:       rasterizer,
		readiness:        readiness,
		readinessTimeout: timeout,
		maxPixels:        maxPixels,
		logger:           logger,
		tracer:           otel.Tracer(tracerName),
		encode:           EncodePNG,
	}, nil
}

// Export rasterizes surface, trims its background margin and encodes it as
// PNG. A nil cfg selects DefaultConfig; a non-nil cfg is validated as given.
func (e *Engine) Export(ctx context.Context, surface Surface, cfg *Config) (*ExportedImage, error) {
	startTime := time.Now()

	opts := DefaultConfig()
	if cfg != nil {
		opts = *cfg
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if surface == nil {
		return nil, NewRenderError(ErrCodeInvalidSurface, "surface is nil", nil)
	}

	ctx, span := e.tracer.Start(ctx, "raster.Export", trace.WithAttributes(
		attribute.Float64("raster.scale", opts.Render.Scale),
		attribute.Int("raster.padding", opts.Trim.Padding),
		attribute.Int("raster.sample_step", opts.Trim.SampleStep),
	))
	defer span.End()

	result, err := e.export(ctx, surface, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result.Duration = time.Since(startTime)
	span.SetAttributes(
		attribute.Int("raster.width", result.Width),
		attribute.Int("raster.height", result.Height),
		attribute.Int("raster.bytes", len(result.Data)),
	)

	e.logger.Debug("surface exported",
		zap.Int("sourceWidth", result.SourceWidth),
		zap.Int("sourceHeight", result.SourceHeight),
		zap.Int("width", result.Width),
		zap.Int("height", result.Height),
		zap.Bool("trimmed", result.Trimmed),
		zap.Int("bytes", len(result.Data)),
		zap.Duration("duration", result.Duration))

	return result, nil
}

func (e *Engine) export(ctx context.Context, surface Surface, opts Config) (*ExportedImage, error) {
	e.awaitAssets(ctx, surface)

	if err := ctx.Err(); err != nil {
		return nil, NewRenderError(ErrCodeCancelled, "export cancelled", err)
	}

	source, err := e.rasterize(ctx, surface, opts.Render)
	if err != nil {
		return nil, err
	}

	trimmed, crop, cropped := Trim(source, opts.Trim)

	data, err := e.encode(trimmed)
	if err != nil {
		var encErr *EncodeError
		if errors.As(err, &encErr) {
			return nil, err
		}
		return nil, NewEncodeError(ErrCodeEncodeFailed, "PNG encoding failed", err)
	}
	if data, err = checkPNG(data); err != nil {
		return nil, err
	}

	return &ExportedImage{
		Data:         data,
		ContentType:  ContentTypePNG,
		Width:        trimmed.Bounds().Dx(),
		Height:       trimmed.Bounds().Dy(),
		SourceWidth:  source.Bounds().Dx(),
		SourceHeight: source.Bounds().Dy(),
		Crop:         crop,
		Trimmed:      cropped,
		Image:        trimmed,
	}, nil
}

// awaitAssets gives the surface up to readinessTimeout to finish loading its
// assets. Failures only cost visual fidelity, so they are logged and dropped.
func (e *Engine) awaitAssets(ctx context.Context, surface Surface) {
	if e.readiness == nil {
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, e.readinessTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- e.readiness.Ready(waitCtx, surface)
	}()

	select {
	case err := <-done:
		if err != nil {
			e.logger.Debug("asset readiness wait failed, rasterizing anyway", zap.Error(err))
		}
	case <-waitCtx.Done():
		e.logger.Debug("asset readiness wait timed out, rasterizing anyway",
			zap.Duration("timeout", e.readinessTimeout))
	}
}

// rasterize renders the surface and composites it onto the background at the
// exact target size.
func (e *Engine) rasterize(ctx context.Context, surface Surface, cfg RenderConfig) (*image.NRGBA, error) {
	width, height, err := surface.Size(ctx)
	if err != nil {
		return nil, NewRenderError(ErrCodeInvalidSurface, "failed to measure surface", err)
	}
	if !validDimension(width) || !validDimension(height) {
		return nil, NewRenderError(ErrCodeInvalidSurface,
			fmt.Sprintf("surface has invalid dimensions %vx%v", width, height), nil)
	}

	targetW, targetH, err := e.targetSize(width, height, cfg.Scale)
	if err != nil {
		return nil, err
	}

	img, err := e.rasterizer.Rasterize(ctx, surface, cfg)
	if err != nil {
		var renderErr *RenderError
		if errors.As(err, &renderErr) {
			return nil, err
		}
		return nil, NewRenderError(ErrCodeRasterizeFailed, "rasterizer failed", err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, NewRenderError(ErrCodeEmptyRaster, "rasterizer returned an empty image", nil)
	}

	return composite(img, targetW, targetH, cfg.background()), nil
}

// composite paints bg over a targetW x targetH buffer and draws src over it.
// A source that is off by more than a pixel in either direction is rescaled.
func composite(src image.Image, targetW, targetH int, bg color.Color) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, targetW, targetH))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	sb := src.Bounds()
	if abs(sb.Dx()-targetW) > 1 || abs(sb.Dy()-targetH) > 1 {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
		return dst
	}
	draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Over)
	return dst
}

// targetSize is ceil(width*scale) x ceil(height*scale), rejected when it
// exceeds MaxDimension per side or the engine's pixel budget
func (e *Engine) targetSize(width, height, scale float64) (int, int, error) {
	w := math.Ceil(width * scale)
	h := math.Ceil(height * scale)
	if w > MaxDimension || h > MaxDimension || w*h > float64(e.maxPixels) {
		return 0, 0, NewRenderError(ErrCodeInvalidSurface,
			fmt.Sprintf("target bitmap %.0fx%.0f exceeds the limit of %d pixels (%d per side)",
				w, h, e.maxPixels, MaxDimension), nil)
	}
	return int(w), int(h), nil
}

func validDimension(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// RasterizerFunc adapts a function to Rasterizer
type RasterizerFunc func(ctx context.Context, surface Surface, cfg RenderConfig) (image.Image, error)

// Rasterize calls f(ctx, surface, cfg)
func (f RasterizerFunc) Rasterize(ctx context.Context, surface Surface, cfg RenderConfig) (image.Image, error) {
	return f(ctx, surface, cfg)
}
