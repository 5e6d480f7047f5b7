// Package raster turns a rendered surface into a tightly cropped PNG.
//
// The Engine waits for the surface's assets (web fonts) to settle, asks a
// Rasterizer for a bitmap at the configured scale, composites it onto a solid
// background, removes the uniform background margin and encodes the result
// as a lossless PNG.
//
// Example usage:
//
//	engine, err := raster.NewEngine(rasterizer, readiness, &raster.EngineConfig{
//	    ReadinessTimeout: 3 * time.Second,
//	    Logger:           log,
//	})
//	if err != nil {
//	    log.Fatal("engine", zap.Error(err))
//	}
//
//	img, err := engine.Export(ctx, surface, nil) // nil selects the defaults
//	if err != nil {
//	    var cfgErr *raster.ConfigError
//	    if errors.As(err, &cfgErr) {
//	        // caller supplied bad options
//	    }
//	}
//
//	fmt.Printf("exported %dx%d PNG, %d bytes\n", img.Width, img.Height, len(img.Data))
package raster
