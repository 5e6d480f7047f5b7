// Package printing provides the browser side of image exports: loading
// store documents into headless Chrome, capturing them as bitmaps for the
// raster engine, rendering warranty card markup and storing the resulting
// PNG artifacts.
//
// This package contains:
// - ChromedpRasterizer, a raster.Rasterizer and raster.ReadinessSignal
// backed by the Chrome DevTools Protocol
// - TemplateEngine for the built-in warranty card template
// - ArtifactStorage interface and a FileSystemStorage implementation
//
// Example usage:
//
//	browser, err := NewChromedpRasterizer(&ChromedpConfig{NoSandbox: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer browser.Close()
//
//	surface, err := browser.Load(ctx, &LoadRequest{
//	    HTML:     html,
//	    Selector: WarrantyCardSelector,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer surface.Close()
//
//	engine, _ := raster.NewEngine(browser, browser, nil)
//	img, err := engine.Export(ctx, surface, nil)
package printing
