package printing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"image"
	"image/color"
	"image/png"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/storefront/backend/internal/infrastructure/raster"
	"go.uber.org/zap"
)

const (
	defaultChromeTimeout  = 30 * time.Second
	defaultViewportWidth  = 1280
	defaultViewportHeight = 800
	defaultSelector       = "body"
)

// ChromedpConfig contains configuration for the chromedp rasterizer
type ChromedpConfig struct {
	// DefaultTimeout bounds every browser operation on a page
	DefaultTimeout time.Duration
	// RemoteURL is the URL of a remote Chrome/Chromium instance (optional)
	// If empty, chromedp will launch a new browser instance
	RemoteURL string
	// Headless mode (default: true)
	Headless bool
	// DisableGPU disables GPU hardware acceleration (default: true for server environments)
	DisableGPU bool
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// ViewportWidth and ViewportHeight set the layout viewport in CSS pixels
	ViewportWidth  int
	ViewportHeight int
	// Logger for debug output
	Logger *zap.Logger
}

// ChromedpRasterizer loads HTML into headless Chrome tabs and captures
// elements as bitmaps using the Chrome DevTools Protocol
type ChromedpRasterizer struct {
	config      *ChromedpConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu            sync.Mutex
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromedpRasterizer creates a new chromedp-based rasterizer. The browser
// itself is started on the first Load.
func NewChromedpRasterizer(config *ChromedpConfig) (*ChromedpRasterizer, error) {
	if config == nil {
		config = &ChromedpConfig{}
	}

	// Set defaults
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = defaultChromeTimeout
	}
	if config.ViewportWidth <= 0 {
		config.ViewportWidth = defaultViewportWidth
	}
	if config.ViewportHeight <= 0 {
		config.ViewportHeight = defaultViewportHeight
	}
	// Default to headless and disable GPU for server environments
	if !config.Headless {
		config.Headless = true
	}
	if !config.DisableGPU {
		config.DisableGPU = true
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &ChromedpRasterizer{
		config: config,
		logger: logger,
	}
	r.initAllocator()

	return r, nil
}

// initAllocator initializes the Chrome allocator
func (r *ChromedpRasterizer) initAllocator() {
	if r.config.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), r.config.RemoteURL)
		return
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), r.allocatorOptions()...)
}

func (r *ChromedpRasterizer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.config.Headless),
		chromedp.Flag("disable-gpu", r.config.DisableGPU),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Important for Docker
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("font-render-hinting", "none"),
		chromedp.WindowSize(r.config.ViewportWidth, r.config.ViewportHeight),
	)
	if r.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return opts
}

// browser returns the shared browser context, starting Chrome if needed.
// Tabs created from it share one browser process.
func (r *ChromedpRasterizer) browser() (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browserCtx != nil && r.browserCtx.Err() == nil {
		return r.browserCtx, nil
	}
	if r.allocCtx == nil || r.allocCtx.Err() != nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "rasterizer is closed", nil)
	}

	ctx, cancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	// The first Run starts the browser and must not use a short-lived context
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, NewRenderError(ErrCodeRenderFailed, "failed to start browser", err)
	}

	r.browserCtx, r.browserCancel = ctx, cancel
	r.logger.Info("chrome browser started", zap.Bool("remote", r.config.RemoteURL != ""))
	return ctx, nil
}

// Load opens a new tab, sets its document to req.HTML and waits until the
// selected element is present
func (r *ChromedpRasterizer) Load(ctx context.Context, req *LoadRequest) (LoadedSurface, error) {
	if req == nil {
		return nil, NewRenderError(ErrCodeInvalidHTML, "load request is nil", nil)
	}
	if strings.TrimSpace(req.HTML) == "" {
		return nil, NewRenderError(ErrCodeInvalidHTML, "HTML content is empty", nil)
	}
	selector := strings.TrimSpace(req.Selector)
	if selector == "" {
		selector = defaultSelector
	}

	browserCtx, err := r.browser()
	if err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, NewRenderError(ErrCodeRenderFailed, "failed to open tab", err)
	}

	p := &Page{
		ctx:      tabCtx,
		cancel:   tabCancel,
		selector: selector,
		timeout:  r.config.DefaultTimeout,
	}

	document := buildCompleteHTML(req.HTML, req.Title)
	err = p.run(ctx,
		chromedp.EmulateViewport(int64(r.config.ViewportWidth), int64(r.config.ViewportHeight)),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, document).Do(ctx)
		}),
		chromedp.WaitReady(selector, chromedp.ByQuery),
	)
	if err != nil {
		_ = p.Close()
		return nil, p.wrapError("failed to load document", err)
	}

	r.logger.Debug("document loaded",
		zap.String("selector", selector),
		zap.Int("htmlBytes", len(document)))

	return p, nil
}

// Rasterize captures the page element at cfg.Scale device pixels per CSS
// pixel over cfg.Background
func (r *ChromedpRasterizer) Rasterize(ctx context.Context, surface raster.Surface, cfg raster.RenderConfig) (image.Image, error) {
	p, ok := surface.(*Page)
	if !ok {
		return nil, NewRenderError(ErrCodeUnsupportedSurface,
			fmt.Sprintf("surface %T was not loaded by this rasterizer", surface), nil)
	}

	box, err := p.box(ctx)
	if err != nil {
		return nil, err
	}

	bg := cdpColor(cfg.Background)
	var data []byte
	err = p.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetDefaultBackgroundColorOverride().WithColor(bg).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, err := page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithCaptureBeyondViewport(true).
				WithFromSurface(true).
				WithClip(&page.Viewport{
					X:      box.X,
					Y:      box.Y,
					Width:  box.Width,
					Height: box.Height,
					Scale:  cfg.Scale,
				}).
				Do(ctx)
			if err != nil {
				return err
			}
			data = buf
			return nil
		}),
	)
	if err != nil {
		return nil, p.wrapError("screenshot failed", err)
	}
	if len(data) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "screenshot is empty", nil)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "failed to decode screenshot", err)
	}

	r.logger.Debug("element captured",
		zap.String("selector", p.selector),
		zap.Float64("scale", cfg.Scale),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()))

	return img, nil
}

// Ready waits for web fonts and images of the page to finish loading
func (r *ChromedpRasterizer) Ready(ctx context.Context, surface raster.Surface) error {
	p, ok := surface.(*Page)
	if !ok {
		return NewRenderError(ErrCodeUnsupportedSurface,
			fmt.Sprintf("surface %T was not loaded by this rasterizer", surface), nil)
	}

	var settled bool
	err := p.run(ctx, chromedp.Evaluate(assetsReadyJS, &settled, awaitPromise))
	if err != nil {
		return p.wrapError("asset readiness check failed", err)
	}
	return nil
}

// Close releases resources held by the rasterizer
func (r *ChromedpRasterizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browserCancel != nil {
		r.browserCancel()
		r.browserCancel = nil
		r.browserCtx = nil
	}
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

// Page is a loaded browser tab bound to one element. It implements
// raster.Surface.
type Page struct {
	ctx      context.Context
	cancel   context.CancelFunc
	selector string
	timeout  time.Duration
	once     sync.Once
}

// elementBox is the document-relative border box of the selected element
type elementBox struct {
	Found  bool    `json:"found"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Selector returns the CSS selector of the exported element
func (p *Page) Selector() string {
	return p.selector
}

// Size returns the element's width and height in CSS pixels
func (p *Page) Size(ctx context.Context) (float64, float64, error) {
	box, err := p.box(ctx)
	if err != nil {
		return 0, 0, err
	}
	return box.Width, box.Height, nil
}

// Close closes the tab. It is safe to call more than once.
func (p *Page) Close() error {
	p.once.Do(p.cancel)
	return nil
}

func (p *Page) box(ctx context.Context) (*elementBox, error) {
	var box elementBox
	if err := p.run(ctx, chromedp.Evaluate(boundingBoxJS(p.selector), &box)); err != nil {
		return nil, p.wrapError("failed to measure element", err)
	}
	if !box.Found {
		return nil, NewRenderError(ErrCodeElementNotFound, "no element matches "+p.selector, nil)
	}
	return &box, nil
}

// run executes actions in the tab, bounded by the page timeout and by ctx
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *Page) wrapError(message string, err error) error {
	var renderErr *RenderError
	if errors.As(err, &renderErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewRenderError(ErrCodeRenderTimeout,
			fmt.Sprintf("%s: timed out after %v", message, p.timeout), err)
	}
	if errors.Is(err, context.Canceled) {
		return NewRenderError(ErrCodeRenderTimeout, message+": cancelled", err)
	}
	return NewRenderError(ErrCodeRenderFailed, message, err)
}

// awaitPromise makes Evaluate wait for the returned promise to settle
func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// assetsReadyJS resolves once web fonts and every pending <img> settle
const assetsReadyJS = `(() => {
	const fonts = document.fonts ? document.fonts.ready : Promise.resolve();
	const images = Array.from(document.images)
		.filter((img) => !img.complete)
		.map((img) => new Promise((resolve) => { img.onload = img.onerror = resolve; }));
	return Promise.all([fonts, ...images]).then(() => true);
})()`

// boundingBoxJS returns a script that measures the first element matching
// selector in document coordinates
func boundingBoxJS(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return {found: false};
	const r = el.getBoundingClientRect();
	return {found: true, x: r.left + window.scrollX, y: r.top + window.scrollY, width: r.width, height: r.height};
})()`, strconv.Quote(selector))
}

// cdpColor converts a color to the DevTools RGBA representation
func cdpColor(c color.Color) *cdp.RGBA {
	if c == nil {
		c = color.White
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return &cdp.RGBA{
		R: int64(n.R),
		G: int64(n.G),
		B: int64(n.B),
		A: math.Round(float64(n.A)/255*1000) / 1000,
	}
}

// buildCompleteHTML wraps an HTML fragment in a complete document
func buildCompleteHTML(markup, title string) string {
	// If the HTML already has DOCTYPE and html tags, return as-is
	lower := strings.ToLower(markup)
	if strings.Contains(lower, "<!doctype") || strings.Contains(lower, "<html") {
		return markup
	}

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html><html><head>")
	buf.WriteString("<meta charset=\"UTF-8\">")
	buf.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">")
	if title != "" {
		buf.WriteString("<title>")
		buf.WriteString(html.EscapeString(title))
		buf.WriteString("</title>")
	}
	buf.WriteString("<style>html,body{margin:0;padding:0;}</style>")
	buf.WriteString("</head><body>")
	buf.WriteString(markup)
	buf.WriteString("</body></html>")

	return buf.String()
}

// Ensure ChromedpRasterizer implements Browser
var _ Browser = (*ChromedpRasterizer)(nil)

// Ensure Page implements LoadedSurface
var _ LoadedSurface = (*Page)(nil)
