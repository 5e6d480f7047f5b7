package printing

import (
	"context"
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/storefront/backend/internal/infrastructure/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type foreignSurface struct{}

func (foreignSurface) Size(ctx context.Context) (float64, float64, error) {
	return 10, 10, nil
}

func newTestRasterizer(t *testing.T) *ChromedpRasterizer {
	t.Helper()
	r, err := NewChromedpRasterizer(&ChromedpConfig{NoSandbox: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestNewChromedpRasterizer_Defaults(t *testing.T) {
	r := newTestRasterizer(t)

	assert.Equal(t, defaultChromeTimeout, r.config.DefaultTimeout)
	assert.Equal(t, defaultViewportWidth, r.config.ViewportWidth)
	assert.Equal(t, defaultViewportHeight, r.config.ViewportHeight)
	assert.True(t, r.config.Headless)
	assert.True(t, r.config.DisableGPU)
	assert.NotNil(t, r.logger)
	assert.NotNil(t, r.allocCtx)
}

func TestChromedpRasterizer_AllocatorOptions(t *testing.T) {
	withSandbox := &ChromedpRasterizer{config: &ChromedpConfig{ViewportWidth: 800, ViewportHeight: 600}}
	noSandbox := &ChromedpRasterizer{config: &ChromedpConfig{ViewportWidth: 800, ViewportHeight: 600, NoSandbox: true}}

	assert.Len(t, noSandbox.allocatorOptions(), len(withSandbox.allocatorOptions())+1)
}

func TestChromedpRasterizer_Load_Validation(t *testing.T) {
	r := newTestRasterizer(t)

	tests := []struct {
		name string
		req  *LoadRequest
	}{
		{"nil request", nil},
		{"empty HTML", &LoadRequest{HTML: ""}},
		{"whitespace HTML", &LoadRequest{HTML: "  \n\t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surface, err := r.Load(context.Background(), tt.req)

			assert.Nil(t, surface)
			var renderErr *RenderError
			require.ErrorAs(t, err, &renderErr)
			assert.Equal(t, ErrCodeInvalidHTML, renderErr.Code)
		})
	}
}

func TestChromedpRasterizer_Load_AfterClose(t *testing.T) {
	r := newTestRasterizer(t)
	require.NoError(t, r.Close())

	_, err := r.Load(context.Background(), &LoadRequest{HTML: "<div>x</div>"})

	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, ErrCodeRenderFailed, renderErr.Code)
}

func TestChromedpRasterizer_RejectsForeignSurfaces(t *testing.T) {
	r := newTestRasterizer(t)

	_, err := r.Rasterize(context.Background(), foreignSurface{}, raster.DefaultRenderConfig())
	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, ErrCodeUnsupportedSurface, renderErr.Code)

	err = r.Ready(context.Background(), foreignSurface{})
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, ErrCodeUnsupportedSurface, renderErr.Code)
}

func TestChromedpRasterizer_Close(t *testing.T) {
	// Close doesn't panic with nil cancel funcs
	r := &ChromedpRasterizer{config: &ChromedpConfig{}}

	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}

func TestPage_CloseIsIdempotent(t *testing.T) {
	calls := 0
	p := &Page{cancel: func() { calls++ }, selector: "body"}

	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
	assert.Equal(t, 1, calls)
	assert.Equal(t, "body", p.Selector())
}

func TestPage_WrapError(t *testing.T) {
	p := &Page{timeout: 5 * time.Second}

	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"deadline", context.DeadlineExceeded, ErrCodeRenderTimeout},
		{"cancelled", context.Canceled, ErrCodeRenderTimeout},
		{"other", errors.New("target closed"), ErrCodeRenderFailed},
		{"already wrapped", NewRenderError(ErrCodeElementNotFound, "missing", nil), ErrCodeElementNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.wrapError("capture", tt.err)

			var renderErr *RenderError
			require.ErrorAs(t, err, &renderErr)
			assert.Equal(t, tt.wantCode, renderErr.Code)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestBoundingBoxJS_QuotesSelector(t *testing.T) {
	js := boundingBoxJS(`div[data-id="card"]`)

	assert.Contains(t, js, `document.querySelector("div[data-id=\"card\"]")`)
	assert.Contains(t, js, "getBoundingClientRect")
	assert.Contains(t, js, "window.scrollX")
}

func TestCdpColor(t *testing.T) {
	tests := []struct {
		name string
		in   color.Color
		r, g int64
		b    int64
		a    float64
	}{
		{"nil is white", nil, 255, 255, 255, 1},
		{"opaque", color.NRGBA{R: 10, G: 20, B: 30, A: 255}, 10, 20, 30, 1},
		{"half transparent", color.NRGBA{R: 255, A: 128}, 255, 0, 0, 0.502},
		{"premultiplied input", color.RGBA{R: 100, A: 200}, 127, 0, 0, 0.784},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cdpColor(tt.in)
			assert.Equal(t, tt.r, got.R)
			assert.Equal(t, tt.g, got.G)
			assert.Equal(t, tt.b, got.B)
			assert.InDelta(t, tt.a, got.A, 0.001)
		})
	}
}

func TestBuildCompleteHTML_WithDoctype(t *testing.T) {
	html := "<!DOCTYPE html><html><head></head><body>test</body></html>"

	// Should return as-is since it has DOCTYPE
	assert.Equal(t, html, buildCompleteHTML(html, "ignored"))
}

func TestBuildCompleteHTML_WithHtmlTag(t *testing.T) {
	html := "<HTML><head></head><body>test</body></HTML>"

	assert.Equal(t, html, buildCompleteHTML(html, ""))
}

func TestBuildCompleteHTML_FragmentOnly(t *testing.T) {
	result := buildCompleteHTML("<div>Hello World</div>", "Warranty")

	assert.Contains(t, result, "<!DOCTYPE html>")
	assert.Contains(t, result, "<meta charset=\"UTF-8\">")
	assert.Contains(t, result, "<title>Warranty</title>")
	assert.Contains(t, result, "margin:0")
	assert.Contains(t, result, "<body><div>Hello World</div></body></html>")
}

func TestBuildCompleteHTML_EscapesTitle(t *testing.T) {
	result := buildCompleteHTML("<p>x</p>", `WC-1</title><script>alert(1)</script>`)

	assert.Contains(t, result, "<title>WC-1&lt;/title&gt;&lt;script&gt;alert(1)&lt;/script&gt;</title>")
	assert.NotContains(t, result, "<script>")
}

func TestBuildCompleteHTML_NoTitle(t *testing.T) {
	result := buildCompleteHTML("<p>x</p>", "")

	assert.NotContains(t, result, "<title>")
}
