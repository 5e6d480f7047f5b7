package printing

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"maps"
	"time"

	"github.com/storefront/backend/internal/domain/warranty"
)

//go:embed templates/*.html
var templateFS embed.FS

// WarrantyCardSelector matches the root element of a rendered warranty card
const WarrantyCardSelector = ".warranty-card"

// TemplateEngine fills the embedded HTML templates with domain data
type TemplateEngine struct {
	currency string
	now      func() time.Time
	funcMap  template.FuncMap
	cards    *template.Template
}

// TemplateEngineOption configures a TemplateEngine
type TemplateEngineOption func(*TemplateEngine)

// WithCurrencySymbol sets the symbol formatMoney prefixes amounts with
func WithCurrencySymbol(symbol string) TemplateEngineOption {
	return func(e *TemplateEngine) { e.currency = symbol }
}

// WithClock sets the clock used for issue dates and expiry
func WithClock(now func() time.Time) TemplateEngineOption {
	return func(e *TemplateEngine) { e.now = now }
}

// NewTemplateEngine parses the embedded templates. It panics if they do not
// parse, which can only happen at build time.
func NewTemplateEngine(opts ...TemplateEngineOption) *TemplateEngine {
	e := &TemplateEngine{currency: "$", now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	e.funcMap = templateFuncs(e.currency)
	e.cards = template.Must(template.New("warranty_card.html").
		Funcs(e.funcMap).
		ParseFS(templateFS, "templates/warranty_card.html"))
	return e
}

// GetFuncMap returns a copy of the functions available to templates
func (e *TemplateEngine) GetFuncMap() template.FuncMap {
	return maps.Clone(e.funcMap)
}

func (e *TemplateEngine) formatMoney(v any) string {
	return e.funcMap["formatMoney"].(func(any) string)(v)
}

// RenderWarrantyCard renders card as a standalone fragment whose root
// matches WarrantyCardSelector
func (e *TemplateEngine) RenderWarrantyCard(_ context.Context, card *warranty.Card) (string, error) {
	if card == nil {
		return "", NewRenderError(ErrCodeInvalidHTML, "warranty card is nil", nil)
	}

	issued := e.now()
	var buf bytes.Buffer
	err := e.cards.Execute(&buf, struct {
		Card     *warranty.Card
		IssuedAt time.Time
		Expired  bool
	}{card, issued, card.IsExpired(issued)})
	if err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "failed to execute warranty card template", err)
	}
	return buf.String(), nil
}
