// Package generator builds realistic export requests with gofakeit.
package generator

import (
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/storefront/tools/loadgen/internal/config"
)

// RenderOptions mirrors the options accepted by the export API
type RenderOptions struct {
	Scale      float64 `json:"scale,omitempty"`
	Padding    *int    `json:"padding,omitempty"`
	Background string  `json:"background,omitempty"`
}

// WarrantyCardRequest is the body of POST /export/warranty-cards
type WarrantyCardRequest struct {
	StoreName      string         `json:"store_name"`
	CardNumber     string         `json:"card_number"`
	CustomerName   string         `json:"customer_name"`
	CustomerPhone  string         `json:"customer_phone,omitempty"`
	ProductName    string         `json:"product_name"`
	ProductSKU     string         `json:"product_sku,omitempty"`
	SerialNumber   string         `json:"serial_number,omitempty"`
	PurchaseDate   string         `json:"purchase_date"`
	WarrantyMonths int            `json:"warranty_months"`
	PurchasePrice  string         `json:"purchase_price"`
	Notes          string         `json:"notes,omitempty"`
	Options        *RenderOptions `json:"options,omitempty"`
}

// HTMLRequest is the body of POST /export/html and POST /export/preview
type HTMLRequest struct {
	Reference string         `json:"reference,omitempty"`
	HTML      string         `json:"html"`
	Selector  string         `json:"selector,omitempty"`
	Title     string         `json:"title,omitempty"`
	Options   *RenderOptions `json:"options,omitempty"`
}

// PayloadGenerator produces request bodies. Some requests replay an
// earlier body so that the server sees identical fingerprints.
//
// Thread Safety: Safe for concurrent use.
type PayloadGenerator struct {
	mu        sync.Mutex
	faker     *gofakeit.Faker
	options   *RenderOptions
	dupRatio  float64
	lastCard  *WarrantyCardRequest
	lastHTML  *HTMLRequest
	purchased time.Time
}

// NewPayloadGenerator creates a generator. A zero seed picks a random one.
func NewPayloadGenerator(cfg config.PayloadConfig, seed uint64) *PayloadGenerator {
	var opts *RenderOptions
	if cfg.Scale != 0 || cfg.Padding != nil || cfg.Background != "" {
		opts = &RenderOptions{Scale: cfg.Scale, Padding: cfg.Padding, Background: cfg.Background}
	}
	return &PayloadGenerator{
		faker:     gofakeit.New(seed),
		options:   opts,
		dupRatio:  cfg.DuplicateRatio,
		purchased: time.Now().UTC(),
	}
}

// WarrantyCard returns a warranty card request
func (g *PayloadGenerator) WarrantyCard() *WarrantyCardRequest {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lastCard != nil && g.replay() {
		return g.lastCard
	}

	f := g.faker
	purchase := g.purchased.AddDate(0, 0, -f.IntRange(0, 365))
	req := &WarrantyCardRequest{
		StoreName:      f.Company(),
		CardNumber:     f.Numerify("WC-######"),
		CustomerName:   f.Name(),
		CustomerPhone:  f.Phone(),
		ProductName:    truncate(f.ProductName(), 200),
		ProductSKU:     f.Numerify("SKU-####-##"),
		SerialNumber:   strings.ToUpper(f.LetterN(4)) + f.Numerify("########"),
		PurchaseDate:   purchase.Format("2006-01-02"),
		WarrantyMonths: f.RandomInt([]int{6, 12, 24, 36}),
		PurchasePrice:  fmt.Sprintf("%.2f", f.Price(5, 2500)),
		Options:        g.options,
	}
	if f.Bool() {
		req.Notes = truncate(f.Sentence(12), 500)
	}
	g.lastCard = req
	return req
}

// HTML returns a free-form markup request. Previews carry no reference.
func (g *PayloadGenerator) HTML(preview bool) *HTMLRequest {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lastHTML != nil && g.replay() {
		req := *g.lastHTML
		if preview {
			req.Reference = ""
		}
		return &req
	}

	f := g.faker
	var rows strings.Builder
	for i := 0; i < f.IntRange(1, 8); i++ {
		fmt.Fprintf(&rows, "<tr><td>%s</td><td>%d</td><td>%.2f</td></tr>",
			html.EscapeString(f.ProductName()), f.IntRange(1, 5), f.Price(1, 300))
	}
	markup := fmt.Sprintf(
		`<div class="receipt" style="width:%dpx;padding:16px;font-family:sans-serif">`+
			`<h2>%s</h2><p>%s</p><table>%s</table></div>`,
		f.IntRange(280, 640),
		html.EscapeString(f.Company()),
		html.EscapeString(f.Street()),
		rows.String(),
	)

	req := &HTMLRequest{
		Reference: f.Numerify("RCPT-########"),
		HTML:      markup,
		Selector:  ".receipt",
		Title:     "Receipt",
		Options:   g.options,
	}
	g.lastHTML = req

	out := *req
	if preview {
		out.Reference = ""
	}
	return &out
}

// replay must be called with the lock held
func (g *PayloadGenerator) replay() bool {
	return g.dupRatio > 0 && g.faker.Float64() < g.dupRatio
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
