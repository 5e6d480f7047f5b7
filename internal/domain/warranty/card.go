// Package warranty contains the warranty card value object printed for
// customers at checkout.
package warranty

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
)

const (
	MinWarrantyMonths = 1
	MaxWarrantyMonths = 120
)

// Card is an immutable warranty card for a sold product
type Card struct {
	StoreName      string
	CardNumber     string
	CustomerName   string
	CustomerPhone  string
	ProductName    string
	ProductSKU     string
	SerialNumber   string
	PurchaseDate   time.Time
	WarrantyMonths int
	PurchasePrice  decimal.Decimal
	Notes          string
}

// CardParams holds the input for NewCard
type CardParams struct {
	StoreName      string
	CardNumber     string
	CustomerName   string
	CustomerPhone  string
	ProductName    string
	ProductSKU     string
	SerialNumber   string
	PurchaseDate   time.Time
	WarrantyMonths int
	PurchasePrice  decimal.Decimal
	Notes          string
}

// NewCard validates params and creates a warranty card
func NewCard(p CardParams) (*Card, error) {
	card := &Card{
		StoreName:      strings.TrimSpace(p.StoreName),
		CardNumber:     strings.TrimSpace(p.CardNumber),
		CustomerName:   strings.TrimSpace(p.CustomerName),
		CustomerPhone:  strings.TrimSpace(p.CustomerPhone),
		ProductName:    strings.TrimSpace(p.ProductName),
		ProductSKU:     strings.TrimSpace(p.ProductSKU),
		SerialNumber:   strings.TrimSpace(p.SerialNumber),
		PurchaseDate:   p.PurchaseDate,
		WarrantyMonths: p.WarrantyMonths,
		PurchasePrice:  p.PurchasePrice,
		Notes:          strings.TrimSpace(p.Notes),
	}

	if card.StoreName == "" {
		return nil, shared.NewDomainError("INVALID_STORE_NAME", "Store name cannot be empty")
	}
	if card.CardNumber == "" {
		return nil, shared.NewDomainError("INVALID_CARD_NUMBER", "Card number cannot be empty")
	}
	if len(card.CardNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_CARD_NUMBER", "Card number cannot exceed 50 characters")
	}
	if card.CustomerName == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer name cannot be empty")
	}
	if card.ProductName == "" {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product name cannot be empty")
	}
	if card.PurchaseDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_PURCHASE_DATE", "Purchase date is required")
	}
	if card.WarrantyMonths < MinWarrantyMonths || card.WarrantyMonths > MaxWarrantyMonths {
		return nil, shared.NewDomainError("INVALID_WARRANTY_PERIOD", "Warranty period must be between 1 and 120 months")
	}
	if card.PurchasePrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Purchase price cannot be negative")
	}

	return card, nil
}

// ExpiresAt returns the end of the coverage period
func (c *Card) ExpiresAt() time.Time {
	return c.PurchaseDate.AddDate(0, c.WarrantyMonths, 0)
}

// IsExpired reports whether coverage has ended at now
func (c *Card) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt())
}

// RemainingDays returns the whole days of coverage left at now, or 0
func (c *Card) RemainingDays(now time.Time) int {
	if c.IsExpired(now) {
		return 0
	}
	return int(c.ExpiresAt().Sub(now).Hours() / 24)
}
