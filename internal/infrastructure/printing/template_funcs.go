package printing

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// templateFuncs builds the template function map; currency prefixes
// formatMoney output
func templateFuncs(currency string) template.FuncMap {
	return template.FuncMap{
		"formatMoney": func(v any) string {
			amount := formatMoneyRaw(v)
			if abs, neg := strings.CutPrefix(amount, "-"); neg {
				return "-" + currency + abs
			}
			return currency + amount
		},
		"formatMoneyRaw": formatMoneyRaw,
		"formatDate":     formatDate,
		"formatDateTime": formatDateTime,
		"formatDecimal":  formatDecimal,
		"formatPercent":  formatPercent,
		"truncate":       truncate,
		"upper":          strings.ToUpper,
		"lower":          strings.ToLower,
		"title":          titleCase,
		"default":        defaultFunc,
		"plural":         plural,
	}
}

// formatMoneyRaw renders v with two decimals and comma thousands
// separators: 1234.5 becomes "1,234.50"
func formatMoneyRaw(v any) string {
	d := toDecimal(v)
	sign := ""
	if d.IsNegative() {
		sign, d = "-", d.Abs()
	}
	whole, frac, _ := strings.Cut(d.StringFixed(2), ".")

	var b strings.Builder
	b.WriteString(sign)
	lead := len(whole) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(whole[:lead])
	for i := lead; i < len(whole); i += 3 {
		b.WriteByte(',')
		b.WriteString(whole[i : i+3])
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

func formatDate(v any) string { return formatTime(v, time.DateOnly) }

func formatDateTime(v any) string { return formatTime(v, "2006-01-02 15:04") }

// formatTime renders v in layout; unparseable and zero times render empty
func formatTime(v any, layout string) string {
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}

func formatDecimal(v any, precision int) string {
	return toDecimal(v).StringFixed(int32(precision))
}

// formatPercent renders a ratio as a percentage: 0.15 becomes "15%"
func formatPercent(v any, precision int) string {
	return toDecimal(v).Shift(2).StringFixed(int32(precision)) + "%"
}

// truncate cuts s to max runes, the suffix ("..." by default) included
func truncate(s string, max int, suffix ...string) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	tail := []rune("...")
	if len(suffix) > 0 {
		tail = []rune(suffix[0])
	}
	if max <= len(tail) {
		return string(tail[:max])
	}
	return string(runes[:max-len(tail)]) + string(tail)
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// plural renders "1 month" or "12 months"
func plural(n int, unit string) string {
	if n != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s", n, unit)
}

// defaultFunc returns def when val is nil or a blank string
func defaultFunc(val, def any) any {
	if s, ok := val.(string); val == nil || ok && strings.TrimSpace(s) == "" {
		return def
	}
	return val
}

func toDecimal(v any) decimal.Decimal {
	switch val := v.(type) {
	case decimal.Decimal:
		return val
	case *decimal.Decimal:
		if val != nil {
			return *val
		}
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case float64:
		return decimal.NewFromFloat(val)
	case string:
		if d, err := decimal.NewFromString(val); err == nil {
			return d
		}
	}
	return decimal.Zero
}

var timeLayouts = []string{time.RFC3339, time.DateTime, time.DateOnly}

func toTime(v any) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case *time.Time:
		if val != nil {
			return *val
		}
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, val); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
