package render

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rickgao/pricefeed/internal/model"
)

// FormatTime renders a wire timestamp as a UTC clock time. Unparseable
// input is returned unchanged.
func FormatTime(ts string, withSeconds bool) string {
	t, err := model.ParseTimestamp(ts)
	if err != nil {
		return ts
	}
	if withSeconds {
		return t.Format("15:04:05")
	}
	return t.Format("15:04")
}

// FormatDate renders a wire timestamp as a calendar date.
func FormatDate(ts string) string {
	t, err := model.ParseTimestamp(ts)
	if err != nil {
		return ts
	}
	return t.Format("Jan 2, 2006")
}

// FormatPrice renders v with two decimals.
func FormatPrice(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Formatter renders numbers using the grouping and decimal separators of
// a language.
type Formatter struct {
	p *message.Printer
}

// NewFormatter creates a Formatter for tag.
func NewFormatter(tag language.Tag) *Formatter {
	return &Formatter{p: message.NewPrinter(tag)}
}

// Price renders v rounded to cents, e.g. "1,234.50" for English.
func (f *Formatter) Price(v float64) string {
	return f.p.Sprintf("%.2f", round2(v))
}

// Change renders the signed move from base to v and its percentage.
func (f *Formatter) Change(base, v float64) string {
	delta := decimal.NewFromFloat(v).Sub(decimal.NewFromFloat(base)).Round(2)
	sign := ""
	if delta.IsPositive() {
		sign = "+"
	}
	if base == 0 {
		return sign + f.p.Sprintf("%.2f", delta.InexactFloat64())
	}
	pct := delta.Div(decimal.NewFromFloat(base)).Mul(decimal.NewFromInt(100)).Round(2)
	return f.p.Sprintf("%s%.2f (%s%.2f%%)", sign, delta.InexactFloat64(), sign, pct.InexactFloat64())
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
