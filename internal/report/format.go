package report

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money renders an amount with two decimals and thousands separators,
// e.g. 1234567.891 -> "1,234,567.89".
func Money(f float64) string {
	s := decimal.NewFromFloat(f).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// Percent renders a fraction as a percentage with two decimals: 0.1234 -> "12.34%"
func Percent(ratio float64) string {
	return decimal.NewFromFloat(ratio).Shift(2).StringFixed(2) + "%"
}

// Price renders a price with four decimals
func Price(f float64) string {
	return decimal.NewFromFloat(f).StringFixed(4)
}
