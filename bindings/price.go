package bindings

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

type priceFormatter struct {
	symbol string
	group  string
	point  string
}

// newPriceFormatter takes the separators of locale from a formatted sample
// so prices can be grouped from their exact decimal digits.
func newPriceFormatter(symbol, locale string) (*priceFormatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("locale %q: %w", locale, err)
	}
	sample := []rune(message.NewPrinter(tag).Sprint(number.Decimal(1234567.5, number.Scale(2))))
	p := &priceFormatter{symbol: symbol, point: "."}
	if n := len(sample); n > 3 {
		p.point = string(sample[n-3])
		for _, r := range sample[1 : n-3] {
			if !unicode.IsDigit(r) {
				p.group = string(r)
				break
			}
		}
	}
	return p, nil
}

// format renders d with digit grouping and two decimals.
func (p *priceFormatter) format(d decimal.Decimal) string {
	digits := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	whole, frac, _ := strings.Cut(digits, ".")

	var sb strings.Builder
	sb.WriteString(p.symbol + " " + sign)
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			sb.WriteString(p.group)
		}
		sb.WriteRune(c)
	}
	sb.WriteString(p.point + frac)
	return sb.String()
}

// formatPrice is the default of project_price. Numbers and numeric strings are
// formatted; other strings keep their text.
func (b *Bindings) formatPrice(v any, _ Project) (any, error) {
	var d decimal.Decimal
	switch x := v.(type) {
	case nil:
		return nil, nil
	case decimal.Decimal:
		d = x
	case float64:
		d = decimal.NewFromFloat(x)
	case float32:
		d = decimal.NewFromFloat32(x)
	case int64:
		d = decimal.NewFromInt(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return b.price.symbol + " " + x, nil
		}
		d = parsed
	default:
		return nil, fmt.Errorf("project_price: unsupported value %T", v)
	}
	return b.price.format(d), nil
}
