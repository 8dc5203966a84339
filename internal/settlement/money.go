package settlement

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// CurrencyPrecision returns the minor-unit scale for a currency code.
// Unknown codes round to two places.
func CurrencyPrecision(code string) int32 {
	switch code {
	case "JPY", "KRW", "VND", "CLP":
		return 0
	case "BHD", "KWD", "OMR", "TND":
		return 3
	default:
		return 2
	}
}

// Round applies half-up rounding at the given scale.
func Round(d decimal.Decimal, precision int32) decimal.Decimal {
	return d.Round(precision)
}

// Percentage returns pct percent of base, rounded at precision.
func Percentage(base, pct decimal.Decimal, precision int32) decimal.Decimal {
	return Round(base.Mul(pct).Div(hundred), precision)
}

// OrZero treats an absent optional amount as zero. Absent and zero stay
// distinguishable at the type level; collapse them only at arithmetic
// boundaries.
func OrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
