package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tillpoint/internal/cache"
)

const (
	fxCachePrefix = "fx:"
	fxCacheTTL    = 30 * time.Minute
)

// Converter converts amounts between currencies using dated, typed
// rate rows, with a read-through cache in front of the store. The
// cache is injected by the caller; pass cache.Noop to disable.
type Converter struct {
	rates RateSource
	cache cache.Cache
}

func NewConverter(rates RateSource, c cache.Cache) *Converter {
	if c == nil {
		c = cache.Noop{}
	}
	return &Converter{rates: rates, cache: c}
}

// Convert returns amount expressed in the target currency, rounded to
// the target currency's precision. Zero amounts and same-currency
// conversions short-circuit. A missing rate is an error, never zero:
// swallowing it would imbalance any allocation built on the result.
func (c *Converter) Convert(ctx context.Context, from, to string, amount decimal.Decimal, asOf time.Time, rateType string) (decimal.Decimal, error) {
	if amount.IsZero() || from == to {
		return Round(amount, CurrencyPrecision(to)), nil
	}

	mult, err := c.multiplier(ctx, from, to, rateType, asOf)
	if err != nil {
		return decimal.Zero, err
	}

	return Round(amount.Mul(mult), CurrencyPrecision(to)), nil
}

func (c *Converter) multiplier(ctx context.Context, from, to, rateType string, asOf time.Time) (decimal.Decimal, error) {
	key := fmt.Sprintf("%s%s:%s:%s:%s", fxCachePrefix, from, to, rateType, asOf.Format("2006-01-02"))

	if cached, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		if mult, perr := decimal.NewFromString(cached); perr == nil {
			return mult, nil
		}
	}

	rate, err := c.rates.FindConversionRate(ctx, from, to, rateType, asOf)
	if err != nil {
		if err == ErrNotFound {
			return decimal.Zero, &ConversionNotFoundError{From: from, To: to, RateType: rateType, AsOf: asOf}
		}
		return decimal.Zero, err
	}

	_ = c.cache.Set(ctx, key, rate.Multiplier.String(), fxCacheTTL)
	return rate.Multiplier, nil
}
