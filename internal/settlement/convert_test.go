package settlement_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tillpoint/internal/cache"
	"tillpoint/internal/database/models"
	"tillpoint/internal/settlement"
)

type countingRates struct {
	inner settlement.RateSource
	calls int
}

func (c *countingRates) FindConversionRate(ctx context.Context, from, to, rateType string, asOf time.Time) (*models.ConversionRate, error) {
	c.calls++
	return c.inner.FindConversionRate(ctx, from, to, rateType, asOf)
}

type mapCache map[string]string

func (m mapCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m[key] = value
	return nil
}

func (m mapCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m, k)
	}
	return nil
}

func TestConvertSameCurrencyShortCircuits(t *testing.T) {
	f := newFixture(t)
	converter := settlement.NewConverter(f.store, cache.Noop{})

	got, err := converter.Convert(context.Background(), "USD", "USD", dec("10.505"), time.Now(), "spot")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	assertDecimal(t, got, "10.51", "rounded same-currency amount")
}

func TestConvertAppliesMultiplierAndPrecision(t *testing.T) {
	f := newFixture(t)
	f.store.AddRate(models.ConversionRate{
		FromCurrency: "USD",
		ToCurrency:   "JPY",
		RateType:     "spot",
		Multiplier:   dec("151.3370"),
		ValidFrom:    time.Now().Add(-time.Hour),
		ValidTo:      time.Now().Add(time.Hour),
	})
	converter := settlement.NewConverter(f.store, cache.Noop{})

	got, err := converter.Convert(context.Background(), "USD", "JPY", dec("10"), time.Now(), "spot")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	// JPY has no minor unit
	assertDecimal(t, got, "1513", "yen amount")
}

func TestConvertMissingRate(t *testing.T) {
	f := newFixture(t)
	converter := settlement.NewConverter(f.store, cache.Noop{})

	_, err := converter.Convert(context.Background(), "USD", "GBP", dec("10"), time.Now(), "spot")
	var cne *settlement.ConversionNotFoundError
	if !errors.As(err, &cne) {
		t.Fatalf("expected ConversionNotFoundError, got %v", err)
	}
	if cne.From != "USD" || cne.To != "GBP" {
		t.Fatalf("error should carry the pair, got %s -> %s", cne.From, cne.To)
	}
}

func TestConvertZeroAmountNeedsNoRate(t *testing.T) {
	f := newFixture(t)
	converter := settlement.NewConverter(f.store, cache.Noop{})

	got, err := converter.Convert(context.Background(), "USD", "GBP", decimal.Zero, time.Now(), "spot")
	if err != nil {
		t.Fatalf("zero conversion should not need a rate: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("expected zero, got %s", got.String())
	}
}

func TestConvertReadsThroughCache(t *testing.T) {
	f := newFixture(t)
	rates := &countingRates{inner: f.store}
	converter := settlement.NewConverter(rates, mapCache{})

	asOf := time.Now()
	for i := 0; i < 3; i++ {
		got, err := converter.Convert(context.Background(), "EUR", "USD", dec("90"), asOf, "spot")
		if err != nil {
			t.Fatalf("convert: %v", err)
		}
		assertDecimal(t, got, "45", "converted amount")
	}

	if rates.calls != 1 {
		t.Fatalf("expected one store lookup with a warm cache, got %d", rates.calls)
	}
}

func TestRateValidityWindow(t *testing.T) {
	f := newFixture(t)
	converter := settlement.NewConverter(f.store, cache.Noop{})

	// the seeded EUR rate is valid for a day around now
	stale := time.Now().Add(-72 * time.Hour)
	_, err := converter.Convert(context.Background(), "EUR", "USD", dec("10"), stale, "spot")
	var cne *settlement.ConversionNotFoundError
	if !errors.As(err, &cne) {
		t.Fatalf("expected no rate outside the validity window, got %v", err)
	}
}
