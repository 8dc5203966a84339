package settlement_test

import (
	"context"
	"errors"
	"testing"

	"tillpoint/internal/database/models"
	"tillpoint/internal/settlement"
)

func TestFinalPriceRoundTrip(t *testing.T) {
	base := dec("129.99")
	rate := dec("12.5")

	final := settlement.FinalPriceFromDiscount(base, &rate, 2)
	assertDecimal(t, final, "113.74", "final price")

	back := settlement.DiscountFromPrices(base, final, 4)
	// inverse up to one unit in the last place of the price
	diff := back.Sub(rate).Abs()
	if diff.GreaterThan(dec("0.01")) {
		t.Fatalf("round-trip rate drifted: got %s, want ~%s", back.String(), rate.String())
	}
}

func TestDiscountFromPricesZeroBase(t *testing.T) {
	got := settlement.DiscountFromPrices(dec("0"), dec("0"), 4)
	if !got.IsZero() {
		t.Fatalf("expected zero rate for zero base, got %s", got.String())
	}
}

func TestApplyFlatDiscountAddsSyntheticLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, "100")

	rate := dec("10")
	order, err := f.engine.ApplyFlatDiscount(ctx, settlement.FlatDiscountRequest{
		OrderID: orderID,
		UserID:  sellerUser,
		RatePct: &rate,
	})
	if err != nil {
		t.Fatalf("apply discount: %v", err)
	}

	assertDecimal(t, order.GrandTotal, "90", "grand total")
	if order.FlatDiscount == nil || !order.FlatDiscount.Equal(rate) {
		t.Fatalf("expected flat discount 10 recorded on order")
	}

	lines, err := f.store.ListOrderLines(ctx, orderID)
	if err != nil {
		t.Fatalf("list lines: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected product line plus discount line, got %d lines", len(lines))
	}
	discountLine := lines[1]
	if discountLine.ChargeID == nil || *discountLine.ChargeID != f.discountChargeID {
		t.Fatalf("discount line should reference the discount charge")
	}
	assertDecimal(t, discountLine.LineNet, "-10", "discount line net")
}

func TestApplyFlatDiscountIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, "100")

	rate := dec("10")
	req := settlement.FlatDiscountRequest{OrderID: orderID, UserID: sellerUser, RatePct: &rate}

	if _, err := f.engine.ApplyFlatDiscount(ctx, req); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	order, err := f.engine.ApplyFlatDiscount(ctx, req)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}

	lines, _ := f.store.ListOrderLines(ctx, orderID)
	if len(lines) != 2 {
		t.Fatalf("reapplying the same rate must not add lines, got %d", len(lines))
	}
	assertDecimal(t, order.GrandTotal, "90", "grand total after reapply")
}

func TestApplyFlatDiscountFromAmountOff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, "200")

	amountOff := dec("50")
	order, err := f.engine.ApplyFlatDiscount(ctx, settlement.FlatDiscountRequest{
		OrderID:   orderID,
		UserID:    sellerUser,
		AmountOff: &amountOff,
	})
	if err != nil {
		t.Fatalf("apply amount off: %v", err)
	}

	assertDecimal(t, order.GrandTotal, "150", "grand total")
	if order.FlatDiscount == nil || !order.FlatDiscount.Equal(dec("25")) {
		t.Fatalf("expected derived rate 25, got %v", order.FlatDiscount)
	}
}

func TestZeroRateRemovesDiscountLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, "100")

	rate := dec("10")
	if _, err := f.engine.ApplyFlatDiscount(ctx, settlement.FlatDiscountRequest{
		OrderID: orderID, UserID: sellerUser, RatePct: &rate,
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	zero := dec("0")
	order, err := f.engine.ApplyFlatDiscount(ctx, settlement.FlatDiscountRequest{
		OrderID: orderID, UserID: sellerUser, RatePct: &zero,
	})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}

	lines, _ := f.store.ListOrderLines(ctx, orderID)
	if len(lines) != 1 {
		t.Fatalf("expected discount line removed, got %d lines", len(lines))
	}
	if order.FlatDiscount != nil {
		t.Fatalf("expected flat discount cleared")
	}
	assertDecimal(t, order.GrandTotal, "100", "grand total restored")
}

func TestDiscountRateOutsideRangeRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// the fixture seller has no ceiling, so only the range check guards
	for name, rate := range map[string]string{
		"above hundred": "150",
		"negative":      "-10",
	} {
		t.Run(name, func(t *testing.T) {
			orderID := f.seedOrder(t, "100")
			r := dec(rate)
			_, err := f.engine.ApplyFlatDiscount(ctx, settlement.FlatDiscountRequest{
				OrderID: orderID, UserID: sellerUser, RatePct: &r,
			})
			var ve *settlement.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error for rate %s, got %v", rate, err)
			}
		})
	}

	// amount off beyond the base derives a rate above hundred
	orderID := f.seedOrder(t, "100")
	amountOff := dec("150")
	_, err := f.engine.ApplyFlatDiscount(ctx, settlement.FlatDiscountRequest{
		OrderID: orderID, UserID: sellerUser, AmountOff: &amountOff,
	})
	var ve *settlement.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for oversized amount off, got %v", err)
	}
}

func TestDiscountCeilingRequiresSupervisor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// cap the seller at 5 percent
	if _, err := f.engine.AllocateSeller(ctx, settlement.AllocateSellerRequest{
		PosID:          f.posID,
		UserID:         sellerUser,
		MaxDiscountPct: dec("5"),
	}); err != nil {
		t.Fatalf("reallocate seller: %v", err)
	}

	orderID := f.seedOrder(t, "100")
	rate := dec("10")

	_, err := f.engine.ApplyFlatDiscount(ctx, settlement.FlatDiscountRequest{
		OrderID: orderID, UserID: sellerUser, RatePct: &rate,
	})
	var mde *settlement.MaxDiscountError
	if !errors.As(err, &mde) {
		t.Fatalf("expected MaxDiscountError, got %v", err)
	}
	if !settlement.IsPolicyViolation(err) {
		t.Fatalf("ceiling breach should classify as policy violation")
	}

	order, err := f.engine.ApplyFlatDiscount(ctx, settlement.FlatDiscountRequest{
		OrderID: orderID, UserID: sellerUser, RatePct: &rate, SupervisorPIN: supervisorPIN,
	})
	if err != nil {
		t.Fatalf("supervisor override failed: %v", err)
	}
	assertDecimal(t, order.GrandTotal, "90", "grand total with override")
}

func TestDiscountRefusedAfterCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, "100")

	if _, err := f.engine.ProcessOrder(ctx, settlement.ProcessOrderRequest{
		OrderID:  orderID,
		UserID:   sellerUser,
		Payments: []settlement.CreatePaymentRequest{cashPayment("100")},
	}); err != nil {
		t.Fatalf("process order: %v", err)
	}

	order, _ := f.store.GetOrder(ctx, orderID)
	if order.DocStatus != models.DocStatusCompleted {
		t.Fatalf("expected completed order, got %s", order.DocStatus)
	}

	rate := dec("10")
	_, err := f.engine.ApplyFlatDiscount(ctx, settlement.FlatDiscountRequest{
		OrderID: orderID, UserID: sellerUser, RatePct: &rate,
	})
	var ve *settlement.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error on completed order, got %v", err)
	}
}
