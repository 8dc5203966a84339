package settlement

import (
	"context"

	"github.com/shopspring/decimal"

	"tillpoint/internal/database/models"
)

// FinalPriceFromDiscount returns base reduced by ratePct percent,
// rounded half-up at precision. A nil rate counts as zero.
func FinalPriceFromDiscount(base decimal.Decimal, ratePct *decimal.Decimal, precision int32) decimal.Decimal {
	rate := OrZero(ratePct)
	return Round(base.Mul(hundred.Sub(rate)).Div(hundred), precision)
}

// DiscountFromPrices returns the discount rate that turns base into
// final, as a percentage rounded at precision. Zero base yields zero.
// Inverse of FinalPriceFromDiscount up to one unit in the last place.
func DiscountFromPrices(base, final decimal.Decimal, precision int32) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return Round(base.Sub(final).Div(base).Mul(hundred), precision)
}

// FlatDiscountRequest applies a document-level flat discount to an
// order, given either as a rate or as an amount off. When the rate
// exceeds the seller's own ceiling a supervisor PIN must be supplied.
type FlatDiscountRequest struct {
	OrderID       int64
	UserID        int64
	RatePct       *decimal.Decimal
	AmountOff     *decimal.Decimal
	SupervisorPIN string
}

// ApplyFlatDiscount maintains the order's single synthetic discount
// line. Reapplying the same rate to unchanged lines reproduces the same
// line content.
func (e *Engine) ApplyFlatDiscount(ctx context.Context, req FlatDiscountRequest) (*models.Order, error) {
	if req.RatePct == nil && req.AmountOff == nil {
		return nil, newValidation("discount", "either rate or amount off is required")
	}

	var result *models.Order
	err := e.store.WithinTx(ctx, func(tx Store) error {
		order, err := tx.GetOrder(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if order.DocStatus != models.DocStatusDrafted && order.DocStatus != models.DocStatusInProgress {
			return newValidation("order", "discounts can only change before completion")
		}

		pos, err := tx.GetPOS(ctx, order.PosID)
		if err != nil {
			return err
		}
		if pos.DiscountChargeID == nil {
			return newValidation("pos", "no discount charge configured on point of sale")
		}

		seller, err := e.getActiveSeller(ctx, tx, order.PosID, req.UserID)
		if err != nil {
			return err
		}

		precision := CurrencyPrecision(order.CurrencyCode)
		rate := OrZero(req.RatePct)
		if req.AmountOff != nil {
			base, berr := e.discountBase(ctx, tx, order, *pos.DiscountChargeID)
			if berr != nil {
				return berr
			}
			if base.IsPositive() {
				rate = DiscountFromPrices(base, base.Sub(*req.AmountOff), 4)
			}
		}

		if rate.IsNegative() || rate.GreaterThan(hundred) {
			return newValidation("discount", "discount rate must be between 0 and 100")
		}

		if err := e.checkDiscountCeiling(ctx, tx, pos, seller, rate, req.SupervisorPIN); err != nil {
			return err
		}

		if err := e.applyFlatDiscountRate(ctx, tx, order, pos, rate, precision); err != nil {
			return err
		}

		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// checkDiscountCeiling enforces the seller's own maximum, falling back
// to the supervisor gate when a PIN accompanies the request. Zero
// ceiling means unlimited.
func (e *Engine) checkDiscountCeiling(ctx context.Context, tx Store, pos *models.PointOfSale, seller *models.SellerAllocation, ratePct decimal.Decimal, pin string) error {
	if seller.MaxDiscountPct.IsZero() || ratePct.LessThanOrEqual(seller.MaxDiscountPct) {
		return nil
	}
	if pin != "" {
		ok, err := e.authorize(ctx, tx, pos.ID, seller.UserID, pin, CapApplyDiscount, &ratePct)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return &MaxDiscountError{RequestedPct: ratePct, CeilingPct: seller.MaxDiscountPct}
}

// discountBase sums the order's line nets excluding the synthetic
// discount line itself.
func (e *Engine) discountBase(ctx context.Context, tx Store, order *models.Order, discountChargeID int64) (decimal.Decimal, error) {
	lines, err := tx.ListOrderLines(ctx, order.ID)
	if err != nil {
		return decimal.Zero, err
	}
	base := decimal.Zero
	for _, l := range lines {
		if l.ChargeID != nil && *l.ChargeID == discountChargeID {
			continue
		}
		base = base.Add(l.LineNet)
	}
	return base, nil
}

func (e *Engine) applyFlatDiscountRate(ctx context.Context, tx Store, order *models.Order, pos *models.PointOfSale, ratePct decimal.Decimal, precision int32) error {
	discountChargeID := *pos.DiscountChargeID

	base, err := e.discountBase(ctx, tx, order, discountChargeID)
	if err != nil {
		return err
	}

	lines, err := tx.ListOrderLines(ctx, order.ID)
	if err != nil {
		return err
	}
	var existing *models.OrderLine
	maxLineNo := int32(0)
	for i := range lines {
		if lines[i].LineNo > maxLineNo {
			maxLineNo = lines[i].LineNo
		}
		if lines[i].ChargeID != nil && *lines[i].ChargeID == discountChargeID {
			existing = &lines[i]
		}
	}

	if !base.IsPositive() || ratePct.IsZero() {
		if existing != nil {
			if err := tx.DeleteOrderLine(ctx, existing.ID); err != nil {
				return err
			}
		}
		order.FlatDiscount = nil
		return e.recalcOrderTotals(ctx, tx, order, precision)
	}

	discountAmount := base.Sub(FinalPriceFromDiscount(base, &ratePct, precision))
	linePrice := discountAmount.Neg()

	if existing != nil {
		existing.UnitPrice = linePrice
		existing.LineNet = linePrice
		existing.Quantity = decimal.NewFromInt(1)
		if err := tx.SaveOrderLine(ctx, existing); err != nil {
			return err
		}
	} else {
		line := &models.OrderLine{
			OrderID:   order.ID,
			LineNo:    maxLineNo + 10,
			ChargeID:  &discountChargeID,
			Quantity:  decimal.NewFromInt(1),
			UnitPrice: linePrice,
			LineNet:   linePrice,
		}
		if err := tx.SaveOrderLine(ctx, line); err != nil {
			return err
		}
	}

	order.FlatDiscount = &ratePct
	return e.recalcOrderTotals(ctx, tx, order, precision)
}

// recalcOrderTotals rebuilds the order header amounts from its lines.
func (e *Engine) recalcOrderTotals(ctx context.Context, tx Store, order *models.Order, precision int32) error {
	lines, err := tx.ListOrderLines(ctx, order.ID)
	if err != nil {
		return err
	}

	total := decimal.Zero
	grand := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineNet)
		grand = grand.Add(l.LineNet.Add(Percentage(l.LineNet, l.TaxRate, precision)))
	}

	order.TotalLines = Round(total, precision)
	order.GrandTotal = Round(grand, precision)
	return tx.SaveOrder(ctx, order)
}
