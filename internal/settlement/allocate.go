package settlement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tillpoint/internal/database/models"
)

// ProcessOrderRequest drives order completion and settlement. Payments
// may be drafted in the same unit; IsOpenRefund relaxes the exact
// settlement requirement and leaves any residual open on the order.
type ProcessOrderRequest struct {
	OrderID      int64
	UserID       int64
	Payments     []CreatePaymentRequest
	IsOpenRefund bool
}

// ProcessOrder completes a drafted order and allocates its payments.
// Re-running it on an already completed order only settles payments
// that are still unallocated; it never re-completes the document.
func (e *Engine) ProcessOrder(ctx context.Context, req ProcessOrderRequest) (*models.Order, error) {
	var result *models.Order
	err := e.store.WithinTx(ctx, func(tx Store) error {
		order, err := tx.GetOrder(ctx, req.OrderID)
		if err != nil {
			return err
		}
		pos, err := tx.GetPOS(ctx, order.PosID)
		if err != nil {
			return err
		}
		seller, err := e.getActiveSeller(ctx, tx, order.PosID, req.UserID)
		if err != nil {
			return err
		}

		for _, preq := range req.Payments {
			preq.PosID = order.PosID
			preq.UserID = req.UserID
			preq.OrderID = &order.ID
			if _, perr := e.buildPayment(ctx, tx, preq); perr != nil {
				return perr
			}
		}

		switch order.DocStatus {
		case models.DocStatusDrafted, models.DocStatusInProgress:
			if err := e.completeOrderDoc(ctx, tx, order, pos); err != nil {
				return err
			}
		case models.DocStatusCompleted:
			// re-settlement of unresolved payment references
		default:
			return newValidation("order", "order cannot be processed in its current status")
		}

		if err := e.allocateOrder(ctx, tx, order, pos, seller, req.IsOpenRefund); err != nil {
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

// completeOrderDoc finalizes the flat-discount line against the
// current order lines, then runs the order through the document
// processor. Moving out of the drafted state here is what guards the
// order against a second concurrent completion.
func (e *Engine) completeOrderDoc(ctx context.Context, tx Store, order *models.Order, pos *models.PointOfSale) error {
	if order.FlatDiscount != nil && pos.DiscountChargeID != nil {
		precision := CurrencyPrecision(order.CurrencyCode)
		if err := e.applyFlatDiscountRate(ctx, tx, order, pos, *order.FlatDiscount, precision); err != nil {
			return err
		}
	}

	ref := DocumentRef{Kind: DocOrder, ID: order.ID}
	return e.complete(ctx, tx, ref, func() error {
		order.DocStatus = models.DocStatusCompleted
		return tx.SaveOrder(ctx, order)
	})
}

type allocationCandidate struct {
	payment    *models.Payment
	amount     decimal.Decimal // converted to order currency, signed
	creditMemo *models.CreditMemo
}

// allocateOrder builds the allocation document that nets the order's
// payments against its grand total. Payments are visited oldest first:
// earlier payments settle principal before later adjustments. The
// whole walk runs inside the caller's transaction, so a failure at any
// step (conversion, completion, document processing) undoes all of it.
func (e *Engine) allocateOrder(ctx context.Context, tx Store, order *models.Order, pos *models.PointOfSale, seller *models.SellerAllocation, isOpenRefund bool) error {
	precision := CurrencyPrecision(order.CurrencyCode)

	payments, err := tx.ListOrderPayments(ctx, order.ID)
	if err != nil {
		return err
	}

	openAmount := order.GrandTotal
	var candidates []allocationCandidate

	for i := range payments {
		p := &payments[i]

		converted, cerr := e.converter.Convert(ctx, p.CurrencyCode, order.CurrencyCode, p.Amount, p.TransactionDate, pos.ConversionRateType)
		if cerr != nil {
			return cerr
		}
		signed := converted
		if !p.IsReceipt {
			signed = signed.Neg()
		}

		openAmount = openAmount.Sub(signed)
		if p.Allocated {
			continue
		}

		cand := allocationCandidate{payment: p, amount: signed}
		if p.DocStatus == models.DocStatusDrafted {
			if TenderType(p.TenderType) == TenderCreditMemo {
				if p.CreditMemoID != nil {
					// the payment redeems an existing memo
					if p.CreditMemo == nil {
						return newValidation("payment", "credit memo payment is missing its memo")
					}
					cand.creditMemo = p.CreditMemo
				} else {
					cm, merr := e.synthesizeCreditMemo(ctx, tx, p)
					if merr != nil {
						return merr
					}
					cand.creditMemo = cm
				}
			}
			if perr := e.completePayment(ctx, tx, p); perr != nil {
				return perr
			}
		} else if p.CreditMemoID != nil {
			cm := p.CreditMemo
			if cm == nil {
				return newValidation("payment", "credit memo payment is missing its memo")
			}
			cand.creditMemo = cm
		}
		candidates = append(candidates, cand)
	}

	openAmount = Round(openAmount, precision)
	if len(candidates) == 0 {
		// nothing new to settle; re-runs never mint empty allocations
		return nil
	}

	if !isOpenRefund {
		tolerance, terr := e.writeOffTolerance(ctx, pos, seller, order)
		if terr != nil {
			return terr
		}
		if openAmount.Abs().GreaterThan(tolerance) {
			return &WriteOffToleranceError{
				OpenAmount: openAmount.Abs(),
				Tolerance:  tolerance,
				Currency:   order.CurrencyCode,
			}
		}
	}

	number, err := tx.NextDocumentNumber(ctx, order.PosID, models.DocTypeAllocation)
	if err != nil {
		return err
	}

	alloc := &models.Allocation{
		DocumentNumber: number,
		AllocationDate: e.now(),
		CurrencyCode:   order.CurrencyCode,
		Description:    fmt.Sprintf("Settlement of %s", order.DocumentNumber),
		DocStatus:      models.DocStatusDrafted,
	}

	for _, cand := range candidates {
		line := models.AllocationLine{
			PartnerID: order.PartnerID,
			OrderID:   &order.ID,
			Amount:    cand.amount,
		}
		if cand.creditMemo != nil {
			line.CreditMemoID = &cand.creditMemo.ID
		} else {
			line.PaymentID = &cand.payment.ID
		}
		alloc.Lines = append(alloc.Lines, line)
	}

	if isOpenRefund {
		// A collected excess is not written off; it rides as a negative
		// over/under on a positive payment line, waiting for the refund.
		if openAmount.IsNegative() {
			netOverUnder(alloc.Lines, openAmount)
		}
	} else if !openAmount.IsZero() {
		// The residual within tolerance becomes an explicit write-off
		// line; an allocation is never left unbalanced.
		alloc.Lines = append(alloc.Lines, models.AllocationLine{
			PartnerID:      order.PartnerID,
			OrderID:        &order.ID,
			WriteOffAmount: openAmount,
		})
	}

	if err := tx.CreateAllocation(ctx, alloc); err != nil {
		return err
	}

	ref := DocumentRef{Kind: DocAllocation, ID: alloc.ID}
	if err := e.complete(ctx, tx, ref, func() error {
		alloc.DocStatus = models.DocStatusCompleted
		return tx.SaveAllocation(ctx, alloc)
	}); err != nil {
		return err
	}

	for _, cand := range candidates {
		cand.payment.Allocated = true
		if err := tx.SavePayment(ctx, cand.payment); err != nil {
			return err
		}
	}
	return nil
}

// netOverUnder attaches a negative over/under to the first line with a
// positive payment amount, falling back to the last line.
func netOverUnder(lines []models.AllocationLine, overUnder decimal.Decimal) {
	for i := range lines {
		if lines[i].Amount.IsPositive() {
			lines[i].OverUnderAmount = overUnder
			return
		}
	}
	if len(lines) > 0 {
		lines[len(lines)-1].OverUnderAmount = overUnder
	}
}

// writeOffTolerance resolves the tolerance in the order's currency.
// The seller's own ceiling wins when set; the POS value is the
// default. The percentage policy computes pct-of-grand-total but is
// still capped by the absolute ceiling amount; the two modes are
// deliberately distinct policies.
func (e *Engine) writeOffTolerance(ctx context.Context, pos *models.PointOfSale, seller *models.SellerAllocation, order *models.Order) (decimal.Decimal, error) {
	precision := CurrencyPrecision(order.CurrencyCode)

	if pos.WriteOffByPercentage {
		pct := pos.WriteOffTolerancePct
		if !seller.WriteOffTolerancePct.IsZero() {
			pct = seller.WriteOffTolerancePct
		}
		tolerance := Percentage(order.GrandTotal.Abs(), pct, precision)
		cap := pos.WriteOffToleranceAmount
		if !cap.IsZero() {
			capConverted, err := e.converter.Convert(ctx, pos.CurrencyCode, order.CurrencyCode, cap, e.now(), pos.ConversionRateType)
			if err != nil {
				return decimal.Zero, err
			}
			if tolerance.GreaterThan(capConverted) {
				tolerance = capConverted
			}
		}
		return tolerance, nil
	}

	amount := pos.WriteOffToleranceAmount
	if !seller.WriteOffToleranceAmount.IsZero() {
		amount = seller.WriteOffToleranceAmount
	}
	return e.converter.Convert(ctx, pos.CurrencyCode, order.CurrencyCode, amount, e.now(), pos.ConversionRateType)
}

// synthesizeCreditMemo builds and completes the credit-memo invoice a
// credit-memo tender payment settles against.
func (e *Engine) synthesizeCreditMemo(ctx context.Context, tx Store, p *models.Payment) (*models.CreditMemo, error) {
	if p.PartnerID == nil {
		return nil, newValidation("payment", "credit memo tender requires a business partner")
	}

	number, err := tx.NextDocumentNumber(ctx, p.PosID, models.DocTypeCreditMemo)
	if err != nil {
		return nil, err
	}

	cm := &models.CreditMemo{
		DocumentNumber: number,
		PartnerID:      *p.PartnerID,
		PaymentID:      p.ID,
		CurrencyCode:   p.CurrencyCode,
		GrandTotal:     p.Amount,
		DocStatus:      models.DocStatusDrafted,
	}
	if err := tx.SaveCreditMemo(ctx, cm); err != nil {
		return nil, err
	}

	ref := DocumentRef{Kind: DocCreditMemo, ID: cm.ID}
	if err := e.complete(ctx, tx, ref, func() error {
		cm.DocStatus = models.DocStatusCompleted
		return tx.SaveCreditMemo(ctx, cm)
	}); err != nil {
		return nil, err
	}

	p.CreditMemoID = &cm.ID
	if err := tx.SavePayment(ctx, p); err != nil {
		return nil, err
	}
	return cm, nil
}
