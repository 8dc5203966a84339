package settlement

import (
	"context"

	"github.com/shopspring/decimal"
)

// CashPaymentSpec is one drawer movement inside an opening or
// withdrawal request.
type CashPaymentSpec struct {
	Amount       decimal.Decimal
	CurrencyCode string
	Tender       TenderType
	ReferenceNo  *string
}

type CashMovementRequest struct {
	PosID             int64
	CollectingAgentID int64
	Payments          []CashPaymentSpec
}

// ProcessCashOpening drafts and completes charge-backed payments for
// the float placed in the drawer, registering each in the day's cash
// session.
func (e *Engine) ProcessCashOpening(ctx context.Context, req CashMovementRequest) error {
	return e.processCashMovement(ctx, req, false)
}

// ProcessCashWithdrawal moves tender out of the drawer mid-session.
func (e *Engine) ProcessCashWithdrawal(ctx context.Context, req CashMovementRequest) error {
	return e.processCashMovement(ctx, req, true)
}

func (e *Engine) processCashMovement(ctx context.Context, req CashMovementRequest, withdrawal bool) error {
	if len(req.Payments) == 0 {
		return newValidation("payments", "at least one payment is required")
	}

	return e.store.WithinTx(ctx, func(tx Store) error {
		pos, err := tx.GetPOS(ctx, req.PosID)
		if err != nil {
			return err
		}

		chargeID := pos.OpeningChargeID
		if withdrawal {
			chargeID = pos.WithdrawalChargeID
		}
		if chargeID == nil {
			return newValidation("pos", "no drawer charge configured on point of sale")
		}
		if _, err := tx.GetCharge(ctx, *chargeID); err != nil {
			return err
		}

		for _, spec := range req.Payments {
			amount := spec.Amount
			p, perr := e.buildPayment(ctx, tx, CreatePaymentRequest{
				PosID:        req.PosID,
				UserID:       req.CollectingAgentID,
				ChargeID:     chargeID,
				Amount:       &amount,
				CurrencyCode: spec.CurrencyCode,
				Tender:       spec.Tender,
				ReferenceNo:  spec.ReferenceNo,
				IsRefund:     withdrawal,
			})
			if perr != nil {
				return perr
			}
			if cerr := e.completePayment(ctx, tx, p); cerr != nil {
				return cerr
			}
		}
		return nil
	})
}
