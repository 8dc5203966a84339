package settlement

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"tillpoint/internal/database/models"
)

// AllocateSellerRequest assigns a user to a POS or updates an existing
// assignment. All ceilings default to zero (unlimited).
type AllocateSellerRequest struct {
	PosID        int64
	UserID       int64
	SupervisorID *int64
	IsSupervisor bool
	Pin          string

	CanApplyDiscount bool
	CanRefund        bool
	CanWriteOff      bool
	CanCloseCash     bool
	ConcurrentUse    bool

	MaxDiscountPct          decimal.Decimal
	MaxRefundAmount         decimal.Decimal
	MaxDailyRefundAmount    decimal.Decimal
	WriteOffToleranceAmount decimal.Decimal
	WriteOffTolerancePct    decimal.Decimal
}

// AllocateSeller creates the allocation on first use and reactivates or
// updates it afterwards.
func (e *Engine) AllocateSeller(ctx context.Context, req AllocateSellerRequest) (*models.SellerAllocation, error) {
	var result *models.SellerAllocation
	err := e.store.WithinTx(ctx, func(tx Store) error {
		sa, err := tx.FindSellerAllocation(ctx, req.PosID, req.UserID)
		if err != nil {
			if err != ErrNotFound {
				return err
			}
			sa = &models.SellerAllocation{PosID: req.PosID, UserID: req.UserID}
		}

		sa.SupervisorID = req.SupervisorID
		sa.IsSupervisor = req.IsSupervisor
		sa.CanApplyDiscount = req.CanApplyDiscount
		sa.CanRefund = req.CanRefund
		sa.CanWriteOff = req.CanWriteOff
		sa.CanCloseCash = req.CanCloseCash
		sa.ConcurrentUse = req.ConcurrentUse
		sa.MaxDiscountPct = req.MaxDiscountPct
		sa.MaxRefundAmount = req.MaxRefundAmount
		sa.MaxDailyRefundAmount = req.MaxDailyRefundAmount
		sa.WriteOffToleranceAmount = req.WriteOffToleranceAmount
		sa.WriteOffTolerancePct = req.WriteOffTolerancePct
		sa.IsActive = true

		if req.Pin != "" {
			hash, herr := bcrypt.GenerateFromPassword([]byte(req.Pin), bcrypt.DefaultCost)
			if herr != nil {
				return herr
			}
			pin := string(hash)
			sa.PinHash = &pin
		}

		if err := tx.SaveSellerAllocation(ctx, sa); err != nil {
			return err
		}
		result = sa
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeallocateSeller deactivates the allocation. Rows are never deleted;
// history hangs off them.
func (e *Engine) DeallocateSeller(ctx context.Context, posID, userID int64) error {
	return e.store.WithinTx(ctx, func(tx Store) error {
		sa, err := tx.FindSellerAllocation(ctx, posID, userID)
		if err != nil {
			return err
		}
		sa.IsActive = false
		return tx.SaveSellerAllocation(ctx, sa)
	})
}
