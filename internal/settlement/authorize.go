package settlement

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"tillpoint/internal/database/models"
)

// ValidatePIN checks a supervisor PIN for a gated capability. A nil
// requested amount skips the ceiling check.
func (e *Engine) ValidatePIN(ctx context.Context, posID, userID int64, pin string, capability Capability, requestedAmount *decimal.Decimal) error {
	if pin == "" {
		return newValidation("pin", "pin is required")
	}
	ok, err := e.authorize(ctx, e.store, posID, userID, pin, capability, requestedAmount)
	if err != nil {
		return err
	}
	if !ok {
		return &UnauthorizedError{Capability: capability}
	}
	return nil
}

// authorize scans the POS's supervisor-capable allocations for one
// whose PIN matches and whose capability flag and ceiling admit the
// request, then falls back to the user's own direct supervisor by the
// employee hierarchy.
func (e *Engine) authorize(ctx context.Context, s Store, posID, userID int64, pin string, capability Capability, requestedAmount *decimal.Decimal) (bool, error) {
	sups, err := s.ListSupervisorAllocations(ctx, posID)
	if err != nil {
		return false, err
	}
	for i := range sups {
		if admits(&sups[i], pin, capability, requestedAmount) {
			return true, nil
		}
	}

	own, err := s.FindSellerAllocation(ctx, posID, userID)
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	if own.SupervisorID == nil {
		return false, nil
	}

	supAllocs, err := s.ListUserAllocations(ctx, *own.SupervisorID)
	if err != nil {
		return false, err
	}
	for i := range supAllocs {
		if admits(&supAllocs[i], pin, capability, requestedAmount) {
			return true, nil
		}
	}
	return false, nil
}

func admits(sa *models.SellerAllocation, pin string, capability Capability, requestedAmount *decimal.Decimal) bool {
	if !sa.IsActive || !sa.IsSupervisor || sa.PinHash == nil {
		return false
	}
	if bcrypt.CompareHashAndPassword([]byte(*sa.PinHash), []byte(pin)) != nil {
		return false
	}
	if !capabilityFlag(sa, capability) {
		return false
	}
	if requestedAmount == nil {
		return true
	}
	ceiling, has := capabilityCeiling(sa, capability)
	if !has {
		return true
	}
	// zero ceiling means unlimited
	return ceiling.IsZero() || ceiling.GreaterThanOrEqual(*requestedAmount)
}

func capabilityFlag(sa *models.SellerAllocation, capability Capability) bool {
	switch capability {
	case CapApplyDiscount:
		return sa.CanApplyDiscount
	case CapRefund:
		return sa.CanRefund
	case CapWriteOff:
		return sa.CanWriteOff
	case CapCloseCash:
		return sa.CanCloseCash
	}
	return false
}

func capabilityCeiling(sa *models.SellerAllocation, capability Capability) (decimal.Decimal, bool) {
	switch capability {
	case CapApplyDiscount:
		return sa.MaxDiscountPct, true
	case CapRefund:
		return sa.MaxRefundAmount, true
	case CapWriteOff:
		return sa.WriteOffToleranceAmount, true
	}
	return decimal.Decimal{}, false
}
