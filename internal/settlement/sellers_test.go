package settlement_test

import (
	"context"
	"errors"
	"testing"

	"tillpoint/internal/settlement"
)

func TestDeallocatedSellerCannotOperate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, "100")

	if err := f.engine.DeallocateSeller(ctx, f.posID, sellerUser); err != nil {
		t.Fatalf("deallocate: %v", err)
	}

	req := cashPayment("100")
	req.PosID = f.posID
	req.UserID = sellerUser
	req.OrderID = &orderID

	_, err := f.engine.CreatePayment(ctx, req)
	var ve *settlement.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for deactivated seller, got %v", err)
	}
}

func TestReallocationReactivatesSeller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.engine.DeallocateSeller(ctx, f.posID, sellerUser); err != nil {
		t.Fatalf("deallocate: %v", err)
	}

	sa, err := f.engine.AllocateSeller(ctx, settlement.AllocateSellerRequest{
		PosID:  f.posID,
		UserID: sellerUser,
	})
	if err != nil {
		t.Fatalf("reallocate: %v", err)
	}
	if !sa.IsActive {
		t.Fatalf("reallocation should reactivate the seller")
	}

	orderID := f.seedOrder(t, "100")
	req := cashPayment("100")
	req.PosID = f.posID
	req.UserID = sellerUser
	req.OrderID = &orderID
	if _, err := f.engine.CreatePayment(ctx, req); err != nil {
		t.Fatalf("payment after reactivation: %v", err)
	}
}

func TestAllocationPreservesPinWhenOmitted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// update the supervisor without resending the PIN
	if _, err := f.engine.AllocateSeller(ctx, settlement.AllocateSellerRequest{
		PosID:            f.posID,
		UserID:           supervisorUser,
		IsSupervisor:     true,
		CanApplyDiscount: true,
	}); err != nil {
		t.Fatalf("update supervisor: %v", err)
	}

	if err := f.engine.ValidatePIN(ctx, f.posID, sellerUser, supervisorPIN, settlement.CapApplyDiscount, nil); err != nil {
		t.Fatalf("existing PIN should survive an update without one: %v", err)
	}
}

func TestDeallocateUnknownSeller(t *testing.T) {
	f := newFixture(t)
	err := f.engine.DeallocateSeller(context.Background(), f.posID, 12345)
	if !errors.Is(err, settlement.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
