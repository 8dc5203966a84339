package settlement_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tillpoint/internal/database/models"
	"tillpoint/internal/settlement"
)

func TestCreatePaymentDraftsReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, "100")

	req := cashPayment("100")
	req.PosID = f.posID
	req.UserID = sellerUser
	req.OrderID = &orderID

	p, err := f.engine.CreatePayment(ctx, req)
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}

	if p.DocStatus != models.DocStatusDrafted {
		t.Fatalf("expected drafted payment, got %s", p.DocStatus)
	}
	if p.DocumentType != models.DocTypeReceipt {
		t.Fatalf("expected receipt document type, got %s", p.DocumentType)
	}
	if !strings.HasPrefix(p.DocumentNumber, models.DocTypeReceipt+"-") {
		t.Fatalf("unexpected document number %s", p.DocumentNumber)
	}
	if p.BankAccountID != f.drawerAccountID {
		t.Fatalf("expected drawer account by default")
	}
	if p.ReferenceBankAccountID == nil || *p.ReferenceBankAccountID != f.vaultAccountID {
		t.Fatalf("cash against an order should designate the vault account")
	}
	if !p.IsReceipt {
		t.Fatalf("expected receipt direction")
	}
}

func TestCreatePaymentValidations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, "100")

	cases := map[string]func(r *settlement.CreatePaymentRequest){
		"missing amount":  func(r *settlement.CreatePaymentRequest) { r.Amount = nil },
		"negative amount": func(r *settlement.CreatePaymentRequest) { neg := dec("-5"); r.Amount = &neg },
		"zero amount":     func(r *settlement.CreatePaymentRequest) { zero := dec("0"); r.Amount = &zero },
		"no currency":     func(r *settlement.CreatePaymentRequest) { r.CurrencyCode = "" },
		"no source":       func(r *settlement.CreatePaymentRequest) { r.OrderID = nil },
		"check without number": func(r *settlement.CreatePaymentRequest) {
			r.Tender = settlement.TenderCheck
		},
		"unknown bank account": func(r *settlement.CreatePaymentRequest) {
			bogus := int64(9999)
			r.BankAccountID = &bogus
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := cashPayment("50")
			req.PosID = f.posID
			req.UserID = sellerUser
			req.OrderID = &orderID
			mutate(&req)

			_, err := f.engine.CreatePayment(ctx, req)
			var ve *settlement.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCardPaymentGetsExternalReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, "100")

	req := cashPayment("100")
	req.PosID = f.posID
	req.UserID = sellerUser
	req.OrderID = &orderID
	req.Tender = settlement.TenderCard

	p, err := f.engine.CreatePayment(ctx, req)
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if p.ExternalReference == nil || *p.ExternalReference == "" {
		t.Fatalf("card tender should carry an external reference")
	}

	provided := "AUTH-123"
	req2 := req
	req2.ReferenceNo = &provided
	p2, err := f.engine.CreatePayment(ctx, req2)
	if err != nil {
		t.Fatalf("create payment with reference: %v", err)
	}
	if p2.ExternalReference == nil || *p2.ExternalReference != provided {
		t.Fatalf("provided reference should win, got %v", p2.ExternalReference)
	}
}

func TestUnconvertiblePaymentRefusedAtCreation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, "100")

	req := cashPayment("100")
	req.PosID = f.posID
	req.UserID = sellerUser
	req.OrderID = &orderID
	req.CurrencyCode = "GBP"

	_, err := f.engine.CreatePayment(ctx, req)
	var cne *settlement.ConversionNotFoundError
	if !errors.As(err, &cne) {
		t.Fatalf("expected ConversionNotFoundError, got %v", err)
	}
}

func TestRefundCeilingEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.AllocateSeller(ctx, settlement.AllocateSellerRequest{
		PosID:           f.posID,
		UserID:          sellerUser,
		MaxRefundAmount: dec("50"),
	}); err != nil {
		t.Fatalf("reallocate: %v", err)
	}

	orderID := f.seedOrder(t, "100")
	req := cashPayment("80")
	req.PosID = f.posID
	req.UserID = sellerUser
	req.OrderID = &orderID
	req.IsRefund = true

	_, err := f.engine.CreatePayment(ctx, req)
	var mre *settlement.MaxRefundError
	if !errors.As(err, &mre) {
		t.Fatalf("expected MaxRefundError, got %v", err)
	}
	if mre.Daily {
		t.Fatalf("expected the per-payment ceiling, not the daily one")
	}

	req.SupervisorPIN = supervisorPIN
	if _, err := f.engine.CreatePayment(ctx, req); err != nil {
		t.Fatalf("supervisor override failed: %v", err)
	}
}

func TestDailyRefundCeiling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.AllocateSeller(ctx, settlement.AllocateSellerRequest{
		PosID:                f.posID,
		UserID:               sellerUser,
		MaxDailyRefundAmount: dec("100"),
	}); err != nil {
		t.Fatalf("reallocate: %v", err)
	}

	// settle a refund of 70 first so only 30 remains for the day
	orderID := f.seedOrder(t, "100")
	refund := cashPayment("70")
	refund.IsRefund = true
	if _, err := f.engine.ProcessOrder(ctx, settlement.ProcessOrderRequest{
		OrderID:      orderID,
		UserID:       sellerUser,
		IsOpenRefund: true,
		Payments:     []settlement.CreatePaymentRequest{refund},
	}); err != nil {
		t.Fatalf("settle refund: %v", err)
	}

	secondOrder := f.seedOrder(t, "60")
	req := cashPayment("60")
	req.PosID = f.posID
	req.UserID = sellerUser
	req.OrderID = &secondOrder
	req.IsRefund = true

	_, err := f.engine.CreatePayment(ctx, req)
	var mre *settlement.MaxRefundError
	if !errors.As(err, &mre) {
		t.Fatalf("expected daily MaxRefundError, got %v", err)
	}
	if !mre.Daily {
		t.Fatalf("expected the daily ceiling to trip")
	}
	assertDecimal(t, mre.Ceiling, "30", "remaining daily ceiling")
}

func TestCreditMemoRedemptionValidations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, "100")

	foreign := &models.CreditMemo{
		DocumentNumber: "CRM-FOREIGN",
		PartnerID:      partnerID + 1,
		PaymentID:      1,
		CurrencyCode:   "USD",
		GrandTotal:     dec("100"),
		DocStatus:      models.DocStatusCompleted,
	}
	drafted := &models.CreditMemo{
		DocumentNumber: "CRM-DRAFTED",
		PartnerID:      partnerID,
		PaymentID:      2,
		CurrencyCode:   "USD",
		GrandTotal:     dec("100"),
		DocStatus:      models.DocStatusDrafted,
	}
	for _, cm := range []*models.CreditMemo{foreign, drafted} {
		if err := f.store.SaveCreditMemo(ctx, cm); err != nil {
			t.Fatalf("seed memo: %v", err)
		}
	}

	build := func(memoID int64) settlement.CreatePaymentRequest {
		req := cashPayment("100")
		req.PosID = f.posID
		req.UserID = sellerUser
		req.OrderID = &orderID
		req.Tender = settlement.TenderCreditMemo
		req.CreditMemoID = &memoID
		return req
	}

	for name, memoID := range map[string]int64{
		"foreign partner memo": foreign.ID,
		"drafted memo":         drafted.ID,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.engine.CreatePayment(ctx, build(memoID))
			var ve *settlement.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if _, err := f.engine.CreatePayment(ctx, build(9999)); !errors.Is(err, settlement.ErrNotFound) {
		t.Fatalf("expected not found for unknown memo, got %v", err)
	}
}

func TestSellerMustBeAllocated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.seedOrder(t, "100")

	req := cashPayment("100")
	req.PosID = f.posID
	req.UserID = 777 // never allocated
	req.OrderID = &orderID

	_, err := f.engine.CreatePayment(ctx, req)
	var ve *settlement.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for unallocated seller, got %v", err)
	}
}
