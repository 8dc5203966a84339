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
	"tillpoint/internal/store/memory"
)

const (
	sellerUser     = int64(101)
	supervisorUser = int64(900)
	supervisorPIN  = "4321"
	partnerID      = int64(55)
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	store  *memory.Store
	engine *settlement.Engine

	posID            int64
	drawerAccountID  int64
	vaultAccountID   int64
	discountChargeID int64
}

// newFixture builds a USD register with a drawer and vault account, the
// three drawer charges, an EUR spot rate of 0.5, a plain seller and a
// supervisor with PIN 4321 and every capability.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st := memory.New()
	f := &fixture{store: st}

	f.drawerAccountID = st.AddBankAccount(models.BankAccount{Name: "Drawer", CurrencyCode: "USD", IsActive: true})
	f.vaultAccountID = st.AddBankAccount(models.BankAccount{Name: "Vault", CurrencyCode: "USD", IsActive: true})
	f.discountChargeID = st.AddCharge(models.Charge{Name: "Flat Discount", IsActive: true})
	openingChargeID := st.AddCharge(models.Charge{Name: "Drawer Opening", IsActive: true})
	withdrawalChargeID := st.AddCharge(models.Charge{Name: "Drawer Withdrawal", IsActive: true})

	f.posID = st.AddPOS(models.PointOfSale{
		Code:                    "POS-01",
		Name:                    "Front Register",
		CurrencyCode:            "USD",
		ConversionRateType:      "spot",
		CashBankAccountID:       &f.drawerAccountID,
		ReferenceBankAccountID:  &f.vaultAccountID,
		DiscountChargeID:        &f.discountChargeID,
		OpeningChargeID:         &openingChargeID,
		WithdrawalChargeID:      &withdrawalChargeID,
		WriteOffToleranceAmount: dec("20"),
		IsActive:                true,
	})

	st.AddRate(models.ConversionRate{
		FromCurrency: "EUR",
		ToCurrency:   "USD",
		RateType:     "spot",
		Multiplier:   dec("0.5"),
		ValidFrom:    time.Now().Add(-24 * time.Hour),
		ValidTo:      time.Now().Add(24 * time.Hour),
	})

	converter := settlement.NewConverter(st, cache.Noop{})
	f.engine = settlement.NewEngine(st, converter, settlement.NoopProcessor{})

	if _, err := f.engine.AllocateSeller(ctx, settlement.AllocateSellerRequest{
		PosID:  f.posID,
		UserID: sellerUser,
	}); err != nil {
		t.Fatalf("allocate seller: %v", err)
	}
	if _, err := f.engine.AllocateSeller(ctx, settlement.AllocateSellerRequest{
		PosID:            f.posID,
		UserID:           supervisorUser,
		IsSupervisor:     true,
		Pin:              supervisorPIN,
		CanApplyDiscount: true,
		CanRefund:        true,
		CanWriteOff:      true,
		CanCloseCash:     true,
	}); err != nil {
		t.Fatalf("allocate supervisor: %v", err)
	}

	return f
}

// seedOrder stores a drafted USD order with a single product line whose
// net equals total.
func (f *fixture) seedOrder(t *testing.T, total string) int64 {
	t.Helper()
	amount := dec(total)
	orderID := f.store.AddOrder(models.Order{
		DocumentNumber: "ORD-" + total,
		PosID:          f.posID,
		SellerID:       sellerUser,
		PartnerID:      partnerID,
		CurrencyCode:   "USD",
		DocStatus:      models.DocStatusDrafted,
		TotalLines:     amount,
		GrandTotal:     amount,
		OrderDate:      time.Now(),
	})
	productID := int64(7)
	f.store.AddOrderLine(models.OrderLine{
		OrderID:   orderID,
		LineNo:    10,
		ProductID: &productID,
		Quantity:  decimal.NewFromInt(1),
		UnitPrice: amount,
		LineNet:   amount,
	})
	return orderID
}

func cashPayment(amount string) settlement.CreatePaymentRequest {
	amt := dec(amount)
	return settlement.CreatePaymentRequest{
		Amount:       &amt,
		CurrencyCode: "USD",
		Tender:       settlement.TenderCash,
	}
}

func eurCashPayment(amount string) settlement.CreatePaymentRequest {
	amt := dec(amount)
	return settlement.CreatePaymentRequest{
		Amount:       &amt,
		CurrencyCode: "EUR",
		Tender:       settlement.TenderCash,
	}
}

// failingProcessor rejects completion of one document kind.
type failingProcessor struct {
	reject settlement.DocumentKind
}

func (p failingProcessor) Complete(_ context.Context, _ settlement.Store, ref settlement.DocumentRef) error {
	if ref.Kind == p.reject {
		return errors.New("posting rejected")
	}
	return nil
}

func assertDecimal(t *testing.T, got decimal.Decimal, want string, label string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: got %s, want %s", label, got.String(), want)
	}
}
