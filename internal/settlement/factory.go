package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tillpoint/internal/database/models"
)

// CreatePaymentRequest builds a payment either against a sales order
// (tender collected) or against a charge (drawer opening/withdrawal).
type CreatePaymentRequest struct {
	PosID         int64
	UserID        int64
	OrderID       *int64
	ChargeID      *int64
	Amount        *decimal.Decimal
	CurrencyCode  string
	Tender        TenderType
	ReferenceNo   *string
	BankAccountID *int64
	CreditMemoID  *int64
	IsRefund      bool
	SupervisorPIN string
}

// CreatePayment validates the request, assigns a document number and
// tender-specific reference fields, and persists a drafted payment.
func (e *Engine) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*models.Payment, error) {
	var payment *models.Payment
	err := e.store.WithinTx(ctx, func(tx Store) error {
		p, err := e.buildPayment(ctx, tx, req)
		if err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// buildPayment is the factory proper; it runs inside the caller's
// transaction so order processing can draft and complete payments in
// one unit.
func (e *Engine) buildPayment(ctx context.Context, tx Store, req CreatePaymentRequest) (*models.Payment, error) {
	if req.Amount == nil {
		return nil, newValidation("amount", "payment amount is required")
	}
	if !req.Amount.IsPositive() {
		return nil, newValidation("amount", "payment amount must be positive")
	}
	if req.CurrencyCode == "" {
		return nil, newValidation("currency", "payment currency is required")
	}
	if req.OrderID == nil && req.ChargeID == nil {
		return nil, newValidation("source", "payment needs an order or a charge")
	}

	pos, err := tx.GetPOS(ctx, req.PosID)
	if err != nil {
		return nil, err
	}

	bankAccountID := req.BankAccountID
	if bankAccountID == nil {
		bankAccountID = pos.CashBankAccountID
	}
	if bankAccountID == nil {
		return nil, newValidation("bank_account", "no cash/bank account configured on point of sale")
	}
	if _, aerr := tx.GetBankAccount(ctx, *bankAccountID); aerr != nil {
		if aerr == ErrNotFound {
			return nil, newValidation("bank_account", "bank account does not exist")
		}
		return nil, aerr
	}

	seller, err := e.getActiveSeller(ctx, tx, req.PosID, req.UserID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	p := &models.Payment{
		PosID:           req.PosID,
		SellerID:        req.UserID,
		ChargeID:        req.ChargeID,
		CurrencyCode:    req.CurrencyCode,
		Amount:          Round(*req.Amount, CurrencyPrecision(req.CurrencyCode)),
		IsReceipt:       !req.IsRefund,
		TenderType:      string(req.Tender),
		DocStatus:       models.DocStatusDrafted,
		BankAccountID:   *bankAccountID,
		TransactionDate: now,
	}

	if req.OrderID != nil {
		order, oerr := tx.GetOrder(ctx, *req.OrderID)
		if oerr != nil {
			return nil, oerr
		}
		p.OrderID = &order.ID
		p.PartnerID = &order.PartnerID

		// Convertibility precheck: an order-backed payment in another
		// currency must have a usable rate now, not at allocation time.
		if _, cerr := e.converter.Convert(ctx, req.CurrencyCode, order.CurrencyCode, p.Amount, now, pos.ConversionRateType); cerr != nil {
			return nil, cerr
		}
	}

	// Refund ceilings guard money returned to customers; drawer
	// withdrawals against a charge are not refunds in that sense.
	if req.IsRefund && req.OrderID != nil {
		if err := e.checkRefundCeilings(ctx, tx, pos, seller, p.Amount, req.CurrencyCode, req.SupervisorPIN); err != nil {
			return nil, err
		}
	}

	docType := models.DocTypeReceipt
	if req.IsRefund {
		docType = models.DocTypeRefund
	}
	p.DocumentType = docType

	number, err := tx.NextDocumentNumber(ctx, req.PosID, docType)
	if err != nil {
		return nil, err
	}
	p.DocumentNumber = number

	switch req.Tender {
	case TenderCash:
		// Cash collected against an order moves into the reference
		// (vault) account through a related payment at completion.
		if req.OrderID != nil {
			p.ReferenceBankAccountID = pos.ReferenceBankAccountID
		}
	case TenderCheck:
		if req.ReferenceNo == nil || *req.ReferenceNo == "" {
			return nil, newValidation("reference_no", "check number is required for check tender")
		}
		p.CheckNumber = req.ReferenceNo
	case TenderCard, TenderDirectDebit, TenderMobileTransfer, TenderZelle:
		ref := uuid.NewString()
		if req.ReferenceNo != nil && *req.ReferenceNo != "" {
			ref = *req.ReferenceNo
		}
		p.ExternalReference = &ref
	case TenderCreditMemo:
		if req.OrderID == nil {
			return nil, newValidation("tender_type", "credit memo tender requires an order")
		}
		// redeeming an existing memo settles against it; without one the
		// allocation synthesizes a fresh memo at completion
		if req.CreditMemoID != nil {
			cm, merr := tx.GetCreditMemo(ctx, *req.CreditMemoID)
			if merr != nil {
				return nil, merr
			}
			if cm.DocStatus != models.DocStatusCompleted {
				return nil, newValidation("credit_memo", "credit memo is not completed")
			}
			if p.PartnerID != nil && cm.PartnerID != *p.PartnerID {
				return nil, newValidation("credit_memo", "credit memo belongs to another business partner")
			}
			p.CreditMemoID = req.CreditMemoID
		}
	default:
		return nil, newValidation("tender_type", "unknown tender type")
	}

	if err := tx.SavePayment(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// checkRefundCeilings enforces the per-payment and per-day refund
// ceilings in the POS currency. Zero ceilings mean unlimited; a
// supervisor PIN can lift either.
func (e *Engine) checkRefundCeilings(ctx context.Context, tx Store, pos *models.PointOfSale, seller *models.SellerAllocation, amount decimal.Decimal, currency, pin string) error {
	posAmount, err := e.converter.Convert(ctx, currency, pos.CurrencyCode, amount, e.now(), pos.ConversionRateType)
	if err != nil {
		return err
	}

	override := func() (bool, error) {
		if pin == "" {
			return false, nil
		}
		return e.authorize(ctx, tx, pos.ID, seller.UserID, pin, CapRefund, &posAmount)
	}

	if !seller.MaxRefundAmount.IsZero() && posAmount.GreaterThan(seller.MaxRefundAmount) {
		ok, aerr := override()
		if aerr != nil {
			return aerr
		}
		if !ok {
			return &MaxRefundError{Requested: posAmount, Ceiling: seller.MaxRefundAmount}
		}
	}

	if !seller.MaxDailyRefundAmount.IsZero() {
		today, terr := tx.DailyRefundTotal(ctx, pos.ID, seller.UserID, dateKey(e.now()))
		if terr != nil {
			return terr
		}
		remaining := seller.MaxDailyRefundAmount.Sub(today)
		if posAmount.GreaterThan(remaining) {
			ok, aerr := override()
			if aerr != nil {
				return aerr
			}
			if !ok {
				return &MaxRefundError{Requested: posAmount, Ceiling: remaining, Daily: true}
			}
		}
	}

	return nil
}
