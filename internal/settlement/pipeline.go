package settlement

import (
	"context"

	"tillpoint/internal/database/models"
)

// completePayment drives a drafted payment to completion: spawn and
// complete the related transfer leg first when a reference bank
// account is designated, run the document processor, then register the
// payment against the open cash session. Any failure aborts the whole
// unit, leaving the payment drafted.
func (e *Engine) completePayment(ctx context.Context, tx Store, p *models.Payment) error {
	if err := e.completePaymentDoc(ctx, tx, p); err != nil {
		return err
	}
	return e.registerPayment(ctx, tx, p.PosID, p)
}

func (e *Engine) completePaymentDoc(ctx context.Context, tx Store, p *models.Payment) error {
	if p.DocStatus == models.DocStatusCompleted {
		return nil
	}
	if p.DocStatus != models.DocStatusDrafted {
		return newValidation("payment", "only drafted payments can be completed")
	}

	if p.ReferenceBankAccountID != nil && p.RelatedPaymentID == nil {
		if err := e.createRelatedPayment(ctx, tx, p); err != nil {
			return err
		}
	}

	ref := DocumentRef{Kind: DocPayment, ID: p.ID}
	return e.complete(ctx, tx, ref, func() error {
		p.DocStatus = models.DocStatusCompleted
		return tx.SavePayment(ctx, p)
	})
}

// createRelatedPayment clones the source payment onto the reference
// bank account, cross-links both records, and completes the transfer
// leg before the primary leg is finalized. The transfer leg never
// joins the cash session; only the drawer-facing payment does.
func (e *Engine) createRelatedPayment(ctx context.Context, tx Store, p *models.Payment) error {
	number, err := tx.NextDocumentNumber(ctx, p.PosID, p.DocumentType)
	if err != nil {
		return err
	}

	related := &models.Payment{
		DocumentNumber:    number,
		DocumentType:      p.DocumentType,
		PosID:             p.PosID,
		SellerID:          p.SellerID,
		PartnerID:         p.PartnerID,
		CurrencyCode:      p.CurrencyCode,
		Amount:            p.Amount,
		IsReceipt:         p.IsReceipt,
		TenderType:        p.TenderType,
		DocStatus:         models.DocStatusDrafted,
		BankAccountID:     *p.ReferenceBankAccountID,
		CheckNumber:       p.CheckNumber,
		ExternalReference: p.ExternalReference,
		TransactionDate:   p.TransactionDate,
		RelatedPaymentID:  &p.ID,
	}
	if err := tx.SavePayment(ctx, related); err != nil {
		return err
	}

	p.RelatedPaymentID = &related.ID
	if err := tx.SavePayment(ctx, p); err != nil {
		return err
	}

	return e.completePaymentDoc(ctx, tx, related)
}
