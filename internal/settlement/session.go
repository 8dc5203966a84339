package settlement

import (
	"context"

	"tillpoint/internal/database/models"
)

// getOrOpenSession returns the open bank statement for the POS and
// date, creating it when absent. Creation races on the POS+date
// uniqueness constraint: a loser of the race re-reads the winner's
// statement instead of failing.
func (e *Engine) getOrOpenSession(ctx context.Context, tx Store, pos *models.PointOfSale, date string) (*models.BankStatement, error) {
	st, err := tx.FindOpenStatement(ctx, pos.ID, date)
	if err == nil {
		return st, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	if pos.CashBankAccountID == nil {
		return nil, newValidation("bank_account", "no cash/bank account configured on point of sale")
	}

	number, err := tx.NextDocumentNumber(ctx, pos.ID, models.DocTypeStatement)
	if err != nil {
		return nil, err
	}

	st = &models.BankStatement{
		DocumentNumber: number,
		PosID:          pos.ID,
		StatementDate:  date,
		BankAccountID:  *pos.CashBankAccountID,
		DocStatus:      models.DocStatusDrafted,
	}
	if err := tx.CreateStatement(ctx, st); err != nil {
		if err == ErrDuplicate {
			winner, ferr := tx.FindOpenStatement(ctx, pos.ID, date)
			if ferr == ErrNotFound {
				// the day's statement exists but is no longer open
				return nil, newValidation("statement", "cash session for this date is already closed")
			}
			if ferr != nil {
				return nil, ferr
			}
			return winner, nil
		}
		return nil, err
	}
	return st, nil
}

// registerPayment appends a statement line for a completed payment to
// the POS's open session. Idempotent: an existing line for the payment
// is left alone.
func (e *Engine) registerPayment(ctx context.Context, tx Store, posID int64, p *models.Payment) error {
	pos, err := tx.GetPOS(ctx, posID)
	if err != nil {
		return err
	}

	st, err := e.getOrOpenSession(ctx, tx, pos, dateKey(p.TransactionDate))
	if err != nil {
		return err
	}

	if _, err := tx.FindStatementLine(ctx, st.ID, p.ID); err == nil {
		return nil
	} else if err != ErrNotFound {
		return err
	}

	amount := p.Amount
	if !p.IsReceipt {
		amount = amount.Neg()
	}

	line := &models.BankStatementLine{
		StatementID: st.ID,
		PaymentID:   p.ID,
		Amount:      amount,
	}
	if err := tx.AddStatementLine(ctx, line); err != nil {
		if err == ErrDuplicate {
			return nil
		}
		return err
	}
	return nil
}

// CashClosingResult reports the closed statement back to the caller.
type CashClosingResult struct {
	DocumentNumber string
	DocStatus      string
	DocumentType   string
}

// ProcessCashClosing completes the bank statement as its own atomic
// unit. Closing is irreversible; it is refused while the statement is
// already processed or any referenced payment is still drafted. A
// processor rejection leaves the session open.
func (e *Engine) ProcessCashClosing(ctx context.Context, statementID int64, description string) (*CashClosingResult, error) {
	var result *CashClosingResult
	err := e.store.WithinTx(ctx, func(tx Store) error {
		st, err := tx.GetStatement(ctx, statementID)
		if err != nil {
			return err
		}
		if st.DocStatus != models.DocStatusDrafted {
			return newValidation("statement", "bank statement is already processed")
		}

		for _, line := range st.Lines {
			p, perr := tx.GetPayment(ctx, line.PaymentID)
			if perr != nil {
				return perr
			}
			if p.DocStatus == models.DocStatusDrafted {
				return newValidation("statement", "statement references a drafted payment")
			}
		}

		if description != "" {
			st.Description = description
		}

		ref := DocumentRef{Kind: DocBankStatement, ID: st.ID}
		if err := e.complete(ctx, tx, ref, func() error {
			st.DocStatus = models.DocStatusCompleted
			return tx.SaveStatement(ctx, st)
		}); err != nil {
			return err
		}

		result = &CashClosingResult{
			DocumentNumber: st.DocumentNumber,
			DocStatus:      st.DocStatus,
			DocumentType:   models.DocTypeStatement,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
