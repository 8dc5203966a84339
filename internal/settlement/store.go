package settlement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tillpoint/internal/database/models"
)

// Store is the persistence boundary of the settlement engine. WithinTx
// hands the callback a transaction-scoped Store; every mutation inside
// either commits as one unit or rolls back on the first error.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	GetPOS(ctx context.Context, id int64) (*models.PointOfSale, error)
	GetBankAccount(ctx context.Context, id int64) (*models.BankAccount, error)
	GetCharge(ctx context.Context, id int64) (*models.Charge, error)

	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	SaveOrder(ctx context.Context, o *models.Order) error
	ListOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error)
	SaveOrderLine(ctx context.Context, l *models.OrderLine) error
	DeleteOrderLine(ctx context.Context, id int64) error

	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
	SavePayment(ctx context.Context, p *models.Payment) error
	// ListOrderPayments returns an order's payments ordered by creation
	// time ascending. The allocation engine depends on this ordering.
	ListOrderPayments(ctx context.Context, orderID int64) ([]models.Payment, error)
	// DailyRefundTotal sums a seller's completed refund payments on a
	// POS for one calendar day.
	DailyRefundTotal(ctx context.Context, posID, sellerID int64, date string) (decimal.Decimal, error)

	GetCreditMemo(ctx context.Context, id int64) (*models.CreditMemo, error)
	SaveCreditMemo(ctx context.Context, cm *models.CreditMemo) error

	CreateAllocation(ctx context.Context, a *models.Allocation) error
	SaveAllocation(ctx context.Context, a *models.Allocation) error

	FindOpenStatement(ctx context.Context, posID int64, date string) (*models.BankStatement, error)
	CreateStatement(ctx context.Context, st *models.BankStatement) error
	GetStatement(ctx context.Context, id int64) (*models.BankStatement, error)
	SaveStatement(ctx context.Context, st *models.BankStatement) error
	FindStatementLine(ctx context.Context, statementID, paymentID int64) (*models.BankStatementLine, error)
	AddStatementLine(ctx context.Context, line *models.BankStatementLine) error

	FindConversionRate(ctx context.Context, from, to, rateType string, asOf time.Time) (*models.ConversionRate, error)

	FindSellerAllocation(ctx context.Context, posID, userID int64) (*models.SellerAllocation, error)
	ListSupervisorAllocations(ctx context.Context, posID int64) ([]models.SellerAllocation, error)
	ListUserAllocations(ctx context.Context, userID int64) ([]models.SellerAllocation, error)
	SaveSellerAllocation(ctx context.Context, sa *models.SellerAllocation) error

	// NextDocumentNumber advances the POS's sequence for the document
	// type and returns the formatted number. Must be called inside a
	// transaction; the sequence row is locked until commit.
	NextDocumentNumber(ctx context.Context, posID int64, docType string) (string, error)
}

// RateSource is the slice of Store the currency converter needs.
type RateSource interface {
	FindConversionRate(ctx context.Context, from, to, rateType string, asOf time.Time) (*models.ConversionRate, error)
}
