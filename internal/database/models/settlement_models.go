package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Document status lifecycle shared by orders, payments, allocations,
// credit memos and bank statements.
const (
	DocStatusDrafted    = "DR"
	DocStatusInProgress = "IP"
	DocStatusCompleted  = "CO"
	DocStatusClosed     = "CL"
	DocStatusVoided     = "VO"
)

// Document types used for sequence assignment.
const (
	DocTypeOrder      = "ORD"
	DocTypeReceipt    = "RCV"
	DocTypeRefund     = "RFD"
	DocTypeAllocation = "ALL"
	DocTypeCreditMemo = "CRM"
	DocTypeStatement  = "STM"
)

type Order struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	DocumentNumber string `gorm:"type:varchar(32);uniqueIndex;not null"`
	PosID          int64  `gorm:"not null;index"`
	SellerID       int64  `gorm:"not null"`
	PartnerID      int64  `gorm:"not null"`

	CurrencyCode string `gorm:"type:varchar(3);not null"`
	DocStatus    string `gorm:"type:varchar(2);not null;default:'DR';index"`

	TotalLines decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	GrandTotal decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`

	// FlatDiscount records the last applied document-level discount rate
	// so reapplication after a line edit is idempotent. Nil means no flat
	// discount has been applied.
	FlatDiscount *decimal.Decimal `gorm:"type:decimal(7,4)"`

	OrderDate time.Time `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Lines    []OrderLine `gorm:"foreignKey:OrderID"`
	Payments []Payment   `gorm:"foreignKey:OrderID"`
}

type OrderLine struct {
	ID      int64 `gorm:"primaryKey;autoIncrement"`
	OrderID int64 `gorm:"not null;index"`
	LineNo  int32 `gorm:"not null"`

	ProductID *int64
	ChargeID  *int64

	Quantity     decimal.Decimal `gorm:"type:decimal(12,3);not null;default:1"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	DiscountRate decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"`
	TaxRate      decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"`
	LineNet      decimal.Decimal `gorm:"type:decimal(18,2);not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Payment is a monetary movement. Amount is always positive; IsReceipt
// gives it direction (true = money in, false = money out).
type Payment struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	DocumentNumber string `gorm:"type:varchar(32);uniqueIndex;not null"`
	DocumentType   string `gorm:"type:varchar(16);not null"`
	PosID          int64  `gorm:"not null;index"`
	SellerID       int64  `gorm:"not null"`
	PartnerID      *int64

	OrderID  *int64 `gorm:"index"`
	ChargeID *int64

	CurrencyCode string          `gorm:"type:varchar(3);not null"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	IsReceipt    bool            `gorm:"not null;default:true"`
	TenderType   string          `gorm:"type:varchar(16);not null"`
	DocStatus    string          `gorm:"type:varchar(2);not null;default:'DR';index"`

	BankAccountID          int64 `gorm:"not null"`
	ReferenceBankAccountID *int64

	CheckNumber       *string `gorm:"type:varchar(32)"`
	ExternalReference *string `gorm:"type:varchar(64)"`
	CreditMemoID      *int64
	RelatedPaymentID  *int64

	Allocated       bool      `gorm:"not null;default:false"`
	TransactionDate time.Time `gorm:"not null"`
	CreatedAt       time.Time `gorm:"index"`
	UpdatedAt       time.Time

	RelatedPayment *Payment    `gorm:"foreignKey:RelatedPaymentID"`
	CreditMemo     *CreditMemo `gorm:"foreignKey:CreditMemoID"`
}

// CreditMemo is the invoice document a credit-memo tender settles
// against, either an existing memo being redeemed or one synthesized
// from the payment; allocation lines reference it instead of the
// payment itself.
type CreditMemo struct {
	ID             int64           `gorm:"primaryKey;autoIncrement"`
	DocumentNumber string          `gorm:"type:varchar(32);uniqueIndex;not null"`
	PartnerID      int64           `gorm:"not null"`
	PaymentID      int64           `gorm:"not null;index"`
	CurrencyCode   string          `gorm:"type:varchar(3);not null"`
	GrandTotal     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	DocStatus      string          `gorm:"type:varchar(2);not null;default:'DR'"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Allocation struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	DocumentNumber string    `gorm:"type:varchar(32);uniqueIndex;not null"`
	AllocationDate time.Time `gorm:"not null"`
	CurrencyCode   string    `gorm:"type:varchar(3);not null"`
	Description    string    `gorm:"type:varchar(255)"`
	DocStatus      string    `gorm:"type:varchar(2);not null;default:'DR'"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Lines []AllocationLine `gorm:"foreignKey:AllocationID"`
}

// AllocationLine components are signed: receipts positive, refunds
// negative. For any balanced allocation,
// sum(Amount + WriteOffAmount + DiscountAmount + OverUnderAmount)
// equals the settled open amount.
type AllocationLine struct {
	ID           int64 `gorm:"primaryKey;autoIncrement"`
	AllocationID int64 `gorm:"not null;index"`
	PartnerID    int64 `gorm:"not null"`

	OrderID      *int64 `gorm:"index"`
	PaymentID    *int64
	CreditMemoID *int64

	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	WriteOffAmount  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	OverUnderAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`

	CreatedAt time.Time
}

// BankStatement is the cash session container: one per POS per day,
// open while drafted, closed for good once completed.
type BankStatement struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	DocumentNumber string    `gorm:"type:varchar(32);uniqueIndex;not null"`
	PosID          int64     `gorm:"not null;uniqueIndex:idx_statement_pos_date"`
	StatementDate  string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_statement_pos_date"`
	BankAccountID  int64     `gorm:"not null"`
	Description    string    `gorm:"type:varchar(255)"`
	DocStatus      string    `gorm:"type:varchar(2);not null;default:'DR'"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Lines []BankStatementLine `gorm:"foreignKey:StatementID"`
}

type BankStatementLine struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	StatementID int64           `gorm:"not null;index;uniqueIndex:idx_statement_payment"`
	PaymentID   int64           `gorm:"not null;uniqueIndex:idx_statement_payment"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	CreatedAt   time.Time
}
