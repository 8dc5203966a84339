package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PointOfSale carries the terminal-level configuration the settlement
// engine depends on: drawer accounts, the discount/opening/withdrawal
// charges, and the write-off policy.
type PointOfSale struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Code string `gorm:"type:varchar(32);uniqueIndex;not null"`
	Name string `gorm:"type:varchar(128);not null"`

	CurrencyCode       string `gorm:"type:varchar(3);not null"`
	ConversionRateType string `gorm:"type:varchar(32);not null;default:'spot'"`

	CashBankAccountID      *int64
	ReferenceBankAccountID *int64
	DiscountChargeID       *int64
	OpeningChargeID        *int64
	WithdrawalChargeID     *int64

	// WriteOffByPercentage selects the tolerance policy. The two modes
	// validate against distinct ceiling columns and stay distinct.
	WriteOffByPercentage    bool            `gorm:"not null;default:false"`
	WriteOffToleranceAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	WriteOffTolerancePct    decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"`

	IsActive  bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time

	CashBankAccount      *BankAccount `gorm:"foreignKey:CashBankAccountID"`
	ReferenceBankAccount *BankAccount `gorm:"foreignKey:ReferenceBankAccountID"`
}

type BankAccount struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"type:varchar(128);not null"`
	CurrencyCode string `gorm:"type:varchar(3);not null"`
	IsActive     bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Charge is a non-product order/payment concept (flat discount, drawer
// opening, drawer withdrawal).
type Charge struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"type:varchar(128);not null"`
	IsActive  bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type BusinessPartner struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"type:varchar(128);not null"`
	IsActive  bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SellerAllocation assigns a user to a POS with capability flags and
// numeric ceilings. Zero on a ceiling means unlimited. Rows are soft
// deactivated, never deleted.
type SellerAllocation struct {
	ID           int64 `gorm:"primaryKey;autoIncrement"`
	PosID        int64 `gorm:"not null;index;uniqueIndex:idx_seller_pos"`
	UserID       int64 `gorm:"not null;index;uniqueIndex:idx_seller_pos"`
	SupervisorID *int64

	IsSupervisor bool    `gorm:"not null;default:false"`
	PinHash      *string `gorm:"type:varchar(128)"`

	CanApplyDiscount bool `gorm:"not null;default:false"`
	CanRefund        bool `gorm:"not null;default:false"`
	CanWriteOff      bool `gorm:"not null;default:false"`
	CanCloseCash     bool `gorm:"not null;default:false"`
	ConcurrentUse    bool `gorm:"not null;default:false"`

	MaxDiscountPct          decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"`
	MaxRefundAmount         decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	MaxDailyRefundAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	WriteOffToleranceAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	WriteOffTolerancePct    decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0"`

	IsActive  bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConversionRate is a dated, typed exchange rate row. Amount in
// FromCurrency times Multiplier yields the amount in ToCurrency.
type ConversionRate struct {
	ID           int64           `gorm:"primaryKey;autoIncrement"`
	FromCurrency string          `gorm:"type:varchar(3);not null;index:idx_rate_pair"`
	ToCurrency   string          `gorm:"type:varchar(3);not null;index:idx_rate_pair"`
	RateType     string          `gorm:"type:varchar(32);not null;default:'spot'"`
	Multiplier   decimal.Decimal `gorm:"type:decimal(18,8);not null"`
	ValidFrom    time.Time       `gorm:"not null"`
	ValidTo      time.Time       `gorm:"not null"`
	CreatedAt    time.Time
}

// DocumentSequence hands out sequential document numbers per POS and
// document type.
type DocumentSequence struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	PosID        int64  `gorm:"not null;uniqueIndex:idx_sequence_pos_doc"`
	DocumentType string `gorm:"type:varchar(16);not null;uniqueIndex:idx_sequence_pos_doc"`
	Prefix       string `gorm:"type:varchar(16);not null"`
	NextNumber   int64  `gorm:"not null;default:1"`
	UpdatedAt    time.Time
}
