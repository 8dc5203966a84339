package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tillpoint/internal/database/models"
	"tillpoint/internal/settlement"
)

// Store is the gorm/postgres implementation of settlement.Store.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx settlement.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return settlement.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return settlement.ErrDuplicate
	}
	return err
}

func (s *Store) GetPOS(ctx context.Context, id int64) (*models.PointOfSale, error) {
	var pos models.PointOfSale
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&pos).Error; err != nil {
		return nil, translate(err)
	}
	return &pos, nil
}

func (s *Store) GetBankAccount(ctx context.Context, id int64) (*models.BankAccount, error) {
	var acct models.BankAccount
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&acct).Error; err != nil {
		return nil, translate(err)
	}
	return &acct, nil
}

func (s *Store) GetCharge(ctx context.Context, id int64) (*models.Charge, error) {
	var charge models.Charge
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&charge).Error; err != nil {
		return nil, translate(err)
	}
	return &charge, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (s *Store) SaveOrder(ctx context.Context, o *models.Order) error {
	return translate(s.db.WithContext(ctx).Save(o).Error)
}

func (s *Store) ListOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("line_no asc").
		Find(&lines).Error
	if err != nil {
		return nil, translate(err)
	}
	return lines, nil
}

func (s *Store) SaveOrderLine(ctx context.Context, l *models.OrderLine) error {
	return translate(s.db.WithContext(ctx).Save(l).Error)
}

func (s *Store) DeleteOrderLine(ctx context.Context, id int64) error {
	return translate(s.db.WithContext(ctx).Delete(&models.OrderLine{}, id).Error)
}

func (s *Store) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).
		Preload("CreditMemo").
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Store) SavePayment(ctx context.Context, p *models.Payment) error {
	return translate(s.db.WithContext(ctx).Omit("RelatedPayment", "CreditMemo").Save(p).Error)
}

func (s *Store) ListOrderPayments(ctx context.Context, orderID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Preload("CreditMemo").
		Where("order_id = ?", orderID).
		Order("created_at asc, id asc").
		Find(&payments).Error
	if err != nil {
		return nil, translate(err)
	}
	return payments, nil
}

func (s *Store) DailyRefundTotal(ctx context.Context, posID, sellerID int64, date string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("SUM(amount)").
		Where("pos_id = ? AND seller_id = ?", posID, sellerID).
		Where("is_receipt = ? AND order_id IS NOT NULL", false).
		Where("doc_status IN ?", []string{models.DocStatusCompleted, models.DocStatusClosed}).
		Where("DATE(transaction_date) = ?", date).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, translate(err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (s *Store) GetCreditMemo(ctx context.Context, id int64) (*models.CreditMemo, error) {
	var cm models.CreditMemo
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&cm).Error; err != nil {
		return nil, translate(err)
	}
	return &cm, nil
}

func (s *Store) SaveCreditMemo(ctx context.Context, cm *models.CreditMemo) error {
	return translate(s.db.WithContext(ctx).Save(cm).Error)
}

func (s *Store) CreateAllocation(ctx context.Context, a *models.Allocation) error {
	return translate(s.db.WithContext(ctx).Create(a).Error)
}

func (s *Store) SaveAllocation(ctx context.Context, a *models.Allocation) error {
	return translate(s.db.WithContext(ctx).Omit("Lines").Save(a).Error)
}

func (s *Store) FindOpenStatement(ctx context.Context, posID int64, date string) (*models.BankStatement, error) {
	var st models.BankStatement
	err := s.db.WithContext(ctx).
		Where("pos_id = ? AND statement_date = ? AND doc_status = ?", posID, date, models.DocStatusDrafted).
		First(&st).Error
	if err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

func (s *Store) CreateStatement(ctx context.Context, st *models.BankStatement) error {
	return translate(s.db.WithContext(ctx).Create(st).Error)
}

func (s *Store) GetStatement(ctx context.Context, id int64) (*models.BankStatement, error) {
	var st models.BankStatement
	err := s.db.WithContext(ctx).
		Preload("Lines").
		Where("id = ?", id).
		First(&st).Error
	if err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

func (s *Store) SaveStatement(ctx context.Context, st *models.BankStatement) error {
	return translate(s.db.WithContext(ctx).Omit("Lines").Save(st).Error)
}

func (s *Store) FindStatementLine(ctx context.Context, statementID, paymentID int64) (*models.BankStatementLine, error) {
	var line models.BankStatementLine
	err := s.db.WithContext(ctx).
		Where("statement_id = ? AND payment_id = ?", statementID, paymentID).
		First(&line).Error
	if err != nil {
		return nil, translate(err)
	}
	return &line, nil
}

func (s *Store) AddStatementLine(ctx context.Context, line *models.BankStatementLine) error {
	return translate(s.db.WithContext(ctx).Create(line).Error)
}

func (s *Store) FindConversionRate(ctx context.Context, from, to, rateType string, asOf time.Time) (*models.ConversionRate, error) {
	var rate models.ConversionRate
	err := s.db.WithContext(ctx).
		Where("from_currency = ? AND to_currency = ? AND rate_type = ?", from, to, rateType).
		Where("valid_from <= ? AND valid_to >= ?", asOf, asOf).
		Order("valid_from desc").
		First(&rate).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rate, nil
}

func (s *Store) FindSellerAllocation(ctx context.Context, posID, userID int64) (*models.SellerAllocation, error) {
	var sa models.SellerAllocation
	err := s.db.WithContext(ctx).
		Where("pos_id = ? AND user_id = ?", posID, userID).
		First(&sa).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sa, nil
}

func (s *Store) ListSupervisorAllocations(ctx context.Context, posID int64) ([]models.SellerAllocation, error) {
	var sas []models.SellerAllocation
	err := s.db.WithContext(ctx).
		Where("pos_id = ? AND is_supervisor = ? AND is_active = ?", posID, true, true).
		Find(&sas).Error
	if err != nil {
		return nil, translate(err)
	}
	return sas, nil
}

func (s *Store) ListUserAllocations(ctx context.Context, userID int64) ([]models.SellerAllocation, error) {
	var sas []models.SellerAllocation
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Find(&sas).Error
	if err != nil {
		return nil, translate(err)
	}
	return sas, nil
}

func (s *Store) SaveSellerAllocation(ctx context.Context, sa *models.SellerAllocation) error {
	return translate(s.db.WithContext(ctx).Save(sa).Error)
}

// NextDocumentNumber locks the sequence row for the POS and document
// type until the surrounding transaction commits.
func (s *Store) NextDocumentNumber(ctx context.Context, posID int64, docType string) (string, error) {
	var seq models.DocumentSequence
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("pos_id = ? AND document_type = ?", posID, docType).
		First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// the POS is folded into the prefix: document numbers carry a
		// global unique index, so per-POS sequences alone would collide
		seq = models.DocumentSequence{
			PosID:        posID,
			DocumentType: docType,
			Prefix:       fmt.Sprintf("%s-%d", docType, posID),
			NextNumber:   1,
		}
		if cerr := s.db.WithContext(ctx).Create(&seq).Error; cerr != nil {
			return "", translate(cerr)
		}
	} else if err != nil {
		return "", translate(err)
	}

	number := fmt.Sprintf("%s-%06d", seq.Prefix, seq.NextNumber)
	seq.NextNumber++
	if err := s.db.WithContext(ctx).Save(&seq).Error; err != nil {
		return "", translate(err)
	}
	return number, nil
}
