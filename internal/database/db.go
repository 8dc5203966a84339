package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"tillpoint/internal/database/models"
)

func NewConnection(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		log.Fatal("DSN is required")
	}

	// TranslateError maps driver errors onto gorm.ErrRecordNotFound and
	// gorm.ErrDuplicatedKey, which the store layer relies on.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get sql.DB: %v", err)
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.PointOfSale{},
		&models.BankAccount{},
		&models.Charge{},
		&models.BusinessPartner{},
		&models.SellerAllocation{},
		&models.ConversionRate{},
		&models.DocumentSequence{},
		&models.Order{},
		&models.OrderLine{},
		&models.Payment{},
		&models.CreditMemo{},
		&models.Allocation{},
		&models.AllocationLine{},
		&models.BankStatement{},
		&models.BankStatementLine{},
	)
}
