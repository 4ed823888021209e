package models

import (
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrInvalidTargetPrice = errors.New("target price must be greater than zero")

type User struct {
	gorm.Model
	Username string `gorm:"unique"`
	IsActive bool   `gorm:"not null"`

	Products []Product
	Alerts   []PriceAlert
}

type Product struct {
	gorm.Model
	UserID       uint   `gorm:"index:idx_user_active"`
	URL          string `gorm:"not null"`
	Name         string `gorm:"not null"`
	CurrentPrice sql.NullFloat64
	LastChecked  sql.NullTime
	IsActive     bool `gorm:"index:idx_user_active;not null"`

	History []PriceHistory `gorm:"constraint:OnDelete:CASCADE"`
	Alerts  []PriceAlert   `gorm:"constraint:OnDelete:CASCADE"`
}

type Products []Product

// NewProduct returns an active product. IsActive has no column default, so a literal
// Product{} is stored inactive.
func NewProduct(userID uint, url, name string) *Product {
	return &Product{UserID: userID, URL: url, Name: name, IsActive: true}
}

// PriceHistory is append-only; rows are only ever removed by the retention purge.
type PriceHistory struct {
	ID        uint      `gorm:"primaryKey"`
	ProductID uint      `gorm:"index;not null"`
	Price     float64   `gorm:"not null"`
	Timestamp time.Time `gorm:"index;not null"`
}

type PriceAlert struct {
	gorm.Model
	UserID      uint    `gorm:"index"`
	ProductID   uint    `gorm:"index:idx_product_active"`
	TargetPrice float64 `gorm:"not null"`
	IsActive    bool    `gorm:"index:idx_product_active;not null"`
	TriggeredAt sql.NullTime
}

type PriceAlerts []PriceAlert

func NewPriceAlert(userID, productID uint, target float64) *PriceAlert {
	return &PriceAlert{UserID: userID, ProductID: productID, TargetPrice: target, IsActive: true}
}

func (a *PriceAlert) BeforeCreate(tx *gorm.DB) error {
	if a.TargetPrice <= 0 {
		return ErrInvalidTargetPrice
	}
	return nil
}

// Entities lists every table, parents first, for AutoMigrate.
func Entities() []any {
	return []any{
		&User{},
		&Product{},
		&PriceHistory{},
		&PriceAlert{},
	}
}
