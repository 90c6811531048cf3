package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product carries the catalog fields the engine snapshots plus the stock
// ledger columns. Stock columns are only ever changed through conditional
// updates in the inventory package.
type Product struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Title          string          `gorm:"column:title;not null"`
	ImageRef       string          `gorm:"column:image_ref;not null;default:''"`
	Price          decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	StockQty       int             `gorm:"column:stock_qty;not null;default:0;check:chk_products_stock_qty,stock_qty >= 0"`
	TrackInventory bool            `gorm:"column:track_inventory;not null"`
	SoldCount      int             `gorm:"column:sold_count;not null;default:0"`
	IsActive       bool            `gorm:"column:is_active;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
