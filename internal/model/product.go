package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product 商品。展示价 Price 取在售 SKU 的最低价，保存商品时重算。
// Rating / SoldCount / ReviewCount 由事件监听器全量重算，非增量维护。
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Title       string          `gorm:"size:128;not null" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	OnSale      bool            `gorm:"not null;default:true;index" json:"on_sale"`
	Rating      float64         `gorm:"not null;default:5" json:"rating"`
	SoldCount   int64           `gorm:"not null;default:0" json:"sold_count"`
	ReviewCount int64           `gorm:"not null;default:0" json:"review_count"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`

	Skus []ProductSku `json:"skus,omitempty"`
}

func (Product) TableName() string { return "products" }

// ProductSku 商品 SKU：独立价格与库存。
// 不变量 stock >= 0：库存只允许通过 stock 包的条件更新扣减，禁止读改写。
type ProductSku struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ProductID   uint            `gorm:"not null;index" json:"product_id"`
	Title       string          `gorm:"size:128;not null" json:"title"`
	Description string          `gorm:"size:255" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Stock       int64           `gorm:"not null;default:0" json:"stock"`
}

func (ProductSku) TableName() string { return "product_skus" }
