package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 优惠券类型
const (
	CouponTypeFixed   = "fixed"   // 固定金额
	CouponTypePercent = "percent" // 按比例
)

// CouponCode 优惠券。
// 不变量 0 <= used <= total：用量只允许通过 coupon 包的条件更新变更。
type CouponCode struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name      string          `gorm:"size:128;not null" json:"name"`
	Code      string          `gorm:"size:32;uniqueIndex;not null" json:"code"`
	Type      string          `gorm:"size:16;not null" json:"type"`
	Value     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"value"`
	Total     int64           `gorm:"not null" json:"total"`
	Used      int64           `gorm:"not null;default:0" json:"used"`
	MinAmount decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"min_amount"`
	NotBefore *time.Time      `json:"not_before"`
	NotAfter  *time.Time      `json:"not_after"`
	Enabled   bool            `gorm:"not null;default:false" json:"enabled"`
}

func (CouponCode) TableName() string { return "coupon_codes" }

// Description 给前端展示的优惠说明，如「满100 减10」「满100 优惠10%」。
func (c *CouponCode) Description() string {
	var b strings.Builder
	if c.MinAmount.IsPositive() {
		b.WriteString("满" + trimZero(c.MinAmount) + " ")
	}
	if c.Type == CouponTypePercent {
		b.WriteString("优惠" + trimZero(c.Value) + "%")
	} else {
		b.WriteString("减" + trimZero(c.Value))
	}
	return b.String()
}

func trimZero(d decimal.Decimal) string {
	return strings.TrimSuffix(d.StringFixed(2), ".00")
}
