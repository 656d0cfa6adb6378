// Package coupon 管理优惠券：用量计数（redeem/release 条件更新）、可用性
// 预检查与折扣计算。预检查只是提前拦截，配额竞争的最终裁决在 Redeem 的
// 条件更新上。
package coupon

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"go_shop/internal/model"
)

// ErrQuotaExhausted 配额已用尽：Redeem 的条件更新未命中。
var ErrQuotaExhausted = errors.New("coupon quota exhausted")

// UnavailableError 优惠券不可用的业务校验失败，Reason 面向用户。
type UnavailableError struct {
	Reason string
}

func (e *UnavailableError) Error() string { return "coupon unavailable: " + e.Reason }

// Redeem 占用一次用量：单条「used < total 才自增」的条件更新。
// 这是防止超发的唯一强制手段，CheckAvailable 只是提示性预检查。
func Redeem(tx *gorm.DB, couponID uint) error {
	res := tx.Model(&model.CouponCode{}).
		Where("id = ? AND used < total", couponID).
		UpdateColumn("used", gorm.Expr("used + 1"))
	if res.Error != nil {
		return fmt.Errorf("coupon: redeem %d: %w", couponID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrQuotaExhausted
	}
	return nil
}

// Release 归还一次用量，只用于撤销此前成功的 Redeem。
func Release(tx *gorm.DB, couponID uint) error {
	res := tx.Model(&model.CouponCode{}).
		Where("id = ?", couponID).
		UpdateColumn("used", gorm.Expr("used - 1"))
	if res.Error != nil {
		return fmt.Errorf("coupon: release %d: %w", couponID, res.Error)
	}
	return nil
}

// CheckAvailable 校验优惠券对该用户、该订单金额是否可用。
// orderAmount 为 nil 表示金额未知（下单事务开头的第一次检查）。
// 「一人一张生效中」指：存在该用户引用此券的未支付未关闭订单，
// 或已支付但退款未成功的订单。
func CheckAvailable(db *gorm.DB, c *model.CouponCode, userID int64, orderAmount *decimal.Decimal) error {
	if !c.Enabled {
		return &UnavailableError{Reason: "优惠券不存在"}
	}
	if c.Total-c.Used <= 0 {
		return &UnavailableError{Reason: "优惠券已被兑完"}
	}
	now := time.Now()
	if c.NotBefore != nil && c.NotBefore.After(now) {
		return &UnavailableError{Reason: "优惠券现在还不能使用"}
	}
	if c.NotAfter != nil && c.NotAfter.Before(now) {
		return &UnavailableError{Reason: "优惠券已过期"}
	}
	if orderAmount != nil && orderAmount.LessThan(c.MinAmount) {
		return &UnavailableError{Reason: "订单金额未达到优惠券最低金额"}
	}

	var used int64
	err := db.Model(&model.Order{}).
		Where("user_id = ? AND coupon_code_id = ?", userID, c.ID).
		Where("(paid_at IS NULL AND closed = ?) OR (paid_at IS NOT NULL AND refund_status <> ?)",
			false, model.RefundStatusSuccess).
		Count(&used).Error
	if err != nil {
		return fmt.Errorf("coupon: check active use: %w", err)
	}
	if used > 0 {
		return &UnavailableError{Reason: "你已使用过这张优惠券"}
	}
	return nil
}

// AdjustedAmount 计算用券后的订单金额：
//   - fixed：减去面值，下限 0.01
//   - percent：乘 (100 - value)/100，四舍五入保留两位，同样下限 0.01
func AdjustedAmount(c *model.CouponCode, amount decimal.Decimal) decimal.Decimal {
	floor := decimal.New(1, -2) // 0.01
	var out decimal.Decimal
	switch c.Type {
	case model.CouponTypePercent:
		hundred := decimal.NewFromInt(100)
		out = amount.Mul(hundred.Sub(c.Value)).Div(hundred).Round(2)
	default:
		out = amount.Sub(c.Value)
	}
	if out.LessThan(floor) {
		return floor
	}
	return out
}

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateCode 生成指定长度的大写随机券码，与已有券码比对去重。
func GenerateCode(db *gorm.DB, length int) (string, error) {
	for {
		code, err := randomCode(length)
		if err != nil {
			return "", err
		}
		var n int64
		if err := db.Model(&model.CouponCode{}).Where("code = ?", code).Count(&n).Error; err != nil {
			return "", fmt.Errorf("coupon: check code collision: %w", err)
		}
		if n == 0 {
			return code, nil
		}
	}
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(codeCharset)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("coupon: generate code: %w", err)
		}
		buf[i] = codeCharset[idx.Int64()]
	}
	return string(buf), nil
}
