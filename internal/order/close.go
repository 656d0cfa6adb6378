package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go_shop/internal/coupon"
	"go_shop/internal/model"
	"go_shop/internal/stock"
)

// Close 延迟关单的补偿事务：关闭超时未支付的订单，归还库存与优惠券用量。
//
// 任务至少一次投递，可能重复执行。幂等靠 closed 上的条件更新：
// 只有把 closed 从 false 改成 true 的那次投递才执行归还，其余退化为 no-op。
// 与支付回调竞争同一行时，同一条件更新保证「保留已支付订单」与
// 「关单释放库存」只会发生其一。
func (s *Service) Close(ctx context.Context, orderNo string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o model.Order
		if err := tx.Preload("Items").Where("no = ?", orderNo).First(&o).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("order: load for close %s: %w", orderNo, err)
		}
		if o.PaidAt != nil {
			// 已支付，关单退化为 no-op
			return nil
		}

		res := tx.Model(&model.Order{}).
			Where("id = ? AND closed = ? AND paid_at IS NULL", o.ID, false).
			UpdateColumn("closed", true)
		if res.Error != nil {
			return fmt.Errorf("order: close %s: %w", orderNo, res.Error)
		}
		if res.RowsAffected == 0 {
			// 已被其他投递关闭，或读取后刚好完成了支付
			return nil
		}

		for _, item := range o.Items {
			if err := stock.Release(tx, item.ProductSkuID, item.Amount); err != nil {
				return err
			}
		}
		if o.CouponCodeID != nil {
			if err := coupon.Release(tx, *o.CouponCodeID); err != nil {
				return err
			}
		}
		log.Info().Str("order_no", orderNo).Msg("order closed, reservations released")
		return nil
	})
}
