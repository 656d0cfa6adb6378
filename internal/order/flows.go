package order

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go_shop/internal/model"
)

// MarkPaid 支付回调：记录支付时间、方式与渠道流水号。
// 条件更新裁决与延迟关单的竞争：paid_at 已设置或订单已关闭时不命中。
func (s *Service) MarkPaid(ctx context.Context, orderNo, method, paymentNo string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("no = ? AND paid_at IS NULL AND closed = ?", orderNo, false).
		Updates(map[string]any{
			"paid_at":        now,
			"payment_method": method,
			"payment_no":     paymentNo,
		})
	if res.Error != nil {
		return fmt.Errorf("order: mark paid %s: %w", orderNo, res.Error)
	}
	if res.RowsAffected == 0 {
		return &InvalidStateError{Reason: "订单不存在、已支付或已关闭"}
	}

	if s.events != nil {
		s.events.OrderPaid(ctx, orderNo)
	}
	log.Info().Str("order_no", orderNo).Str("payment_method", method).Msg("order paid")
	return nil
}

// Ship 管理员发货：已支付且待发货的订单记录物流信息并进入 delivered。
func (s *Service) Ship(ctx context.Context, orderNo, expressCompany, expressNo string) (*model.Order, error) {
	o, err := s.Get(ctx, orderNo, 0)
	if err != nil {
		return nil, err
	}
	if o.PaidAt == nil {
		return nil, &InvalidStateError{Reason: "订单未支付"}
	}
	if o.ShipStatus != model.ShipStatusPending {
		return nil, &InvalidStateError{Reason: "订单已发货"}
	}

	o.ShipStatus = model.ShipStatusDelivered
	o.ShipData = model.ShipData{ExpressCompany: expressCompany, ExpressNo: expressNo}
	res := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND ship_status = ?", o.ID, model.ShipStatusPending).
		Select("ship_status", "ship_data").
		Updates(o)
	if res.Error != nil {
		return nil, fmt.Errorf("order: ship %s: %w", orderNo, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &InvalidStateError{Reason: "订单已发货"}
	}
	return o, nil
}

// Received 用户确认收货：delivered -> received。
func (s *Service) Received(ctx context.Context, orderNo string, userID int64) (*model.Order, error) {
	o, err := s.Get(ctx, orderNo, userID)
	if err != nil {
		return nil, err
	}
	if o.ShipStatus != model.ShipStatusDelivered {
		return nil, &InvalidStateError{Reason: "发货状态不正确"}
	}

	res := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND ship_status = ?", o.ID, model.ShipStatusDelivered).
		UpdateColumn("ship_status", model.ShipStatusReceived)
	if res.Error != nil {
		return nil, fmt.Errorf("order: received %s: %w", orderNo, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &InvalidStateError{Reason: "发货状态不正确"}
	}
	o.ShipStatus = model.ShipStatusReceived
	return o, nil
}

// ReviewInput 对单个订单行的评价。
type ReviewInput struct {
	ItemID uint
	Rating int
	Review string
}

// SendReview 提交评价：已支付且未评价的订单，逐行写入评分与内容，
// 整体置 reviewed。提交成功后发布评价事件（fire-and-forget）。
func (s *Service) SendReview(ctx context.Context, orderNo string, userID int64, reviews []ReviewInput) error {
	o, err := s.Get(ctx, orderNo, userID)
	if err != nil {
		return err
	}
	if o.PaidAt == nil {
		return &InvalidStateError{Reason: "未支付订单不能评价"}
	}
	if o.Reviewed {
		return &InvalidStateError{Reason: "订单已评价，不能重复提交"}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for _, r := range reviews {
			if r.Rating < 1 || r.Rating > 5 {
				return &InvalidStateError{Reason: "评分必须在 1-5 之间"}
			}
			res := tx.Model(&model.OrderItem{}).
				Where("id = ? AND order_id = ?", r.ItemID, o.ID).
				Updates(map[string]any{
					"rating":      r.Rating,
					"review":      r.Review,
					"reviewed_at": now,
				})
			if res.Error != nil {
				return fmt.Errorf("order: review item %d: %w", r.ItemID, res.Error)
			}
			if res.RowsAffected == 0 {
				return &InvalidStateError{Reason: fmt.Sprintf("订单行 %d 不存在", r.ItemID)}
			}
		}
		res := tx.Model(&model.Order{}).
			Where("id = ? AND reviewed = ?", o.ID, false).
			UpdateColumn("reviewed", true)
		if res.Error != nil {
			return fmt.Errorf("order: mark reviewed %s: %w", orderNo, res.Error)
		}
		if res.RowsAffected == 0 {
			return &InvalidStateError{Reason: "订单已评价，不能重复提交"}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.events != nil {
		s.events.OrderReviewed(ctx, orderNo)
	}
	log.Info().Str("order_no", orderNo).Msg("order reviewed")
	return nil
}
