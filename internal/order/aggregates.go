package order

import (
	"context"
	"fmt"

	"go_shop/internal/model"
)

// SyncSoldCount 重算订单涉及商品的累计销量：对已支付订单的订单行
// 全量聚合，而不是增量累加。由支付事件监听器触发，最终一致。
func (s *Service) SyncSoldCount(ctx context.Context, orderNo string) error {
	o, err := s.Get(ctx, orderNo, 0)
	if err != nil {
		return err
	}
	db := s.db.WithContext(ctx)
	for _, pid := range distinctProductIDs(o.Items) {
		var sold int64
		err := db.Model(&model.OrderItem{}).
			Joins("JOIN orders ON orders.id = order_items.order_id").
			Where("order_items.product_id = ? AND orders.paid_at IS NOT NULL", pid).
			Select("COALESCE(SUM(order_items.amount), 0)").
			Scan(&sold).Error
		if err != nil {
			return fmt.Errorf("order: aggregate sold count for product %d: %w", pid, err)
		}
		err = db.Model(&model.Product{}).Where("id = ?", pid).
			UpdateColumn("sold_count", sold).Error
		if err != nil {
			return fmt.Errorf("order: update sold count for product %d: %w", pid, err)
		}
	}
	return nil
}

// SyncRating 重算订单涉及商品的评分与评价数：对已评价的订单行全量聚合。
// 由评价事件监听器触发，最终一致。
func (s *Service) SyncRating(ctx context.Context, orderNo string) error {
	o, err := s.Get(ctx, orderNo, 0)
	if err != nil {
		return err
	}
	db := s.db.WithContext(ctx)
	for _, pid := range distinctProductIDs(o.Items) {
		var agg struct {
			Rating float64
			Count  int64
		}
		err := db.Model(&model.OrderItem{}).
			Where("product_id = ? AND reviewed_at IS NOT NULL", pid).
			Select("COALESCE(AVG(rating), 0) AS rating, COUNT(*) AS count").
			Scan(&agg).Error
		if err != nil {
			return fmt.Errorf("order: aggregate rating for product %d: %w", pid, err)
		}
		err = db.Model(&model.Product{}).Where("id = ?", pid).
			UpdateColumns(map[string]any{
				"rating":       agg.Rating,
				"review_count": agg.Count,
			}).Error
		if err != nil {
			return fmt.Errorf("order: update rating for product %d: %w", pid, err)
		}
	}
	return nil
}

func distinctProductIDs(items []model.OrderItem) []uint {
	seen := make(map[uint]struct{}, len(items))
	out := make([]uint, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		out = append(out, item.ProductID)
	}
	return out
}
