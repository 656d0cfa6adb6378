// Package order 实现订单生命周期：下单事务、延迟关单补偿、支付回调、
// 发货/收货/评价流转与退款状态机。
//
// 所有多步变更都在单个数据库事务内提交或回滚；跨请求的安全性完全来自
// stock / coupon 包的条件更新与事务边界，不依赖任何进程内锁。
package order

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"go_shop/internal/coupon"
	"go_shop/internal/model"
	"go_shop/internal/payment"
	"go_shop/internal/stock"
)

// ErrOrderNotFound 订单不存在（或不属于该用户）。
var ErrOrderNotFound = errors.New("order not found")

// InvalidStateError 订单当前状态不允许该操作，属于业务校验失败，
// 调用方修正后可重试。
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string { return "invalid order state: " + e.Reason }

// CloseScheduler 延迟关单调度：delay 之后至少投递一次关单任务。
// 重复投递无害，Close 自身幂等。
type CloseScheduler interface {
	ScheduleClose(ctx context.Context, orderNo string, delay time.Duration) error
}

// EventPublisher 发布订单生命周期事件（fire-and-forget，失败只记日志，
// 不参与一致性保证）。
type EventPublisher interface {
	OrderPaid(ctx context.Context, orderNo string)
	OrderReviewed(ctx context.Context, orderNo string)
}

// Service 订单服务。
type Service struct {
	db         *gorm.DB
	refunders  *payment.Registry
	scheduler  CloseScheduler
	events     EventPublisher
	closeDelay time.Duration
}

func NewService(db *gorm.DB, refunders *payment.Registry, scheduler CloseScheduler, events EventPublisher, closeDelay time.Duration) *Service {
	return &Service{
		db:         db,
		refunders:  refunders,
		scheduler:  scheduler,
		events:     events,
		closeDelay: closeDelay,
	}
}

// LineInput 一条购买请求。
type LineInput struct {
	SkuID  uint
	Amount int
}

// CreateInput 下单入参。
type CreateInput struct {
	UserID     int64
	Address    string
	Remark     string
	Items      []LineInput
	CouponCode string
}

// Create 下单事务。单个事务内完成：
//  1. 优惠券解析与可用性预检查
//  2. 逐行库存预留（条件更新，任一行失败整体回滚）
//  3. 合计金额并套用折扣
//  4. 优惠券用量占用（条件更新，兜住预检查之后配额被抢光的竞争）
//  5. 订单与快照行落库
//
// 提交后在事务外调度延迟关单；调度失败订单已提交、无法回滚，记错误日志。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Order, error) {
	if len(in.Items) == 0 {
		return nil, &InvalidStateError{Reason: "订单至少需要一件商品"}
	}

	o := &model.Order{
		UserID:       in.UserID,
		Address:      in.Address,
		Remark:       in.Remark,
		ShipStatus:   model.ShipStatusPending,
		RefundStatus: model.RefundStatusPending,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cp *model.CouponCode
		if in.CouponCode != "" {
			cp = &model.CouponCode{}
			if err := tx.Where("code = ?", in.CouponCode).First(cp).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &coupon.UnavailableError{Reason: "优惠券不存在"}
				}
				return fmt.Errorf("order: resolve coupon: %w", err)
			}
			// 金额未知，先做一轮不含门槛的预检查
			if err := coupon.CheckAvailable(tx, cp, in.UserID, nil); err != nil {
				return err
			}
		}

		total := decimal.Zero
		items := make([]model.OrderItem, 0, len(in.Items))
		for _, line := range in.Items {
			var sku model.ProductSku
			if err := tx.First(&sku, line.SkuID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &InvalidStateError{Reason: fmt.Sprintf("SKU %d 不存在", line.SkuID)}
				}
				return fmt.Errorf("order: load sku %d: %w", line.SkuID, err)
			}
			if err := stock.Reserve(tx, sku.ID, line.Amount); err != nil {
				return err
			}
			total = total.Add(sku.Price.Mul(decimal.NewFromInt(int64(line.Amount))))
			items = append(items, model.OrderItem{
				ProductID:    sku.ProductID,
				ProductSkuID: sku.ID,
				Amount:       line.Amount,
				Price:        sku.Price,
			})
		}

		if cp != nil {
			if err := coupon.CheckAvailable(tx, cp, in.UserID, &total); err != nil {
				return err
			}
			total = coupon.AdjustedAmount(cp, total)
			if err := coupon.Redeem(tx, cp.ID); err != nil {
				if errors.Is(err, coupon.ErrQuotaExhausted) {
					return &coupon.UnavailableError{Reason: "优惠券已被兑完"}
				}
				return err
			}
			o.CouponCodeID = &cp.ID
		}

		no, err := nextOrderNo(tx)
		if err != nil {
			return err
		}
		o.No = no
		o.TotalAmount = total
		o.Items = items
		if err := tx.Create(o).Error; err != nil {
			return fmt.Errorf("order: create: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.scheduler != nil {
		if err := s.scheduler.ScheduleClose(ctx, o.No, s.closeDelay); err != nil {
			// 订单已提交，调度失败无法回滚，只能记录后人工补偿
			log.Error().Err(err).Str("order_no", o.No).Msg("order: schedule close failed")
		}
	}

	log.Info().Str("order_no", o.No).Int64("user_id", in.UserID).
		Str("total_amount", o.TotalAmount.StringFixed(2)).Msg("order created")
	return o, nil
}

// Get 按订单号加载订单（含行），userID > 0 时校验归属。
func (s *Service) Get(ctx context.Context, orderNo string, userID int64) (*model.Order, error) {
	q := s.db.WithContext(ctx).Preload("Items").Where("no = ?", orderNo)
	if userID > 0 {
		q = q.Where("user_id = ?", userID)
	}
	var o model.Order
	if err := q.First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("order: load %s: %w", orderNo, err)
	}
	return &o, nil
}

// nextOrderNo 生成「日期时间 + 6 位随机数字」订单号，冲突时重试。
func nextOrderNo(tx *gorm.DB) (string, error) {
	for i := 0; i < 10; i++ {
		digits, err := randomDigits(6)
		if err != nil {
			return "", err
		}
		no := time.Now().Format("20060102150405") + digits
		var n int64
		if err := tx.Model(&model.Order{}).Where("no = ?", no).Count(&n).Error; err != nil {
			return "", fmt.Errorf("order: check no collision: %w", err)
		}
		if n == 0 {
			return no, nil
		}
	}
	return "", errors.New("order: no generation exhausted retries")
}

func randomDigits(n int) (string, error) {
	bound := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", fmt.Errorf("order: random digits: %w", err)
	}
	return fmt.Sprintf("%0*d", n, v), nil
}
