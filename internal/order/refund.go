package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go_shop/internal/model"
	"go_shop/internal/payment"
)

// ApplyRefund 用户申请退款：仅已支付且退款状态为 pending 的订单可申请，
// 进入 applied 并记录申请理由。
func (s *Service) ApplyRefund(ctx context.Context, orderNo string, userID int64, reason string) (*model.Order, error) {
	o, err := s.Get(ctx, orderNo, userID)
	if err != nil {
		return nil, err
	}
	if o.PaidAt == nil {
		return nil, &InvalidStateError{Reason: "订单未支付，不可退款"}
	}
	if o.RefundStatus != model.RefundStatusPending {
		return nil, &InvalidStateError{Reason: "已经申请过退款，请勿重复申请"}
	}

	o.RefundStatus = model.RefundStatusApplied
	o.Extra.RefundReason = reason
	res := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND refund_status = ?", o.ID, model.RefundStatusPending).
		Select("refund_status", "extra").
		Updates(o)
	if res.Error != nil {
		return nil, fmt.Errorf("order: apply refund %s: %w", orderNo, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &InvalidStateError{Reason: "已经申请过退款，请勿重复申请"}
	}
	return o, nil
}

// HandleRefund 运营审核退款，仅 applied 状态可审核。
//
// 拒绝：退回 pending，记录拒绝理由，不触达支付渠道。
// 同意：清除上次拒绝理由，生成唯一退款参考号并进入 processing，再按订单
// 支付方式分发到渠道适配器；渠道结果与状态迁移由同一条条件更新落库，
// 不存在「结果已知但未记录」的窗口。支付方式未注册是服务端缺陷，
// 不做任何状态变更直接上抛。
func (s *Service) HandleRefund(ctx context.Context, orderNo string, agree bool, reason string) (*model.Order, error) {
	o, err := s.Get(ctx, orderNo, 0)
	if err != nil {
		return nil, err
	}
	if o.RefundStatus != model.RefundStatusApplied {
		return nil, &InvalidStateError{Reason: "退款状态不正确"}
	}

	if !agree {
		o.RefundStatus = model.RefundStatusPending
		o.Extra.RefundDisagreeReason = reason
		res := s.db.WithContext(ctx).Model(&model.Order{}).
			Where("id = ? AND refund_status = ?", o.ID, model.RefundStatusApplied).
			Select("refund_status", "extra").
			Updates(o)
		if res.Error != nil {
			return nil, fmt.Errorf("order: reject refund %s: %w", orderNo, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, &InvalidStateError{Reason: "退款状态不正确"}
		}
		return o, nil
	}

	// 先解析适配器：未注册的支付方式不应在任何状态变更之后才暴露
	provider, err := s.refunders.Get(o.PaymentMethod)
	if err != nil {
		return nil, err
	}

	refundNo, err := s.nextRefundNo(ctx)
	if err != nil {
		return nil, err
	}

	o.RefundStatus = model.RefundStatusProcessing
	o.RefundNo = &refundNo
	o.Extra.RefundDisagreeReason = ""
	res := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND refund_status = ?", o.ID, model.RefundStatusApplied).
		Select("refund_status", "refund_no", "extra").
		Updates(o)
	if res.Error != nil {
		return nil, fmt.Errorf("order: start refund %s: %w", orderNo, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &InvalidStateError{Reason: "退款状态不正确"}
	}

	result, err := provider.Refund(ctx, payment.RefundRequest{
		PaymentNo: o.PaymentNo,
		Amount:    o.TotalAmount,
		RefundNo:  refundNo,
	})
	if err != nil {
		// 渠道调用本身失败同样按外部失败记为终态，错误码留作诊断
		result = payment.RefundResult{FailureCode: "provider_error: " + err.Error()}
	}

	if result.Succeeded {
		o.RefundStatus = model.RefundStatusSuccess
		res = s.db.WithContext(ctx).Model(&model.Order{}).
			Where("id = ? AND refund_status = ?", o.ID, model.RefundStatusProcessing).
			UpdateColumn("refund_status", model.RefundStatusSuccess)
	} else {
		o.RefundStatus = model.RefundStatusFailed
		o.Extra.RefundFailedCode = result.FailureCode
		res = s.db.WithContext(ctx).Model(&model.Order{}).
			Where("id = ? AND refund_status = ?", o.ID, model.RefundStatusProcessing).
			Select("refund_status", "extra").
			Updates(o)
	}
	if res.Error != nil {
		return nil, fmt.Errorf("order: record refund outcome %s: %w", orderNo, res.Error)
	}
	if res.RowsAffected == 0 {
		// processing 行已被并发改动，结果没有落库，不能对外声称终态
		return nil, &InvalidStateError{Reason: "退款状态不正确"}
	}

	log.Info().Str("order_no", orderNo).Str("refund_no", refundNo).
		Bool("succeeded", result.Succeeded).Str("failure_code", result.FailureCode).
		Msg("refund handled")
	return o, nil
}

// nextRefundNo 生成唯一退款参考号，与已有参考号比对去重。
func (s *Service) nextRefundNo(ctx context.Context) (string, error) {
	for {
		no := strings.ReplaceAll(uuid.New().String(), "-", "")
		var n int64
		err := s.db.WithContext(ctx).Model(&model.Order{}).
			Where("refund_no = ?", no).Count(&n).Error
		if err != nil {
			return "", fmt.Errorf("order: check refund no collision: %w", err)
		}
		if n == 0 {
			return no, nil
		}
	}
}
