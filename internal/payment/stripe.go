package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

// StripeProvider 通过 Stripe Refund API 执行退款。
// 退款参考号作为幂等键传给 Stripe，重复调用不会产生第二笔退款。
type StripeProvider struct {
	refunds stripeRefundAPI
}

func NewStripeProvider(apiKey string) (*StripeProvider, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, errors.New("stripe: api key is required")
	}
	sc := client.New(key, nil)
	return &StripeProvider{refunds: sc.Refunds}, nil
}

// Refund 对订单对应的 Payment Intent 发起全额退款。
// Stripe 明确拒绝时把错误码作为 FailureCode 返回，不算调用失败。
func (p *StripeProvider) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentNo),
		// Stripe 以最小货币单位计价
		Amount: stripe.Int64(req.Amount.Mul(decimal.NewFromInt(100)).IntPart()),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.RefundNo)

	ref, err := p.refunds.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return RefundResult{FailureCode: string(stripeErr.Code)}, nil
		}
		return RefundResult{}, fmt.Errorf("stripe: refund: %w", err)
	}
	if ref.Status == stripe.RefundStatusFailed {
		return RefundResult{FailureCode: string(ref.FailureReason)}, nil
	}
	return RefundResult{Succeeded: true}, nil
}
