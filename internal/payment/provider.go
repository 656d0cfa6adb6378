// Package payment 按支付方式分发退款请求。
// 适配器在启动时注册完毕；运行期遇到未注册的支付方式视为配置缺陷，
// 不重试、不吞掉。
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrUnknownPaymentMethod 支付方式未注册，属于服务端缺陷而非业务失败。
var ErrUnknownPaymentMethod = errors.New("unknown payment method")

// RefundRequest 渠道退款入参。
type RefundRequest struct {
	// PaymentNo 支付时渠道返回的交易流水号。
	PaymentNo string
	// Amount 退款金额（全额退款，单位元）。
	Amount decimal.Decimal
	// RefundNo 本次退款的参考号，唯一，用于与渠道侧对账。
	RefundNo string
}

// RefundResult 渠道退款结果：成功，或带渠道错误码的失败。
type RefundResult struct {
	Succeeded   bool
	FailureCode string
}

// Provider 支付渠道退款适配器。
// 返回 error 仅表示调用本身失败（网络等）；渠道明确拒绝退款时应当
// 返回 FailureCode 而不是 error。
type Provider interface {
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
}

// Registry 支付方式 -> 适配器 的映射，启动时装配一次。
type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(method string, p Provider) {
	r.providers[method] = p
}

// Get 解析支付方式对应的适配器，未注册返回 ErrUnknownPaymentMethod。
func (r *Registry) Get(method string) (Provider, error) {
	p, ok := r.providers[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, method)
	}
	return p, nil
}
