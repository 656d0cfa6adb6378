package queue

import "fmt"

// CloseMessage 投递到关单 topic 的任务，key 为订单号。
type CloseMessage struct {
	OrderNo string `json:"order_no"`
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (m CloseMessage) Validate() error {
	if m.OrderNo == "" {
		return fmt.Errorf("order_no is required")
	}
	return nil
}

// 订单生命周期事件类型
const (
	EventOrderPaid     = "order_paid"
	EventOrderReviewed = "order_reviewed"
)

// EventMessage 订单生命周期事件（支付成功 / 评价完成），
// 由监听器消费维护商品聚合数据。
type EventMessage struct {
	Type    string `json:"type"`
	OrderNo string `json:"order_no"`
}

func (m EventMessage) Validate() error {
	if m.OrderNo == "" {
		return fmt.Errorf("order_no is required")
	}
	switch m.Type {
	case EventOrderPaid, EventOrderReviewed:
		return nil
	default:
		return fmt.Errorf("unknown event type %q", m.Type)
	}
}
