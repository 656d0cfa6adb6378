package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Events 把订单生命周期事件发到 Kafka。事件不参与一致性保证，
// 发布失败只记日志（fire-and-forget）。
type Events struct {
	producer *Producer
}

func NewEvents(producer *Producer) *Events {
	return &Events{producer: producer}
}

func (e *Events) OrderPaid(ctx context.Context, orderNo string) {
	e.publish(ctx, EventMessage{Type: EventOrderPaid, OrderNo: orderNo})
}

func (e *Events) OrderReviewed(ctx context.Context, orderNo string) {
	e.publish(ctx, EventMessage{Type: EventOrderReviewed, OrderNo: orderNo})
}

func (e *Events) publish(ctx context.Context, msg EventMessage) {
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := e.producer.Publish(pubCtx, msg.OrderNo, msg); err != nil {
		log.Error().Err(err).Str("order_no", msg.OrderNo).Str("type", msg.Type).
			Msg("events: publish")
	}
}
