package queue

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"go_shop/internal/order"
)

// CloseConsumer 消费关单任务并执行补偿事务。
// 任务可能重复投递，幂等由 order.Service.Close 保证。
type CloseConsumer struct {
	r   *kafka.Reader
	svc *order.Service
}

func NewCloseConsumer(brokers []string, topic, groupID string, svc *order.Service) *CloseConsumer {
	return &CloseConsumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		svc: svc,
	}
}

func (c *CloseConsumer) Close() error { return c.r.Close() }

func (c *CloseConsumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}

		var msg CloseMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			log.Error().Err(err).Msg("close consumer: unmarshal")
			continue
		}
		if err := msg.Validate(); err != nil {
			log.Error().Err(err).Msg("close consumer: invalid message")
			continue
		}

		if err := c.svc.Close(ctx, msg.OrderNo); err != nil {
			if errors.Is(err, order.ErrOrderNotFound) {
				// 脏消息，丢弃
				log.Warn().Str("order_no", msg.OrderNo).Msg("close consumer: order not found")
				continue
			}
			log.Error().Err(err).Str("order_no", msg.OrderNo).Msg("close consumer: close order")
		}
	}
}

// EventConsumer 消费订单生命周期事件，维护商品的销量与评分聚合。
// 全量重算，重复消费只是多算一遍同样的结果。
type EventConsumer struct {
	r   *kafka.Reader
	svc *order.Service
}

func NewEventConsumer(brokers []string, topic, groupID string, svc *order.Service) *EventConsumer {
	return &EventConsumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		svc: svc,
	}
}

func (c *EventConsumer) Close() error { return c.r.Close() }

func (c *EventConsumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return
		}

		var msg EventMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			log.Error().Err(err).Msg("event consumer: unmarshal")
			continue
		}
		if err := msg.Validate(); err != nil {
			log.Error().Err(err).Msg("event consumer: invalid message")
			continue
		}

		switch msg.Type {
		case EventOrderPaid:
			err = c.svc.SyncSoldCount(ctx, msg.OrderNo)
		case EventOrderReviewed:
			err = c.svc.SyncRating(ctx, msg.OrderNo)
		}
		if err != nil {
			log.Error().Err(err).Str("order_no", msg.OrderNo).Str("type", msg.Type).
				Msg("event consumer: sync aggregates")
		}
	}
}
