package queue

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisq "go_shop/pkg/redis"
)

// Scheduler 延迟关单调度器。
// 下单后把 (orderNo, 触发时间) 写入 Redis ZSET；轮询把到期条目转投
// Kafka 关单 topic，发布成功后才从队列移除，失败保留等待下一轮重试。
// 语义为至少一次交付，关单事务自身幂等兜底。
type Scheduler struct {
	rdb      *rd.Client
	producer *Producer
	poll     time.Duration
}

func NewScheduler(rdb *rd.Client, producer *Producer, poll time.Duration) *Scheduler {
	return &Scheduler{rdb: rdb, producer: producer, poll: poll}
}

// ScheduleClose 在 delay 之后触发一次关单任务。
func (s *Scheduler) ScheduleClose(ctx context.Context, orderNo string, delay time.Duration) error {
	return redisq.ScheduleClose(ctx, s.rdb, orderNo, time.Now().Add(delay))
}

// Run 轮询到期任务直到 ctx 取消。
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		due, err := redisq.DueCloses(ctx, s.rdb, time.Now(), 64)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("scheduler: read due closes")
			continue
		}

		for _, orderNo := range due {
			if err := s.dispatch(ctx, orderNo); err != nil {
				// 发布失败不移除，条目留在队列里等下一轮
				log.Error().Err(err).Str("order_no", orderNo).Msg("scheduler: dispatch close")
				break
			}
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, orderNo string) error {
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.producer.Publish(pubCtx, orderNo, CloseMessage{OrderNo: orderNo}); err != nil {
		return err
	}
	return redisq.RemoveClose(ctx, s.rdb, orderNo)
}
