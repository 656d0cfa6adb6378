package redis

import (
	"context"
	"strconv"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// ScheduleClose 把订单写入延迟关单队列，score 为触发时间。
// 同一订单重复调度只会刷新触发时间；消费端幂等，重复投递无害。
func ScheduleClose(ctx context.Context, rdb *rd.Client, orderNo string, fireAt time.Time) error {
	return rdb.ZAdd(ctx, CloseQueueKey(), rd.Z{
		Score:  float64(fireAt.Unix()),
		Member: orderNo,
	}).Err()
}

// DueCloses 读取已到期的订单号。只读不删：投递成功后再 RemoveClose，
// 投递失败的条目留在队列里等下一轮（至少一次交付）。
// 只返回 score <= now 的条目，任务绝不会早于延迟触发。
func DueCloses(ctx context.Context, rdb *rd.Client, now time.Time, limit int64) ([]string, error) {
	return rdb.ZRangeByScore(ctx, CloseQueueKey(), &rd.ZRangeBy{
		Min:   "0",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: limit,
	}).Result()
}

// RemoveClose 从延迟队列移除已投递的订单。
func RemoveClose(ctx context.Context, rdb *rd.Client, orderNo string) error {
	return rdb.ZRem(ctx, CloseQueueKey(), orderNo).Err()
}
