package redis

import "fmt"

// CloseQueueKey 延迟关单队列（ZSET，score 为触发时间戳）。
func CloseQueueKey() string {
	return "go_shop:order:close_queue"
}

// UserRateKey 按用户的下单限流键。
func UserRateKey(userID int64) string {
	return fmt.Sprintf("go_shop:rate_limit:order:user:%d", userID)
}

// IPRateKey 按 IP 的下单限流键（user_id 解析失败时降级使用）。
func IPRateKey(ip string) string {
	return fmt.Sprintf("go_shop:rate_limit:order:ip:%s", ip)
}
