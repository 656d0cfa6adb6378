package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string
	DBPath   string

	RedisAddr string
	RedisDB   int

	// Kafka 集群地址（逗号分隔）与两个 topic：关单任务、生命周期事件
	KafkaBrokers    []string
	OrderCloseTopic string
	OrderCloseGroup string
	OrderEventTopic string
	OrderEventGroup string

	// 未支付订单的关闭延迟与调度器轮询间隔
	OrderCloseDelay time.Duration
	SchedulerPoll   time.Duration

	// 下单接口限流
	OrderRateLimit  int
	OrderRateWindow time.Duration

	// 管理接口的简单管理员令牌（demo 级别保护）
	AdminToken string

	// Stripe 退款渠道密钥，为空则不注册该渠道
	StripeAPIKey string
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DBPath:          getEnv("DB_PATH", "go_shop.db"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:         0,
		KafkaBrokers:    splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		OrderCloseTopic: getEnv("ORDER_CLOSE_TOPIC", "go-shop-order-close"),
		OrderCloseGroup: getEnv("ORDER_CLOSE_GROUP", "go-shop-order-close-consumer"),
		OrderEventTopic: getEnv("ORDER_EVENT_TOPIC", "go-shop-order-events"),
		OrderEventGroup: getEnv("ORDER_EVENT_GROUP", "go-shop-order-events-consumer"),
		OrderCloseDelay: 30 * time.Minute,
		SchedulerPoll:   time.Second,
		OrderRateLimit:  100,
		OrderRateWindow: time.Second,
		AdminToken:      getEnv("ADMIN_TOKEN", "dev-admin-token"),
		StripeAPIKey:    getEnv("STRIPE_API_KEY", ""),
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	closeDelaySec, err := getEnvInt("ORDER_CLOSE_DELAY_SEC", int(cfg.OrderCloseDelay.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_CLOSE_DELAY_SEC: %w", err)
	}
	if closeDelaySec <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_CLOSE_DELAY_SEC must be > 0")
	}
	cfg.OrderCloseDelay = time.Duration(closeDelaySec) * time.Second

	pollSec, err := getEnvInt("SCHEDULER_POLL_SEC", int(cfg.SchedulerPoll.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid SCHEDULER_POLL_SEC: %w", err)
	}
	if pollSec <= 0 {
		return AppConfig{}, fmt.Errorf("SCHEDULER_POLL_SEC must be > 0")
	}
	cfg.SchedulerPoll = time.Duration(pollSec) * time.Second

	rateLimit, err := getEnvInt("ORDER_RATE_LIMIT", cfg.OrderRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_RATE_LIMIT must be > 0")
	}
	cfg.OrderRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("ORDER_RATE_WINDOW_SEC", int(cfg.OrderRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_RATE_WINDOW_SEC must be > 0")
	}
	cfg.OrderRateWindow = time.Duration(rateWindowSec) * time.Second

	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.OrderCloseTopic == "" {
		return AppConfig{}, fmt.Errorf("ORDER_CLOSE_TOPIC must not be empty")
	}
	if cfg.OrderCloseGroup == "" {
		return AppConfig{}, fmt.Errorf("ORDER_CLOSE_GROUP must not be empty")
	}
	if cfg.OrderEventTopic == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_TOPIC must not be empty")
	}
	if cfg.OrderEventGroup == "" {
		return AppConfig{}, fmt.Errorf("ORDER_EVENT_GROUP must not be empty")
	}

	return cfg, nil
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
