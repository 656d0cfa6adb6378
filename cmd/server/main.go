package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"go_shop/internal/config"
	"go_shop/internal/model"
	"go_shop/internal/order"
	"go_shop/internal/payment"
	"go_shop/internal/queue"
	"go_shop/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	// 1. 连接 SQLite，自动建表
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("db open")
	}
	err = db.AutoMigrate(
		&model.Product{},
		&model.ProductSku{},
		&model.CouponCode{},
		&model.Order{},
		&model.OrderItem{},
		&model.Favorite{},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})

	// 2. Kafka：关单任务与生命周期事件两个 topic
	closeProducer := queue.NewProducer(cfg.KafkaBrokers, cfg.OrderCloseTopic)
	defer closeProducer.Close()
	eventProducer := queue.NewProducer(cfg.KafkaBrokers, cfg.OrderEventTopic)
	defer eventProducer.Close()

	// 3. 退款渠道注册表，启动时装配一次
	refunders := payment.NewRegistry()
	if cfg.StripeAPIKey != "" {
		sp, err := payment.NewStripeProvider(cfg.StripeAPIKey)
		if err != nil {
			log.Fatal().Err(err).Msg("init stripe provider")
		}
		refunders.Register("stripe", sp)
	}

	scheduler := queue.NewScheduler(rdb, closeProducer, cfg.SchedulerPoll)
	events := queue.NewEvents(eventProducer)
	svc := order.NewService(db, refunders, scheduler, events, cfg.OrderCloseDelay)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. 后台任务：关单调度、关单消费、聚合事件消费
	go scheduler.Run(ctx)

	closeConsumer := queue.NewCloseConsumer(cfg.KafkaBrokers, cfg.OrderCloseTopic, cfg.OrderCloseGroup, svc)
	defer closeConsumer.Close()
	go closeConsumer.Run(ctx)

	eventConsumer := queue.NewEventConsumer(cfg.KafkaBrokers, cfg.OrderEventTopic, cfg.OrderEventGroup, svc)
	defer eventConsumer.Close()
	go eventConsumer.Run(ctx)

	r := gin.Default()
	router.Setup(r, db, rdb, svc, cfg)

	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatal().Err(err).Msg("http server")
	}
}
