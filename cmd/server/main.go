package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"stock_sync/internal/config"
	"stock_sync/internal/journal"
	"stock_sync/internal/lock"
	"stock_sync/internal/queue"
	"stock_sync/internal/recon"
	"stock_sync/internal/record"
	"stock_sync/internal/router"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := config.GetLogger()

	// 1. 连接 SQLite（对账流水 + 补偿日志），自动建表
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := journal.Migrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// 2. Redis：互斥锁、outbox、状态缓存、限流
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 3. 远端记录服务客户端 + 对账引擎
	rc := record.NewHTTPClient(cfg.RecordAPIBaseURL, cfg.RecordAPIKey, cfg.RecordAPIKeyHeader, cfg.RecordAPITimeout)
	engine := recon.NewEngine(rc, cfg.SKUPageLimit, logger)
	locker := lock.NewRedisLocker(rdb, cfg.LockTTL)
	jnl := journal.New(db)
	orch := recon.NewOrchestrator(engine, locker, jnl, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. 异步链路：outbox Relay + Kafka Consumer
	producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()
	relay := queue.NewRelay(rdb, producer, logger, cfg.ReconEventStream, cfg.ReconEventGroup, cfg.ReconEventConsumer)
	go relay.Run(ctx)

	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, rdb, orch, logger, cfg.StatusTTL, cfg.StatusTTL)
	defer consumer.Close()
	go consumer.Run(ctx)

	// 5. HTTP API
	r := gin.Default()
	router.Setup(r, db, rdb, rc, orch, cfg)

	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("http server: %v", err)
	}
}
