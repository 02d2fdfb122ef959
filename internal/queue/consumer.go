package queue

import (
	"context"
	"encoding/json"
	"time"

	"stock_sync/internal/recon"
	rediskey "stock_sync/pkg/redis"

	rd "github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Consumer 消费对账任务并执行编排器。
// Kafka 重投靠 Redis SETNX 认领去重：同一 request_id 只执行一次，
// 避免重复对账把远端记录改两遍。
type Consumer struct {
	r      *kafka.Reader
	rdb    *rd.Client
	orch   *recon.Orchestrator
	logger *logrus.Logger

	claimTTL  time.Duration
	statusTTL time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, rdb *rd.Client, orch *recon.Orchestrator, logger *logrus.Logger, claimTTL, statusTTL time.Duration) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		rdb:       rdb,
		orch:      orch,
		logger:    logger,
		claimTTL:  claimTTL,
		statusTTL: statusTTL,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}

		var msg ReconMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			c.logger.WithError(err).Warn("consumer unmarshal")
			continue
		}
		if err := msg.Validate(); err != nil {
			c.logger.WithField("request_id", msg.RequestID).WithError(err).Warn("consumer drop invalid message")
			continue
		}

		claimed, err := rediskey.ClaimPassOnce(ctx, c.rdb, msg.RequestID, c.claimTTL)
		if err != nil {
			c.logger.WithField("request_id", msg.RequestID).WithError(err).Error("consumer claim")
			continue
		}
		if !claimed {
			// 重复消息：该流水已被执行过，直接当作成功
			continue
		}

		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg ReconMessage) {
	out, err := c.orch.Run(ctx, msg.RequestID, msg.ProductID, recon.ReconRequest{
		DesiredStock: msg.DesiredStock,
		NewPrice:     msg.NewPrice,
	})
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"request_id": msg.RequestID,
			"product_id": msg.ProductID,
		}).WithError(err).Error("consumer run pass")
	}

	// 终态同步到 Redis，供结果查询接口快速读取；写失败只记日志，
	// DB 流水仍是权威结果。
	st := rediskey.PassState{
		RequestID:    msg.RequestID,
		Status:       recon.StatusText(out.Status),
		UpdatedCount: out.UpdatedCount,
		FailedCount:  out.FailedCount,
		Shortfall:    out.Shortfall,
		Reason:       out.ErrorMsg,
	}
	if err := rediskey.PutPassState(ctx, c.rdb, st, c.statusTTL); err != nil {
		c.logger.WithField("request_id", msg.RequestID).WithError(err).Warn("consumer put pass state")
	}
}
