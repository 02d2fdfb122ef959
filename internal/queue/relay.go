package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	rd "github.com/redis/go-redis/v9"
)

// Relay 将 Redis Stream outbox 里的对账任务异步转发到 Kafka。
// 语义：发布 Kafka 成功后才 ACK Stream，失败则保留消息等待重试。
type Relay struct {
	rdb      *rd.Client
	producer *Producer
	logger   *logrus.Logger

	stream   string
	group    string
	consumer string
}

func NewRelay(rdb *rd.Client, producer *Producer, logger *logrus.Logger, stream, group, consumer string) *Relay {
	return &Relay{
		rdb:      rdb,
		producer: producer,
		logger:   logger,
		stream:   stream,
		group:    group,
		consumer: consumer,
	}
}

func (r *Relay) Run(ctx context.Context) {
	if err := r.ensureGroup(ctx); err != nil {
		r.logger.WithError(err).Error("relay ensure group")
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		// 先尝试处理当前消费者历史 pending，避免遗留消息长期堆积。
		msgs, err := r.readGroup(ctx, "0", 0)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			r.logger.WithError(err).Warn("relay read pending")
			time.Sleep(300 * time.Millisecond)
			continue
		}
		if len(msgs) == 0 {
			msgs, err = r.readGroup(ctx, ">", 2*time.Second)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				r.logger.WithError(err).Warn("relay read new")
				time.Sleep(300 * time.Millisecond)
				continue
			}
		}

		for _, xm := range msgs {
			if err := r.processOne(ctx, xm); err != nil {
				// 发布失败不 ACK，消息会继续保留用于重试。
				r.logger.WithField("stream_id", xm.ID).WithError(err).Warn("relay process message")
				time.Sleep(200 * time.Millisecond)
				break
			}
		}
	}
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (r *Relay) readGroup(ctx context.Context, streamID string, block time.Duration) ([]rd.XMessage, error) {
	streams, err := r.rdb.XReadGroup(ctx, &rd.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, streamID},
		Count:    16,
		Block:    block,
		NoAck:    false,
	}).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]rd.XMessage, 0, 16)
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (r *Relay) processOne(ctx context.Context, xm rd.XMessage) error {
	msg, err := parseReconEvent(xm.Values)
	if err != nil {
		// 脏消息直接 ACK 丢弃，避免阻塞队列。
		if ackErr := r.ackAndDelete(ctx, xm.ID); ackErr != nil {
			return fmt.Errorf("parse failed: %v, ack failed: %w", err, ackErr)
		}
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.producer.Publish(pubCtx, msg); err != nil {
		return err
	}
	return r.ackAndDelete(ctx, xm.ID)
}

func (r *Relay) ackAndDelete(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.XAck(ctx, r.stream, r.group, id)
	pipe.XDel(ctx, r.stream, id)
	_, err := pipe.Exec(ctx)
	return err
}

// AddReconEvent 把对账任务原子写入 Stream outbox（API 侧调用）。
func AddReconEvent(ctx context.Context, rdb *rd.Client, stream string, msg ReconMessage) error {
	values := map[string]any{
		"request_id": msg.RequestID,
		"product_id": msg.ProductID,
	}
	if msg.DesiredStock != nil {
		values["desired_stock"] = strconv.FormatInt(*msg.DesiredStock, 10)
	}
	if msg.NewPrice != nil {
		values["new_price"] = strconv.FormatFloat(*msg.NewPrice, 'f', -1, 64)
	}
	return rdb.XAdd(ctx, &rd.XAddArgs{Stream: stream, Values: values}).Err()
}

func parseReconEvent(values map[string]interface{}) (ReconMessage, error) {
	requestID, err := getStreamString(values, "request_id")
	if err != nil {
		return ReconMessage{}, err
	}
	productID, err := getStreamString(values, "product_id")
	if err != nil {
		return ReconMessage{}, err
	}

	msg := ReconMessage{RequestID: requestID, ProductID: productID}

	if _, ok := values["desired_stock"]; ok {
		stockStr, err := getStreamString(values, "desired_stock")
		if err != nil {
			return ReconMessage{}, err
		}
		stock, err := strconv.ParseInt(stockStr, 10, 64)
		if err != nil {
			return ReconMessage{}, fmt.Errorf("invalid desired_stock %q", stockStr)
		}
		msg.DesiredStock = &stock
	}
	if _, ok := values["new_price"]; ok {
		priceStr, err := getStreamString(values, "new_price")
		if err != nil {
			return ReconMessage{}, err
		}
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			return ReconMessage{}, fmt.Errorf("invalid new_price %q", priceStr)
		}
		msg.NewPrice = &price
	}

	if err := msg.Validate(); err != nil {
		return ReconMessage{}, err
	}
	return msg, nil
}

func getStreamString(values map[string]interface{}, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatInt(int64(x), 10), nil
	default:
		return "", fmt.Errorf("unsupported field type %s: %T", key, v)
	}
}
