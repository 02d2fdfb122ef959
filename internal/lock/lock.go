// Package lock 提供每商品对账互斥锁。
// 两个对账并发作用于同一商品会交错读写远端记录，产出两边都不想要的总量；
// 编排器在拉快照前必须先拿到该商品的租约锁。
package lock

import (
	"context"
	"errors"
	"time"

	rediskey "stock_sync/pkg/redis"

	"github.com/bsm/redislock"
	rd "github.com/redis/go-redis/v9"
)

// ErrNotObtained 表示锁已被其他对账持有。
var ErrNotObtained = errors.New("recon lock not obtained")

// ProductLocker 抽象锁实现，引擎只依赖接口。
type ProductLocker interface {
	// Acquire 获取 productID 的互斥锁，返回释放函数。
	// 锁被占用时返回 ErrNotObtained，调用方直接失败不排队。
	Acquire(ctx context.Context, productID string) (release func(context.Context), err error)
}

// RedisLocker 基于 redislock 的租约锁：超时自动过期，避免崩溃后死锁。
type RedisLocker struct {
	locker *redislock.Client
	ttl    time.Duration
}

func NewRedisLocker(rdb *rd.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{locker: redislock.New(rdb), ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, productID string) (func(context.Context), error) {
	lk, err := l.locker.Obtain(ctx, rediskey.ReconLockKey(productID), l.ttl, nil)
	if err == redislock.ErrNotObtained {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) {
		_ = lk.Release(ctx)
	}, nil
}

// NoopLocker 供单测与单实例部署不接 Redis 时使用。
type NoopLocker struct{}

func (NoopLocker) Acquire(ctx context.Context, productID string) (func(context.Context), error) {
	return func(context.Context) {}, nil
}
