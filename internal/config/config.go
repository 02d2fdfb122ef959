package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string
	DBPath   string

	RedisAddr string
	RedisDB   int

	// Kafka 集群地址（逗号分隔）、Topic、消费者组
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis Stream outbox（API 原子入流，Relay 异步转 Kafka）
	ReconEventStream   string
	ReconEventGroup    string
	ReconEventConsumer string

	// 远端记录服务（Product / SKU CRUD）
	RecordAPIBaseURL   string
	RecordAPIKey       string
	RecordAPIKeyHeader string
	RecordAPITimeout   time.Duration

	// 快照分页上限：必须 ≥ 单个商品的 SKU 数，引擎假定结果完整
	SKUPageLimit int

	// 每商品对账互斥锁租约时长
	LockTTL time.Duration

	// 对账接口限流与状态缓存策略
	ReconRateLimit  int
	ReconRateWindow time.Duration
	StatusTTL       time.Duration

	// 同步执行接口的简单管理员令牌
	AdminToken string
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	// .env 仅本地开发方便，生产环境直接注入环境变量
	_ = godotenv.Load()

	cfg := AppConfig{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DBPath:             getEnv("DB_PATH", "stock_sync.db"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:            0,
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "stock-sync-recon"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "stock-sync-recon-consumer"),
		ReconEventStream:   getEnv("RECON_EVENT_STREAM", "stock_sync:recon_events"),
		ReconEventGroup:    getEnv("RECON_EVENT_GROUP", "stock-sync-relay-group"),
		ReconEventConsumer: getEnv("RECON_EVENT_CONSUMER", "stock-sync-relay-1"),
		RecordAPIBaseURL:   getEnv("RECORD_API_BASE_URL", "http://localhost:9090/api"),
		RecordAPIKey:       getEnv("RECORD_API_KEY", ""),
		RecordAPIKeyHeader: getEnv("RECORD_API_KEY_HEADER", "X-API-Key"),
		RecordAPITimeout:   10 * time.Second,
		SKUPageLimit:       1000,
		LockTTL:            30 * time.Second,
		ReconRateLimit:     100,
		ReconRateWindow:    time.Second,
		StatusTTL:          24 * time.Hour,
		AdminToken:         getEnv("ADMIN_TOKEN", "dev-admin-token"),
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	pageLimit, err := getEnvInt("SKU_PAGE_LIMIT", cfg.SKUPageLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid SKU_PAGE_LIMIT: %w", err)
	}
	if pageLimit <= 0 {
		return AppConfig{}, fmt.Errorf("SKU_PAGE_LIMIT must be > 0")
	}
	cfg.SKUPageLimit = pageLimit

	lockTTLSec, err := getEnvInt("LOCK_TTL_SEC", int(cfg.LockTTL.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid LOCK_TTL_SEC: %w", err)
	}
	if lockTTLSec <= 0 {
		return AppConfig{}, fmt.Errorf("LOCK_TTL_SEC must be > 0")
	}
	cfg.LockTTL = time.Duration(lockTTLSec) * time.Second

	apiTimeoutSec, err := getEnvInt("RECORD_API_TIMEOUT_SEC", int(cfg.RecordAPITimeout.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid RECORD_API_TIMEOUT_SEC: %w", err)
	}
	if apiTimeoutSec <= 0 {
		return AppConfig{}, fmt.Errorf("RECORD_API_TIMEOUT_SEC must be > 0")
	}
	cfg.RecordAPITimeout = time.Duration(apiTimeoutSec) * time.Second

	rateLimit, err := getEnvInt("RECON_RATE_LIMIT", cfg.ReconRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid RECON_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("RECON_RATE_LIMIT must be > 0")
	}
	cfg.ReconRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("RECON_RATE_WINDOW_SEC", int(cfg.ReconRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid RECON_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("RECON_RATE_WINDOW_SEC must be > 0")
	}
	cfg.ReconRateWindow = time.Duration(rateWindowSec) * time.Second

	statusTTLHour, err := getEnvInt("STATUS_TTL_HOUR", int(cfg.StatusTTL.Hours()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid STATUS_TTL_HOUR: %w", err)
	}
	if statusTTLHour <= 0 {
		return AppConfig{}, fmt.Errorf("STATUS_TTL_HOUR must be > 0")
	}
	cfg.StatusTTL = time.Duration(statusTTLHour) * time.Hour

	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.KafkaGroupID == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}
	if cfg.ReconEventStream == "" {
		return AppConfig{}, fmt.Errorf("RECON_EVENT_STREAM must not be empty")
	}
	if cfg.ReconEventGroup == "" {
		return AppConfig{}, fmt.Errorf("RECON_EVENT_GROUP must not be empty")
	}
	if cfg.ReconEventConsumer == "" {
		return AppConfig{}, fmt.Errorf("RECON_EVENT_CONSUMER must not be empty")
	}
	if cfg.RecordAPIBaseURL == "" {
		return AppConfig{}, fmt.Errorf("RECORD_API_BASE_URL must not be empty")
	}
	cfg.RecordAPIBaseURL = strings.TrimRight(cfg.RecordAPIBaseURL, "/")

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
