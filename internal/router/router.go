package router

import (
	"errors"
	"net/http"
	"strconv"

	"stock_sync/internal/config"
	"stock_sync/internal/middleware"
	"stock_sync/internal/model"
	"stock_sync/internal/queue"
	"stock_sync/internal/recon"
	"stock_sync/internal/record"
	rediskey "stock_sync/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// reconReq 是对账触发接口的请求体。
// desired_stock / new_price 至少要有一个；数值无效由引擎本地吸收
// （负库存按 0、无效价格静默 no-op），不在 API 层硬拒。
type reconReq struct {
	ProductID    string   `json:"product_id" binding:"required"`
	DesiredStock *int64   `json:"desired_stock"`
	NewPrice     *float64 `json:"new_price"`
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, db *gorm.DB, rdb *rd.Client, rc record.Client, orch *recon.Orchestrator, cfg config.AppConfig) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})
	// 异步对账：受理落库 → Redis Stream outbox → Relay 转 Kafka → Consumer 执行
	r.POST("/api/reconcile", middleware.RedisRateLimit(rdb, cfg.ReconRateLimit, cfg.ReconRateWindow), submitRecon(db, rdb, rc, cfg))
	r.GET("/api/reconcile/result/:request_id", getResult(db, rdb))
	// 同步对账：管理端直接执行并拿完整结果
	r.POST("/api/reconcile/run", runRecon(orch, cfg.AdminToken))
	// 调试：查看归一化后的 SKU 快照
	r.GET("/api/products/:product_id/skus", getSnapshot(rc, cfg))
}

// submitRecon 受理一次异步对账请求。
// 关键流程：
// 1. 参数校验 + 商品存在性校验
// 2. 写 recon_passes(pending)
// 3. 原子写入 Redis Stream outbox，由 Relay 异步转 Kafka
func submitRecon(db *gorm.DB, rdb *rd.Client, rc record.Client, cfg config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reconReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		if req.DesiredStock == nil && req.NewPrice == nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "desired_stock 和 new_price 至少要有一个"})
			return
		}

		if _, err := rc.GetProduct(c.Request.Context(), req.ProductID); err != nil {
			if errors.Is(err, record.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "商品不存在"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}

		// 生成 request_id 作为整条链路的追踪与幂等主键。
		requestID := uuid.New().String()

		pass := &model.ReconPass{
			RequestID:    requestID,
			ProductID:    req.ProductID,
			DesiredStock: req.DesiredStock,
			Status:       model.ReconPassPending,
		}
		if req.NewPrice != nil {
			s := formatPrice(*req.NewPrice)
			pass.NewPrice = &s
		}
		if err := db.Create(pass).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": "create pass failed: " + err.Error()})
			return
		}

		_ = rediskey.PutPassState(c.Request.Context(), rdb, rediskey.PassState{
			RequestID: requestID,
			Status:    rediskey.PassPending,
		}, cfg.StatusTTL)

		msg := queue.ReconMessage{
			RequestID:    requestID,
			ProductID:    req.ProductID,
			DesiredStock: req.DesiredStock,
			NewPrice:     req.NewPrice,
		}
		if err := queue.AddReconEvent(c.Request.Context(), rdb, cfg.ReconEventStream, msg); err != nil {
			// 入流失败：流水改 failed，避免"已受理却永远 pending"。
			_ = db.Model(&model.ReconPass{}).
				Where("request_id = ?", requestID).
				Updates(map[string]any{
					"status":    model.ReconPassFailed,
					"error_msg": "enqueue_failed",
				}).Error
			_ = rediskey.PutPassState(c.Request.Context(), rdb, rediskey.PassState{
				RequestID: requestID,
				Status:    rediskey.PassFailed,
				Reason:    "enqueue_failed",
			}, cfg.StatusTTL)
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": "enqueue failed: " + err.Error()})
			return
		}

		// 这里不直接返回结果，因为执行是异步的。
		c.JSON(http.StatusOK, gin.H{
			"code": 0,
			"data": gin.H{
				"request_id": requestID,
				"status":     rediskey.PassPending,
			},
		})
	}
}

// getResult 根据 request_id 查询对账流水状态。
// Redis 有缓存终态走快路径，miss 时回源 DB（流水表是权威结果）。
func getResult(db *gorm.DB, rdb *rd.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.Param("request_id")
		if reqID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "request_id 必填"})
			return
		}

		if st, found, err := rediskey.GetPassState(c.Request.Context(), rdb, reqID); err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"code": 0,
				"data": gin.H{
					"request_id":    st.RequestID,
					"status":        st.Status,
					"updated_count": st.UpdatedCount,
					"failed_count":  st.FailedCount,
					"shortfall":     st.Shortfall,
					"reason":        st.Reason,
				},
			})
			return
		}

		var pass model.ReconPass
		err := db.Where("request_id = ?", reqID).First(&pass).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "request_id 不存在"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"code": 0,
			"data": gin.H{
				"request_id":    pass.RequestID,
				"status":        recon.StatusText(pass.Status),
				"updated_count": pass.UpdatedCount,
				"failed_count":  pass.FailedCount,
				"shortfall":     pass.Shortfall,
				"reason":        pass.ErrorMsg,
			},
		})
	}
}

// runRecon 同步执行一次对账并返回完整结果。
// 该接口要求简单管理员 token，避免被任意调用打爆远端记录服务。
func runRecon(orch *recon.Orchestrator, adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Token") != adminToken {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "admin token 无效"})
			return
		}

		var req reconReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		if req.DesiredStock == nil && req.NewPrice == nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "desired_stock 和 new_price 至少要有一个"})
			return
		}

		requestID := uuid.New().String()
		out, err := orch.Run(c.Request.Context(), requestID, req.ProductID, recon.ReconRequest{
			DesiredStock: req.DesiredStock,
			NewPrice:     req.NewPrice,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code": 500,
				"msg":  err.Error(),
				"data": gin.H{"request_id": requestID, "status": recon.StatusText(out.Status)},
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"code": 0,
			"data": gin.H{
				"request_id":    out.RequestID,
				"status":        recon.StatusText(out.Status),
				"updated_count": out.UpdatedCount,
				"failed_count":  out.FailedCount,
				"shortfall":     out.Shortfall,
				"price":         out.Price,
				"stock":         out.Stock,
			},
		})
	}
}

// getSnapshot 返回归一化后的 SKU 快照（调试/核对用）。
func getSnapshot(rc record.Client, cfg config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Token") != cfg.AdminToken {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "admin token 无效"})
			return
		}

		productID := c.Param("product_id")
		skus, err := rc.ListSKUsByProduct(c.Request.Context(), productID, cfg.SKUPageLimit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}

		var total int64
		for _, s := range skus {
			total += s.Stock
		}
		c.JSON(http.StatusOK, gin.H{
			"code": 0,
			"data": gin.H{
				"product_id":  productID,
				"total_stock": total,
				"skus":        skus,
			},
		})
	}
}

// formatPrice 价格以字符串入库，避免浮点误差扩散。
func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
