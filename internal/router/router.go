package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mliell/crowdmint/internal/config"
	"github.com/mliell/crowdmint/internal/handler"
	"github.com/mliell/crowdmint/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker 由 chain.Manager 实现
type HealthChecker interface {
	GetHealthStatus(ctx context.Context) map[string]interface{}
}

func Setup(campaignLogic handler.CampaignService, chainHealth HealthChecker, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(requestLogger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(NewRateLimiter(cfg.RateLimit).Middleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":  "ok",
			"service": "crowdmint",
		}
		if chainHealth != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			body["chain"] = chainHealth.GetHealthStatus(ctx)
		}
		c.JSON(http.StatusOK, body)
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	campaignHandler := handler.NewCampaignHandler(campaignLogic)

	// 前端使用的缓存接口
	r.GET("/api/campaigns", campaignHandler.GetCampaigns)

	// API版本组
	v1 := r.Group("/api/v1")
	{
		campaigns := v1.Group("/campaigns")
		{
			campaigns.GET("", campaignHandler.GetCampaigns)
			campaigns.GET("/featured", campaignHandler.GetFeaturedCampaigns)
			campaigns.GET("/:address", campaignHandler.GetCampaign)
		}
		v1.GET("/creators/:address/campaigns", campaignHandler.GetCreatorCampaigns)
		v1.GET("/donors/:address/donations", campaignHandler.GetDonorDonations)
		v1.GET("/cache/status", campaignHandler.GetCacheStatus)
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// requestLogger 请求日志
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("%s %s %d %s %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Round(time.Microsecond), c.ClientIP())
	}
}
