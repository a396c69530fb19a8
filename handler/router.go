package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/chaos-io/rmbg/middleware"
	"github.com/chaos-io/rmbg/web"
)

type RouterConfig struct {
	RateLimit float64
	Burst     int
}

// NewRouter 注册全部路由，限流只作用于抠图接口
func NewRouter(h *RemoveHandler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	r.GET("/", web.Index)
	r.GET("/health", h.Health)
	r.GET("/results/:id", h.GetResult)
	r.POST("/remove_background", middleware.RateLimit(cfg.RateLimit, cfg.Burst), h.RemoveBackground)

	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	return r
}
