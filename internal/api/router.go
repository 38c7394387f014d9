package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"solarwatt-bridge/config"
	"solarwatt-bridge/internal/mw"
)

// NewRouter creates and configures the gin router. metricsHandler serves
// /metrics and may be nil to disable the endpoint.
func NewRouter(handler *Handler, cfg config.ServerConfig, metricsHandler http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	r.GET("/healthz", handler.Healthz)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	api := r.Group("/api")
	api.Use(mw.RateLimit(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst))
	{
		api.GET("/items", caching, handler.GetItems)
		api.GET("/items/:name", caching, handler.GetItem)
		api.GET("/things", caching, handler.GetThings)
		api.GET("/status", handler.GetStatus)
	}

	return r
}
