package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/interfaces/http/middleware"
)

// EngineConfig configures the middleware stack of the import API
type EngineConfig struct {
	Logger         *zap.Logger
	TraceService   string // empty disables request tracing
	AllowOrigins   []string
	TrustedProxies []string
	MaxBodySize    int64
}

// NewEngine builds a gin engine with the middleware stack applied in order:
// tracing, request logging (assigns the request ID), panic recovery, span
// error marking, security headers, CORS and the body size limit.
func NewEngine(cfg EngineConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.Tracing(cfg.TraceService))
	engine.Use(logger.AccessLog(log, "/health", "/api/v1/storefront/health"))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.MarkSpan())
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowOrigins
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}

	return engine
}
