package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nortonjulian/chatforia-signal/internal/auth"
	"github.com/nortonjulian/chatforia-signal/internal/config"
	"github.com/nortonjulian/chatforia-signal/internal/core"
	"github.com/nortonjulian/chatforia-signal/internal/sealer"
	"github.com/nortonjulian/chatforia-signal/internal/store"
)

// Deps are the services the HTTP layer exposes.
type Deps struct {
	Hub    core.Hub
	Calls  store.CallStore
	Sealer *sealer.Service
	JWT    *auth.JWTConfig
}

// NewServer builds the HTTP server with health, metrics, WebSocket and REST routes.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(deps, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler mounts /ws on a plain mux in front of the gin router; gin's
// response writer rejects a hijack once the 101 response is written.
func NewHandler(deps Deps, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(deps.Hub, deps.JWT, WSOptions{
		MaxMessageBytes:    cfg.MaxMessageBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ValidateSDP:        cfg.Calls.ValidateSDP,
	}, logger))
	mux.Handle("/", NewRouter(deps, logger))
	return mux
}

// NewRouter wires the gin engine for health, metrics and the REST API.
func NewRouter(deps Deps, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api", AuthMiddleware(deps.JWT, logger))

	calls := NewCallsHandlers(deps.Calls, logger)
	api.GET("/calls/active", calls.ListActiveCalls)
	api.GET("/calls/:id", calls.GetCall)

	if deps.Sealer != nil {
		keys := NewKeysHandlers(deps.Sealer, logger)
		api.POST("/keys/seal", keys.Seal)
	}

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
