package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/swcstudio/fieldctl/internal/actor"
	"github.com/swcstudio/fieldctl/internal/analytics"
	"github.com/swcstudio/fieldctl/internal/config"
	"github.com/swcstudio/fieldctl/internal/dispatch"
	"github.com/swcstudio/fieldctl/internal/observability"
	"github.com/swcstudio/fieldctl/internal/queue"
)

// Server wires the dispatcher and session surfaces onto one router.
type Server struct {
	cfg        config.ServiceConfig
	router     *gin.Engine
	dispatcher *dispatch.Dispatcher
	registry   *actor.Registry
	backlog    *queue.Memory
	analytics  *analytics.Store
	appeared   time.Time
}

// New builds the router with recovery, logging, metrics, and CORS
// middleware, then registers every route.
func New(cfg config.ServiceConfig, d *dispatch.Dispatcher, registry *actor.Registry, backlog *queue.Memory, anl *analytics.Store) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error().Any("panic", recovered).Str("path", c.Request.URL.Path).Msg("handler_panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "internal error",
			"message":   "unhandled failure while processing the request",
			"timestamp": time.Now().UTC(),
		})
	}))
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.EdgeID))
	r.Use(cors.New(corsConfig(cfg.CorsOrigins)))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:        cfg,
		router:     r,
		dispatcher: d,
		registry:   registry,
		backlog:    backlog,
		analytics:  anl,
		appeared:   time.Now(),
	}
	s.registerRoutes()
	return s
}

// Router exposes the configured gin engine for the host's http.Server.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}
