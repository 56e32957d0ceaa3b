package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/swcstudio/fieldctl/internal/actor"
	"github.com/swcstudio/fieldctl/internal/dispatch"
	"github.com/swcstudio/fieldctl/internal/observability"
)

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.appeared).String(),
			"component": "fieldctl",
			"edge":      s.cfg.EdgeID,
			"version":   "0.1.0",
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"uptime": time.Since(s.appeared).String(),
			"edge":   s.cfg.EdgeID,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.POST("/process", s.handleProcess)
	s.router.GET("/status", s.handleStatus)
	s.router.GET("/analytics", s.handleAnalytics)
	s.router.GET("/queue/status", s.handleQueueStatus)

	s.router.POST("/sessions/:session", s.handleInteraction)
	s.router.GET("/sessions/:session", s.handleQuery)
	s.router.PUT("/sessions/:session", s.handleOverride)
	s.router.DELETE("/sessions/:session", s.handleReset)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	s.router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})
}

// handleProcess runs one distributed processing request through
// admission control.
func (s *Server) handleProcess(c *gin.Context) {
	var req dispatch.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "invalid request body",
			"message":   err.Error(),
			"timestamp": time.Now().UTC(),
		})
		return
	}

	resp := s.dispatcher.Process(c.Request.Context(), req)
	c.JSON(statusCodeFor(resp), resp)
}

func statusCodeFor(resp dispatch.Response) int {
	switch resp.Status {
	case dispatch.StatusQueued:
		return http.StatusAccepted
	case dispatch.StatusTimeout:
		return http.StatusRequestTimeout
	case dispatch.StatusFailed:
		if resp.Error != nil {
			switch resp.Error.Code {
			case dispatch.CodeValidation:
				return http.StatusBadRequest
			case dispatch.CodeUnknownType:
				return http.StatusInternalServerError
			}
		}
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}

// handleStatus serves stored request outcomes by id, or a session's
// live field summary.
func (s *Server) handleStatus(c *gin.Context) {
	if id := strings.TrimSpace(c.Query("id")); id != "" {
		resp, ok, err := s.dispatcher.Result(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown request id"})
			return
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	if session := strings.TrimSpace(c.Query("session")); session != "" {
		a, err := s.registry.Get(c.Request.Context(), session)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		snap := a.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"session_id":         snap.SessionID,
			"field_strength":     snap.FieldStrength,
			"pattern_count":      len(snap.Patterns),
			"temporal_coherence": snap.TemporalCoherence,
			"last_update":        snap.LastUpdate,
		})
		return
	}

	c.JSON(http.StatusBadRequest, gin.H{"error": "id or session query parameter required"})
}

// handleAnalytics serves aggregated request analytics over a timeframe.
func (s *Server) handleAnalytics(c *gin.Context) {
	timeframe, err := parseTimeframe(c.DefaultQuery("timeframe", "1h"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	metric := strings.TrimSpace(c.Query("metric"))

	summary, err := s.analytics.Summarize(c.Request.Context(), time.Now().Add(-timeframe), metric)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"timeframe": timeframe.String(),
		"metric":    metric,
		"summary":   summary,
	})
}

// parseTimeframe accepts Go durations plus a day suffix ("7d").
func parseTimeframe(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil || days <= 0 {
			return 0, errors.New("invalid timeframe")
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, errors.New("invalid timeframe")
	}
	return d, nil
}

// handleQueueStatus reports backlog depth per queue and the admission
// gauge.
func (s *Server) handleQueueStatus(c *gin.Context) {
	depths := s.backlog.Depths()
	for name, depth := range depths {
		observability.SetQueueDepth(name, depth)
	}
	c.JSON(http.StatusOK, gin.H{
		"queues":   depths,
		"load":     s.dispatcher.CurrentLoad(),
		"capacity": s.dispatcher.Capacity(),
	})
}

// handleInteraction runs one interaction envelope on the session actor.
func (s *Server) handleInteraction(c *gin.Context) {
	session := c.Param("session")
	var in actor.Interaction
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "invalid interaction body",
			"message":   err.Error(),
			"timestamp": time.Now().UTC(),
		})
		return
	}

	a, err := s.registry.Get(c.Request.Context(), session)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp, err := a.Interact(c.Request.Context(), in)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, actor.ErrValidation) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"error":     err.Error(),
			"timestamp": time.Now().UTC(),
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleQuery serves read-only session views: full state, pattern
// list, or summary metrics.
func (s *Server) handleQuery(c *gin.Context) {
	a, err := s.registry.Get(c.Request.Context(), c.Param("session"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	switch c.DefaultQuery("query", "state") {
	case "state":
		c.JSON(http.StatusOK, a.Snapshot())
	case "patterns":
		c.JSON(http.StatusOK, gin.H{"patterns": a.Snapshot().Patterns})
	case "metrics":
		c.JSON(http.StatusOK, a.Measure())
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "query must be state, patterns, or metrics"})
	}
}

type overrideBody struct {
	FieldStrength     *float64 `json:"field_strength"`
	TemporalCoherence *float64 `json:"temporal_coherence"`
}

// handleOverride applies a partial direct update to the field state.
func (s *Server) handleOverride(c *gin.Context) {
	var body overrideBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.FieldStrength == nil && body.TemporalCoherence == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "field_strength or temporal_coherence required"})
		return
	}

	a, err := s.registry.Get(c.Request.Context(), c.Param("session"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := a.Override(c.Request.Context(), body.FieldStrength, body.TemporalCoherence); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	snap := a.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"session_id":         snap.SessionID,
		"field_strength":     snap.FieldStrength,
		"temporal_coherence": snap.TemporalCoherence,
	})
}

// handleReset returns the session's field to its initial defaults.
func (s *Server) handleReset(c *gin.Context) {
	a, err := s.registry.Get(c.Request.Context(), c.Param("session"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := a.Reset(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset", "session_id": c.Param("session")})
}
