// Package diagnostics exposes the engine's HTTP status/metrics surface.
// Grounded on health_check.go's SimpleHealthCheck (a bare net/http JSON
// handler), generalized to gin-gonic/gin + gin-contrib/cors the way a
// complete service in this corpus would (gin is in the teacher's own
// go.mod), and a /metrics endpoint for the Prometheus registry.
package diagnostics

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusProvider supplies the periodic human status block spec.md §7 calls
// for: open position count, effective bankroll, portfolio health.
type StatusProvider interface {
	Status() map[string]any
}

// Server wraps a gin engine serving /healthz, /status, and /metrics.
type Server struct {
	engine *gin.Engine
	addr   string
}

// New builds the diagnostics HTTP server. status may be nil before the
// control loop finishes wiring; /status then reports "not ready".
func New(addr string, status StatusProvider) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	r.GET("/status", func(c *gin.Context) {
		if status == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, status.Status())
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{engine: r, addr: addr}
}

// ListenAndServe blocks serving the diagnostics surface.
func (s *Server) ListenAndServe() error {
	return s.engine.Run(s.addr)
}
