// internal/app/router.go
package app

import (
	"net/http"

	policyHandler "policy-service/internal/handlers/policy"
	wsHandler "policy-service/internal/handlers/websocket"
	"policy-service/web"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	PolicyHandler *policyHandler.PolicyHandler
	WSHandler     *wsHandler.WebSocketHandler
	Gatherer      prometheus.Gatherer
	// Applied to /api only, so probes and scrapes are never throttled
	APIMiddleware []gin.HandlerFunc
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	// ==================== Health & Metrics ====================
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})))

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)
	r.GET("/ws/stats", h.WSHandler.GetStats)

	// ==================== Policies ====================
	api := r.Group("/api")
	api.Use(h.APIMiddleware...)
	{
		api.GET("/policies", h.PolicyHandler.ListPolicies)
		api.POST("/policies", h.PolicyHandler.CreatePolicy)
		api.GET("/policies/:policyNumber", h.PolicyHandler.GetPolicy)
		api.PUT("/policies/:policyNumber/cancel", h.PolicyHandler.CancelPolicy)
	}

	// ==================== UI ====================
	ui := gin.WrapH(http.FileServer(http.FS(web.Static())))
	r.GET("/", ui)
	r.GET("/app.js", ui)
	r.GET("/app.css", ui)
}
