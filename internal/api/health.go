package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jaredcannon/clusterview/internal/services"
	ws "github.com/jaredcannon/clusterview/internal/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is reported by the health endpoint
const Version = "0.1.0"

// HealthHandler reports service liveness
type HealthHandler struct {
	monitor *services.ClusterMonitorService
	hub     *ws.Hub
}

// NewHealthHandler creates a new health handler; hub may be nil
func NewHealthHandler(monitor *services.ClusterMonitorService, hub *ws.Hub) *HealthHandler {
	return &HealthHandler{monitor: monitor, hub: hub}
}

// GetHealth handles GET /api/v1/health
func (h *HealthHandler) GetHealth(c *fiber.Ctx) error {
	status := h.monitor.GetStatus()

	clients := 0
	if h.hub != nil {
		clients = h.hub.ClientCount()
	}

	return c.JSON(fiber.Map{
		"status":            "ok",
		"service":           "clusterview",
		"version":           Version,
		"monitor_running":   status.Running,
		"monitor_healthy":   status.Healthy,
		"monitor_message":   status.HealthMessage,
		"websocket_clients": clients,
	})
}

// RegisterRoutes registers the health route
func (h *HealthHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/health", h.GetHealth)
}

// RegisterMetricsRoute exposes the default prometheus registry at /metrics
func RegisterMetricsRoute(app *fiber.App) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}
