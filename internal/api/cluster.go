package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jaredcannon/clusterview/internal/models"
	"github.com/jaredcannon/clusterview/internal/services"
)

// ClusterHandler handles cluster view HTTP requests
type ClusterHandler struct {
	monitor      *services.ClusterMonitorService
	configLoader *services.ClusterConfigLoader
	credService  *services.CredentialService
	endpoint     string
}

// NewClusterHandler creates a new cluster handler. configLoader and
// credService may be nil, in which case their routes report not configured.
func NewClusterHandler(monitor *services.ClusterMonitorService, configLoader *services.ClusterConfigLoader, credService *services.CredentialService, endpoint string) *ClusterHandler {
	return &ClusterHandler{
		monitor:      monitor,
		configLoader: configLoader,
		credService:  credService,
		endpoint:     endpoint,
	}
}

// HistoryQuery is the query string of GET /cluster/history
type HistoryQuery struct {
	Hours int `query:"hours" validate:"min=1,max=168"`
}

// errNoView is returned before the first poll has published
var errNoView = models.NewAPIError(
	models.ErrCodeUpstreamUnavailable,
	"Cluster view is not available yet",
	nil,
)

func noView(c *fiber.Ctx) error {
	return HandleError(c, fiber.StatusServiceUnavailable, errNoView, "")
}

// GetNodes handles GET /api/v1/cluster/nodes
func (h *ClusterHandler) GetNodes(c *fiber.Ctx) error {
	view := h.monitor.GetView()
	if view == nil {
		return noView(c)
	}
	return c.JSON(view)
}

// GetNode handles GET /api/v1/cluster/nodes/:ip
func (h *ClusterHandler) GetNode(c *fiber.Ctx) error {
	ip := c.Params("ip")
	if err := validate.Var(ip, "required,ip"); err != nil {
		return HandleError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid node address", []string{"ip"}), "")
	}

	node, err := h.monitor.GetNode(ip)
	if err != nil {
		return HandleError(c, fiber.StatusNotFound, err, "Node not found")
	}
	return c.JSON(node)
}

// GetSummary handles GET /api/v1/cluster/summary
func (h *ClusterHandler) GetSummary(c *fiber.Ctx) error {
	view := h.monitor.GetView()
	if view == nil {
		return noView(c)
	}
	return c.JSON(fiber.Map{
		"summary":      view.Summary,
		"generated_at": view.GeneratedAt,
	})
}

// GetActors handles GET /api/v1/cluster/actors
func (h *ClusterHandler) GetActors(c *fiber.Ctx) error {
	view := h.monitor.GetView()
	if view == nil {
		return noView(c)
	}
	return c.JSON(fiber.Map{
		"actors":       view.Actors,
		"generated_at": view.GeneratedAt,
	})
}

// GetStatus handles GET /api/v1/cluster/status
func (h *ClusterHandler) GetStatus(c *fiber.Ctx) error {
	return c.JSON(h.monitor.GetStatus())
}

// Refresh handles POST /api/v1/cluster/refresh
func (h *ClusterHandler) Refresh(c *fiber.Ctx) error {
	view, err := h.monitor.Refresh(c.UserContext())
	if err != nil {
		return HandleError(c, fiber.StatusBadGateway, err, "Failed to refresh cluster view")
	}
	return c.JSON(view)
}

// GetHistory handles GET /api/v1/cluster/history?hours=N (default 24)
func (h *ClusterHandler) GetHistory(c *fiber.Ctx) error {
	query := HistoryQuery{Hours: 24}
	if err := c.QueryParser(&query); err != nil {
		return HandleError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid query parameters", []string{"hours"}), "")
	}
	if err := ValidateRequest(&query); err != nil {
		return HandleError(c, fiber.StatusBadRequest, err, "")
	}

	since := time.Now().Add(-time.Duration(query.Hours) * time.Hour)
	samples, err := h.monitor.GetHistory(since)
	if err != nil {
		var apiErr *models.APIError
		if errors.As(err, &apiErr) && apiErr.Code == models.ErrCodeNotConfigured {
			return HandleError(c, fiber.StatusNotFound, err, "")
		}
		return HandleError(c, fiber.StatusInternalServerError, err, "Failed to get cluster history")
	}

	return c.JSON(fiber.Map{
		"hours":   query.Hours,
		"samples": samples,
	})
}

// GetConfig handles GET /api/v1/cluster/config
func (h *ClusterHandler) GetConfig(c *fiber.Ctx) error {
	if h.configLoader == nil {
		return HandleError(c, fiber.StatusNotFound, models.NewNotConfiguredError("Cluster config"), "")
	}

	cfg, err := h.configLoader.Load()
	if err != nil {
		if errors.Is(err, services.ErrClusterConfigMissing) {
			return HandleError(c, fiber.StatusNotFound, models.NewNotConfiguredError("Cluster config"), "")
		}
		var apiErr *models.APIError
		if errors.As(err, &apiErr) {
			return HandleError(c, fiber.StatusUnprocessableEntity, err, "")
		}
		return HandleError(c, fiber.StatusInternalServerError, err, "Failed to read cluster config")
	}
	return c.JSON(cfg)
}

// PutCredentials handles PUT /api/v1/cluster/credentials
func (h *ClusterHandler) PutCredentials(c *fiber.Ctx) error {
	if h.credService == nil {
		return HandleError(c, fiber.StatusServiceUnavailable, models.NewNotConfiguredError("Credential storage"), "")
	}

	var req services.EndpointCredentials
	if err := c.BodyParser(&req); err != nil {
		return HandleError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body", nil), "")
	}
	if err := ValidateRequest(&req); err != nil {
		return HandleError(c, fiber.StatusBadRequest, err, "")
	}

	if req.Type == services.CredentialTypeNone {
		if err := h.credService.DeleteCredentials(h.endpoint); err != nil {
			return HandleError(c, fiber.StatusInternalServerError, err, "Failed to clear credentials")
		}
	} else if err := h.credService.StoreCredentials(h.endpoint, &req); err != nil {
		return HandleError(c, fiber.StatusInternalServerError, err, "Failed to store credentials")
	}

	return c.JSON(fiber.Map{
		"endpoint": h.endpoint,
		"type":     req.Type,
	})
}

// RegisterRoutes registers all cluster routes on router behind the given
// group middleware
func (h *ClusterHandler) RegisterRoutes(router fiber.Router, middleware ...fiber.Handler) {
	cluster := router.Group("/cluster", middleware...)

	cluster.Get("/nodes", h.GetNodes)
	cluster.Get("/nodes/:ip", h.GetNode)
	cluster.Get("/summary", h.GetSummary)
	cluster.Get("/actors", h.GetActors)
	cluster.Get("/status", h.GetStatus)
	cluster.Post("/refresh", h.Refresh)
	cluster.Get("/history", h.GetHistory)
	cluster.Get("/config", h.GetConfig)
	cluster.Put("/credentials", h.PutCredentials)
}
