package handlers

import (
	"deepscout/internal/models"
	"deepscout/internal/services"
	"deepscout/pkg/settings"

	"github.com/gofiber/fiber/v2"
)

// ConfigHandler exposes the server's static configuration to clients
type ConfigHandler struct {
	catalog *services.CatalogService
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(catalog *services.CatalogService) *ConfigHandler {
	return &ConfigHandler{catalog: catalog}
}

// Get returns the pre-registered MCP catalog and the settings value ranges
// clients use to build their forms
// GET /api/config
func (h *ConfigHandler) Get(c *fiber.Ctx) error {
	servers := h.catalog.Servers()
	if servers == nil {
		servers = []models.CatalogServer{}
	}

	return c.JSON(fiber.Map{
		"pre_registered_servers": servers,
		"report_styles":          settings.ReportStyles,
		"limits": fiber.Map{
			"max_plan_iterations": fiber.Map{"min": settings.MinPlanIterations, "max": settings.MaxPlanIterations},
			"max_step_num":        fiber.Map{"min": settings.MinStepNum, "max": settings.MaxStepNum},
			"max_search_results":  fiber.Map{"min": settings.MinSearchResults, "max": settings.MaxSearchResults},
		},
	})
}
