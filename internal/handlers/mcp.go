package handlers

import (
	"log"

	"deepscout/internal/services"
	"deepscout/pkg/settings"

	"github.com/gofiber/fiber/v2"
)

// MCPHandler probes external MCP servers for their tool lists
type MCPHandler struct {
	service *services.MCPService
}

// NewMCPHandler creates a new MCP handler
func NewMCPHandler(service *services.MCPService) *MCPHandler {
	return &MCPHandler{service: service}
}

// ServerMetadata connects to a described MCP server and returns its tools
// POST /api/mcp/server/metadata
func (h *MCPHandler) ServerMetadata(c *fiber.Ctx) error {
	var req services.MCPProbeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Transport != settings.TransportStdio && req.Transport != settings.TransportStreamableHTTP {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Transport must be stdio or streamable_http",
		})
	}

	resp, err := h.service.Probe(c.Context(), &req)
	if err != nil {
		log.Printf("❌ MCP probe failed for %s: %v", req.Name, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	log.Printf("🔍 MCP probe succeeded: %s (%d tools)", resp.Name, len(resp.Tools))
	return c.JSON(resp)
}
