package handlers

import (
	"encoding/json"
	"log"

	"deepscout/internal/services"
	"deepscout/pkg/settings"

	"github.com/gofiber/fiber/v2"
)

// SettingsHandler serves the per-account settings document
type SettingsHandler struct {
	service *services.SettingsService
	catalog *services.CatalogService
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(service *services.SettingsService, catalog *services.CatalogService) *SettingsHandler {
	return &SettingsHandler{service: service, catalog: catalog}
}

// settingsEnvelope wraps the document on the wire
type settingsEnvelope struct {
	Settings json.RawMessage `json:"settings"`
}

// Get returns the account's settings document, creating defaults on first read
// GET /api/settings
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	doc, err := h.service.Get(c.Context(), userID)
	if err != nil {
		log.Printf("❌ Failed to load settings for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load settings",
		})
	}

	return c.JSON(fiber.Map{"settings": doc})
}

// Update stores a full settings document for the account. The body is the
// document itself; a {"settings": ...} wrapper is also accepted.
// POST /api/settings
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	payload := c.Body()
	var envelope settingsEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Request body must be a JSON settings object",
		})
	}
	if len(envelope.Settings) > 0 {
		payload = envelope.Settings
	}

	doc, err := h.service.Upsert(c.Context(), userID, payload)
	if err != nil {
		log.Printf("❌ Failed to store settings for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store settings",
		})
	}

	return c.JSON(fiber.Map{"settings": doc})
}

// Reset replaces the account's document with factory defaults
// POST /api/settings/reset
func (h *SettingsHandler) Reset(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	doc, err := h.service.Reset(c.Context(), userID)
	if err != nil {
		log.Printf("❌ Failed to reset settings for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reset settings",
		})
	}

	log.Printf("🔄 Settings reset for user %s", userID)
	return c.JSON(fiber.Map{"settings": doc})
}

// ChatConfig projects the active flow into the shape the chat pipeline
// consumes
// GET /api/settings/chat-config
func (h *SettingsHandler) ChatConfig(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	doc, err := h.service.Get(c.Context(), userID)
	if err != nil {
		log.Printf("❌ Failed to load settings for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load settings",
		})
	}

	cfg := settings.BuildChatConfig(doc)
	if h.catalog != nil {
		var catalog []settings.MCPServer
		for _, srv := range h.catalog.Servers() {
			catalog = append(catalog, settings.MCPServer{
				Name:      srv.Name,
				Transport: srv.Transport,
				Command:   srv.Command,
				Args:      srv.Args,
				URL:       srv.URL,
				Env:       srv.Env,
				Tools:     srv.Tools,
			})
		}
		settings.MergePreRegistered(&cfg, doc, catalog)
	}
	return c.JSON(cfg)
}
