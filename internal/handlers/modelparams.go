package handlers

import (
	"errors"
	"log"

	"deepscout/internal/models"
	"deepscout/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ModelParamsHandler serves per-model generation parameters
type ModelParamsHandler struct {
	service *services.ModelParamsService
}

// NewModelParamsHandler creates a new model parameters handler
func NewModelParamsHandler(service *services.ModelParamsService) *ModelParamsHandler {
	return &ModelParamsHandler{service: service}
}

// List returns every model the account has configured
// GET /api/model-parameters
func (h *ModelParamsHandler) List(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	params, err := h.service.ListForAccount(c.Context(), userID)
	if err != nil {
		log.Printf("❌ Failed to list model parameters for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list model parameters",
		})
	}
	if params == nil {
		params = []*models.ModelParameters{}
	}

	return c.JSON(fiber.Map{"model_parameters": params})
}

// Get returns the account's parameters for one model
// GET /api/model-parameters/:model_id
func (h *ModelParamsHandler) Get(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	modelID := c.Params("model_id")

	params, err := h.service.GetForModel(c.Context(), userID, modelID)
	if errors.Is(err, services.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No parameters configured for this model",
		})
	}
	if err != nil {
		log.Printf("❌ Failed to load model parameters for %s/%s: %v", userID, modelID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load model parameters",
		})
	}

	return c.JSON(params)
}

// Update creates or partially updates parameters for one model. Registered
// under both PUT and POST; older clients use POST.
// PUT|POST /api/model-parameters/:model_id
func (h *ModelParamsHandler) Update(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	modelID := c.Params("model_id")
	if modelID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Model id is required",
		})
	}

	var req models.UpdateModelParametersRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	params, err := h.service.Upsert(c.Context(), userID, modelID, &req)
	if err != nil {
		log.Printf("❌ Failed to store model parameters for %s/%s: %v", userID, modelID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store model parameters",
		})
	}

	return c.JSON(params)
}

// Delete removes the account's parameters for one model
// DELETE /api/model-parameters/:model_id
func (h *ModelParamsHandler) Delete(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	modelID := c.Params("model_id")

	err := h.service.Delete(c.Context(), userID, modelID)
	if errors.Is(err, services.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No parameters configured for this model",
		})
	}
	if err != nil {
		log.Printf("❌ Failed to delete model parameters for %s/%s: %v", userID, modelID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete model parameters",
		})
	}

	return c.JSON(fiber.Map{"deleted": modelID})
}
