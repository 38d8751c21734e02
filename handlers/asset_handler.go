package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"pipes-runner-server/middleware"
	"pipes-runner-server/models"
	"pipes-runner-server/services"
)

type AssetHandler struct {
	service *services.AssetService
}

func NewAssetHandler(svc *services.AssetService) *AssetHandler {
	return &AssetHandler{service: svc}
}

// Register mounts the asset routes on router
func (h *AssetHandler) Register(router fiber.Router) {
	router.Get("/assets", h.ListAssets)
	router.Get("/assets/:key", h.GetAsset)
	router.Post("/assets/:key/materialize", h.MaterializeAsset)
	router.Get("/assets/:key/invocations", h.ListInvocations)
	router.Get("/assets/:key/invocations/:invocationId", h.GetInvocationResult)
	router.Get("/assets/:key/invocations/:invocationId/stderr", h.GetInvocationStderr)
	router.Get("/assets/:key/invocations/:invocationId/messages", h.GetInvocationMessages)
}

// ListAssets godoc
// @Summary List all assets
// @Description Get every asset defined in the assets file
// @Tags assets
// @Produce json
// @Success 200 {array} models.AssetListItem
// @Router /assets [get]
func (h *AssetHandler) ListAssets(c *fiber.Ctx) error {
	return c.JSON(h.service.ListAssets())
}

// GetAsset godoc
// @Summary Get asset details
// @Description Get the definition of a specific asset
// @Tags assets
// @Produce json
// @Param key path string true "Asset key"
// @Success 200 {object} models.AssetDefinition
// @Failure 404 {object} map[string]string
// @Router /assets/{key} [get]
func (h *AssetHandler) GetAsset(c *fiber.Ctx) error {
	def, err := h.service.GetAsset(c.Params("key"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(def)
}

// MaterializeAsset godoc
// @Summary Materialize an asset
// @Description Queue a run of the asset's worker and return the pending invocation
// @Tags assets
// @Accept json
// @Produce json
// @Param key path string true "Asset key"
// @Param input body models.MaterializeRequest false "Partition, job name and extras"
// @Success 202 {object} models.MaterializeResponse
// @Failure 404 {object} map[string]string
// @Router /assets/{key}/materialize [post]
func (h *AssetHandler) MaterializeAsset(c *fiber.Ctx) error {
	var req models.MaterializeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	// Get client IP for invoked_by
	invokedBy := c.IP()
	if invokedBy == "" {
		invokedBy = "anonymous"
	}

	key := c.Params("key")
	inv, err := h.service.MaterializeAsset(middleware.GetXRayContext(c), key, &req, invokedBy)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(models.MaterializeResponse{
		Status:       inv.Status,
		AssetKey:     inv.AssetKey,
		InvocationID: inv.ID,
		RunID:        inv.RunID,
		LoggedAt:     inv.InvokedAt,
	})
}

// GetInvocationResult godoc
// @Summary Get invocation result
// @Description Poll for the outcome of an asset invocation
// @Tags assets
// @Produce json
// @Param key path string true "Asset key"
// @Param invocationId path int true "Invocation ID"
// @Success 200 {object} models.MaterializeResponse
// @Failure 404 {object} map[string]string
// @Router /assets/{key}/invocations/{invocationId} [get]
func (h *AssetHandler) GetInvocationResult(c *fiber.Ctx) error {
	invocationId, err := strconv.ParseInt(c.Params("invocationId"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid invocation ID",
		})
	}

	inv, err := h.service.GetInvocationResult(middleware.GetXRayContext(c), c.Params("key"), invocationId)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	response := models.MaterializeResponse{
		Status:       inv.Status,
		AssetKey:     inv.AssetKey,
		InvocationID: inv.ID,
		RunID:        inv.RunID,
		ExitCode:     inv.ExitCode,
		DurationMs:   inv.DurationMs,
		StderrKey:    inv.StderrKey,
		MessagesKey:  inv.MessagesKey,
		LoggedAt:     inv.InvokedAt,
	}

	if inv.Status == models.StatusSuccess {
		response.Metadata = inv.Metadata
	} else if inv.Status == models.StatusFail || inv.Status == models.StatusTimeout {
		response.ErrorKind = inv.ErrorKind
		response.ErrorMessage = inv.ErrorMessage
	}

	return c.JSON(response)
}

// GetInvocationStderr godoc
// @Summary Get invocation stderr
// @Description Download the captured stderr tail of an invocation
// @Tags assets
// @Produce plain
// @Param key path string true "Asset key"
// @Param invocationId path int true "Invocation ID"
// @Success 200 {string} string
// @Failure 404 {object} map[string]string
// @Router /assets/{key}/invocations/{invocationId}/stderr [get]
func (h *AssetHandler) GetInvocationStderr(c *fiber.Ctx) error {
	return h.sendArtifact(c, services.ArtifactStderr, fiber.MIMETextPlainCharsetUTF8)
}

// GetInvocationMessages godoc
// @Summary Get invocation messages
// @Description Download the raw report messages of an invocation, one JSON object per line
// @Tags assets
// @Produce json
// @Param key path string true "Asset key"
// @Param invocationId path int true "Invocation ID"
// @Success 200 {string} string
// @Failure 404 {object} map[string]string
// @Router /assets/{key}/invocations/{invocationId}/messages [get]
func (h *AssetHandler) GetInvocationMessages(c *fiber.Ctx) error {
	return h.sendArtifact(c, services.ArtifactMessages, "application/x-ndjson")
}

func (h *AssetHandler) sendArtifact(c *fiber.Ctx, name, contentType string) error {
	invocationId, err := strconv.ParseInt(c.Params("invocationId"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid invocation ID",
		})
	}

	data, err := h.service.GetInvocationArtifact(middleware.GetXRayContext(c), c.Params("key"), invocationId, name)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(data)
}

// ListInvocations godoc
// @Summary List asset invocations
// @Description Get execution history for an asset
// @Tags assets
// @Produce json
// @Param key path string true "Asset key"
// @Param limit query int false "Number of results to return" default(20)
// @Success 200 {array} models.InvocationListItem
// @Failure 404 {object} map[string]string
// @Router /assets/{key}/invocations [get]
func (h *AssetHandler) ListInvocations(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)

	invocations, err := h.service.ListInvocations(middleware.GetXRayContext(c), c.Params("key"), limit)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if invocations == nil {
		invocations = []models.InvocationListItem{}
	}

	return c.JSON(invocations)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrAssetNotFound),
		errors.Is(err, services.ErrInvocationNotFound),
		errors.Is(err, services.ErrScheduleNotFound),
		errors.Is(err, services.ErrArtifactNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidSchedule):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}
