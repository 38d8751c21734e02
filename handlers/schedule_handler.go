package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"pipes-runner-server/middleware"
	"pipes-runner-server/models"
	"pipes-runner-server/services"
)

type ScheduleHandler struct {
	service *services.ScheduleService
}

func NewScheduleHandler(service *services.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// Register mounts the schedule routes on router
func (h *ScheduleHandler) Register(router fiber.Router) {
	router.Post("/assets/:key/schedules", h.CreateSchedule)
	router.Get("/assets/:key/schedules", h.ListSchedules)
	router.Delete("/assets/:key/schedules/:scheduleId", h.DeleteSchedule)
}

// CreateSchedule godoc
// @Summary Schedule a materialization
// @Tags schedules
// @Accept json
// @Produce json
// @Param key path string true "Asset key"
// @Param schedule body models.CreateScheduleRequest true "Schedule request"
// @Success 200 {object} models.AssetSchedule
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /assets/{key}/schedules [post]
func (h *ScheduleHandler) CreateSchedule(c *fiber.Ctx) error {
	var req models.CreateScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	sched, err := h.service.CreateSchedule(middleware.GetXRayContext(c), c.Params("key"), &req)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(sched)
}

// ListSchedules godoc
// @Summary List schedules for an asset
// @Tags schedules
// @Produce json
// @Param key path string true "Asset key"
// @Success 200 {array} models.AssetSchedule
// @Failure 404 {object} map[string]string
// @Router /assets/{key}/schedules [get]
func (h *ScheduleHandler) ListSchedules(c *fiber.Ctx) error {
	schedules, err := h.service.ListSchedules(middleware.GetXRayContext(c), c.Params("key"))
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(schedules)
}

// DeleteSchedule godoc
// @Summary Delete an asset schedule
// @Tags schedules
// @Param key path string true "Asset key"
// @Param scheduleId path int true "Schedule ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /assets/{key}/schedules/{scheduleId} [delete]
func (h *ScheduleHandler) DeleteSchedule(c *fiber.Ctx) error {
	scheduleID, err := strconv.ParseInt(c.Params("scheduleId"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid schedule ID"})
	}

	if err := h.service.DeleteSchedule(middleware.GetXRayContext(c), c.Params("key"), scheduleID); err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
