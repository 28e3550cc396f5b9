// internal/handlers/device.go
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/assetops/license-inventory/internal/services"
	"github.com/assetops/license-inventory/internal/utils"
)

type DeviceHandler struct {
	deviceService *services.DeviceService
}

func NewDeviceHandler(deviceService *services.DeviceService) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
	}
}

// GET /devices
func (h *DeviceHandler) GetDevices(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	devices, total, err := h.deviceService.ListDevices(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(devices, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /devices/:id
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid device ID", nil)
		return
	}

	device, err := h.deviceService.GetDevice(id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, "Device not found")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"device": device})
}

// POST /devices
func (h *DeviceHandler) OnboardDevice(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.OnboardDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	// Validate request
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	device, err := h.deviceService.OnboardDevice(&req, actor)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{"device": device})
}

// PUT /devices/:id
func (h *DeviceHandler) UpdateDevice(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid device ID", nil)
		return
	}

	var req services.UpdateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	device, err := h.deviceService.UpdateDevice(id, &req, actor)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, "Device not found")
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"device": device})
}

// DELETE /devices/:id
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid device ID", nil)
		return
	}

	if err := h.deviceService.DeleteDevice(id, actor); err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, "Device not found")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.NoContentResponse(c)
}

// POST /devices/install
func (h *DeviceHandler) AddInstallation(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.AddInstallationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	// Validate request
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	installation, err := h.deviceService.AddInstallation(&req, actor)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, "Device not found")
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{"installation": installation})
}

// PUT /devices/install/:installationId
func (h *DeviceHandler) UpdateInstallation(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("installationId"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid installation ID", nil)
		return
	}

	var req services.UpdateInstallationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	installation, err := h.deviceService.UpdateInstallation(id, &req, actor)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, "Installation not found")
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"installation": installation})
}

// DELETE /devices/install/:installationId
func (h *DeviceHandler) RemoveInstallation(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("installationId"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid installation ID", nil)
		return
	}

	if err := h.deviceService.RemoveInstallation(id, actor); err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, "Installation not found")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.NoContentResponse(c)
}
