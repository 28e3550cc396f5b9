// internal/handlers/license.go
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/assetops/license-inventory/internal/services"
	"github.com/assetops/license-inventory/internal/utils"
)

type LicenseHandler struct {
	licenseService *services.LicenseService
}

func NewLicenseHandler(licenseService *services.LicenseService) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
	}
}

// GET /licenses
func (h *LicenseHandler) GetLicenses(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	licenses, total, err := h.licenseService.ListLicenses(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(licenses, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /licenses/:id
func (h *LicenseHandler) GetLicense(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid license ID", nil)
		return
	}

	license, err := h.licenseService.GetLicense(id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, "License not found")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"license": license})
}

// POST /licenses
func (h *LicenseHandler) CreateLicense(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.CreateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	// Validate request
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	license, err := h.licenseService.CreateLicense(&req, actor)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{"license": license})
}

// PUT /licenses/:id
func (h *LicenseHandler) UpdateLicense(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid license ID", nil)
		return
	}

	var req services.UpdateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	license, err := h.licenseService.UpdateLicense(id, &req, actor)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, "License not found")
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"license": license})
}

// POST /licenses/:id/renew
func (h *LicenseHandler) RenewLicense(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid license ID", nil)
		return
	}

	result, err := h.licenseService.RenewLicense(id, actor)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, "License not found")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":         "Renewed",
		"new_expiry_date": result.License.ExpiryDate,
		"alerts_resolved": result.AlertsResolved,
	})
}

// DELETE /licenses/:id
func (h *LicenseHandler) DeleteLicense(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid license ID", nil)
		return
	}

	if err := h.licenseService.DeleteLicense(id, actor); err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, "License not found")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.NoContentResponse(c)
}

// POST /licenses/import
func (h *LicenseHandler) ImportLicenses(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "No file uploaded", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		utils.BadRequestResponse(c, "Unable to read uploaded file", nil)
		return
	}
	defer file.Close()

	result, err := h.licenseService.ImportCSV(file, actor)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Import complete",
		"result":  result,
	})
}
