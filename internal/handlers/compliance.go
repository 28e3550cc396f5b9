// internal/handlers/compliance.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/assetops/license-inventory/internal/services"
	"github.com/assetops/license-inventory/internal/utils"
)

type ComplianceHandler struct {
	complianceService *services.ComplianceService
	exportService     *services.ExportService
}

func NewComplianceHandler(complianceService *services.ComplianceService, exportService *services.ExportService) *ComplianceHandler {
	return &ComplianceHandler{
		complianceService: complianceService,
		exportService:     exportService,
	}
}

// POST /compliance/run-check
func (h *ComplianceHandler) RunComplianceCheck(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	result, err := h.complianceService.RunComplianceCheck(actor)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Compliance check completed successfully",
		"result":  result,
	})
}

// GET /compliance/alerts
func (h *ComplianceHandler) GetAlerts(c *gin.Context) {
	var licenseID *uuid.UUID
	if raw := c.Query("license_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid license ID", nil)
			return
		}
		licenseID = &id
	}

	alerts, err := h.complianceService.ListOpenAlerts(licenseID)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"alerts": alerts})
}

// POST /compliance/export
func (h *ComplianceHandler) ExportAlerts(c *gin.Context) {
	result, err := h.exportService.ExportOpenAlerts()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"export": result})
}
