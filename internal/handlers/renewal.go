// internal/handlers/renewal.go
package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/assetops/license-inventory/internal/models"
	"github.com/assetops/license-inventory/internal/services"
	"github.com/assetops/license-inventory/internal/utils"
)

type RenewalHandler struct {
	renewalService *services.RenewalService
}

type decideRenewalRequest struct {
	Status models.RenewalStatus `json:"status" binding:"required"`
}

func NewRenewalHandler(renewalService *services.RenewalService) *RenewalHandler {
	return &RenewalHandler{
		renewalService: renewalService,
	}
}

// GET /renewals
func (h *RenewalHandler) GetRenewals(c *gin.Context) {
	renewals, err := h.renewalService.ListRenewals()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"renewals": renewals})
}

// POST /renewals
func (h *RenewalHandler) CreateRenewal(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.CreateRenewalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	// Validate request
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	renewal, err := h.renewalService.CreateRenewal(&req, actor)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{"renewal": renewal})
}

// PUT /renewals/:id/status
func (h *RenewalHandler) DecideRenewal(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid renewal ID", nil)
		return
	}

	var req decideRenewalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	decision, err := h.renewalService.SetRenewalStatus(id, req.Status, actor)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, "Renewal not found")
			return
		}
		if strings.Contains(err.Error(), "already") {
			utils.ConflictResponse(c, err.Error())
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":         fmt.Sprintf("Renewal %s successfully", decision.Renewal.Status),
		"renewal":         decision.Renewal,
		"alerts_resolved": decision.AlertsResolved,
	})
}

// DELETE /renewals/:id
func (h *RenewalHandler) DeleteRenewal(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid renewal ID", nil)
		return
	}

	if err := h.renewalService.DeleteRenewal(id, actor); err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, "Renewal not found")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.NoContentResponse(c)
}
