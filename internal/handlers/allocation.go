// internal/handlers/allocation.go
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/assetops/license-inventory/internal/services"
	"github.com/assetops/license-inventory/internal/utils"
)

type AllocationHandler struct {
	allocationService *services.AllocationService
}

func NewAllocationHandler(allocationService *services.AllocationService) *AllocationHandler {
	return &AllocationHandler{
		allocationService: allocationService,
	}
}

// GET /cost-allocations
func (h *AllocationHandler) GetAllocations(c *gin.Context) {
	allocations, err := h.allocationService.ListAllocations()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"allocations": allocations})
}

// PUT /cost-allocations
func (h *AllocationHandler) ReplaceAllocations(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.ReplaceAllocationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	// Validate request
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	allocations, err := h.allocationService.ReplaceAllocations(&req, actor)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			utils.NotFoundResponse(c, "License not found")
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"allocations": allocations})
}

// GET /cost-allocations/by-department
func (h *AllocationHandler) GetCostByDepartment(c *gin.Context) {
	stats, err := h.allocationService.CostByDepartment()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"departments": stats})
}
