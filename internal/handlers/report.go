// internal/handlers/report.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/assetops/license-inventory/internal/services"
	"github.com/assetops/license-inventory/internal/utils"
)

type ReportHandler struct {
	reportService *services.ReportService
	auditService  *services.AuditService
}

func NewReportHandler(reportService *services.ReportService, auditService *services.AuditService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		auditService:  auditService,
	}
}

// GET /reports/dashboard
func (h *ReportHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.reportService.GetDashboardStats()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"stats": stats})
}

// GET /audit
func (h *ReportHandler) GetAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	entries, err := h.auditService.ListRecent(limit)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"logs": entries})
}
