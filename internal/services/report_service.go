// internal/services/report_service.go
package services

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/assetops/license-inventory/internal/models"
)

type ReportService struct {
	db *gorm.DB
}

type DashboardStats struct {
	TotalLicenses     int64        `json:"total_licenses"`
	TotalDevices      int64        `json:"total_devices"`
	TotalInstalls     int64        `json:"total_installs"`
	TotalSpend        float64      `json:"total_spend"`
	ActiveAlerts      int64        `json:"active_alerts"`
	PendingRenewals   int64        `json:"pending_renewals"`
	TopVendorsBySpend []VendorCost `json:"top_vendors_by_spend"`
}

type VendorCost struct {
	Vendor    string  `json:"vendor"`
	Count     int64   `json:"count"`
	TotalCost float64 `json:"total_cost"`
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

func (s *ReportService) GetDashboardStats() (*DashboardStats, error) {
	stats := &DashboardStats{}

	s.db.Model(&models.License{}).Count(&stats.TotalLicenses)
	s.db.Model(&models.Device{}).Count(&stats.TotalDevices)
	s.db.Model(&models.SoftwareInstallation{}).Count(&stats.TotalInstalls)
	s.db.Model(&models.ComplianceEvent{}).Where("is_resolved = ?", false).Count(&stats.ActiveAlerts)
	s.db.Model(&models.Renewal{}).Where("status = ?", models.RenewalStatusPending).Count(&stats.PendingRenewals)

	s.db.Model(&models.License{}).
		Select("COALESCE(SUM(cost), 0)").Scan(&stats.TotalSpend)

	err := s.db.Model(&models.License{}).
		Select("vendor, COUNT(*) AS count, COALESCE(SUM(cost), 0) AS total_cost").
		Group("vendor").
		Order("total_cost DESC").
		Limit(5).
		Scan(&stats.TopVendorsBySpend).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate vendor spend: %w", err)
	}

	return stats, nil
}
