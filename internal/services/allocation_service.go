// internal/services/allocation_service.go
package services

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/assetops/license-inventory/internal/database"
	"github.com/assetops/license-inventory/internal/models"
	"github.com/assetops/license-inventory/internal/utils"
)

// AllocationService apportions a license's cost across departments. A license
// has at most one active allocation set: each re-allocation replaces the
// previous rows wholesale inside one transaction.
type AllocationService struct {
	db    *gorm.DB
	audit *AuditService
}

type AllocationEntry struct {
	DepartmentID string                  `json:"department_id" validate:"required,max=100"`
	Method       models.AllocationMethod `json:"method" validate:"required"`
	Percent      float64                 `json:"percent" validate:"gt=0,lte=100"`
}

type ReplaceAllocationsRequest struct {
	LicenseID   uuid.UUID         `json:"license_id" validate:"required"`
	PeriodStart time.Time         `json:"period_start" validate:"required"`
	PeriodEnd   time.Time         `json:"period_end" validate:"required"`
	Entries     []AllocationEntry `json:"entries" validate:"required,min=1,dive"`
}

type DepartmentCost struct {
	Department     string  `json:"department"`
	TotalAllocated float64 `json:"total_allocated"`
	Count          int64   `json:"count"`
}

func NewAllocationService(db *gorm.DB, audit *AuditService) *AllocationService {
	return &AllocationService{
		db:    db,
		audit: audit,
	}
}

func (s *AllocationService) ListAllocations() ([]models.CostAllocation, error) {
	var allocations []models.CostAllocation
	if err := s.db.Preload("License").Find(&allocations).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch allocations: %w", err)
	}
	return allocations, nil
}

// ReplaceAllocations validates before any mutation: the percentage split must
// sum to 100 and the period must be well formed.
func (s *AllocationService) ReplaceAllocations(req *ReplaceAllocationsRequest, actor string) ([]models.CostAllocation, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if !req.PeriodEnd.After(req.PeriodStart) {
		return nil, errors.New("period end must be after period start")
	}

	var totalPercent float64
	seen := make(map[string]bool)
	for _, entry := range req.Entries {
		if entry.Method != models.AllocationMethodFixed && entry.Method != models.AllocationMethodUsageBased {
			return nil, fmt.Errorf("invalid allocation method %q", entry.Method)
		}
		if seen[entry.DepartmentID] {
			return nil, fmt.Errorf("duplicate department %q", entry.DepartmentID)
		}
		seen[entry.DepartmentID] = true
		totalPercent += entry.Percent
	}
	if math.Abs(totalPercent-100) > 0.01 {
		return nil, fmt.Errorf("allocation percentages must sum to 100, got %.2f", totalPercent)
	}

	var license models.License
	if err := s.db.First(&license, "id = ?", req.LicenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("license not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	allocations := make([]models.CostAllocation, 0, len(req.Entries))
	for _, entry := range req.Entries {
		allocations = append(allocations, models.CostAllocation{
			LicenseID:       license.ID,
			DepartmentID:    entry.DepartmentID,
			Method:          entry.Method,
			Percent:         entry.Percent,
			AllocatedAmount: math.Round(license.Cost*entry.Percent) / 100,
			Currency:        license.Currency,
			PeriodStart:     req.PeriodStart,
			PeriodEnd:       req.PeriodEnd,
		})
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Where("license_id = ?", license.ID).Delete(&models.CostAllocation{}).Error; err != nil {
			return fmt.Errorf("failed to clear previous allocations: %w", err)
		}
		if err := tx.Create(&allocations).Error; err != nil {
			return fmt.Errorf("failed to insert allocations: %w", err)
		}
		return s.audit.Record(tx, "Allocated", "License", license.ID.String(), actor,
			fmt.Sprintf("Allocated cost of %s across %d departments", license.ProductName, len(allocations)))
	})
	if err != nil {
		return nil, err
	}

	return allocations, nil
}

func (s *AllocationService) CostByDepartment() ([]DepartmentCost, error) {
	var stats []DepartmentCost
	err := s.db.Model(&models.CostAllocation{}).
		Select("department_id AS department, COALESCE(SUM(allocated_amount), 0) AS total_allocated, COUNT(*) AS count").
		Group("department_id").
		Order("total_allocated DESC").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate department costs: %w", err)
	}
	return stats, nil
}
