// internal/services/renewal_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/assetops/license-inventory/internal/database"
	"github.com/assetops/license-inventory/internal/models"
	"github.com/assetops/license-inventory/internal/utils"
)

// RenewalService drives the one-way renewal decision. Approval extends the
// target license and resolves its open expiry alerts through the shared
// resolution primitive; rejection only records the decision.
type RenewalService struct {
	db         *gorm.DB
	audit      *AuditService
	compliance *ComplianceService
}

type CreateRenewalRequest struct {
	LicenseID    uuid.UUID `json:"license_id" validate:"required"`
	SoftwareName string    `json:"software_name" validate:"required,max=200"`
	DueDate      time.Time `json:"due_date"`
	QuoteDetails string    `json:"quote_details,omitempty"`
	Cost         float64   `json:"cost" validate:"gte=0"`
}

type RenewalDecision struct {
	Renewal        *models.Renewal `json:"renewal"`
	AlertsResolved int64           `json:"alerts_resolved"`
}

func NewRenewalService(db *gorm.DB, audit *AuditService, compliance *ComplianceService) *RenewalService {
	return &RenewalService{
		db:         db,
		audit:      audit,
		compliance: compliance,
	}
}

func (s *RenewalService) CreateRenewal(req *CreateRenewalRequest, actor string) (*models.Renewal, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	renewal := &models.Renewal{
		LicenseID:    req.LicenseID,
		SoftwareName: req.SoftwareName,
		Status:       models.RenewalStatusPending,
		DueDate:      req.DueDate,
		QuoteDetails: req.QuoteDetails,
		Cost:         req.Cost,
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(renewal).Error; err != nil {
			return fmt.Errorf("failed to create renewal: %w", err)
		}
		return s.audit.Record(tx, "Created", "Renewal", renewal.ID.String(), actor,
			fmt.Sprintf("Requested renewal for %s", renewal.SoftwareName))
	})
	if err != nil {
		return nil, err
	}

	return renewal, nil
}

func (s *RenewalService) ListRenewals() ([]models.Renewal, error) {
	var renewals []models.Renewal
	if err := s.db.Order("due_date DESC").Find(&renewals).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch renewals: %w", err)
	}
	return renewals, nil
}

// SetRenewalStatus records the decision. Repeating an identical decision is a
// no-op; flipping a decided renewal is rejected. When the target license has
// vanished the status change and audit entry still land, with no license
// mutation.
func (s *RenewalService) SetRenewalStatus(id uuid.UUID, status models.RenewalStatus, actor string) (*RenewalDecision, error) {
	if status != models.RenewalStatusApproved && status != models.RenewalStatusRejected {
		return nil, errors.New("invalid renewal status")
	}

	var renewal models.Renewal
	if err := s.db.First(&renewal, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("renewal not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if renewal.Status == status {
		return &RenewalDecision{Renewal: &renewal}, nil
	}
	if renewal.Status.Terminal() {
		return nil, fmt.Errorf("renewal already %s", renewal.Status)
	}

	var resolved int64
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		renewal.Status = status
		if err := tx.Save(&renewal).Error; err != nil {
			return fmt.Errorf("failed to update renewal status: %w", err)
		}

		if status == models.RenewalStatusApproved {
			var license models.License
			err := tx.First(&license, "id = ?", renewal.LicenseID).Error
			switch {
			case err == nil:
				ExtendExpiry(&license, time.Now().UTC())
				if err := tx.Model(&models.License{}).
					Where("id = ?", license.ID).
					Update("expiry_date", license.ExpiryDate).Error; err != nil {
					return fmt.Errorf("failed to extend expiry: %w", err)
				}

				resolved, err = s.compliance.ResolveExpiryAlerts(tx, license.ID, actor, "Resolved via Finance Approval")
				if err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				// The decision still stands even when the license is gone.
				logrus.WithFields(logrus.Fields{
					"renewal_id": renewal.ID,
					"license_id": renewal.LicenseID,
				}).Warn("Approved renewal references a missing license")
			default:
				return fmt.Errorf("database error: %w", err)
			}
		}

		action := "Rejected"
		if status == models.RenewalStatusApproved {
			action = "Approved"
		}
		return s.audit.Record(tx, action, "Renewal", id.String(), actor,
			fmt.Sprintf("Renewal %s for %s", status, renewal.SoftwareName))
	})
	if err != nil {
		return nil, err
	}

	return &RenewalDecision{Renewal: &renewal, AlertsResolved: resolved}, nil
}

func (s *RenewalService) DeleteRenewal(id uuid.UUID, actor string) error {
	var renewal models.Renewal
	if err := s.db.First(&renewal, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("renewal not found")
		}
		return fmt.Errorf("database error: %w", err)
	}

	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Delete(&renewal).Error; err != nil {
			return fmt.Errorf("failed to delete renewal: %w", err)
		}
		return s.audit.Record(tx, "Deleted", "Renewal", id.String(), actor,
			fmt.Sprintf("Deleted renewal for %s", renewal.SoftwareName))
	})
}
