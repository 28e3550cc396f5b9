// internal/services/compliance_service.go
package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/assetops/license-inventory/internal/database"
	"github.com/assetops/license-inventory/internal/models"
)

// ComplianceService recomputes usage counts and regenerates the open-alert
// set for every license in one pass. Unresolved alerts are fully replaced on
// each run; resolved alerts are historical and untouched.
type ComplianceService struct {
	db    *gorm.DB
	audit *AuditService
}

type ComplianceRunResult struct {
	LicensesChecked int `json:"licenses_checked"`
	AlertsGenerated int `json:"alerts_generated"`
}

func NewComplianceService(db *gorm.DB, audit *AuditService) *ComplianceService {
	return &ComplianceService{
		db:    db,
		audit: audit,
	}
}

func (s *ComplianceService) RunComplianceCheck(actor string) (*ComplianceRunResult, error) {
	var licenses []models.License
	if err := s.db.Find(&licenses).Error; err != nil {
		return nil, fmt.Errorf("failed to load licenses: %w", err)
	}

	var installations []models.SoftwareInstallation
	if err := s.db.Find(&installations).Error; err != nil {
		return nil, fmt.Errorf("failed to load installations: %w", err)
	}

	// All alerts from one run share the run's start time.
	now := time.Now().UTC()

	var alerts []models.ComplianceEvent
	for i := range licenses {
		license := &licenses[i]
		license.AssignedLicenses = countMatches(license, installations)
		alerts = append(alerts, EvaluateLicense(license, now)...)
	}

	// Counts, the unresolved-alert replacement, and the audit entry apply as
	// one unit. A storage failure rolls the whole run back.
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		for i := range licenses {
			if err := tx.Model(&models.License{}).
				Where("id = ?", licenses[i].ID).
				Update("assigned_licenses", licenses[i].AssignedLicenses).Error; err != nil {
				return fmt.Errorf("failed to update usage for license %s: %w", licenses[i].ID, err)
			}
		}

		if err := tx.Where("is_resolved = ?", false).Delete(&models.ComplianceEvent{}).Error; err != nil {
			return fmt.Errorf("failed to clear unresolved alerts: %w", err)
		}

		if len(alerts) > 0 {
			if err := tx.Create(&alerts).Error; err != nil {
				return fmt.Errorf("failed to insert alerts: %w", err)
			}
		}

		details := fmt.Sprintf("Checked %d licenses, generated %d alerts", len(licenses), len(alerts))
		return s.audit.Record(tx, "ComplianceRun", "License", "All", actor, details)
	})
	if err != nil {
		logrus.WithError(err).Error("Compliance run failed, no partial results were applied")
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"licenses": len(licenses),
		"alerts":   len(alerts),
		"actor":    actor,
	}).Info("Compliance run completed")

	return &ComplianceRunResult{
		LicensesChecked: len(licenses),
		AlertsGenerated: len(alerts),
	}, nil
}

// countMatches counts installations whose product name equals the license's
// product name, case-insensitively. Plain name equality is the matching key;
// SKU-aware matching is deliberately out of scope.
func countMatches(license *models.License, installations []models.SoftwareInstallation) int {
	count := 0
	for i := range installations {
		if strings.EqualFold(installations[i].ProductName, license.ProductName) {
			count++
		}
	}
	return count
}

// EvaluateLicense applies the three alert rules to a license whose
// AssignedLicenses count is already up to date. Over-use and reclamation are
// independent tests, not an if/else chain, though they cannot both fire for
// the same license.
func EvaluateLicense(license *models.License, now time.Time) []models.ComplianceEvent {
	var alerts []models.ComplianceEvent

	if license.AssignedLicenses > license.TotalEntitlements {
		alerts = append(alerts, models.ComplianceEvent{
			LicenseID:  license.ID,
			Type:       models.EventTypeOverUse,
			Severity:   models.SeverityHigh,
			DetectedAt: now,
			Details: fmt.Sprintf("License %s is over-utilized. Used: %d, Total: %d",
				license.ProductName, license.AssignedLicenses, license.TotalEntitlements),
		})
	}

	if license.AssignedLicenses == 0 && license.TotalEntitlements > 0 {
		alerts = append(alerts, models.ComplianceEvent{
			LicenseID:  license.ID,
			Type:       models.EventTypeUnused,
			Severity:   models.SeverityLow,
			DetectedAt: now,
			Details: fmt.Sprintf("License %s has no matched installations. %d entitlements may be reclaimed",
				license.ProductName, license.TotalEntitlements),
		})
	}

	if alert := evaluateExpiry(license, now); alert != nil {
		alerts = append(alerts, *alert)
	}

	return alerts
}

// evaluateExpiry emits at most one tiered expiry alert. Already-expired
// licenses fall into the Critical tier; there is no distinct expired state.
func evaluateExpiry(license *models.License, now time.Time) *models.ComplianceEvent {
	if license.ExpiryDate == nil {
		return nil
	}

	days := daysUntil(*license.ExpiryDate, now)
	if days > 90 {
		return nil
	}

	var severity models.ComplianceSeverity
	var label string
	switch {
	case days <= 30:
		severity, label = models.SeverityHigh, "Critical"
	case days <= 60:
		severity, label = models.SeverityMedium, "Warning"
	default:
		severity, label = models.SeverityLow, "Notice"
	}

	return &models.ComplianceEvent{
		LicenseID:  license.ID,
		Type:       models.EventTypeExpiry,
		Severity:   severity,
		DetectedAt: now,
		Details: fmt.Sprintf("%s: License %s expires in %d days (%s)",
			label, license.ProductName, days, license.ExpiryDate.Format("2006-01-02")),
	}
}

// daysUntil rounds up, so any partial day remaining still counts as a day.
// Negative for past dates.
func daysUntil(expiry, now time.Time) int {
	return int(math.Ceil(expiry.Sub(now).Hours() / 24))
}

// ListOpenAlerts returns unresolved alerts, most dangerous and
// longest-standing first. Pass a nil license ID for all licenses.
func (s *ComplianceService) ListOpenAlerts(licenseID *uuid.UUID) ([]models.ComplianceEvent, error) {
	query := s.db.Preload("License").Where("is_resolved = ?", false)
	if licenseID != nil {
		query = query.Where("license_id = ?", *licenseID)
	}

	var alerts []models.ComplianceEvent
	err := query.
		Order("CASE severity WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END").
		Order("detected_at ASC").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch alerts: %w", err)
	}
	return alerts, nil
}

// ResolveExpiryAlerts marks every unresolved expiry alert for a license as
// resolved. It is the single resolution primitive shared by the renewal
// approval workflow and the direct license renew operation, and runs in the
// caller's transaction.
func (s *ComplianceService) ResolveExpiryAlerts(tx *gorm.DB, licenseID uuid.UUID, actor, note string) (int64, error) {
	result := tx.Model(&models.ComplianceEvent{}).
		Where("license_id = ? AND type = ? AND is_resolved = ?", licenseID, models.EventTypeExpiry, false).
		Updates(map[string]interface{}{
			"is_resolved":      true,
			"resolved_by":      actor,
			"resolution_notes": note,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to resolve expiry alerts: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ExtendExpiry applies the renewal arithmetic: an already-expired license
// restarts at one year from now, a still-valid one gains a year on top of its
// current expiry. A license without an expiry date is left untouched.
func ExtendExpiry(license *models.License, now time.Time) {
	if license.ExpiryDate == nil {
		return
	}

	var extended time.Time
	if license.ExpiryDate.Before(now) {
		extended = now.AddDate(1, 0, 0)
	} else {
		extended = license.ExpiryDate.AddDate(1, 0, 0)
	}
	license.ExpiryDate = &extended
}
