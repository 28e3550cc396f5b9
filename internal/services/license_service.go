// internal/services/license_service.go
package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/assetops/license-inventory/internal/database"
	"github.com/assetops/license-inventory/internal/models"
	"github.com/assetops/license-inventory/internal/utils"
)

type LicenseService struct {
	db         *gorm.DB
	audit      *AuditService
	compliance *ComplianceService
}

type CreateLicenseRequest struct {
	ProductName       string             `json:"product_name" validate:"required,max=200"`
	Vendor            string             `json:"vendor" validate:"required,max=100"`
	LicenseType       models.LicenseType `json:"license_type" validate:"required"`
	TotalEntitlements int                `json:"total_entitlements" validate:"gte=0"`
	PurchaseDate      time.Time          `json:"purchase_date" validate:"required"`
	ExpiryDate        *time.Time         `json:"expiry_date,omitempty"`
	Cost              float64            `json:"cost" validate:"gte=0"`
	Currency          string             `json:"currency" validate:"omitempty,currency"`
	Notes             string             `json:"notes,omitempty"`
}

type UpdateLicenseRequest struct {
	ProductName       string             `json:"product_name" validate:"required,max=200"`
	Vendor            string             `json:"vendor" validate:"required,max=100"`
	LicenseType       models.LicenseType `json:"license_type" validate:"required"`
	TotalEntitlements int                `json:"total_entitlements" validate:"gte=0"`
	PurchaseDate      time.Time          `json:"purchase_date" validate:"required"`
	ExpiryDate        *time.Time         `json:"expiry_date,omitempty"`
	Cost              float64            `json:"cost" validate:"gte=0"`
	Currency          string             `json:"currency" validate:"omitempty,currency"`
	Notes             string             `json:"notes,omitempty"`
}

type RenewLicenseResult struct {
	License        *models.License `json:"license"`
	AlertsResolved int64           `json:"alerts_resolved"`
}

type ImportResult struct {
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
}

func NewLicenseService(db *gorm.DB, audit *AuditService, compliance *ComplianceService) *LicenseService {
	return &LicenseService{
		db:         db,
		audit:      audit,
		compliance: compliance,
	}
}

func (s *LicenseService) CreateLicense(req *CreateLicenseRequest, actor string) (*models.License, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if !req.LicenseType.Valid() {
		return nil, errors.New("invalid license type")
	}

	license := &models.License{
		ProductName:       req.ProductName,
		Vendor:            req.Vendor,
		LicenseType:       req.LicenseType,
		TotalEntitlements: req.TotalEntitlements,
		PurchaseDate:      req.PurchaseDate,
		ExpiryDate:        req.ExpiryDate,
		Cost:              req.Cost,
		Currency:          req.Currency,
		Notes:             req.Notes,
	}
	if license.Currency == "" {
		license.Currency = "USD"
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(license).Error; err != nil {
			return fmt.Errorf("failed to create license: %w", err)
		}
		return s.audit.Record(tx, "Created", "License", license.ID.String(), actor,
			fmt.Sprintf("Created license for %s", license.ProductName))
	})
	if err != nil {
		return nil, err
	}

	return license, nil
}

func (s *LicenseService) GetLicense(id uuid.UUID) (*models.License, error) {
	var license models.License
	if err := s.db.Preload("Installations").First(&license, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("license not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &license, nil
}

func (s *LicenseService) ListLicenses(params utils.PaginationParams) ([]models.License, int64, error) {
	query := s.db.Model(&models.License{})

	if params.Search != "" {
		pattern := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(product_name) LIKE ? OR LOWER(vendor) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count licenses: %w", err)
	}

	allowedSortFields := []string{"created_at", "product_name", "vendor", "expiry_date", "cost"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var licenses []models.License
	if err := query.Find(&licenses).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch licenses: %w", err)
	}

	return licenses, total, nil
}

func (s *LicenseService) UpdateLicense(id uuid.UUID, req *UpdateLicenseRequest, actor string) (*models.License, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if !req.LicenseType.Valid() {
		return nil, errors.New("invalid license type")
	}

	var license models.License
	if err := s.db.First(&license, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("license not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	license.ProductName = req.ProductName
	license.Vendor = req.Vendor
	license.LicenseType = req.LicenseType
	license.TotalEntitlements = req.TotalEntitlements
	license.PurchaseDate = req.PurchaseDate
	license.ExpiryDate = req.ExpiryDate
	license.Cost = req.Cost
	if req.Currency != "" {
		license.Currency = req.Currency
	}
	license.Notes = req.Notes

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Save(&license).Error; err != nil {
			return fmt.Errorf("failed to update license: %w", err)
		}
		return s.audit.Record(tx, "Updated", "License", id.String(), actor, "Updated license details")
	})
	if err != nil {
		return nil, err
	}

	return &license, nil
}

// RenewLicense is the direct renewal path. It shares the expiry-extension
// arithmetic and the expiry-alert resolution primitive with the
// renewal-approval workflow.
func (s *LicenseService) RenewLicense(id uuid.UUID, actor string) (*RenewLicenseResult, error) {
	var license models.License
	if err := s.db.First(&license, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("license not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	oldExpiry := "none"
	if license.ExpiryDate != nil {
		oldExpiry = license.ExpiryDate.Format("2006-01-02")
	}

	var resolved int64
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		ExtendExpiry(&license, time.Now().UTC())
		if err := tx.Model(&models.License{}).
			Where("id = ?", license.ID).
			Update("expiry_date", license.ExpiryDate).Error; err != nil {
			return fmt.Errorf("failed to extend expiry: %w", err)
		}

		var err error
		resolved, err = s.compliance.ResolveExpiryAlerts(tx, license.ID, actor, "Auto-resolved via Renewal")
		if err != nil {
			return err
		}

		return s.audit.Record(tx, "Renewed", "License", id.String(), actor,
			fmt.Sprintf("Renewed %s. Old expiry: %s", license.ProductName, oldExpiry))
	})
	if err != nil {
		return nil, err
	}

	return &RenewLicenseResult{License: &license, AlertsResolved: resolved}, nil
}

func (s *LicenseService) DeleteLicense(id uuid.UUID, actor string) error {
	var license models.License
	if err := s.db.First(&license, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("license not found")
		}
		return fmt.Errorf("database error: %w", err)
	}

	// Ownership cascade: alerts and allocations go with the license,
	// installations only lose their match.
	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Where("license_id = ?", id).Delete(&models.ComplianceEvent{}).Error; err != nil {
			return fmt.Errorf("failed to delete compliance events: %w", err)
		}
		if err := tx.Where("license_id = ?", id).Delete(&models.CostAllocation{}).Error; err != nil {
			return fmt.Errorf("failed to delete cost allocations: %w", err)
		}
		if err := tx.Model(&models.SoftwareInstallation{}).
			Where("license_id = ?", id).
			Update("license_id", nil).Error; err != nil {
			return fmt.Errorf("failed to unlink installations: %w", err)
		}
		if err := tx.Delete(&license).Error; err != nil {
			return fmt.Errorf("failed to delete license: %w", err)
		}
		return s.audit.Record(tx, "Deleted", "License", id.String(), actor,
			fmt.Sprintf("Deleted license %s", license.ProductName))
	})
}

// ImportCSV ingests the bulk-upload format: product name, vendor, license
// type, total entitlements, cost, purchase date, optional expiry date. Bad
// rows are counted and skipped, not fatal.
func (s *LicenseService) ImportCSV(r io.Reader, actor string) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(rows) == 0 {
		return &ImportResult{}, nil
	}

	// First row is the header
	result := &ImportResult{}
	var licenses []models.License
	for _, row := range rows[1:] {
		license, err := parseLicenseRow(row)
		if err != nil {
			logrus.WithError(err).WithField("row", strings.Join(row, ",")).Warn("Skipping unparseable CSV row")
			result.Failed++
			continue
		}
		licenses = append(licenses, *license)
		result.Imported++
	}

	if len(licenses) == 0 {
		return result, nil
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(&licenses).Error; err != nil {
			return fmt.Errorf("failed to insert imported licenses: %w", err)
		}
		return s.audit.Record(tx, "Import", "License", "Bulk", actor,
			fmt.Sprintf("Imported %d licenses from CSV", result.Imported))
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func parseLicenseRow(row []string) (*models.License, error) {
	if len(row) < 7 {
		return nil, fmt.Errorf("expected at least 7 columns, got %d", len(row))
	}

	licenseType, err := parseLicenseType(row[2])
	if err != nil {
		return nil, err
	}

	total, err := strconv.Atoi(strings.TrimSpace(row[3]))
	if err != nil {
		return nil, fmt.Errorf("invalid entitlement count %q: %w", row[3], err)
	}
	if total < 0 {
		return nil, fmt.Errorf("entitlement count must not be negative, got %d", total)
	}

	cost, err := strconv.ParseFloat(strings.TrimSpace(row[4]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cost %q: %w", row[4], err)
	}

	purchaseDate, err := parseDate(row[5])
	if err != nil {
		return nil, fmt.Errorf("invalid purchase date %q: %w", row[5], err)
	}

	license := &models.License{
		ProductName:       strings.TrimSpace(row[0]),
		Vendor:            strings.TrimSpace(row[1]),
		LicenseType:       licenseType,
		TotalEntitlements: total,
		Cost:              cost,
		PurchaseDate:      purchaseDate,
		Currency:          "USD",
	}
	if license.ProductName == "" {
		return nil, errors.New("product name is required")
	}

	if expiry := strings.TrimSpace(row[6]); expiry != "" {
		expiryDate, err := parseDate(expiry)
		if err != nil {
			return nil, fmt.Errorf("invalid expiry date %q: %w", row[6], err)
		}
		license.ExpiryDate = &expiryDate
	}

	return license, nil
}

func parseLicenseType(raw string) (models.LicenseType, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "_", "")) {
	case "peruser":
		return models.LicenseTypePerUser, nil
	case "perdevice":
		return models.LicenseTypePerDevice, nil
	case "concurrent":
		return models.LicenseTypeConcurrent, nil
	case "subscription":
		return models.LicenseTypeSubscription, nil
	}
	return "", fmt.Errorf("unknown license type %q", raw)
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "01/02/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", raw)
}
