// internal/services/license_service_test.go
package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/assetops/license-inventory/internal/models"
	"github.com/assetops/license-inventory/internal/utils"
)

func newLicenseService(db *gorm.DB) *LicenseService {
	audit := NewAuditService(db)
	return NewLicenseService(db, audit, NewComplianceService(db, audit))
}

func TestCreateLicense(t *testing.T) {
	db := setupTestDB(t)
	service := newLicenseService(db)

	license, err := service.CreateLicense(&CreateLicenseRequest{
		ProductName:       "Photoshop",
		Vendor:            "Adobe",
		LicenseType:       models.LicenseTypePerUser,
		TotalEntitlements: 10,
		PurchaseDate:      time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Cost:              1200.50,
	}, "admin-user")
	require.NoError(t, err)
	assert.Equal(t, "USD", license.Currency, "currency defaults when unset")
	assert.Equal(t, 10, license.AvailableLicenses)

	var auditEntry models.AuditLog
	require.NoError(t, db.First(&auditEntry, "action = ?", "Created").Error)
	assert.Equal(t, license.ID.String(), auditEntry.EntityID)
	assert.Equal(t, "admin-user", auditEntry.PerformedBy)
}

func TestCreateLicense_InvalidType(t *testing.T) {
	db := setupTestDB(t)
	service := newLicenseService(db)

	_, err := service.CreateLicense(&CreateLicenseRequest{
		ProductName:       "Photoshop",
		Vendor:            "Adobe",
		LicenseType:       "site_wide",
		TotalEntitlements: 10,
		PurchaseDate:      time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
	}, "admin-user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid license type")
}

func TestListLicenses_Search(t *testing.T) {
	db := setupTestDB(t)
	service := newLicenseService(db)

	createTestLicense(t, db, "Photoshop", 10, nil)
	createTestLicense(t, db, "Illustrator", 5, nil)
	createTestLicense(t, db, "Slack", 50, nil)

	licenses, total, err := service.ListLicenses(utils.PaginationParams{Page: 1, Limit: 20, Search: "photo"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, licenses, 1)
	assert.Equal(t, "Photoshop", licenses[0].ProductName)
}

func TestRenewLicense_SharesResolutionWithApprovalPath(t *testing.T) {
	db := setupTestDB(t)
	service := newLicenseService(db)

	expiry := time.Now().UTC().Add(10 * 24 * time.Hour).Truncate(time.Second)
	license := createTestLicense(t, db, "Acrobat", 5, &expiry)

	event := models.ComplianceEvent{
		LicenseID: license.ID, Type: models.EventTypeExpiry,
		Severity: models.SeverityHigh, DetectedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(&event).Error)

	result, err := service.RenewLicense(license.ID, "admin-user")
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.AlertsResolved)
	require.NotNil(t, result.License.ExpiryDate)
	assert.WithinDuration(t, expiry.AddDate(1, 0, 0), *result.License.ExpiryDate, time.Second)

	var resolved models.ComplianceEvent
	require.NoError(t, db.First(&resolved, "id = ?", event.ID).Error)
	assert.True(t, resolved.IsResolved)
	assert.Equal(t, "Auto-resolved via Renewal", resolved.ResolutionNotes)
}

func TestRenewLicense_PerpetualStaysPerpetual(t *testing.T) {
	db := setupTestDB(t)
	service := newLicenseService(db)

	license := createTestLicense(t, db, "Vim", 100, nil)

	result, err := service.RenewLicense(license.ID, "admin-user")
	require.NoError(t, err)
	assert.Nil(t, result.License.ExpiryDate)
}

func TestDeleteLicense_Cascade(t *testing.T) {
	db := setupTestDB(t)
	service := newLicenseService(db)

	license := createTestLicense(t, db, "Photoshop", 10, nil)
	device := createTestDevice(t, db, "laptop-001")
	install := createTestInstallation(t, db, device, "Photoshop")
	require.NoError(t, db.Model(install).Update("license_id", license.ID).Error)

	event := models.ComplianceEvent{
		LicenseID: license.ID, Type: models.EventTypeUnused,
		Severity: models.SeverityLow, DetectedAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(&event).Error)
	allocation := models.CostAllocation{
		LicenseID: license.ID, DepartmentID: "ENG",
		Method: models.AllocationMethodFixed, Percent: 100, AllocatedAmount: 1000, Currency: "USD",
	}
	require.NoError(t, db.Create(&allocation).Error)

	require.NoError(t, service.DeleteLicense(license.ID, "admin-user"))

	var licenseCount, eventCount, allocationCount int64
	db.Model(&models.License{}).Where("id = ?", license.ID).Count(&licenseCount)
	db.Model(&models.ComplianceEvent{}).Where("license_id = ?", license.ID).Count(&eventCount)
	db.Model(&models.CostAllocation{}).Where("license_id = ?", license.ID).Count(&allocationCount)
	assert.Zero(t, licenseCount)
	assert.Zero(t, eventCount)
	assert.Zero(t, allocationCount)

	// The installation record survives, just unmatched.
	var orphaned models.SoftwareInstallation
	require.NoError(t, db.First(&orphaned, "id = ?", install.ID).Error)
	assert.Nil(t, orphaned.LicenseID)
}

func TestDeleteLicense_NotFound(t *testing.T) {
	db := setupTestDB(t)
	service := newLicenseService(db)

	other := createTestLicense(t, db, "Photoshop", 10, nil)
	require.NoError(t, service.DeleteLicense(other.ID, "admin-user"))

	err := service.DeleteLicense(other.ID, "admin-user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestImportCSV(t *testing.T) {
	db := setupTestDB(t)
	service := newLicenseService(db)

	input := strings.Join([]string{
		"product_name,vendor,license_type,total_entitlements,cost,purchase_date,expiry_date",
		"Photoshop,Adobe,per_user,10,1200.50,2025-01-15,2026-01-15",
		"Slack,Salesforce,subscription,50,800,02/01/2025,",
		"Broken Row,Vendor,site_wide,5,100,2025-01-01,",
		"Also Broken,Vendor,per_user,not-a-number,100,2025-01-01,",
	}, "\n")

	result, err := service.ImportCSV(strings.NewReader(input), "admin-user")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 2, result.Failed)

	var photoshop models.License
	require.NoError(t, db.First(&photoshop, "product_name = ?", "Photoshop").Error)
	assert.Equal(t, models.LicenseTypePerUser, photoshop.LicenseType)
	assert.Equal(t, 10, photoshop.TotalEntitlements)
	assert.InDelta(t, 1200.50, photoshop.Cost, 0.001)
	require.NotNil(t, photoshop.ExpiryDate)

	var slack models.License
	require.NoError(t, db.First(&slack, "product_name = ?", "Slack").Error)
	assert.Nil(t, slack.ExpiryDate, "empty expiry column imports as perpetual")

	var auditEntry models.AuditLog
	require.NoError(t, db.First(&auditEntry, "action = ?", "Import").Error)
	assert.Contains(t, auditEntry.Changes, "Imported 2 licenses")
}

func TestImportCSV_EmptyInput(t *testing.T) {
	db := setupTestDB(t)
	service := newLicenseService(db)

	result, err := service.ImportCSV(strings.NewReader(""), "admin-user")
	require.NoError(t, err)
	assert.Zero(t, result.Imported)
	assert.Zero(t, result.Failed)
}

func TestParseLicenseType(t *testing.T) {
	tests := []struct {
		raw      string
		expected models.LicenseType
		invalid  bool
	}{
		{raw: "per_user", expected: models.LicenseTypePerUser},
		{raw: "PerUser", expected: models.LicenseTypePerUser},
		{raw: " PER_DEVICE ", expected: models.LicenseTypePerDevice},
		{raw: "Concurrent", expected: models.LicenseTypeConcurrent},
		{raw: "subscription", expected: models.LicenseTypeSubscription},
		{raw: "site_wide", invalid: true},
	}

	for _, tt := range tests {
		got, err := parseLicenseType(tt.raw)
		if tt.invalid {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.expected, got, tt.raw)
	}
}
