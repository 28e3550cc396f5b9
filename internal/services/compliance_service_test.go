// internal/services/compliance_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/assetops/license-inventory/internal/database"
	"github.com/assetops/license-inventory/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func newComplianceService(db *gorm.DB) *ComplianceService {
	return NewComplianceService(db, NewAuditService(db))
}

func createTestLicense(t *testing.T, db *gorm.DB, product string, total int, expiry *time.Time) *models.License {
	license := &models.License{
		ProductName:       product,
		Vendor:            "Test Vendor",
		LicenseType:       models.LicenseTypePerUser,
		TotalEntitlements: total,
		PurchaseDate:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpiryDate:        expiry,
		Cost:              1000,
		Currency:          "USD",
	}
	require.NoError(t, db.Create(license).Error)
	return license
}

func createTestDevice(t *testing.T, db *gorm.DB, hostname string) *models.Device {
	device := &models.Device{
		Hostname: hostname,
		LastSeen: time.Now().UTC(),
	}
	require.NoError(t, db.Create(device).Error)
	return device
}

func createTestInstallation(t *testing.T, db *gorm.DB, device *models.Device, product string) *models.SoftwareInstallation {
	install := &models.SoftwareInstallation{
		ProductName: product,
		Version:     "1.0",
		InstallDate: time.Now().UTC(),
		DeviceID:    device.ID,
	}
	require.NoError(t, db.Create(install).Error)
	return install
}

func daysFromNow(now time.Time, days int) *time.Time {
	d := now.Add(time.Duration(days) * 24 * time.Hour)
	return &d
}

func TestEvaluateLicense_OverUse(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	license := &models.License{
		ProductName:       "Photoshop",
		TotalEntitlements: 10,
		AssignedLicenses:  12,
	}

	alerts := EvaluateLicense(license, now)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.EventTypeOverUse, alerts[0].Type)
	assert.Equal(t, models.SeverityHigh, alerts[0].Severity)
	assert.Equal(t, "License Photoshop is over-utilized. Used: 12, Total: 10", alerts[0].Details)
}

func TestEvaluateLicense_Unused(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	license := &models.License{
		ProductName:       "Slack",
		TotalEntitlements: 50,
		AssignedLicenses:  0,
	}

	alerts := EvaluateLicense(license, now)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.EventTypeUnused, alerts[0].Type)
	assert.Equal(t, models.SeverityLow, alerts[0].Severity)
	assert.Equal(t, "License Slack has no matched installations. 50 entitlements may be reclaimed", alerts[0].Details)
}

func TestEvaluateLicense_ZeroEntitlementsNeverUnused(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	license := &models.License{
		ProductName:       "Retired Tool",
		TotalEntitlements: 0,
		AssignedLicenses:  0,
	}

	assert.Empty(t, EvaluateLicense(license, now))
}

func TestEvaluateLicense_ExactlyAtCapacity(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	license := &models.License{
		ProductName:       "Jira",
		TotalEntitlements: 10,
		AssignedLicenses:  10,
	}

	assert.Empty(t, EvaluateLicense(license, now))
}

func TestEvaluateLicense_ExpiryTiers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		days     int
		expected models.ComplianceSeverity
		label    string
		none     bool
	}{
		{name: "already expired", days: -5, expected: models.SeverityHigh, label: "Critical"},
		{name: "expires today", days: 0, expected: models.SeverityHigh, label: "Critical"},
		{name: "within critical window", days: 20, expected: models.SeverityHigh, label: "Critical"},
		{name: "critical boundary", days: 30, expected: models.SeverityHigh, label: "Critical"},
		{name: "warning lower boundary", days: 31, expected: models.SeverityMedium, label: "Warning"},
		{name: "warning upper boundary", days: 60, expected: models.SeverityMedium, label: "Warning"},
		{name: "notice lower boundary", days: 61, expected: models.SeverityLow, label: "Notice"},
		{name: "notice upper boundary", days: 90, expected: models.SeverityLow, label: "Notice"},
		{name: "beyond the window", days: 91, none: true},
		{name: "far future", days: 400, none: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			license := &models.License{
				ProductName:       "Acrobat",
				TotalEntitlements: 5,
				AssignedLicenses:  3,
				ExpiryDate:        daysFromNow(now, tt.days),
			}

			alerts := EvaluateLicense(license, now)
			if tt.none {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			assert.Equal(t, models.EventTypeExpiry, alerts[0].Type)
			assert.Equal(t, tt.expected, alerts[0].Severity)
			assert.Contains(t, alerts[0].Details, tt.label)
		})
	}
}

func TestEvaluateLicense_PartialDayRoundsUp(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(30*24*time.Hour + time.Hour)
	license := &models.License{
		ProductName:       "Acrobat",
		TotalEntitlements: 5,
		AssignedLicenses:  3,
		ExpiryDate:        &expiry,
	}

	// 30 days and one hour remaining counts as 31 days
	alerts := EvaluateLicense(license, now)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityMedium, alerts[0].Severity)
	assert.Contains(t, alerts[0].Details, "expires in 31 days")
}

func TestEvaluateLicense_OverUseAndExpiryTogether(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	license := &models.License{
		ProductName:       "Photoshop",
		TotalEntitlements: 10,
		AssignedLicenses:  12,
		ExpiryDate:        daysFromNow(now, 20),
	}

	alerts := EvaluateLicense(license, now)
	require.Len(t, alerts, 2)
	assert.Equal(t, models.EventTypeOverUse, alerts[0].Type)
	assert.Equal(t, models.EventTypeExpiry, alerts[1].Type)
}

func TestRunComplianceCheck(t *testing.T) {
	db := setupTestDB(t)
	service := newComplianceService(db)

	now := time.Now().UTC()
	license := createTestLicense(t, db, "Photoshop", 10, daysFromNow(now, 20))
	device := createTestDevice(t, db, "laptop-001")
	for i := 0; i < 12; i++ {
		name := "Photoshop"
		if i%2 == 0 {
			name = "photoshop" // matching is case-insensitive
		}
		createTestInstallation(t, db, device, name)
	}

	result, err := service.RunComplianceCheck("tester")
	require.NoError(t, err)
	assert.Equal(t, 1, result.LicensesChecked)
	assert.Equal(t, 2, result.AlertsGenerated)

	var updated models.License
	require.NoError(t, db.First(&updated, "id = ?", license.ID).Error)
	assert.Equal(t, 12, updated.AssignedLicenses)
	assert.Equal(t, -2, updated.AvailableLicenses)

	alerts, err := service.ListOpenAlerts(nil)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	for _, alert := range alerts {
		assert.Equal(t, license.ID, alert.LicenseID)
		assert.False(t, alert.IsResolved)
	}
	assert.True(t, alerts[0].DetectedAt.Equal(alerts[1].DetectedAt), "alerts from one run share a timestamp")

	var auditCount int64
	require.NoError(t, db.Model(&models.AuditLog{}).
		Where("action = ? AND entity_name = ?", "ComplianceRun", "License").
		Count(&auditCount).Error)
	assert.Equal(t, int64(1), auditCount)
}

func TestRunComplianceCheck_ReplacesUnresolvedAlerts(t *testing.T) {
	db := setupTestDB(t)
	service := newComplianceService(db)

	now := time.Now().UTC()
	createTestLicense(t, db, "Slack", 50, daysFromNow(now, 200))

	// No installations: every run regenerates exactly one unused alert.
	for i := 0; i < 3; i++ {
		result, err := service.RunComplianceCheck("tester")
		require.NoError(t, err)
		assert.Equal(t, 1, result.AlertsGenerated)
	}

	alerts, err := service.ListOpenAlerts(nil)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestRunComplianceCheck_PreservesResolvedAlerts(t *testing.T) {
	db := setupTestDB(t)
	service := newComplianceService(db)

	now := time.Now().UTC()
	license := createTestLicense(t, db, "Acrobat", 5, daysFromNow(now, 10))

	_, err := service.RunComplianceCheck("tester")
	require.NoError(t, err)

	// The run produced an unused alert and an expiry alert; resolution
	// touches the expiry one only.
	resolved, err := service.ResolveExpiryAlerts(db, license.ID, "tester", "Renewed out of band")
	require.NoError(t, err)
	assert.Equal(t, int64(1), resolved)

	resolvedAgain, err := service.ResolveExpiryAlerts(db, license.ID, "tester", "again")
	require.NoError(t, err)
	assert.Zero(t, resolvedAgain)

	_, err = service.RunComplianceCheck("tester")
	require.NoError(t, err)

	var total int64
	require.NoError(t, db.Model(&models.ComplianceEvent{}).
		Where("is_resolved = ?", true).
		Count(&total).Error)
	assert.Equal(t, int64(1), total, "resolved history survives later runs")
}

func TestListOpenAlerts_Ordering(t *testing.T) {
	db := setupTestDB(t)
	service := newComplianceService(db)

	now := time.Now().UTC()
	license := createTestLicense(t, db, "Photoshop", 10, nil)

	events := []models.ComplianceEvent{
		{LicenseID: license.ID, Type: models.EventTypeUnused, Severity: models.SeverityLow, DetectedAt: now},
		{LicenseID: license.ID, Type: models.EventTypeOverUse, Severity: models.SeverityHigh, DetectedAt: now.Add(time.Minute)},
		{LicenseID: license.ID, Type: models.EventTypeExpiry, Severity: models.SeverityMedium, DetectedAt: now},
		{LicenseID: license.ID, Type: models.EventTypeOverUse, Severity: models.SeverityHigh, DetectedAt: now.Add(-time.Hour)},
	}
	require.NoError(t, db.Create(&events).Error)

	alerts, err := service.ListOpenAlerts(nil)
	require.NoError(t, err)
	require.Len(t, alerts, 4)

	assert.Equal(t, models.SeverityHigh, alerts[0].Severity)
	assert.Equal(t, models.SeverityHigh, alerts[1].Severity)
	assert.True(t, alerts[0].DetectedAt.Before(alerts[1].DetectedAt), "ties break on oldest first")
	assert.Equal(t, models.SeverityMedium, alerts[2].Severity)
	assert.Equal(t, models.SeverityLow, alerts[3].Severity)
}

func TestListOpenAlerts_FilterByLicense(t *testing.T) {
	db := setupTestDB(t)
	service := newComplianceService(db)

	now := time.Now().UTC()
	first := createTestLicense(t, db, "Photoshop", 10, nil)
	second := createTestLicense(t, db, "Slack", 50, nil)

	events := []models.ComplianceEvent{
		{LicenseID: first.ID, Type: models.EventTypeUnused, Severity: models.SeverityLow, DetectedAt: now},
		{LicenseID: second.ID, Type: models.EventTypeUnused, Severity: models.SeverityLow, DetectedAt: now},
	}
	require.NoError(t, db.Create(&events).Error)

	alerts, err := service.ListOpenAlerts(&first.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, first.ID, alerts[0].LicenseID)
}

func TestExtendExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("future expiry gains a year", func(t *testing.T) {
		expiry := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
		license := &models.License{ExpiryDate: &expiry}
		ExtendExpiry(license, now)
		assert.Equal(t, time.Date(2027, 6, 15, 0, 0, 0, 0, time.UTC), *license.ExpiryDate)
	})

	t.Run("past expiry restarts from now", func(t *testing.T) {
		expiry := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
		license := &models.License{ExpiryDate: &expiry}
		ExtendExpiry(license, now)
		assert.Equal(t, now.AddDate(1, 0, 0), *license.ExpiryDate)
	})

	t.Run("perpetual license stays perpetual", func(t *testing.T) {
		license := &models.License{}
		ExtendExpiry(license, now)
		assert.Nil(t, license.ExpiryDate)
	})
}
