// internal/services/device_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/assetops/license-inventory/internal/models"
	"github.com/assetops/license-inventory/internal/utils"
)

func newDeviceService(db *gorm.DB) *DeviceService {
	return NewDeviceService(db, NewAuditService(db))
}

func TestOnboardDevice(t *testing.T) {
	db := setupTestDB(t)
	service := newDeviceService(db)

	device, err := service.OnboardDevice(&OnboardDeviceRequest{
		Hostname:    "laptop-001",
		OwnerUserID: "jdoe",
	}, "admin-user")
	require.NoError(t, err)
	assert.Equal(t, "laptop-001", device.Hostname)
	assert.False(t, device.LastSeen.IsZero())
}

func TestAddInstallation(t *testing.T) {
	db := setupTestDB(t)
	service := newDeviceService(db)

	device := createTestDevice(t, db, "laptop-001")

	install, err := service.AddInstallation(&AddInstallationRequest{
		DeviceID:    device.ID,
		ProductName: "Photoshop",
		Version:     "25.1",
	}, "admin-user")
	require.NoError(t, err)
	assert.Equal(t, device.ID, install.DeviceID)
	assert.Nil(t, install.LicenseID)

	fetched, err := service.GetDevice(device.ID)
	require.NoError(t, err)
	require.Len(t, fetched.InstalledSoftware, 1)
	assert.Equal(t, "Photoshop", fetched.InstalledSoftware[0].ProductName)
}

func TestAddInstallation_UnknownDevice(t *testing.T) {
	db := setupTestDB(t)
	service := newDeviceService(db)

	device := createTestDevice(t, db, "laptop-001")
	require.NoError(t, db.Unscoped().Delete(&models.Device{}, "id = ?", device.ID).Error)

	_, err := service.AddInstallation(&AddInstallationRequest{
		DeviceID:    device.ID,
		ProductName: "Photoshop",
	}, "admin-user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListDevices_SearchIsCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	service := newDeviceService(db)

	createTestDevice(t, db, "laptop-001")
	createTestDevice(t, db, "desktop-007")

	devices, total, err := service.ListDevices(utils.PaginationParams{Page: 1, Limit: 20, Search: "LAPTOP"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, devices, 1)
	assert.Equal(t, "laptop-001", devices[0].Hostname)
}

func TestDeleteDevice_RemovesInstallations(t *testing.T) {
	db := setupTestDB(t)
	service := newDeviceService(db)

	device := createTestDevice(t, db, "laptop-001")
	createTestInstallation(t, db, device, "Photoshop")
	createTestInstallation(t, db, device, "Slack")

	require.NoError(t, service.DeleteDevice(device.ID, "admin-user"))

	var installCount int64
	require.NoError(t, db.Model(&models.SoftwareInstallation{}).
		Where("device_id = ?", device.ID).
		Count(&installCount).Error)
	assert.Zero(t, installCount)
}
