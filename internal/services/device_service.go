// internal/services/device_service.go
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/assetops/license-inventory/internal/database"
	"github.com/assetops/license-inventory/internal/models"
	"github.com/assetops/license-inventory/internal/utils"
)

type DeviceService struct {
	db    *gorm.DB
	audit *AuditService
}

type OnboardDeviceRequest struct {
	Hostname    string `json:"hostname" validate:"required,max=100"`
	OwnerUserID string `json:"owner_user_id,omitempty" validate:"max=100"`
}

type UpdateDeviceRequest struct {
	Hostname    string `json:"hostname" validate:"required,max=100"`
	OwnerUserID string `json:"owner_user_id,omitempty" validate:"max=100"`
}

type AddInstallationRequest struct {
	DeviceID    uuid.UUID  `json:"device_id" validate:"required"`
	ProductName string     `json:"product_name" validate:"required,max=200"`
	Version     string     `json:"version,omitempty" validate:"max=50"`
	LicenseID   *uuid.UUID `json:"license_id,omitempty"`
}

type UpdateInstallationRequest struct {
	ProductName string     `json:"product_name" validate:"required,max=200"`
	Version     string     `json:"version,omitempty" validate:"max=50"`
	LicenseID   *uuid.UUID `json:"license_id,omitempty"`
}

func NewDeviceService(db *gorm.DB, audit *AuditService) *DeviceService {
	return &DeviceService{
		db:    db,
		audit: audit,
	}
}

func (s *DeviceService) OnboardDevice(req *OnboardDeviceRequest, actor string) (*models.Device, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	device := &models.Device{
		Hostname:    req.Hostname,
		OwnerUserID: req.OwnerUserID,
		LastSeen:    time.Now().UTC(),
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(device).Error; err != nil {
			return fmt.Errorf("failed to create device: %w", err)
		}
		return s.audit.Record(tx, "Created", "Device", device.ID.String(), actor,
			fmt.Sprintf("Onboarded device %s", device.Hostname))
	})
	if err != nil {
		return nil, err
	}

	return device, nil
}

func (s *DeviceService) GetDevice(id uuid.UUID) (*models.Device, error) {
	var device models.Device
	if err := s.db.Preload("InstalledSoftware").First(&device, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("device not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &device, nil
}

func (s *DeviceService) ListDevices(params utils.PaginationParams) ([]models.Device, int64, error) {
	query := s.db.Model(&models.Device{})

	if params.Search != "" {
		pattern := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(hostname) LIKE ?", pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count devices: %w", err)
	}

	allowedSortFields := []string{"created_at", "hostname", "last_seen"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var devices []models.Device
	if err := query.Preload("InstalledSoftware").Find(&devices).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch devices: %w", err)
	}

	return devices, total, nil
}

func (s *DeviceService) UpdateDevice(id uuid.UUID, req *UpdateDeviceRequest, actor string) (*models.Device, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var device models.Device
	if err := s.db.First(&device, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("device not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	device.Hostname = req.Hostname
	device.OwnerUserID = req.OwnerUserID

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Save(&device).Error; err != nil {
			return fmt.Errorf("failed to update device: %w", err)
		}
		return s.audit.Record(tx, "Updated", "Device", id.String(), actor, "Updated device details")
	})
	if err != nil {
		return nil, err
	}

	return &device, nil
}

func (s *DeviceService) DeleteDevice(id uuid.UUID, actor string) error {
	var device models.Device
	if err := s.db.First(&device, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("device not found")
		}
		return fmt.Errorf("database error: %w", err)
	}

	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Where("device_id = ?", id).Delete(&models.SoftwareInstallation{}).Error; err != nil {
			return fmt.Errorf("failed to delete installations: %w", err)
		}
		if err := tx.Delete(&device).Error; err != nil {
			return fmt.Errorf("failed to delete device: %w", err)
		}
		return s.audit.Record(tx, "Deleted", "Device", id.String(), actor,
			fmt.Sprintf("Deleted device %s", device.Hostname))
	})
}

func (s *DeviceService) AddInstallation(req *AddInstallationRequest, actor string) (*models.SoftwareInstallation, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var device models.Device
	if err := s.db.First(&device, "id = ?", req.DeviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("device not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	installation := &models.SoftwareInstallation{
		ProductName: req.ProductName,
		Version:     req.Version,
		InstallDate: time.Now().UTC(),
		DeviceID:    req.DeviceID,
		LicenseID:   req.LicenseID,
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(installation).Error; err != nil {
			return fmt.Errorf("failed to create installation: %w", err)
		}
		return s.audit.Record(tx, "Created", "Installation", installation.ID.String(), actor,
			fmt.Sprintf("Recorded %s on %s", installation.ProductName, device.Hostname))
	})
	if err != nil {
		return nil, err
	}

	return installation, nil
}

func (s *DeviceService) UpdateInstallation(id uuid.UUID, req *UpdateInstallationRequest, actor string) (*models.SoftwareInstallation, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var installation models.SoftwareInstallation
	if err := s.db.First(&installation, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("installation not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	installation.ProductName = req.ProductName
	installation.Version = req.Version
	installation.LicenseID = req.LicenseID

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Save(&installation).Error; err != nil {
			return fmt.Errorf("failed to update installation: %w", err)
		}
		return s.audit.Record(tx, "Updated", "Installation", id.String(), actor, "Updated installation details")
	})
	if err != nil {
		return nil, err
	}

	return &installation, nil
}

func (s *DeviceService) RemoveInstallation(id uuid.UUID, actor string) error {
	var installation models.SoftwareInstallation
	if err := s.db.First(&installation, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("installation not found")
		}
		return fmt.Errorf("database error: %w", err)
	}

	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Delete(&installation).Error; err != nil {
			return fmt.Errorf("failed to delete installation: %w", err)
		}
		return s.audit.Record(tx, "Deleted", "Installation", id.String(), actor,
			fmt.Sprintf("Removed %s installation", installation.ProductName))
	})
}
