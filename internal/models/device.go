// internal/models/device.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Device struct {
	BaseModel
	Hostname    string    `json:"hostname" gorm:"size:100;not null;uniqueIndex"`
	OwnerUserID string    `json:"owner_user_id,omitempty" gorm:"size:100"`
	LastSeen    time.Time `json:"last_seen"`

	// Relationships
	InstalledSoftware []SoftwareInstallation `json:"installed_software,omitempty" gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE"`
}

// SoftwareInstallation links a device to a product and, when the product name
// matches a tracked license, to that license. The license link is best-effort:
// an installation may stay unmatched.
type SoftwareInstallation struct {
	BaseModel
	ProductName string     `json:"product_name" gorm:"size:200;not null;index"`
	Version     string     `json:"version" gorm:"size:50"`
	InstallDate time.Time  `json:"install_date"`
	DeviceID    uuid.UUID  `json:"device_id" gorm:"type:uuid;not null;index"`
	LicenseID   *uuid.UUID `json:"license_id,omitempty" gorm:"type:uuid;index"`

	Device  *Device  `json:"device,omitempty" gorm:"foreignKey:DeviceID"`
	License *License `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
}
