// internal/models/license.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type License struct {
	BaseModel
	ProductName       string      `json:"product_name" gorm:"size:200;not null;index"`
	Vendor            string      `json:"vendor" gorm:"size:100;not null;index"`
	LicenseType       LicenseType `json:"license_type" gorm:"type:varchar(20);not null"`
	TotalEntitlements int         `json:"total_entitlements" gorm:"not null"`
	AssignedLicenses  int         `json:"assigned_licenses"`
	AvailableLicenses int         `json:"available_licenses" gorm:"-"`
	PurchaseDate      time.Time   `json:"purchase_date" gorm:"not null"`
	ExpiryDate        *time.Time  `json:"expiry_date"`
	Cost              float64     `json:"cost" gorm:"type:decimal(18,2);not null"`
	Currency          string      `json:"currency" gorm:"size:3;not null;default:'USD'"`
	Notes             string      `json:"notes" gorm:"type:text"`

	// Relationships
	Installations    []SoftwareInstallation `json:"installations,omitempty" gorm:"foreignKey:LicenseID;constraint:OnDelete:SET NULL"`
	ComplianceEvents []ComplianceEvent      `json:"compliance_events,omitempty" gorm:"foreignKey:LicenseID;constraint:OnDelete:CASCADE"`
	CostAllocations  []CostAllocation       `json:"cost_allocations,omitempty" gorm:"foreignKey:LicenseID;constraint:OnDelete:CASCADE"`
}

// AvailableLicenses is derived, never persisted.
func (l *License) AfterFind(tx *gorm.DB) error {
	l.AvailableLicenses = l.TotalEntitlements - l.AssignedLicenses
	return nil
}

func (l *License) AfterSave(tx *gorm.DB) error {
	l.AvailableLicenses = l.TotalEntitlements - l.AssignedLicenses
	return nil
}

type ComplianceEvent struct {
	BaseModel
	LicenseID       uuid.UUID           `json:"license_id" gorm:"type:uuid;not null;index"`
	Type            ComplianceEventType `json:"type" gorm:"type:varchar(20);not null;index"`
	Severity        ComplianceSeverity  `json:"severity" gorm:"type:varchar(10);not null;index"`
	DetectedAt      time.Time           `json:"detected_at" gorm:"not null;index"`
	Details         string              `json:"details" gorm:"type:text"`
	IsResolved      bool                `json:"is_resolved" gorm:"not null;default:false;index"`
	ResolvedBy      string              `json:"resolved_by,omitempty" gorm:"size:100"`
	ResolutionNotes string              `json:"resolution_notes,omitempty" gorm:"type:text"`

	License *License `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
}

type Renewal struct {
	BaseModel
	LicenseID    uuid.UUID     `json:"license_id" gorm:"type:uuid;not null;index"`
	SoftwareName string        `json:"software_name" gorm:"size:200;not null"`
	Status       RenewalStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	DueDate      time.Time     `json:"due_date"`
	QuoteDetails string        `json:"quote_details" gorm:"type:text"`
	Cost         float64       `json:"cost" gorm:"type:decimal(18,2)"`
}

type CostAllocation struct {
	BaseModel
	LicenseID       uuid.UUID        `json:"license_id" gorm:"type:uuid;not null;index"`
	DepartmentID    string           `json:"department_id" gorm:"size:100;not null;index"`
	Method          AllocationMethod `json:"method" gorm:"type:varchar(20);not null"`
	Percent         float64          `json:"percent" gorm:"type:decimal(5,2);not null"`
	AllocatedAmount float64          `json:"allocated_amount" gorm:"type:decimal(18,2);not null"`
	Currency        string           `json:"currency" gorm:"size:3;not null;default:'USD'"`
	PeriodStart     time.Time        `json:"period_start"`
	PeriodEnd       time.Time        `json:"period_end"`

	License *License `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
}
