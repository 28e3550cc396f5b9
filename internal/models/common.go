// internal/models/common.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// IDs are assigned client-side so the models work on both the postgres
// deployment and the sqlite databases the tests run against.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Enums
type LicenseType string

const (
	LicenseTypePerUser      LicenseType = "per_user"
	LicenseTypePerDevice    LicenseType = "per_device"
	LicenseTypeConcurrent   LicenseType = "concurrent"
	LicenseTypeSubscription LicenseType = "subscription"
)

func (t LicenseType) Valid() bool {
	switch t {
	case LicenseTypePerUser, LicenseTypePerDevice, LicenseTypeConcurrent, LicenseTypeSubscription:
		return true
	}
	return false
}

type ComplianceEventType string

const (
	EventTypeExpiry  ComplianceEventType = "expiry"
	EventTypeOverUse ComplianceEventType = "over_use"
	EventTypeUnused  ComplianceEventType = "unused"
)

type ComplianceSeverity string

const (
	SeverityLow    ComplianceSeverity = "low"
	SeverityMedium ComplianceSeverity = "medium"
	SeverityHigh   ComplianceSeverity = "high"
)

// Rank orders severities for display, highest first.
func (s ComplianceSeverity) Rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}

type RenewalStatus string

const (
	RenewalStatusPending  RenewalStatus = "pending"
	RenewalStatusApproved RenewalStatus = "approved"
	RenewalStatusRejected RenewalStatus = "rejected"
)

// Terminal reports whether a renewal decision can no longer change.
func (s RenewalStatus) Terminal() bool {
	return s == RenewalStatusApproved || s == RenewalStatusRejected
}

type AllocationMethod string

const (
	AllocationMethodFixed      AllocationMethod = "fixed"
	AllocationMethodUsageBased AllocationMethod = "usage_based"
)

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleFinance UserRole = "finance"
	RoleAuditor UserRole = "auditor"
	RoleViewer  UserRole = "viewer"
)
