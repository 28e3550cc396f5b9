// internal/models/audit.go
package models

import "time"

// AuditLog is append-only. Rows are written inside the same transaction as
// the mutation they describe and are never updated or deleted.
type AuditLog struct {
	BaseModel
	Action      string    `json:"action" gorm:"size:50;not null;index"`
	EntityName  string    `json:"entity_name" gorm:"size:50;not null;index"`
	EntityID    string    `json:"entity_id" gorm:"size:100;index"`
	Timestamp   time.Time `json:"timestamp" gorm:"not null;index"`
	PerformedBy string    `json:"performed_by" gorm:"size:100;not null"`
	Changes     string    `json:"changes" gorm:"type:text"`
}
