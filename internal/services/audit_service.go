// internal/services/audit_service.go
package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/assetops/license-inventory/internal/models"
)

// AuditService appends to the audit trail. Entries are written through the
// transaction of the mutation they describe, so a committed change and its
// audit row always land together.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

func (s *AuditService) Record(tx *gorm.DB, action, entityName, entityID, actor, changes string) error {
	entry := &models.AuditLog{
		Action:      action,
		EntityName:  entityName,
		EntityID:    entityID,
		Timestamp:   time.Now().UTC(),
		PerformedBy: actor,
		Changes:     changes,
	}

	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// ListRecent returns the newest entries first, capped for the admin view.
func (s *AuditService) ListRecent(limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var entries []models.AuditLog
	if err := s.db.Order("timestamp DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch audit logs: %w", err)
	}
	return entries, nil
}
