package repository

import (
	"encoding/json"

	"stkpay/internal/models"

	"gorm.io/gorm"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record appends an audit row. meta is stored as JSON when non-nil.
func (r *AuditRepository) Record(userID *uint, action, resource, resourceID, ip string, meta interface{}) error {
	entry := &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IP:         ip,
	}
	if meta != nil {
		b, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		entry.Metadata = string(b)
	}
	return r.db.Create(entry).Error
}

func (r *AuditRepository) ListByResource(resource, resourceID string) ([]models.AuditLog, error) {
	var out []models.AuditLog
	err := r.db.Where("resource = ? AND resource_id = ?", resource, resourceID).Order("id asc").Find(&out).Error
	return out, err
}
