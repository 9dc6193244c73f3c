package repository

import (
	"time"

	"stkpay/internal/domain"
	"stkpay/internal/models"

	"gorm.io/gorm"
)

type ManualPaymentRepository struct {
	db *gorm.DB
}

func NewManualPaymentRepository(db *gorm.DB) *ManualPaymentRepository {
	return &ManualPaymentRepository{db: db}
}

func (r *ManualPaymentRepository) Create(p *models.ManualPayment) error {
	return r.db.Create(p).Error
}

func (r *ManualPaymentRepository) GetByID(id string) (*models.ManualPayment, error) {
	var p models.ManualPayment
	err := r.db.Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ManualPaymentRepository) GetByCode(code string) (*models.ManualPayment, error) {
	var p models.ManualPayment
	err := r.db.Where("mpesa_code = ?", code).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStatus sets status and the verification fields together.
// verifiedAt and verifiedBy are written even when nil so a re-review clears them.
func (r *ManualPaymentRepository) UpdateStatus(id, status string, verifiedAt *time.Time, verifiedBy *uint) error {
	return r.db.Model(&models.ManualPayment{}).
		Where("id = ?", id).
		Select("status", "verified_at", "verified_by", "updated_at").
		Updates(map[string]interface{}{
			"status":      status,
			"verified_at": verifiedAt,
			"verified_by": verifiedBy,
			"updated_at":  time.Now(),
		}).Error
}

// SetProofURL stores the proof only while the payment is still pending and
// reports whether a row was updated.
func (r *ManualPaymentRepository) SetProofURL(id, url string) (bool, error) {
	res := r.db.Model(&models.ManualPayment{}).
		Where("id = ? AND status = ?", id, domain.ManualPending).
		Update("proof_url", url)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
