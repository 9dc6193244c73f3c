package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"stkpay/internal/domain"
)

// ManualPayment is a customer-reported M-Pesa code awaiting admin review.
type ManualPayment struct {
	ID               string          `gorm:"primaryKey;size:36" json:"id"`
	PhoneNumber      string          `gorm:"size:20;not null" json:"phoneNumber"`
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	MpesaCode        string          `gorm:"size:32;not null;uniqueIndex" json:"mpesaCode"`
	AccountReference string          `gorm:"size:64;not null" json:"accountReference"`
	Status           string          `gorm:"size:20;not null;index" json:"status"` // pending, verified, rejected
	ProofURL         string          `gorm:"size:512" json:"proofUrl,omitempty"`
	VerifiedAt       *time.Time      `json:"verifiedAt"`
	VerifiedBy       *uint           `json:"verifiedBy,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (ManualPayment) TableName() string {
	return "manual_payments"
}

func (m *ManualPayment) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = domain.ManualPending
	}
	return nil
}
