package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"stkpay/internal/domain"
)

func init() {
	// Amounts go to the storefront as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Transaction is one STK push, created once Daraja has accepted it.
type Transaction struct {
	ID                 string          `gorm:"primaryKey;size:36" json:"id"`
	MerchantRequestID  string          `gorm:"size:64;not null" json:"merchantRequestId"`
	CheckoutRequestID  string          `gorm:"size:64;not null;uniqueIndex" json:"checkoutRequestId"`
	PhoneNumber        string          `gorm:"size:20;not null;index" json:"phoneNumber"`
	Amount             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	AccountReference   string          `gorm:"size:64;not null" json:"accountReference"`
	TransactionDesc    string          `gorm:"size:128" json:"transactionDesc"`
	PaymentMode        string          `gorm:"size:20;not null;default:'stk_push'" json:"paymentMode"`
	Status             string          `gorm:"size:20;not null;index" json:"status"` // pending, success, failed
	ResultCode         *int            `json:"resultCode"`
	ResultDesc         *string         `gorm:"size:255" json:"resultDesc"`
	MpesaReceiptNumber *string         `gorm:"size:32" json:"mpesaReceiptNumber"`
	TransactionDate    *time.Time      `json:"transactionDate"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.PaymentMode == "" {
		t.PaymentMode = domain.PaymentModeSTKPush
	}
	if t.Status == "" {
		t.Status = domain.TransactionPending
	}
	return nil
}

func (t *Transaction) IsTerminal() bool { return domain.IsTerminalTransaction(t.Status) }
