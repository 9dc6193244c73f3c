package repository

import (
	"time"

	"stkpay/internal/models"

	"gorm.io/gorm"
)

// TransactionResult is the outcome written by a callback or a provider query.
type TransactionResult struct {
	Status             string
	ResultCode         int
	ResultDesc         string
	MpesaReceiptNumber *string
	TransactionDate    *time.Time
}

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(t *models.Transaction) error {
	return r.db.Create(t).Error
}

func (r *TransactionRepository) GetByID(id string) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.Where("id = ?", id).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) GetByCheckoutRequestID(checkoutRequestID string) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.Where("checkout_request_id = ?", checkoutRequestID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ApplyResult writes res to the transaction unless it already settled on a
// different status. Re-applying the same status is allowed. Returns false when
// the row was left untouched.
func (r *TransactionRepository) ApplyResult(checkoutRequestID, pending string, res TransactionResult) (bool, error) {
	tx := r.db.Model(&models.Transaction{}).
		Where("checkout_request_id = ? AND (status = ? OR status = ?)", checkoutRequestID, pending, res.Status).
		Select("status", "result_code", "result_desc", "mpesa_receipt_number", "transaction_date", "updated_at").
		Updates(map[string]interface{}{
			"status":               res.Status,
			"result_code":          res.ResultCode,
			"result_desc":          res.ResultDesc,
			"mpesa_receipt_number": res.MpesaReceiptNumber,
			"transaction_date":     res.TransactionDate,
			"updated_at":           time.Now(),
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
