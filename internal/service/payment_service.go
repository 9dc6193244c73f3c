package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"stkpay/internal/domain"
	"stkpay/internal/models"
	"stkpay/internal/repository"
	applog "stkpay/pkg/log"
	"stkpay/pkg/mpesa"
)

const resourceTransaction = "transaction"

// Notifier receives every transaction whose outcome was just written.
type Notifier interface {
	PublishTransaction(tx *models.Transaction)
}

type InitiateInput struct {
	PhoneNumber      string
	Amount           decimal.Decimal
	AccountReference string
	TransactionDesc  string
}

type InitiateResult struct {
	Transaction     *models.Transaction
	CustomerMessage string
}

// CallbackOutcome says what HandleCallback did with a delivery.
type CallbackOutcome int

const (
	CallbackApplied CallbackOutcome = iota
	CallbackUnknown                 // no transaction with that CheckoutRequestID
	CallbackIgnored                 // transaction already settled on a different outcome
)

// QueryResult is the provider's view of an STK push, plus the stored
// transaction when one exists.
type QueryResult struct {
	InProcess   bool
	Response    *mpesa.STKQueryResponse
	Transaction *models.Transaction
}

type PaymentService struct {
	provider mpesa.Provider
	txRepo   *repository.TransactionRepository
	audit    *repository.AuditRepository
	notifier Notifier
	log      zerolog.Logger
}

func NewPaymentService(provider mpesa.Provider, txRepo *repository.TransactionRepository, audit *repository.AuditRepository, notifier Notifier) *PaymentService {
	return &PaymentService{
		provider: provider,
		txRepo:   txRepo,
		audit:    audit,
		notifier: notifier,
		log:      applog.Component("payment"),
	}
}

// Initiate sends the STK push and records a pending transaction once Daraja accepts it.
func (s *PaymentService) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.AccountReference = strings.TrimSpace(in.AccountReference)
	if in.PhoneNumber == "" || in.AccountReference == "" || !in.Amount.IsPositive() {
		return nil, NewValidationError(MsgMissingFields)
	}
	// Daraja charges whole shillings; record what is charged, not what was typed.
	in.Amount = in.Amount.Floor()
	if in.Amount.LessThan(decimal.NewFromInt(1)) {
		return nil, NewValidationError("Amount must be at least 1")
	}
	if in.TransactionDesc == "" {
		in.TransactionDesc = mpesa.DefaultTransactionDesc
	}

	resp, err := s.provider.STKPush(ctx, mpesa.STKPushRequest{
		PhoneNumber:      in.PhoneNumber,
		Amount:           in.Amount,
		AccountReference: in.AccountReference,
		TransactionDesc:  in.TransactionDesc,
	})
	if err != nil {
		return nil, &UpstreamError{Op: "stk push", Err: err}
	}

	phone := resp.PhoneNumber
	if phone == "" {
		phone = mpesa.NormalizePhone(in.PhoneNumber)
	}
	tx := &models.Transaction{
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: resp.CheckoutRequestID,
		PhoneNumber:       phone,
		Amount:            in.Amount,
		AccountReference:  in.AccountReference,
		TransactionDesc:   in.TransactionDesc,
		PaymentMode:       domain.PaymentModeSTKPush,
		Status:            domain.TransactionPending,
	}
	if err := s.txRepo.Create(tx); err != nil {
		// The prompt is already on the customer's phone; the callback will be acknowledged as unknown.
		s.log.Error().Err(err).Str("checkout_request_id", resp.CheckoutRequestID).Msg("failed to record transaction")
		return nil, err
	}
	s.log.Info().Str("transaction_id", tx.ID).Str("checkout_request_id", tx.CheckoutRequestID).Msg("transaction created")
	return &InitiateResult{Transaction: tx, CustomerMessage: resp.CustomerMessage}, nil
}

// HandleCallback applies an STK result to its transaction. Redelivery of the
// same result writes the same fields again.
func (s *PaymentService) HandleCallback(cb *mpesa.STKCallback) (CallbackOutcome, error) {
	log := s.log.With().
		Str("checkout_request_id", cb.CheckoutRequestID).
		Int("result_code", cb.ResultCode).
		Logger()

	tx, err := s.txRepo.GetByCheckoutRequestID(cb.CheckoutRequestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn().Msg("callback for unknown transaction")
		return CallbackUnknown, nil
	}
	if err != nil {
		return CallbackApplied, err
	}

	res := repository.TransactionResult{
		Status:     statusForResult(cb.ResultCode),
		ResultCode: cb.ResultCode,
		ResultDesc: cb.ResultDesc,
	}
	if cb.Succeeded() {
		res.MpesaReceiptNumber = cb.ReceiptNumber()
		res.TransactionDate = cb.TransactionDate()
	}

	applied, err := s.txRepo.ApplyResult(cb.CheckoutRequestID, domain.TransactionPending, res)
	if err != nil {
		return CallbackApplied, err
	}
	if !applied {
		log.Warn().Str("transaction_id", tx.ID).Str("status", tx.Status).Msg("callback conflicts with settled transaction, ignored")
		s.record(domain.AuditCallbackIgnored, tx.ID, map[string]interface{}{"resultCode": cb.ResultCode, "status": tx.Status})
		return CallbackIgnored, nil
	}

	log.Info().Str("transaction_id", tx.ID).Str("status", res.Status).Msg("callback applied")
	s.record(domain.AuditCallbackApplied, tx.ID, map[string]interface{}{"resultCode": cb.ResultCode, "resultDesc": cb.ResultDesc})
	s.publish(tx.ID)
	return CallbackApplied, nil
}

func (s *PaymentService) Status(id string) (*models.Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewValidationError("Transaction ID required")
	}
	tx, err := s.txRepo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	return tx, err
}

// QueryProvider asks Daraja for the result of an STK push. A final result for a
// transaction still pending is written to it, which recovers lost callbacks.
func (s *PaymentService) QueryProvider(ctx context.Context, checkoutRequestID string) (*QueryResult, error) {
	checkoutRequestID = strings.TrimSpace(checkoutRequestID)
	if checkoutRequestID == "" {
		return nil, NewValidationError("checkoutRequestId required")
	}
	out := &QueryResult{}
	tx, err := s.txRepo.GetByCheckoutRequestID(checkoutRequestID)
	switch {
	case err == nil:
		out.Transaction = tx
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	resp, err := s.provider.QuerySTK(ctx, checkoutRequestID)
	if mpesa.IsInProcess(err) {
		out.InProcess = true
		return out, nil
	}
	if err != nil {
		return nil, &UpstreamError{Op: "stk query", Err: err}
	}
	out.Response = resp

	code, convErr := strconv.Atoi(strings.TrimSpace(resp.ResultCode))
	if convErr != nil || tx == nil || tx.IsTerminal() {
		return out, nil
	}
	applied, err := s.txRepo.ApplyResult(checkoutRequestID, domain.TransactionPending, repository.TransactionResult{
		Status:     statusForResult(code),
		ResultCode: code,
		ResultDesc: resp.ResultDesc,
	})
	if err != nil {
		return nil, err
	}
	if applied {
		s.log.Info().Str("transaction_id", tx.ID).Int("result_code", code).Msg("query result applied")
		s.record(domain.AuditQueryApplied, tx.ID, map[string]interface{}{"resultCode": code, "resultDesc": resp.ResultDesc})
		out.Transaction = s.publish(tx.ID)
	}
	return out, nil
}

func statusForResult(code int) string {
	if code == 0 {
		return domain.TransactionSuccess
	}
	return domain.TransactionFailed
}

// publish reloads the transaction and hands it to the notifier.
func (s *PaymentService) publish(id string) *models.Transaction {
	tx, err := s.txRepo.GetByID(id)
	if err != nil {
		s.log.Error().Err(err).Str("transaction_id", id).Msg("reload after update failed")
		return nil
	}
	if s.notifier != nil {
		s.notifier.PublishTransaction(tx)
	}
	return tx
}

func (s *PaymentService) record(action, id string, meta interface{}) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(nil, action, resourceTransaction, id, "", meta); err != nil {
		s.log.Error().Err(err).Str("action", action).Msg("audit write failed")
	}
}
