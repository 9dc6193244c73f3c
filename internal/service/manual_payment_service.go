package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"stkpay/internal/domain"
	"stkpay/internal/models"
	"stkpay/internal/repository"
	applog "stkpay/pkg/log"
	"stkpay/pkg/mpesa"
)

const resourceManualPayment = "manual_payment"

// ProofUploader stores a payment screenshot and returns its public URL.
type ProofUploader interface {
	UploadProof(ctx context.Context, r io.Reader, publicID string) (string, error)
}

type ManualPaymentInput struct {
	PhoneNumber      string
	Amount           decimal.Decimal
	MpesaCode        string
	AccountReference string
}

type ManualPaymentService struct {
	repo     *repository.ManualPaymentRepository
	audit    *repository.AuditRepository
	uploader ProofUploader
	now      func() time.Time
	log      zerolog.Logger
}

// NewManualPaymentService wires the service. uploader may be nil, which disables proofs.
func NewManualPaymentService(repo *repository.ManualPaymentRepository, audit *repository.AuditRepository, uploader ProofUploader) *ManualPaymentService {
	return &ManualPaymentService{
		repo:     repo,
		audit:    audit,
		uploader: uploader,
		now:      time.Now,
		log:      applog.Component("manual_payment"),
	}
}

// Submit records a customer-reported code. Each code is accepted once.
func (s *ManualPaymentService) Submit(in ManualPaymentInput) (*models.ManualPayment, error) {
	code := strings.ToUpper(strings.TrimSpace(in.MpesaCode))
	phone := strings.TrimSpace(in.PhoneNumber)
	ref := strings.TrimSpace(in.AccountReference)
	if phone == "" || code == "" || ref == "" || !in.Amount.IsPositive() {
		return nil, NewValidationError(MsgMissingFields)
	}

	_, err := s.repo.GetByCode(code)
	if err == nil {
		return nil, ErrDuplicateMpesaCode
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	p := &models.ManualPayment{
		PhoneNumber:      mpesa.NormalizePhone(phone),
		Amount:           in.Amount,
		MpesaCode:        code,
		AccountReference: ref,
		Status:           domain.ManualPending,
	}
	if err := s.repo.Create(p); err != nil {
		// lost a race with a concurrent submission of the same code
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateMpesaCode
		}
		return nil, err
	}
	s.log.Info().Str("payment_id", p.ID).Str("mpesa_code", code).Msg("manual payment submitted")
	return p, nil
}

// Verify sets the review status. VerifiedAt is stamped only for verified.
func (s *ManualPaymentService) Verify(paymentID, status string, adminID *uint) (*models.ManualPayment, error) {
	paymentID = strings.TrimSpace(paymentID)
	status = strings.ToLower(strings.TrimSpace(status))
	if paymentID == "" || status == "" {
		return nil, NewValidationError(MsgMissingFields)
	}
	if !domain.IsManualStatus(status) {
		return nil, NewValidationError("invalid status %q", status)
	}
	if _, err := s.repo.GetByID(paymentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrManualPaymentNotFound
		}
		return nil, err
	}

	var verifiedAt *time.Time
	if status == domain.ManualVerified {
		now := s.now()
		verifiedAt = &now
	}
	if err := s.repo.UpdateStatus(paymentID, status, verifiedAt, adminID); err != nil {
		return nil, err
	}
	if s.audit != nil {
		if err := s.audit.Record(adminID, domain.AuditManualVerified, resourceManualPayment, paymentID, "", map[string]string{"status": status}); err != nil {
			s.log.Error().Err(err).Msg("audit write failed")
		}
	}
	s.log.Info().Str("payment_id", paymentID).Str("status", status).Msg("manual payment reviewed")
	return s.repo.GetByID(paymentID)
}

func (s *ManualPaymentService) ProofsEnabled() bool { return s.uploader != nil }

// AttachProof uploads a screenshot for a payment still awaiting review and
// stores its URL. Reviewed payments keep the proof they were judged on.
func (s *ManualPaymentService) AttachProof(ctx context.Context, paymentID string, r io.Reader) (*models.ManualPayment, error) {
	if s.uploader == nil {
		return nil, ErrUploadsDisabled
	}
	p, err := s.repo.GetByID(paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrManualPaymentNotFound
		}
		return nil, err
	}
	if p.Status != domain.ManualPending {
		return nil, ErrPaymentReviewed
	}
	url, err := s.uploader.UploadProof(ctx, r, paymentID)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.SetProofURL(paymentID, url)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPaymentReviewed
	}
	return s.repo.GetByID(paymentID)
}
