package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stkpay/internal/middleware"
	"stkpay/internal/service"
	applog "stkpay/pkg/log"
)

const maxProofSize = 5 << 20 // 5MB

type ManualPaymentHandler struct {
	svc *service.ManualPaymentService
	log zerolog.Logger
}

func NewManualPaymentHandler(svc *service.ManualPaymentService) *ManualPaymentHandler {
	return &ManualPaymentHandler{svc: svc, log: applog.Component("manual_payment_handler")}
}

type ManualPaymentRequest struct {
	PhoneNumber      string          `json:"phoneNumber"`
	Amount           decimal.Decimal `json:"amount"`
	MpesaCode        string          `json:"mpesaCode"`
	AccountReference string          `json:"accountReference"`
}

type VerifyRequest struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
}

// Submit records a customer-reported M-Pesa code for review.
func (h *ManualPaymentHandler) Submit(c *gin.Context) {
	var req ManualPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}
	p, err := h.svc.Submit(service.ManualPaymentInput{
		PhoneNumber:      req.PhoneNumber,
		Amount:           req.Amount,
		MpesaCode:        req.MpesaCode,
		AccountReference: req.AccountReference,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Payment submitted for verification",
		"paymentId": p.ID,
	})
}

// Verify sets the review outcome (admin only).
func (h *ManualPaymentHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}
	var adminID *uint
	if id := middleware.GetUserID(c); id != 0 {
		adminID = &id
	}
	p, err := h.svc.Verify(req.PaymentID, req.Status, adminID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payment": p})
}

// UploadProof attaches a screenshot of the M-Pesa SMS to a submission.
func (h *ManualPaymentHandler) UploadProof(c *gin.Context) {
	if !h.svc.ProofsEnabled() {
		respondError(c, h.log, service.ErrUploadsDisabled)
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()
	if header.Size > maxProofSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 5MB)"})
		return
	}
	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "proof must be an image"})
		return
	}
	p, err := h.svc.AttachProof(c.Request.Context(), c.Param("id"), file)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payment": p})
}
