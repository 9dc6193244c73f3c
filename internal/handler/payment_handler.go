package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stkpay/internal/service"
	applog "stkpay/pkg/log"
)

type PaymentHandler struct {
	svc *service.PaymentService
	log zerolog.Logger
}

func NewPaymentHandler(svc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc, log: applog.Component("payment_handler")}
}

type InitiateRequest struct {
	PhoneNumber      string          `json:"phoneNumber"`
	Amount           decimal.Decimal `json:"amount"`
	AccountReference string          `json:"accountReference"`
	TransactionDesc  string          `json:"transactionDesc"`
}

type QueryRequest struct {
	CheckoutRequestID string `json:"checkoutRequestId"`
}

// Initiate sends an STK push to the customer's phone.
func (h *PaymentHandler) Initiate(c *gin.Context) {
	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}
	res, err := h.svc.Initiate(c.Request.Context(), service.InitiateInput{
		PhoneNumber:      req.PhoneNumber,
		Amount:           req.Amount,
		AccountReference: req.AccountReference,
		TransactionDesc:  req.TransactionDesc,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"message":           res.CustomerMessage,
		"checkoutRequestId": res.Transaction.CheckoutRequestID,
		"transactionId":     res.Transaction.ID,
	})
}

// Status returns the stored transaction for ?id=.
func (h *PaymentHandler) Status(c *gin.Context) {
	tx, err := h.svc.Status(c.Query("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// Query asks Daraja for the STK result and reconciles a pending transaction.
func (h *PaymentHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return
	}
	res, err := h.svc.QueryProvider(c.Request.Context(), req.CheckoutRequestID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	body := gin.H{"inProcess": res.InProcess, "transaction": res.Transaction}
	if res.InProcess {
		body["message"] = "The transaction is being processed"
	} else {
		body["query"] = res.Response
	}
	c.JSON(http.StatusOK, body)
}
