package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"stkpay/internal/service"
	applog "stkpay/pkg/log"
	"stkpay/pkg/mpesa"
)

const maxCallbackBody = 64 << 10

type CallbackHandler struct {
	svc *service.PaymentService
	log zerolog.Logger
}

func NewCallbackHandler(svc *service.PaymentService) *CallbackHandler {
	return &CallbackHandler{svc: svc, log: applog.Component("callback")}
}

// Confirm receives Daraja's STK result. Anything but a storage failure is
// acknowledged so Daraja stops redelivering.
func (h *CallbackHandler) Confirm(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		h.log.Error().Err(err).Msg("read callback body")
		c.JSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}
	h.log.Debug().RawJSON("body", safeJSON(body)).Msg("callback received")

	var env mpesa.CallbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Body.STKCallback == nil {
		h.log.Warn().Err(err).Msg("malformed callback")
		c.JSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}
	cb := env.Body.STKCallback
	outcome, err := h.svc.HandleCallback(cb)
	if err != nil {
		h.log.Error().Err(err).Str("checkout_request_id", cb.CheckoutRequestID).Msg("callback processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false})
		return
	}
	if outcome == service.CallbackUnknown {
		h.log.Warn().Str("checkout_request_id", cb.CheckoutRequestID).Msg("acknowledged callback for unknown transaction")
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// safeJSON keeps zerolog from emitting broken output for non-JSON bodies.
func safeJSON(b []byte) []byte {
	if json.Valid(b) {
		return b
	}
	q, _ := json.Marshal(string(b))
	return q
}
