package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stkpay/internal/service"
)

type DiagnosticsHandler struct {
	svc *service.DiagnosticsService
}

func NewDiagnosticsHandler(svc *service.DiagnosticsService) *DiagnosticsHandler {
	return &DiagnosticsHandler{svc: svc}
}

// Get runs the credential self-check. 500 when no token could be obtained.
func (h *DiagnosticsHandler) Get(c *gin.Context) {
	report := h.svc.Run(c.Request.Context())
	status := http.StatusOK
	if !report.TokenTest.Success {
		status = http.StatusInternalServerError
	}
	c.JSON(status, report)
}
