package mpesa

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// StubProvider accepts every STK push without calling Daraja. Used for offline
// storefront development; callbacks must be posted by hand.
type StubProvider struct{}

func (s *StubProvider) STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return &STKPushResponse{
		MerchantRequestID:   fmt.Sprintf("stub-%s", id[:12]),
		CheckoutRequestID:   fmt.Sprintf("ws_CO_stub_%s", id[12:]),
		ResponseCode:        ResponseCodeAccepted,
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
		PhoneNumber:         NormalizePhone(req.PhoneNumber),
	}, nil
}

func (s *StubProvider) QuerySTK(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	return nil, &APIError{Code: CodeTransactionInProcess, Message: "The transaction is being processed"}
}

var _ Provider = (*StubProvider)(nil)
