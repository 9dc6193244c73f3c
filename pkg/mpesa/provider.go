// Package mpesa talks to the Safaricom Daraja API: OAuth tokens, STK push
// initiation, STK status queries and the asynchronous STK callback payload.
package mpesa

import (
	"context"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypePayBill   = "CustomerPayBillOnline"
	TransactionTypeBuyGoods  = "CustomerBuyGoodsOnline"
	DefaultTransactionDesc   = "Payment"
	ResponseCodeAccepted     = "0"
	CodeTransactionInProcess = "500.001.1001"
)

// STKPushRequest is what a caller supplies to start an STK push.
type STKPushRequest struct {
	PhoneNumber      string // free-form, normalized before sending
	Amount           decimal.Decimal
	AccountReference string
	TransactionDesc  string
}

// STKPushResponse is Daraja's synchronous acknowledgement of an STK push.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	// PhoneNumber is the normalized number the prompt was sent to.
	PhoneNumber string `json:"-"`
}

// STKQueryResponse is the provider-side status of an STK push.
type STKQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// Provider is the STK push surface used by the payment service.
type Provider interface {
	STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error)
	QuerySTK(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error)
}
