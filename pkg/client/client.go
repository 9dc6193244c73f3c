// Package client is a typed HTTP client for the stkpay server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stkpay/pkg/poller"
)

// Error is a non-2xx answer from the server.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("stkpay: %d %s", e.StatusCode, e.Message)
}

type Transaction struct {
	ID                 string          `json:"id"`
	MerchantRequestID  string          `json:"merchantRequestId"`
	CheckoutRequestID  string          `json:"checkoutRequestId"`
	PhoneNumber        string          `json:"phoneNumber"`
	Amount             decimal.Decimal `json:"amount"`
	AccountReference   string          `json:"accountReference"`
	TransactionDesc    string          `json:"transactionDesc"`
	Status             string          `json:"status"`
	ResultCode         *int            `json:"resultCode"`
	ResultDesc         *string         `json:"resultDesc"`
	MpesaReceiptNumber *string         `json:"mpesaReceiptNumber"`
	TransactionDate    *time.Time      `json:"transactionDate"`
	CreatedAt          time.Time       `json:"createdAt"`
}

type InitiateRequest struct {
	PhoneNumber      string          `json:"phoneNumber"`
	Amount           decimal.Decimal `json:"amount"`
	AccountReference string          `json:"accountReference"`
	TransactionDesc  string          `json:"transactionDesc,omitempty"`
}

type InitiateResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	CheckoutRequestID string `json:"checkoutRequestId"`
	TransactionID     string `json:"transactionId"`
}

type ManualPaymentRequest struct {
	PhoneNumber      string          `json:"phoneNumber"`
	Amount           decimal.Decimal `json:"amount"`
	MpesaCode        string          `json:"mpesaCode"`
	AccountReference string          `json:"accountReference"`
}

type ManualPaymentResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	PaymentID string `json:"paymentId"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	var out InitiateResponse
	if err := c.do(ctx, http.MethodPost, "/payment/initiate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Status(ctx context.Context, transactionID string) (*Transaction, error) {
	var out struct {
		Transaction *Transaction `json:"transaction"`
	}
	if err := c.do(ctx, http.MethodGet, "/payment/status?id="+url.QueryEscape(transactionID), nil, &out); err != nil {
		return nil, err
	}
	if out.Transaction == nil {
		return nil, &Error{StatusCode: http.StatusOK, Message: "response has no transaction"}
	}
	return out.Transaction, nil
}

// FetchStatus adapts Status for the poller.
func (c *Client) FetchStatus(ctx context.Context, transactionID string) (*poller.Snapshot, error) {
	tx, err := c.Status(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	snap := &poller.Snapshot{Status: tx.Status}
	if tx.MpesaReceiptNumber != nil {
		snap.MpesaReceiptNumber = *tx.MpesaReceiptNumber
	}
	if tx.ResultDesc != nil {
		snap.ResultDesc = *tx.ResultDesc
	}
	return snap, nil
}

func (c *Client) SubmitManual(ctx context.Context, req ManualPaymentRequest) (*ManualPaymentResponse, error) {
	var out ManualPaymentResponse
	if err := c.do(ctx, http.MethodPost, "/manual-payment", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &Error{StatusCode: resp.StatusCode, Message: msg}
	}
	return json.Unmarshal(raw, out)
}

var _ poller.Fetcher = (*Client)(nil)
