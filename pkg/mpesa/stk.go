package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkQueryPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// STKPush sends the payment prompt to the customer's phone.
func (c *Client) STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	tok, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}
	ts := Timestamp(c.now())
	phone := NormalizePhone(req.PhoneNumber)
	desc := req.TransactionDesc
	if desc == "" {
		desc = DefaultTransactionDesc
	}
	payload := stkPushPayload{
		BusinessShortCode: c.settings.ShortCode,
		Password:          Password(c.settings.ShortCode, c.settings.Passkey, ts),
		Timestamp:         ts,
		TransactionType:   c.settings.TransactionType,
		Amount:            req.Amount.Floor().IntPart(),
		PartyA:            phone,
		PartyB:            c.settings.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.settings.CallbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   desc,
	}
	c.log.Info().
		Str("short_code", payload.BusinessShortCode).
		Str("phone", phone).
		Int64("amount", payload.Amount).
		Str("account_reference", payload.AccountReference).
		Str("callback_url", payload.CallBackURL).
		Msg("stk push request")

	var out STKPushResponse
	if err := c.post(ctx, tok, stkPushPath, payload, &out); err != nil {
		c.log.Error().Err(err).Str("phone", phone).Msg("stk push failed")
		return nil, err
	}
	if out.ResponseCode != ResponseCodeAccepted {
		msg := out.ResponseDescription
		if msg == "" {
			msg = "unexpected response code " + out.ResponseCode
		}
		return nil, &APIError{StatusCode: http.StatusOK, Code: out.ResponseCode, Message: msg}
	}
	out.PhoneNumber = phone
	c.log.Info().
		Str("merchant_request_id", out.MerchantRequestID).
		Str("checkout_request_id", out.CheckoutRequestID).
		Str("response_code", out.ResponseCode).
		Msg("stk push accepted")
	return &out, nil
}

// QuerySTK asks Daraja for the current result of an STK push.
func (c *Client) QuerySTK(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	tok, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}
	ts := Timestamp(c.now())
	payload := stkQueryPayload{
		BusinessShortCode: c.settings.ShortCode,
		Password:          Password(c.settings.ShortCode, c.settings.Passkey, ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}
	var out STKQueryResponse
	if err := c.post(ctx, tok, stkQueryPath, payload, &out); err != nil {
		c.log.Warn().Err(err).Str("checkout_request_id", checkoutRequestID).Msg("stk query failed")
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, tok *oauth2.Token, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.settings.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return &APIError{Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	tok.SetAuthHeader(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	c.log.Debug().Str("path", path).Int("status", resp.StatusCode).Str("body", string(respBody)).Msg("daraja response")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiErrorFrom(resp.StatusCode, respBody)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "invalid response body: " + err.Error(), Err: err}
	}
	return nil
}
