package mpesa

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrTokenUnavailable is matched by every token acquisition failure.
var ErrTokenUnavailable = errors.New("failed to obtain token")

// TokenError describes why the OAuth exchange failed.
type TokenError struct {
	StatusCode  int
	Code        string
	Description string
	Body        string
	Err         error
}

func (e *TokenError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", ErrTokenUnavailable, e.Err)
	case e.Description != "":
		return fmt.Sprintf("%s: %d %s", ErrTokenUnavailable, e.StatusCode, e.Description)
	default:
		return fmt.Sprintf("%s: status %d", ErrTokenUnavailable, e.StatusCode)
	}
}

func (e *TokenError) Is(target error) bool { return target == ErrTokenUnavailable }

func (e *TokenError) Unwrap() error { return e.Err }

// APIError is returned when an STK push or query is rejected or cannot be delivered.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return "M-Pesa API Error: " + e.Message
}

func (e *APIError) Unwrap() error { return e.Err }

// IsInProcess reports whether the provider says the STK push has not finished yet.
func IsInProcess(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeTransactionInProcess
}

// errorBody covers both Daraja's API error shape and the OAuth error shape.
type errorBody struct {
	RequestID           string `json:"requestId"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	OAuthError          string `json:"error"`
	OAuthDescription    string `json:"error_description"`
}

func parseErrorBody(body []byte) errorBody {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	return eb
}

// apiErrorFrom picks the most specific message the provider gave us.
func apiErrorFrom(status int, body []byte) *APIError {
	eb := parseErrorBody(body)
	msg := eb.ErrorMessage
	if msg == "" {
		msg = eb.ResponseDescription
	}
	if msg == "" {
		msg = fmt.Sprintf("request failed with status code %d", status)
	}
	code := eb.ErrorCode
	if code == "" {
		code = eb.ResponseCode
	}
	return &APIError{StatusCode: status, Code: code, Message: msg}
}
