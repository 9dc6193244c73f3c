package mpesa

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

const (
	ItemAmount             = "Amount"
	ItemMpesaReceiptNumber = "MpesaReceiptNumber"
	ItemTransactionDate    = "TransactionDate"
	ItemPhoneNumber        = "PhoneNumber"
)

// CallbackEnvelope is the body Daraja POSTs to the configured callback URL.
type CallbackEnvelope struct {
	Body struct {
		STKCallback *STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem keeps Value raw: Daraja sends numbers for dates and phones, and a
// 14-digit date does not survive a float64 round trip.
type MetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// Text renders the value without JSON quoting. Missing or null values yield "".
func (m MetadataItem) Text() string {
	v := bytes.TrimSpace(m.Value)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return ""
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
	}
	return string(v)
}

func (c *STKCallback) Succeeded() bool { return c.ResultCode == 0 }

// Item finds a metadata value by name; nil when absent.
func (c *STKCallback) Item(name string) *string {
	if c.CallbackMetadata == nil {
		return nil
	}
	for _, it := range c.CallbackMetadata.Item {
		if it.Name == name {
			s := it.Text()
			if s == "" {
				return nil
			}
			return &s
		}
	}
	return nil
}

// ReceiptNumber is only reported for successful payments.
func (c *STKCallback) ReceiptNumber() *string {
	if !c.Succeeded() {
		return nil
	}
	return c.Item(ItemMpesaReceiptNumber)
}

// TransactionDate parses the TransactionDate item of a successful callback.
func (c *STKCallback) TransactionDate() *time.Time {
	if !c.Succeeded() {
		return nil
	}
	raw := c.Item(ItemTransactionDate)
	if raw == nil {
		return nil
	}
	t, ok := ParseTransactionDate(*raw)
	if !ok {
		return nil
	}
	return &t
}

// ParseTransactionDate slices a YYYYMMDDHHmmss value by position into an EAT time.
func ParseTransactionDate(s string) (time.Time, bool) {
	if len(s) != 14 {
		return time.Time{}, false
	}
	var parts [6]int
	bounds := [7]int{0, 4, 6, 8, 10, 12, 14}
	for i := 0; i < 6; i++ {
		n, err := strconv.Atoi(s[bounds[i]:bounds[i+1]])
		if err != nil || n < 0 {
			return time.Time{}, false
		}
		parts[i] = n
	}
	return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], 0, EAT), true
}
