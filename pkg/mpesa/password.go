package mpesa

import (
	"encoding/base64"
	"time"
)

const timestampLayout = "20060102150405"

// EAT is Kenya's fixed UTC+3 offset. Daraja timestamps and callback dates use it.
var EAT = time.FixedZone("EAT", 3*60*60)

// Timestamp formats t as the 14-digit YYYYMMDDHHmmss value Daraja expects.
func Timestamp(t time.Time) string {
	return t.In(EAT).Format(timestampLayout)
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}
