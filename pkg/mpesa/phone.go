package mpesa

import "strings"

const countryCode = "254"

// NormalizePhone turns a free-form Kenyan number into the 2547XXXXXXXX shape Daraja
// expects. Inputs that fit none of the known shapes are returned as bare digits.
func NormalizePhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	switch {
	case strings.HasPrefix(digits, "0"):
		return countryCode + digits[1:]
	case strings.HasPrefix(digits, countryCode):
		// "+254..." lands here too once the "+" is stripped
		return digits
	case len(digits) == 9:
		return countryCode + digits
	default:
		return digits
	}
}
