package mpesa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0712345678", "254712345678"},
		{"254712345678", "254712345678"},
		{"+254712345678", "254712345678"},
		{"712345678", "254712345678"},
		{"0712 345 678", "254712345678"},
		{"+254-712-345-678", "254712345678"},
		{"0110123456", "254110123456"},
		{"12345", "12345"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.in))
		})
	}
}

func TestNormalizePhoneIdempotent(t *testing.T) {
	for _, in := range []string{"0712345678", "254712345678", "+254712345678", "712345678"} {
		once := NormalizePhone(in)
		assert.Equal(t, once, NormalizePhone(once), in)
	}
}
