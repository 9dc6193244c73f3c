package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"

	"stkpay/config"
	"stkpay/internal/service"
	"stkpay/pkg/mpesa"
)

type fetcherFunc func(ctx context.Context) (*oauth2.Token, error)

func (f fetcherFunc) FetchToken(ctx context.Context) (*oauth2.Token, error) { return f(ctx) }

func goodMpesaConfig() config.MpesaConfig {
	return config.MpesaConfig{
		ConsumerKey:    strings.Repeat("k", 48),
		ConsumerSecret: strings.Repeat("s", 64),
		Passkey:        strings.Repeat("p", 64),
		ShortCode:      "174379",
		Environment:    config.MpesaSandbox,
	}
}

func TestDiagnosticsHealthy(t *testing.T) {
	fetch := fetcherFunc(func(ctx context.Context) (*oauth2.Token, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return &oauth2.Token{AccessToken: "abcdefghijklmnopqrstuvwxyz", Expiry: time.Now().Add(time.Hour)}, nil
	})
	r := service.NewDiagnosticsService(goodMpesaConfig(), fetch).Run(context.Background())

	assert.True(t, r.EnvCheck.HasConsumerKey)
	assert.Equal(t, "kkkkkkkk...", r.EnvCheck.ConsumerKeyFirstChars)
	assert.Equal(t, "ppppppppppppppp...", r.EnvCheck.PasskeyFirstChars)
	assert.Equal(t, config.SandboxBaseURL, r.EnvCheck.BaseURL)
	assert.Equal(t, service.EnvIssues{}, r.EnvCheck.Issues)

	assert.True(t, r.TokenTest.Success)
	assert.Equal(t, "abcdefghijklmnopqrst...", r.TokenTest.TokenPreview)
	assert.InDelta(t, 3600, r.TokenTest.ExpiresIn, 2)
	assert.Contains(t, r.Diagnosis[len(r.Diagnosis)-1], "SUCCESS")
}

func TestDiagnosticsFlagsBadCredentials(t *testing.T) {
	cfg := config.MpesaConfig{
		ConsumerKey:    `"short key"`,
		ConsumerSecret: "",
		Passkey:        "abc",
		Environment:    config.MpesaSandbox,
	}
	fetch := fetcherFunc(func(ctx context.Context) (*oauth2.Token, error) {
		return nil, &mpesa.TokenError{StatusCode: 400, Code: "invalid_client", Description: "Invalid Authentication passed", Body: `{"error":"invalid_client"}`}
	})
	r := service.NewDiagnosticsService(cfg, fetch).Run(context.Background())

	issues := r.EnvCheck.Issues
	assert.True(t, issues.ConsumerKeyHasSpaces)
	assert.True(t, issues.ConsumerKeyHasQuotes)
	assert.True(t, issues.ConsumerKeyTooShort)
	assert.True(t, issues.ConsumerSecretTooShort)
	assert.True(t, issues.PasskeyWrongLength)
	assert.False(t, r.EnvCheck.HasConsumerSecret)
	assert.Equal(t, "...", r.EnvCheck.ConsumerSecretFirstChars)

	assert.False(t, r.TokenTest.Success)
	assert.Equal(t, 400, r.TokenTest.Status)
	assert.Equal(t, "invalid_client", r.TokenTest.Error)
	assert.Equal(t, "Invalid Authentication passed", r.TokenTest.ErrorDescription)

	joined := strings.Join(r.Diagnosis, "\n")
	assert.Contains(t, joined, "MPESA_CONSUMER_SECRET is not set")
	assert.Contains(t, joined, "FAILED")
}
