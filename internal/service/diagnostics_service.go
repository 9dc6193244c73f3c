package service

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"stkpay/config"
	applog "stkpay/pkg/log"
	"stkpay/pkg/mpesa"
)

var (
	whitespaceRe = regexp.MustCompile(`\s`)
	quoteRe      = regexp.MustCompile(`["']`)
)

// TokenFetcher is the part of the Daraja client the self-check exercises.
type TokenFetcher interface {
	FetchToken(ctx context.Context) (*oauth2.Token, error)
}

type EnvIssues struct {
	ConsumerKeyHasSpaces    bool `json:"consumerKeyHasSpaces"`
	ConsumerSecretHasSpaces bool `json:"consumerSecretHasSpaces"`
	PasskeyHasSpaces        bool `json:"passkeyHasSpaces"`
	ConsumerKeyHasQuotes    bool `json:"consumerKeyHasQuotes"`
	ConsumerSecretHasQuotes bool `json:"consumerSecretHasQuotes"`
	ConsumerKeyTooShort     bool `json:"consumerKeyTooShort"`
	ConsumerSecretTooShort  bool `json:"consumerSecretTooShort"`
	PasskeyWrongLength      bool `json:"passkeyWrongLength"`
}

type EnvCheck struct {
	HasConsumerKey           bool      `json:"hasConsumerKey"`
	HasConsumerSecret        bool      `json:"hasConsumerSecret"`
	HasPasskey               bool      `json:"hasPasskey"`
	ConsumerKeyLength        int       `json:"consumerKeyLength"`
	ConsumerSecretLength     int       `json:"consumerSecretLength"`
	PasskeyLength            int       `json:"passkeyLength"`
	ConsumerKeyFirstChars    string    `json:"consumerKeyFirstChars"`
	ConsumerSecretFirstChars string    `json:"consumerSecretFirstChars"`
	PasskeyFirstChars        string    `json:"passkeyFirstChars"`
	ShortCode                string    `json:"shortCode"`
	Environment              string    `json:"environment"`
	BaseURL                  string    `json:"baseUrl"`
	Issues                   EnvIssues `json:"issues"`
}

type TokenTest struct {
	Success          bool   `json:"success"`
	Status           int    `json:"status,omitempty"`
	HasAccessToken   bool   `json:"hasAccessToken,omitempty"`
	TokenPreview     string `json:"tokenPreview,omitempty"`
	ExpiresIn        int64  `json:"expiresIn,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"errorDescription,omitempty"`
	Body             string `json:"fullError,omitempty"`
}

type DiagnosticsReport struct {
	EnvCheck  EnvCheck  `json:"step1_env_check"`
	TokenTest TokenTest `json:"step2_token_test"`
	Diagnosis []string  `json:"step3_diagnosis"`
}

type DiagnosticsService struct {
	cfg     config.MpesaConfig
	fetcher TokenFetcher
	log     zerolog.Logger
}

func NewDiagnosticsService(cfg config.MpesaConfig, fetcher TokenFetcher) *DiagnosticsService {
	return &DiagnosticsService{cfg: cfg, fetcher: fetcher, log: applog.Component("diagnostics")}
}

// Run checks the configured credentials and tries one token exchange.
func (s *DiagnosticsService) Run(ctx context.Context) *DiagnosticsReport {
	r := &DiagnosticsReport{EnvCheck: s.envCheck()}

	timeout := s.cfg.DiagnosticsTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	r.TokenTest = s.tokenTest(tctx)
	r.Diagnosis = diagnose(r)
	return r
}

func (s *DiagnosticsService) envCheck() EnvCheck {
	key, secret, passkey := s.cfg.ConsumerKey, s.cfg.ConsumerSecret, s.cfg.Passkey
	return EnvCheck{
		HasConsumerKey:           key != "",
		HasConsumerSecret:        secret != "",
		HasPasskey:               passkey != "",
		ConsumerKeyLength:        len(key),
		ConsumerSecretLength:     len(secret),
		PasskeyLength:            len(passkey),
		ConsumerKeyFirstChars:    mask(key, 8),
		ConsumerSecretFirstChars: mask(secret, 8),
		PasskeyFirstChars:        mask(passkey, 15),
		ShortCode:                s.cfg.ShortCode,
		Environment:              s.cfg.Environment,
		BaseURL:                  s.cfg.BaseURL(),
		Issues: EnvIssues{
			ConsumerKeyHasSpaces:    whitespaceRe.MatchString(key),
			ConsumerSecretHasSpaces: whitespaceRe.MatchString(secret),
			PasskeyHasSpaces:        whitespaceRe.MatchString(passkey),
			ConsumerKeyHasQuotes:    quoteRe.MatchString(key),
			ConsumerSecretHasQuotes: quoteRe.MatchString(secret),
			ConsumerKeyTooShort:     len(key) < 20,
			ConsumerSecretTooShort:  len(secret) < 20,
			PasskeyWrongLength:      len(passkey) != 64,
		},
	}
}

func (s *DiagnosticsService) tokenTest(ctx context.Context) TokenTest {
	tok, err := s.fetcher.FetchToken(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("token test failed")
		out := TokenTest{Success: false, Error: err.Error()}
		var te *mpesa.TokenError
		if errors.As(err, &te) {
			out.Status = te.StatusCode
			if te.Code != "" {
				out.Error = te.Code
			}
			out.ErrorDescription = te.Description
			out.Body = te.Body
		}
		return out
	}
	out := TokenTest{
		Success:        true,
		Status:         http.StatusOK,
		HasAccessToken: tok.AccessToken != "",
		TokenPreview:   mask(tok.AccessToken, 20),
	}
	if !tok.Expiry.IsZero() {
		out.ExpiresIn = int64(time.Until(tok.Expiry).Round(time.Second).Seconds())
	}
	return out
}

func diagnose(r *DiagnosticsReport) []string {
	env, issues := r.EnvCheck, r.EnvCheck.Issues
	var out []string
	if !env.HasConsumerKey {
		out = append(out, "CRITICAL: MPESA_CONSUMER_KEY is not set")
	}
	if !env.HasConsumerSecret {
		out = append(out, "CRITICAL: MPESA_CONSUMER_SECRET is not set")
	}
	if issues.ConsumerKeyHasSpaces {
		out = append(out, "ERROR: Consumer Key contains whitespace")
	}
	if issues.ConsumerSecretHasSpaces {
		out = append(out, "ERROR: Consumer Secret contains whitespace")
	}
	if issues.PasskeyHasSpaces {
		out = append(out, "ERROR: Passkey contains whitespace")
	}
	if issues.ConsumerKeyHasQuotes {
		out = append(out, "ERROR: Consumer Key contains quotes, remove them from the environment")
	}
	if issues.ConsumerSecretHasQuotes {
		out = append(out, "ERROR: Consumer Secret contains quotes, remove them from the environment")
	}
	if issues.ConsumerKeyTooShort {
		out = append(out, "WARNING: Consumer Key seems too short, verify it is complete")
	}
	if issues.ConsumerSecretTooShort {
		out = append(out, "WARNING: Consumer Secret seems too short, verify it is complete")
	}
	if issues.PasskeyWrongLength {
		out = append(out, "WARNING: Passkey should be exactly 64 characters for sandbox")
	}
	if r.TokenTest.Success {
		out = append(out, "SUCCESS: Authentication works, the credentials are correct")
	} else {
		out = append(out,
			"FAILED: Cannot get an access token with these credentials",
			"Copy the Consumer Key and Consumer Secret of the app from the Daraja portal",
			"Set them without quotes or surrounding spaces and restart the server",
		)
	}
	return out
}

func mask(s string, n int) string {
	if len(s) > n {
		s = s[:n]
	}
	return s + "..."
}
