package mpesa

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	applog "stkpay/pkg/log"
)

const (
	tokenPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"
)

// Settings are the Daraja credentials and STK defaults for one shortcode.
type Settings struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	Passkey         string
	ShortCode       string
	CallbackURL     string
	TransactionType string
	// CacheToken reuses a token until shortly before it expires instead of
	// fetching one per call.
	CacheToken bool
}

// Client implements Provider against Daraja.
type Client struct {
	settings Settings
	http     *http.Client
	now      func() time.Time
	cached   oauth2.TokenSource
	log      zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client. The default has no timeout: a slow
// provider delays the response rather than failing it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClock overrides time.Now for request timestamps. Token expiry stays on
// the wall clock because oauth2.Token.Valid compares against time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(s Settings, opts ...Option) *Client {
	if s.TransactionType == "" {
		s.TransactionType = TransactionTypePayBill
	}
	c := &Client{
		settings: s,
		http:     &http.Client{},
		now:      time.Now,
		log:      applog.Component("mpesa"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if s.CacheToken {
		c.cached = oauth2.ReuseTokenSource(nil, &tokenSource{client: c})
	}
	return c
}

func (c *Client) Settings() Settings { return c.settings }

// bearer returns a token for one downstream call.
func (c *Client) bearer(ctx context.Context) (*oauth2.Token, error) {
	if c.cached != nil {
		return c.cached.Token()
	}
	return c.FetchToken(ctx)
}

var _ Provider = (*Client)(nil)
