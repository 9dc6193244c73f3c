// Package poller waits for an STK push to settle by polling its status.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultInterval    = 3 * time.Second
	DefaultMaxAttempts = 30

	TimeoutMessage = "Payment verification timeout. Please check status later."
)

// Transaction statuses as reported by the status endpoint.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Snapshot is the part of a transaction the poller looks at.
type Snapshot struct {
	Status             string
	MpesaReceiptNumber string
	ResultDesc         string
}

// Fetcher loads the current snapshot of a transaction.
type Fetcher interface {
	FetchStatus(ctx context.Context, transactionID string) (*Snapshot, error)
}

type Outcome int

const (
	Succeeded Outcome = iota
	Failed
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "timed out"
	}
}

// Result is the poller's final verdict.
type Result struct {
	Outcome       Outcome
	Message       string
	Attempts      int
	ReceiptNumber string
	ResultDesc    string
}

type Poller struct {
	fetcher     Fetcher
	interval    time.Duration
	maxAttempts int
	onAttempt   func(attempt int, snap *Snapshot, err error)
	log         zerolog.Logger
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithOnAttempt is called after every fetch, failed ones included.
func WithOnAttempt(fn func(attempt int, snap *Snapshot, err error)) Option {
	return func(p *Poller) { p.onAttempt = fn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Poller) { p.log = l }
}

func New(f Fetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher:     f,
		interval:    DefaultInterval,
		maxAttempts: DefaultMaxAttempts,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run fetches once per interval until the transaction settles or the attempt
// cap is reached. Fetch errors count as attempts. The only error returned is
// the context's, when it is cancelled first.
func (p *Poller) Run(ctx context.Context, transactionID string) (Result, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return Result{Attempts: attempts}, ctx.Err()
		case <-ticker.C:
		}
		attempts++
		snap, err := p.fetcher.FetchStatus(ctx, transactionID)
		if p.onAttempt != nil {
			p.onAttempt(attempts, snap, err)
		}
		if err != nil {
			p.log.Warn().Err(err).Int("attempt", attempts).Str("transaction_id", transactionID).Msg("status check failed")
		} else if res, done := settle(snap); done {
			res.Attempts = attempts
			return res, nil
		}
		if attempts >= p.maxAttempts {
			return Result{Outcome: TimedOut, Message: TimeoutMessage, Attempts: attempts}, nil
		}
	}
}

func settle(s *Snapshot) (Result, bool) {
	if s == nil {
		return Result{}, false
	}
	switch s.Status {
	case StatusSuccess:
		return Result{
			Outcome:       Succeeded,
			Message:       fmt.Sprintf("Payment successful! Receipt: %s", s.MpesaReceiptNumber),
			ReceiptNumber: s.MpesaReceiptNumber,
		}, true
	case StatusFailed:
		return Result{
			Outcome:    Failed,
			Message:    fmt.Sprintf("Payment failed: %s", s.ResultDesc),
			ResultDesc: s.ResultDesc,
		}, true
	}
	return Result{}, false
}
