package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedFetcher struct {
	calls atomic.Int32
	fn    func(n int) (*Snapshot, error)
}

func (f *scriptedFetcher) FetchStatus(ctx context.Context, id string) (*Snapshot, error) {
	n := int(f.calls.Add(1))
	return f.fn(n)
}

func pendingForever(int) (*Snapshot, error) { return &Snapshot{Status: StatusPending}, nil }

func TestRunTimesOutAfterMaxAttempts(t *testing.T) {
	f := &scriptedFetcher{fn: pendingForever}
	p := New(f, WithInterval(time.Millisecond), WithMaxAttempts(30))

	res, err := p.Run(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, TimedOut, res.Outcome)
	assert.Equal(t, TimeoutMessage, res.Message)
	assert.Equal(t, 30, res.Attempts)

	// the ticker is gone: no fetches after returning
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(30), f.calls.Load())
}

func TestRunSucceeds(t *testing.T) {
	f := &scriptedFetcher{fn: func(n int) (*Snapshot, error) {
		if n < 3 {
			return &Snapshot{Status: StatusPending}, nil
		}
		return &Snapshot{Status: StatusSuccess, MpesaReceiptNumber: "QAI2345"}, nil
	}}
	res, err := New(f, WithInterval(time.Millisecond)).Run(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, Succeeded, res.Outcome)
	assert.Equal(t, "QAI2345", res.ReceiptNumber)
	assert.Equal(t, "Payment successful! Receipt: QAI2345", res.Message)
	assert.Equal(t, 3, res.Attempts)
}

func TestRunFails(t *testing.T) {
	f := &scriptedFetcher{fn: func(int) (*Snapshot, error) {
		return &Snapshot{Status: StatusFailed, ResultDesc: "Request cancelled by user"}, nil
	}}
	res, err := New(f, WithInterval(time.Millisecond)).Run(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, Failed, res.Outcome)
	assert.Equal(t, "Payment failed: Request cancelled by user", res.Message)
	assert.Equal(t, 1, res.Attempts)
}

func TestFetchErrorsCountAsAttempts(t *testing.T) {
	var seen []int
	f := &scriptedFetcher{fn: func(int) (*Snapshot, error) { return nil, errors.New("connection refused") }}
	p := New(f,
		WithInterval(time.Millisecond),
		WithMaxAttempts(5),
		WithOnAttempt(func(n int, s *Snapshot, err error) {
			assert.Error(t, err)
			seen = append(seen, n)
		}),
	)
	res, err := p.Run(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, TimedOut, res.Outcome)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := &scriptedFetcher{fn: pendingForever}
	ctx, cancel := context.WithCancel(context.Background())
	p := New(f, WithInterval(5*time.Millisecond), WithMaxAttempts(1000))

	done := make(chan struct{})
	var err error
	go func() {
		_, err = p.Run(ctx, "tx-1")
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
	assert.ErrorIs(t, err, context.Canceled)

	after := f.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, f.calls.Load())
}

func TestDefaults(t *testing.T) {
	p := New(&scriptedFetcher{fn: pendingForever}, WithInterval(0), WithMaxAttempts(-1))
	assert.Equal(t, DefaultInterval, p.interval)
	assert.Equal(t, DefaultMaxAttempts, p.maxAttempts)
}
