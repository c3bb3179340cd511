// internal/lifecycle/tracker.go
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/altuslabsxyz/rentflow/internal/history"
	"github.com/altuslabsxyz/rentflow/internal/metrics"
)

// Polling defaults.
const (
	DefaultPollInterval = 4 * time.Second
	DefaultPollTimeout  = 120 * time.Second
)

// StatusSource answers terminal-status queries by history record id.
type StatusSource interface {
	Status(ctx context.Context, id string) (*history.StatusReport, error)
}

// TrackedStatus is the status of a record as observed by one check.
type TrackedStatus struct {
	Status        history.Status        `json:"status"`
	OnchainStatus history.OnchainStatus `json:"onchainStatus"`
	TransactionID string                `json:"transactionId,omitempty"`
	Ledger        int64                 `json:"ledger,omitempty"`
}

// Terminal reports whether polling can stop.
func (s *TrackedStatus) Terminal() bool {
	return s != nil && s.OnchainStatus.Terminal()
}

// PollOptions bounds PollUntilTerminal.
type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

func (o PollOptions) withDefaults() PollOptions {
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultPollTimeout
	}
	return o
}

// Tracker checks and polls record status.
type Tracker struct {
	source  StatusSource
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewTracker creates a tracker over source. m may be nil.
func NewTracker(source StatusSource, m *metrics.Metrics) *Tracker {
	return &Tracker{
		source:  source,
		metrics: m,
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger.
func (t *Tracker) SetLogger(logger *slog.Logger) {
	t.logger = logger
}

// Check queries the status endpoint once. Unknown values are mapped defensively.
func (t *Tracker) Check(ctx context.Context, id string) (*TrackedStatus, error) {
	resp, err := t.source.Status(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("status check for %s: %w", id, err)
	}
	return &TrackedStatus{
		Status:        history.ParseStatus(resp.Status),
		OnchainStatus: history.ParseOnchainStatus(resp.OnchainStatus),
		TransactionID: resp.TxHash,
		Ledger:        resp.Ledger,
	}, nil
}

// PollUntilTerminal checks immediately, then on every interval, until the on-chain status is
// terminal or the timeout elapses. The timeout also bounds each check, so a slow status source
// cannot hold the call past it. On timeout it returns the last observed status and no error.
// Cancelling ctx stops polling and returns the last status with ctx.Err().
func (t *Tracker) PollUntilTerminal(ctx context.Context, id string, opts PollOptions) (*TrackedStatus, error) {
	opts = opts.withDefaults()
	start := time.Now()

	pollCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var (
		last    *TrackedStatus
		lastErr error
	)
	observe := func() bool {
		st, err := t.checkWithin(pollCtx, id)
		if err != nil {
			if pollCtx.Err() == nil {
				lastErr = err
				t.logger.Debug("status check failed, will retry", "id", id, "error", err)
			}
			return false
		}
		last = st
		return st.Terminal()
	}
	finish := func() (*TrackedStatus, error) {
		onchain := "unknown"
		if last != nil {
			onchain = string(last.OnchainStatus)
		}
		t.metrics.ObservePoll(time.Since(start), onchain)

		if err := ctx.Err(); err != nil {
			return last, err
		}
		if last == nil && lastErr == nil && errors.Is(pollCtx.Err(), context.DeadlineExceeded) {
			lastErr = fmt.Errorf("status check for %s: no answer within %s", id, opts.Timeout)
		}
		if last == nil {
			return nil, lastErr
		}
		if !last.Terminal() {
			t.logger.Debug("poll deadline reached", "id", id, "onchainStatus", last.OnchainStatus)
		}
		return last, nil
	}

	if observe() {
		return finish()
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-pollCtx.Done():
			return finish()
		case <-ticker.C:
			if observe() || pollCtx.Err() != nil {
				return finish()
			}
		}
	}
}

// checkWithin runs Check and gives up when ctx is done, even if the source ignores ctx.
func (t *Tracker) checkWithin(ctx context.Context, id string) (*TrackedStatus, error) {
	type answer struct {
		status *TrackedStatus
		err    error
	}
	ch := make(chan answer, 1)
	go func() {
		st, err := t.Check(ctx, id)
		ch <- answer{status: st, err: err}
	}()

	select {
	case a := <-ch:
		return a.status, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
