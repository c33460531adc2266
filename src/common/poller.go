package common

import (
	"connectwork/src/lib/mpesa"
	"connectwork/src/types"
	"context"
	"log"
	"time"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollAttempts = 10
)

// StatusChecker is satisfied by *mpesa.Client.
type StatusChecker interface {
	CheckTransactionStatus(ctx context.Context, checkoutRequestID string) (*mpesa.StatusResult, error)
}

type PollResult struct {
	CheckoutRequestID string              `json:"checkoutRequestId"`
	Outcome           mpesa.Outcome       `json:"outcome"`
	Status            types.PaymentStatus `json:"status"`
	Attempts          int                 `json:"attempts"`
	Elapsed           time.Duration       `json:"elapsed"`
	Result            *mpesa.StatusResult `json:"result,omitempty"`
}

// Poller queries the provider until the outcome is terminal or the attempt budget runs out.
type Poller struct {
	Checker  StatusChecker
	Interval time.Duration
	Attempts int
	// OnAttempt, when set, is called after every query.
	OnAttempt func(attempt int, res *mpesa.StatusResult, err error)
}

func (p *Poller) interval() time.Duration {
	if p.Interval <= 0 {
		return DefaultPollInterval
	}
	return p.Interval
}

func (p *Poller) attempts() int {
	if p.Attempts <= 0 {
		return DefaultPollAttempts
	}
	return p.Attempts
}

// Await waits one interval before each query. Cancelling ctx stops it with ctx.Err()
// and leaves the transaction pending.
func (p *Poller) Await(ctx context.Context, checkoutRequestID string) (*PollResult, error) {
	start := time.Now()
	interval := p.interval()
	attempts := p.attempts()

	timer := time.NewTimer(interval)
	defer timer.Stop()
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			timer.Reset(interval)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		res, err := p.Checker.CheckTransactionStatus(ctx, checkoutRequestID)
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, res, err)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("[poller] %s attempt %d/%d: %s\n", checkoutRequestID, attempt, attempts, err.Error())
			continue
		}
		if res.Outcome.Terminal() {
			return &PollResult{
				CheckoutRequestID: checkoutRequestID,
				Outcome:           res.Outcome,
				Status:            res.Outcome.PaymentStatus(),
				Attempts:          attempt,
				Elapsed:           time.Since(start),
				Result:            res,
			}, nil
		}
	}

	return nil, &types.TimeoutError{
		CheckoutRequestID: checkoutRequestID,
		Attempts:          attempts,
		Elapsed:           time.Since(start),
	}
}
