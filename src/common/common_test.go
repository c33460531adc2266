package common

import (
	"connectwork/src/db/dbtest"
	"connectwork/src/lib/mpesa"
	"connectwork/src/models"
	"connectwork/src/types"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.PaymentEvent
	err    error
}

func (r *recordingPublisher) Name() string { return "recording" }

func (r *recordingPublisher) Publish(ctx context.Context, ev types.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingPublisher) Events() []types.PaymentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.PaymentEvent(nil), r.events...)
}

// scriptedChecker answers status queries from a fixed script; the last entry repeats.
type scriptedChecker struct {
	mu     sync.Mutex
	script []checkAnswer
	calls  []string
}

type checkAnswer struct {
	outcome mpesa.Outcome
	err     error
}

func (s *scriptedChecker) CheckTransactionStatus(ctx context.Context, checkoutRequestID string) (*mpesa.StatusResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, checkoutRequestID)
	a := s.script[min(len(s.calls), len(s.script))-1]
	if a.err != nil {
		return &mpesa.StatusResult{Success: false, Message: a.err.Error()}, a.err
	}
	return &mpesa.StatusResult{Success: true, Outcome: a.outcome, Message: string(a.outcome)}, nil
}

func (s *scriptedChecker) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

var errProvider = errors.New("provider unavailable")

type fixture struct {
	job     *models.Job
	app     *models.JobApplication
	payment *models.Payment
}

func seedPending(store *dbtest.MemoryStore, checkoutRequestID string) fixture {
	ctx := context.Background()
	job := store.AddJob(models.Job{
		CustomerID:    uuid.New(),
		Title:         "Fix kitchen sink",
		Budget:        decimal.NewFromInt(1500),
		Status:        types.JOB_IN_PROGRESS,
		PaymentStatus: types.JOB_PAYMENT_PENDING,
	})
	workerID := uuid.New()
	app := store.AddApplication(models.JobApplication{
		JobID:    job.ID,
		WorkerID: workerID,
		Status:   types.APPLICATION_ACCEPTED,
	})
	store.CreateMpesaTransaction(ctx, &models.MpesaTransaction{
		CheckoutRequestID: checkoutRequestID,
		PhoneNumber:       "254712345678",
		Amount:            1500,
		Timestamps:        types.Timestamps{CreatedAt: time.Now().Add(-10 * time.Minute)},
	})
	payment := &models.Payment{
		JobID:             job.ID,
		CustomerID:        job.CustomerID,
		WorkerID:          workerID,
		Amount:            decimal.NewFromInt(1500),
		PaymentMethod:     "mpesa",
		PaymentDate:       time.Now(),
		CheckoutRequestID: checkoutRequestID,
	}
	store.CreatePayment(ctx, payment)
	return fixture{job: job, app: app, payment: payment}
}

func newPendingTxn(checkoutRequestID string) *models.MpesaTransaction {
	return &models.MpesaTransaction{
		CheckoutRequestID: checkoutRequestID,
		PhoneNumber:       "254712345678",
		Amount:            1,
		Timestamps:        types.Timestamps{CreatedAt: time.Now().Add(-10 * time.Minute)},
	}
}
