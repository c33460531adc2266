package common

import (
	"connectwork/src/db/dbtest"
	"connectwork/src/lib/mpesa"
	"connectwork/src/types"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ReconcileTestSuite struct {
	suite.Suite
	store     *dbtest.MemoryStore
	publisher *recordingPublisher
	fx        fixture
	ctx       context.Context
}

func (s *ReconcileTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = dbtest.NewMemoryStore()
	s.publisher = &recordingPublisher{}
	s.fx = seedPending(s.store, "ws_CO_1")
}

func (s *ReconcileTestSuite) reconciler(strict bool) *Reconciler {
	return NewReconciler(s.store, s.publisher, strict)
}

func (s *ReconcileTestSuite) TestCompletedCascades() {
	res, err := s.reconciler(true).Reconcile(s.ctx, mpesa.Reconciliation{
		CheckoutRequestID: "ws_CO_1",
		Status:            types.PAYMENT_COMPLETED,
		TransactionID:     "NLJ7RT61SV",
		ResultCode:        "0",
		ResultDesc:        "The service request is processed successfully.",
		Source:            "callback",
	})
	s.Require().NoError(err)
	s.True(res.Success)
	s.True(res.Applied)

	p, _ := s.store.FindPaymentByID(s.ctx, s.fx.payment.ID)
	s.Equal(types.PAYMENT_COMPLETED, p.Status)
	s.Require().NotNil(p.TransactionID)
	s.Equal("NLJ7RT61SV", *p.TransactionID)

	txn, _ := s.store.FindMpesaTransaction(s.ctx, "ws_CO_1")
	s.Equal(types.PAYMENT_COMPLETED, txn.Status)
	s.Equal("0", *txn.ResultCode)
	s.Equal("NLJ7RT61SV", *txn.ReceiptNumber)

	job, _ := s.store.FindJob(s.ctx, s.fx.job.ID)
	s.Equal(types.JOB_COMPLETED, job.Status)
	s.Equal(types.JOB_PAYMENT_PAID, job.PaymentStatus)

	app, _ := s.store.FindApplication(s.ctx, s.fx.job.ID, s.fx.payment.WorkerID)
	s.Equal(types.APPLICATION_COMPLETED, app.Status)

	events := s.publisher.Events()
	s.Require().Len(events, 1)
	s.Equal("payment.completed", events[0].Type)
	s.Equal(s.fx.payment.ID.String(), events[0].PaymentID)
	s.Equal("callback", events[0].Source)
}

func (s *ReconcileTestSuite) TestFailedLeavesJobUntouched() {
	res, err := s.reconciler(true).Reconcile(s.ctx, mpesa.Reconciliation{
		CheckoutRequestID: "ws_CO_1",
		Status:            types.PAYMENT_FAILED,
		ResultCode:        "1032",
		ResultDesc:        "Request cancelled by user",
		Source:            "status_query",
	})
	s.Require().NoError(err)
	s.True(res.Applied)

	p, _ := s.store.FindPaymentByID(s.ctx, s.fx.payment.ID)
	s.Equal(types.PAYMENT_FAILED, p.Status)
	s.Nil(p.TransactionID)

	job, _ := s.store.FindJob(s.ctx, s.fx.job.ID)
	s.Equal(types.JOB_IN_PROGRESS, job.Status)
	s.Equal(types.JOB_PAYMENT_PENDING, job.PaymentStatus)

	app, _ := s.store.FindApplication(s.ctx, s.fx.job.ID, s.fx.payment.WorkerID)
	s.Equal(types.APPLICATION_ACCEPTED, app.Status)
}

func (s *ReconcileTestSuite) TestIdempotent() {
	r := s.reconciler(true)
	in := mpesa.Reconciliation{CheckoutRequestID: "ws_CO_1", Status: types.PAYMENT_COMPLETED, TransactionID: "NLJ7RT61SV", Source: "callback"}

	first, err := r.Reconcile(s.ctx, in)
	s.Require().NoError(err)
	s.True(first.Applied)

	second, err := r.Reconcile(s.ctx, in)
	s.Require().NoError(err)
	s.True(second.Success)
	s.False(second.Applied)

	s.Len(s.publisher.Events(), 1)
}

func (s *ReconcileTestSuite) TestTerminalIsAbsorbing() {
	r := s.reconciler(true)
	_, err := r.Reconcile(s.ctx, mpesa.Reconciliation{CheckoutRequestID: "ws_CO_1", Status: types.PAYMENT_FAILED, ResultCode: "1032"})
	s.Require().NoError(err)

	res, err := r.Reconcile(s.ctx, mpesa.Reconciliation{CheckoutRequestID: "ws_CO_1", Status: types.PAYMENT_COMPLETED, TransactionID: "LATE"})
	s.Require().NoError(err)
	s.False(res.Applied)

	p, _ := s.store.FindPaymentByID(s.ctx, s.fx.payment.ID)
	s.Equal(types.PAYMENT_FAILED, p.Status)
	job, _ := s.store.FindJob(s.ctx, s.fx.job.ID)
	s.Equal(types.JOB_PAYMENT_PENDING, job.PaymentStatus)
}

func (s *ReconcileTestSuite) TestConcurrentOutcomesApplyOnce() {
	r := s.reconciler(true)
	var wg sync.WaitGroup
	results := make([]*mpesa.ReconcileResult, 2)
	for i, status := range []types.PaymentStatus{types.PAYMENT_COMPLETED, types.PAYMENT_FAILED} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = r.Reconcile(s.ctx, mpesa.Reconciliation{CheckoutRequestID: "ws_CO_1", Status: status})
		}()
	}
	wg.Wait()

	applied := 0
	for _, res := range results {
		s.Require().NotNil(res)
		s.True(res.Success)
		if res.Applied {
			applied++
		}
	}
	s.Equal(1, applied)
	s.Len(s.publisher.Events(), 1)

	p, _ := s.store.FindPaymentByID(s.ctx, s.fx.payment.ID)
	txn, _ := s.store.FindMpesaTransaction(s.ctx, "ws_CO_1")
	s.Equal(p.Status, txn.Status)
}

func (s *ReconcileTestSuite) TestPaymentNotFound() {
	seedTxnOnly := "ws_CO_orphan"
	s.store.CreateMpesaTransaction(s.ctx, newPendingTxn(seedTxnOnly))

	res, err := s.reconciler(true).Reconcile(s.ctx, mpesa.Reconciliation{CheckoutRequestID: seedTxnOnly, Status: types.PAYMENT_COMPLETED})
	s.True(types.IsNotFound(err))
	s.False(res.Success)
	s.Empty(s.publisher.Events())

	txn, _ := s.store.FindMpesaTransaction(s.ctx, seedTxnOnly)
	s.Equal(types.PAYMENT_COMPLETED, txn.Status)
}

func (s *ReconcileTestSuite) TestStrictPropagatesStoreErrors() {
	s.store.SetFail(errors.New("connection reset"))

	res, err := s.reconciler(true).Reconcile(s.ctx, mpesa.Reconciliation{CheckoutRequestID: "ws_CO_1", Status: types.PAYMENT_COMPLETED})
	s.Error(err)
	s.False(res.Success)
	s.Empty(s.publisher.Events())
}

func (s *ReconcileTestSuite) TestLenientSwallowsStoreErrors() {
	s.store.SetFail(errors.New("connection reset"))

	res, err := s.reconciler(false).Reconcile(s.ctx, mpesa.Reconciliation{CheckoutRequestID: "ws_CO_1", Status: types.PAYMENT_COMPLETED})
	s.NoError(err)
	s.True(res.Success)
	s.False(res.Applied)
	s.Empty(s.publisher.Events())
}

func (s *ReconcileTestSuite) TestPublishFailureDoesNotFailReconcile() {
	s.publisher.err = errors.New("broker down")

	res, err := s.reconciler(true).Reconcile(s.ctx, mpesa.Reconciliation{CheckoutRequestID: "ws_CO_1", Status: types.PAYMENT_COMPLETED})
	s.NoError(err)
	s.True(res.Applied)
}

func TestReconcileTestSuite(t *testing.T) {
	suite.Run(t, new(ReconcileTestSuite))
}

func TestReconcileRejectsBadInput(t *testing.T) {
	r := NewReconciler(dbtest.NewMemoryStore(), nil, true)

	_, err := r.Reconcile(context.Background(), mpesa.Reconciliation{Status: types.PAYMENT_COMPLETED})
	assert.Error(t, err)

	res, err := r.Reconcile(context.Background(), mpesa.Reconciliation{CheckoutRequestID: "ws_CO_1", Status: types.PAYMENT_PENDING})
	require.Error(t, err)
	assert.False(t, res.Success)
}

func TestFanOut(t *testing.T) {
	a := &recordingPublisher{}
	b := &recordingPublisher{err: errors.New("boom")}
	c := &recordingPublisher{}

	err := FanOut{a, b, c}.Publish(context.Background(), newPaymentEvent(types.PAYMENT_FAILED, "ws_CO_1"))

	assert.EqualError(t, err, "boom")
	assert.Len(t, a.Events(), 1)
	assert.Len(t, c.Events(), 1)
	assert.Equal(t, "payment.failed", c.Events()[0].Type)
}
