package controllers

import (
	"connectwork/src/common"
	"connectwork/src/db"
	"connectwork/src/lib/mpesa"
	"connectwork/src/models"
	"connectwork/src/types"
	"connectwork/src/utils"
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Initiator is satisfied by *mpesa.Client.
type Initiator interface {
	InitiateStkPush(ctx context.Context, phone string, amount float64, opts mpesa.PushOptions) (*mpesa.PushResult, error)
}

// Locker grants an expiring exclusive claim on a key. Satisfied by
// *lib.RedisLocker and *common.KeyLocks.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// Covers the push and the payment insert. Long enough for the customer to answer the prompt.
const checkoutLockTTL = 3 * time.Minute

func checkoutLockKey(jobID uuid.UUID) string {
	return "checkout:" + jobID.String()
}

type PaymentsController struct {
	store       db.Store
	initiator   Initiator
	sessions    *common.Sessions
	locker      Locker
	countryCode string
}

func NewPaymentsController(store db.Store, initiator Initiator, sessions *common.Sessions, locker Locker, countryCode string) *PaymentsController {
	if locker == nil {
		locker = common.NewKeyLocks()
	}
	return &PaymentsController{
		store:       store,
		initiator:   initiator,
		sessions:    sessions,
		locker:      locker,
		countryCode: countryCode,
	}
}

type CheckoutResult struct {
	Success           bool            `json:"success"`
	Message           string          `json:"message"`
	CheckoutRequestID string          `json:"checkoutRequestId,omitempty"`
	MerchantRequestID string          `json:"merchantRequestId,omitempty"`
	CustomerMessage   string          `json:"customerMessage,omitempty"`
	PaymentID         *uuid.UUID      `json:"paymentId,omitempty"`
	Amount            int64           `json:"amount,omitempty"`
	Session           *common.Session `json:"session,omitempty"`
}

// Checkout charges the job's customer for an accepted worker and starts polling for the outcome.
func (c *PaymentsController) Checkout(ctx context.Context, userID uuid.UUID, body *types.CheckoutRequestBody) (*CheckoutResult, int, error) {
	fail := func(err error) (*CheckoutResult, int, error) {
		return &CheckoutResult{Success: false, Message: err.Error()}, types.HTTPStatus(err), err
	}

	jobID, err := uuid.Parse(body.JobID)
	if err != nil {
		return &CheckoutResult{Success: false, Message: "invalid job_id"}, http.StatusBadRequest, err
	}
	workerID, err := uuid.Parse(body.WorkerID)
	if err != nil {
		return &CheckoutResult{Success: false, Message: "invalid worker_id"}, http.StatusBadRequest, err
	}

	job, err := c.store.FindJob(ctx, jobID)
	if err != nil {
		return fail(err)
	}
	if job.CustomerID != userID {
		return fail(&types.ForbiddenError{Msg: "only the job's customer can pay for it"})
	}
	if job.PaymentStatus == types.JOB_PAYMENT_PAID {
		return fail(&types.ConflictError{Msg: "this job has already been paid"})
	}

	app, err := c.store.FindApplication(ctx, jobID, workerID)
	if types.IsNotFound(err) || (err == nil && app.Status != types.APPLICATION_ACCEPTED) {
		return fail(&types.ConflictError{Msg: "the worker has no accepted application for this job"})
	}
	if err != nil {
		return fail(err)
	}

	unlock, ok, err := c.locker.TryLock(ctx, checkoutLockKey(jobID), checkoutLockTTL)
	if err != nil {
		log.Printf("[checkout] job %s: could not take checkout lock: %s\n", jobID, err.Error())
		return fail(err)
	}
	if !ok {
		return fail(&types.ConflictError{Msg: "a checkout for this job is already in progress"})
	}
	release := true
	defer func() {
		if release {
			unlock()
		}
	}()

	pending, err := c.store.FindPendingPaymentForJob(ctx, jobID)
	if err == nil {
		res, status, err := fail(&types.ConflictError{Msg: "a payment for this job is already awaiting confirmation"})
		res.CheckoutRequestID = pending.CheckoutRequestID
		return res, status, err
	}
	if !types.IsNotFound(err) {
		return fail(err)
	}

	var payee string
	if body.WorkerPhone != "" {
		if payee, err = mpesa.NormalizePhone(body.WorkerPhone, c.countryCode); err != nil {
			return fail(err)
		}
	}
	reference := body.AccountReference
	if reference == "" {
		reference = utils.AccountReference(job.Title, job.ID)
	}
	amount, _ := utils.PaymentAmount(body.Amount, job, app).Float64()

	push, err := c.initiator.InitiateStkPush(ctx, body.PhoneNumber, amount, mpesa.PushOptions{
		AccountReference: reference,
		TransactionDesc:  body.Description,
	})
	if err != nil {
		log.Printf("[checkout] job %s: stk push failed: %s\n", jobID, err.Error())
		return fail(err)
	}

	result := &CheckoutResult{
		Success:           true,
		Message:           push.Message,
		CheckoutRequestID: push.CheckoutRequestID,
		MerchantRequestID: push.MerchantRequestID,
		CustomerMessage:   push.CustomerMessage,
		Amount:            push.Amount,
	}

	payment := &models.Payment{
		JobID:             jobID,
		CustomerID:        userID,
		WorkerID:          workerID,
		Amount:            decimal.NewFromInt(push.Amount),
		PaymentMethod:     utils.FormatPaymentMethod(push.PhoneNumber, payee, push.AccountReference),
		Status:            types.PAYMENT_PENDING,
		PaymentDate:       time.Now(),
		CheckoutRequestID: push.CheckoutRequestID,
	}
	if err := c.store.CreatePayment(ctx, payment); err != nil {
		// The prompt is already on the customer's phone, so report the push as sent.
		// With no payment row the pending check cannot see this push; the lock
		// stays until it expires.
		release = false
		log.Printf("[checkout] job %s: could not record payment for %s: %s\n", jobID, push.CheckoutRequestID, err.Error())
	} else {
		result.PaymentID = &payment.ID
	}

	if c.sessions != nil {
		sess := c.sessions.Start(push.CheckoutRequestID)
		result.Session = &sess
	}
	return result, http.StatusOK, nil
}

type CheckoutStatus struct {
	CheckoutRequestID string                   `json:"checkoutRequestId"`
	Session           *common.Session          `json:"session,omitempty"`
	Transaction       *models.MpesaTransaction `json:"transaction,omitempty"`
	Payment           *models.Payment          `json:"payment,omitempty"`
}

// CheckoutStatus reports the poll session and stored records for a checkout.
// Only the paying customer or the paid worker may read it.
func (c *PaymentsController) CheckoutStatus(ctx context.Context, userID uuid.UUID, checkoutRequestID string) (*CheckoutStatus, int, error) {
	out := &CheckoutStatus{CheckoutRequestID: checkoutRequestID}

	payment, err := c.store.FindPaymentByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		return nil, types.HTTPStatus(err), err
	}
	if !canView(payment, userID) {
		err := &types.ForbiddenError{Msg: "not a party to this payment"}
		return nil, types.HTTPStatus(err), err
	}
	out.Payment = payment

	if txn, err := c.store.FindMpesaTransaction(ctx, checkoutRequestID); err == nil {
		out.Transaction = txn
	} else if !types.IsNotFound(err) {
		return nil, types.HTTPStatus(err), err
	}
	if c.sessions != nil {
		if sess, ok := c.sessions.Get(checkoutRequestID); ok {
			out.Session = &sess
		}
	}
	return out, http.StatusOK, nil
}

// CancelCheckout stops server-side polling. The payment stays pending until a callback or the sweeper settles it.
func (c *PaymentsController) CancelCheckout(ctx context.Context, userID uuid.UUID, checkoutRequestID string) (*common.Session, int, error) {
	payment, err := c.store.FindPaymentByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		return nil, types.HTTPStatus(err), err
	}
	if payment.CustomerID != userID {
		err := &types.ForbiddenError{Msg: "only the paying customer can cancel polling"}
		return nil, types.HTTPStatus(err), err
	}
	if c.sessions == nil {
		err := &types.NotFoundError{Resource: "poll session", Key: checkoutRequestID}
		return nil, types.HTTPStatus(err), err
	}
	sess, err := c.sessions.Cancel(checkoutRequestID)
	if err != nil {
		return nil, types.HTTPStatus(err), err
	}
	return &sess, http.StatusOK, nil
}

func (c *PaymentsController) GetPayment(ctx context.Context, userID, id uuid.UUID) (*models.Payment, int, error) {
	payment, err := c.store.FindPaymentByID(ctx, id)
	if err != nil {
		return nil, types.HTTPStatus(err), err
	}
	if !canView(payment, userID) {
		err := &types.ForbiddenError{Msg: "not a party to this payment"}
		return nil, types.HTTPStatus(err), err
	}
	return payment, http.StatusOK, nil
}

func (c *PaymentsController) ListJobPayments(ctx context.Context, userID, jobID uuid.UUID) ([]models.Payment, int, error) {
	job, err := c.store.FindJob(ctx, jobID)
	if err != nil {
		return nil, types.HTTPStatus(err), err
	}
	payments, err := c.store.ListPaymentsForJob(ctx, jobID)
	if err != nil {
		return nil, types.HTTPStatus(err), err
	}
	if job.CustomerID == userID {
		return payments, http.StatusOK, nil
	}
	// Workers only see their own payments.
	own := []models.Payment{}
	for _, p := range payments {
		if p.WorkerID == userID {
			own = append(own, p)
		}
	}
	if len(own) == 0 {
		err := &types.ForbiddenError{Msg: "not a party to this job"}
		return nil, types.HTTPStatus(err), err
	}
	return own, http.StatusOK, nil
}

func canView(p *models.Payment, userID uuid.UUID) bool {
	return p.CustomerID == userID || p.WorkerID == userID
}
