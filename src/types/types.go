package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Timestamps carries no soft-delete column: payment records are an audit trail and are never removed.
type Timestamps struct {
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at,omitempty"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at,omitempty"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Environment string

const (
	Local      Environment = "local"
	Test       Environment = "test"
	Production Environment = "production"
)

type MpesaEnvironment string

const (
	MPESA_SANDBOX    MpesaEnvironment = "sandbox"
	MPESA_PRODUCTION MpesaEnvironment = "production"
)

// PaymentStatus is shared by payments and mpesa_transactions.
// pending is the only non-terminal state.
type PaymentStatus string

const (
	PAYMENT_PENDING   PaymentStatus = "pending"
	PAYMENT_COMPLETED PaymentStatus = "completed"
	PAYMENT_FAILED    PaymentStatus = "failed"
)

func (s PaymentStatus) Terminal() bool {
	return s == PAYMENT_COMPLETED || s == PAYMENT_FAILED
}

func (s PaymentStatus) Valid() bool {
	return s == PAYMENT_PENDING || s.Terminal()
}

type JobStatus string

const (
	JOB_OPEN        JobStatus = "open"
	JOB_IN_PROGRESS JobStatus = "in_progress"
	JOB_COMPLETED   JobStatus = "completed"
	JOB_CANCELED    JobStatus = "canceled"
)

type JobPaymentStatus string

const (
	JOB_PAYMENT_UNPAID  JobPaymentStatus = "unpaid"
	JOB_PAYMENT_PENDING JobPaymentStatus = "pending"
	JOB_PAYMENT_PAID    JobPaymentStatus = "paid"
)

type ApplicationStatus string

const (
	APPLICATION_PENDING   ApplicationStatus = "pending"
	APPLICATION_ACCEPTED  ApplicationStatus = "accepted"
	APPLICATION_REJECTED  ApplicationStatus = "rejected"
	APPLICATION_COMPLETED ApplicationStatus = "completed"
)

// PollState describes a server-side polling session for one checkout.
type PollState string

const (
	POLL_RUNNING   PollState = "polling"
	POLL_COMPLETED PollState = "completed"
	POLL_FAILED    PollState = "failed"
	POLL_TIMEOUT   PollState = "timeout"
	POLL_CANCELED  PollState = "canceled"
)

type StkPushRequestBody struct {
	PhoneNumber      string  `json:"phone_number" binding:"required,msisdn"`
	Amount           float64 `json:"amount" binding:"required,gt=0"`
	AccountReference string  `json:"account_reference,omitempty" binding:"omitempty,max=12"`
	TransactionDesc  string  `json:"transaction_desc,omitempty" binding:"omitempty,max=64"`
	CallbackURL      string  `json:"callback_url,omitempty" binding:"omitempty,url"`
}

type StatusRequestBody struct {
	CheckoutRequestID string `json:"checkoutRequestId" binding:"required"`
}

type CheckoutRequestBody struct {
	JobID            string   `json:"job_id" binding:"required,uuid"`
	WorkerID         string   `json:"worker_id" binding:"required,uuid"`
	PhoneNumber      string   `json:"phone_number" binding:"required,msisdn"`
	WorkerPhone      string   `json:"worker_phone,omitempty" binding:"omitempty,msisdn"`
	Amount           *float64 `json:"amount,omitempty" binding:"omitempty,gt=0"`
	AccountReference string   `json:"account_reference,omitempty" binding:"omitempty,max=12"`
	Description      string   `json:"description,omitempty" binding:"omitempty,max=64"`
}

type CheckoutURIParams struct {
	CheckoutRequestID string `uri:"checkoutId" binding:"required"`
}

type SimpleRequestParams struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// CallbackAck is the acknowledgement shape the provider expects back from a callback.
type CallbackAck struct {
	ResultCode string `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}
