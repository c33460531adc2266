package db

import (
	"connectwork/src/models"
	"connectwork/src/models/scopes"
	"connectwork/src/types"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transition describes a move out of pending. Empty fields are left untouched.
type Transition struct {
	Status        types.PaymentStatus
	TransactionID string
	ResultCode    string
	ResultDesc    string
}

// Store is every read and write the payment flow performs against the relational store.
type Store interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	CreateMpesaTransaction(ctx context.Context, t *models.MpesaTransaction) error
	CreateCallbackLog(ctx context.Context, c *models.CallbackLog) error
	MarkCallbackProcessed(ctx context.Context, id uuid.UUID, procErr error) error

	FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindPaymentByCheckoutID(ctx context.Context, checkoutRequestID string) (*models.Payment, error)
	FindPendingPaymentForJob(ctx context.Context, jobID uuid.UUID) (*models.Payment, error)
	ListPaymentsForJob(ctx context.Context, jobID uuid.UUID) ([]models.Payment, error)
	FindMpesaTransaction(ctx context.Context, checkoutRequestID string) (*models.MpesaTransaction, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.MpesaTransaction, error)
	// ListSettledPendingPayments finds pending payments whose mpesa transaction already
	// holds a terminal outcome, i.e. the outcome arrived before the payment row existed.
	ListSettledPendingPayments(ctx context.Context, limit int) ([]models.Payment, error)
	FindJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	FindApplication(ctx context.Context, jobID, workerID uuid.UUID) (*models.JobApplication, error)

	// Conditional writes: they only apply while the row is still pending and
	// report whether a row was actually moved.
	TransitionMpesaTransaction(ctx context.Context, checkoutRequestID string, t Transition) (bool, error)
	TransitionPayment(ctx context.Context, id uuid.UUID, t Transition) (bool, error)

	MarkJobPaid(ctx context.Context, jobID uuid.UUID) error
	CompleteApplication(ctx context.Context, jobID, workerID uuid.UUID) error

	Transaction(ctx context.Context, fn func(Store) error) error
}

type GormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *GormStore) CreateMpesaTransaction(ctx context.Context, t *models.MpesaTransaction) error {
	if t.Status == "" {
		t.Status = types.PAYMENT_PENDING
	}
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *GormStore) CreateCallbackLog(ctx context.Context, c *models.CallbackLog) error {
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *GormStore) MarkCallbackProcessed(ctx context.Context, id uuid.UUID, procErr error) error {
	updates := map[string]any{"processed_at": time.Now()}
	if procErr != nil {
		updates["error"] = procErr.Error()
	}
	return s.db.WithContext(ctx).
		Model(&models.CallbackLog{}).
		Where("id = ?", id).
		Updates(updates).
		Error
}

func (s *GormStore) FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Scopes(scopes.WithID(id)).
		First(&payment).
		Error
	if err != nil {
		return nil, notFound(err, "payment", id.String())
	}
	return &payment, nil
}

func (s *GormStore) FindPaymentByCheckoutID(ctx context.Context, checkoutRequestID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Scopes(scopes.WithCheckoutID(checkoutRequestID)).
		First(&payment).
		Error
	if err != nil {
		return nil, notFound(err, "payment", checkoutRequestID)
	}
	return &payment, nil
}

func (s *GormStore) FindPendingPaymentForJob(ctx context.Context, jobID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Scopes(scopes.WithJob(jobID), scopes.WithPendingStatus).
		Order("created_at desc").
		First(&payment).
		Error
	if err != nil {
		return nil, notFound(err, "pending payment for job", jobID.String())
	}
	return &payment, nil
}

func (s *GormStore) ListPaymentsForJob(ctx context.Context, jobID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Scopes(scopes.WithJob(jobID)).
		Order("created_at desc").
		Find(&payments).
		Error
	return payments, err
}

func (s *GormStore) FindMpesaTransaction(ctx context.Context, checkoutRequestID string) (*models.MpesaTransaction, error) {
	var txn models.MpesaTransaction
	err := s.db.WithContext(ctx).
		Scopes(scopes.WithCheckoutID(checkoutRequestID)).
		First(&txn).
		Error
	if err != nil {
		return nil, notFound(err, "mpesa transaction", checkoutRequestID)
	}
	return &txn, nil
}

func (s *GormStore) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.MpesaTransaction, error) {
	var txns []models.MpesaTransaction
	err := s.db.WithContext(ctx).
		Scopes(scopes.WithPendingStatus, scopes.CreatedBefore(olderThan)).
		Order("created_at asc").
		Limit(limit).
		Find(&txns).
		Error
	return txns, err
}

func (s *GormStore) ListSettledPendingPayments(ctx context.Context, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Joins("JOIN mpesa_transactions ON mpesa_transactions.checkout_request_id = payments.checkout_request_id").
		Where("payments.status = ? AND mpesa_transactions.status <> ?", types.PAYMENT_PENDING, types.PAYMENT_PENDING).
		Order("payments.created_at asc").
		Limit(limit).
		Find(&payments).
		Error
	return payments, err
}

func (s *GormStore) FindJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&job).
		Error
	if err != nil {
		return nil, notFound(err, "job", id.String())
	}
	return &job, nil
}

func (s *GormStore) FindApplication(ctx context.Context, jobID, workerID uuid.UUID) (*models.JobApplication, error) {
	var app models.JobApplication
	err := s.db.WithContext(ctx).
		Where("job_id = ? AND worker_id = ?", jobID, workerID).
		First(&app).
		Error
	if err != nil {
		return nil, notFound(err, "job application", jobID.String()+"/"+workerID.String())
	}
	return &app, nil
}

func (s *GormStore) TransitionMpesaTransaction(ctx context.Context, checkoutRequestID string, t Transition) (bool, error) {
	updates := map[string]any{"status": t.Status}
	if t.ResultCode != "" {
		updates["result_code"] = t.ResultCode
	}
	if t.ResultDesc != "" {
		updates["result_desc"] = t.ResultDesc
	}
	if t.TransactionID != "" {
		updates["receipt_number"] = t.TransactionID
	}
	res := s.db.WithContext(ctx).
		Model(&models.MpesaTransaction{}).
		Scopes(scopes.WithCheckoutID(checkoutRequestID), scopes.WithPendingStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) TransitionPayment(ctx context.Context, id uuid.UUID, t Transition) (bool, error) {
	updates := map[string]any{"status": t.Status}
	if t.TransactionID != "" {
		updates["transaction_id"] = t.TransactionID
	}
	res := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Scopes(scopes.WithID(id), scopes.WithPendingStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) MarkJobPaid(ctx context.Context, jobID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":         types.JOB_COMPLETED,
			"payment_status": types.JOB_PAYMENT_PAID,
		}).
		Error
}

func (s *GormStore) CompleteApplication(ctx context.Context, jobID, workerID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&models.JobApplication{}).
		Where("job_id = ? AND worker_id = ? AND status = ?", jobID, workerID, types.APPLICATION_ACCEPTED).
		Update("status", types.APPLICATION_COMPLETED).
		Error
}

func (s *GormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func notFound(err error, resource, key string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &types.NotFoundError{Resource: resource, Key: key}
	}
	return err
}

// AutoMigrate creates or updates the tables the payment flow uses.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.Job{},
		&models.JobApplication{},
		&models.MpesaTransaction{},
		&models.Payment{},
		&models.CallbackLog{},
	)
}
