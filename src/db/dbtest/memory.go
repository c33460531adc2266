// Package dbtest provides an in-memory db.Store for tests.
package dbtest

import (
	"connectwork/src/db"
	"connectwork/src/models"
	"connectwork/src/types"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps rows in maps guarded by one mutex, so conditional writes are atomic
// the same way a row lock makes them atomic in postgres.
type MemoryStore struct {
	*memState
	// held is set on the view handed to Transaction callbacks, which already own the lock.
	held bool
}

type memState struct {
	mu sync.Mutex

	Payments     map[uuid.UUID]*models.Payment
	Transactions map[string]*models.MpesaTransaction
	Jobs         map[uuid.UUID]*models.Job
	Applications map[uuid.UUID]*models.JobApplication
	Callbacks    map[uuid.UUID]*models.CallbackLog

	// Fail, when set, is returned by every write.
	Fail error
}

var _ db.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{memState: &memState{
		Payments:     map[uuid.UUID]*models.Payment{},
		Transactions: map[string]*models.MpesaTransaction{},
		Jobs:         map[uuid.UUID]*models.Job{},
		Applications: map[uuid.UUID]*models.JobApplication{},
		Callbacks:    map[uuid.UUID]*models.CallbackLog{},
	}}
}

func (m *MemoryStore) lock() func() {
	if m.held {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

// SetFail makes every following write return err. Pass nil to clear.
func (m *MemoryStore) SetFail(err error) {
	defer m.lock()()
	m.Fail = err
}

func (m *MemoryStore) AddJob(job models.Job) *models.Job {
	defer m.lock()()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	m.Jobs[job.ID] = &job
	return &job
}

func (m *MemoryStore) AddApplication(app models.JobApplication) *models.JobApplication {
	defer m.lock()()
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	m.Applications[app.ID] = &app
	return &app
}

func (m *MemoryStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	defer m.lock()()
	if m.Fail != nil {
		return m.Fail
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = types.PAYMENT_PENDING
	}
	for _, existing := range m.Payments {
		if existing.CheckoutRequestID == p.CheckoutRequestID {
			return &types.ConflictError{Msg: "duplicate checkout_request_id"}
		}
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	m.Payments[p.ID] = &cp
	return nil
}

func (m *MemoryStore) CreateMpesaTransaction(ctx context.Context, t *models.MpesaTransaction) error {
	defer m.lock()()
	if m.Fail != nil {
		return m.Fail
	}
	if t.Status == "" {
		t.Status = types.PAYMENT_PENDING
	}
	if _, ok := m.Transactions[t.CheckoutRequestID]; ok {
		return &types.ConflictError{Msg: "duplicate checkout_request_id"}
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	cp := *t
	m.Transactions[t.CheckoutRequestID] = &cp
	return nil
}

func (m *MemoryStore) CreateCallbackLog(ctx context.Context, c *models.CallbackLog) error {
	defer m.lock()()
	if m.Fail != nil {
		return m.Fail
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	m.Callbacks[c.ID] = &cp
	return nil
}

func (m *MemoryStore) MarkCallbackProcessed(ctx context.Context, id uuid.UUID, procErr error) error {
	defer m.lock()()
	if m.Fail != nil {
		return m.Fail
	}
	c, ok := m.Callbacks[id]
	if !ok {
		return &types.NotFoundError{Resource: "callback log", Key: id.String()}
	}
	now := time.Now()
	c.ProcessedAt = &now
	if procErr != nil {
		msg := procErr.Error()
		c.Error = &msg
	}
	return nil
}

func (m *MemoryStore) FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	defer m.lock()()
	p, ok := m.Payments[id]
	if !ok {
		return nil, &types.NotFoundError{Resource: "payment", Key: id.String()}
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) FindPaymentByCheckoutID(ctx context.Context, checkoutRequestID string) (*models.Payment, error) {
	defer m.lock()()
	for _, p := range m.Payments {
		if p.CheckoutRequestID == checkoutRequestID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, &types.NotFoundError{Resource: "payment", Key: checkoutRequestID}
}

func (m *MemoryStore) FindPendingPaymentForJob(ctx context.Context, jobID uuid.UUID) (*models.Payment, error) {
	defer m.lock()()
	for _, p := range m.Payments {
		if p.JobID == jobID && p.Status == types.PAYMENT_PENDING {
			cp := *p
			return &cp, nil
		}
	}
	return nil, &types.NotFoundError{Resource: "pending payment for job", Key: jobID.String()}
}

func (m *MemoryStore) ListPaymentsForJob(ctx context.Context, jobID uuid.UUID) ([]models.Payment, error) {
	defer m.lock()()
	var out []models.Payment
	for _, p := range m.Payments {
		if p.JobID == jobID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) FindMpesaTransaction(ctx context.Context, checkoutRequestID string) (*models.MpesaTransaction, error) {
	defer m.lock()()
	t, ok := m.Transactions[checkoutRequestID]
	if !ok {
		return nil, &types.NotFoundError{Resource: "mpesa transaction", Key: checkoutRequestID}
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.MpesaTransaction, error) {
	defer m.lock()()
	var out []models.MpesaTransaction
	for _, t := range m.Transactions {
		if t.Status == types.PAYMENT_PENDING && t.CreatedAt.Before(olderThan) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListSettledPendingPayments(ctx context.Context, limit int) ([]models.Payment, error) {
	defer m.lock()()
	var out []models.Payment
	for _, p := range m.Payments {
		if p.Status != types.PAYMENT_PENDING {
			continue
		}
		if t, ok := m.Transactions[p.CheckoutRequestID]; ok && t.Status.Terminal() {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) FindJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	defer m.lock()()
	j, ok := m.Jobs[id]
	if !ok {
		return nil, &types.NotFoundError{Resource: "job", Key: id.String()}
	}
	cp := *j
	return &cp, nil
}

func (m *MemoryStore) FindApplication(ctx context.Context, jobID, workerID uuid.UUID) (*models.JobApplication, error) {
	defer m.lock()()
	for _, a := range m.Applications {
		if a.JobID == jobID && a.WorkerID == workerID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, &types.NotFoundError{Resource: "job application", Key: jobID.String() + "/" + workerID.String()}
}

func (m *MemoryStore) TransitionMpesaTransaction(ctx context.Context, checkoutRequestID string, t db.Transition) (bool, error) {
	defer m.lock()()
	if m.Fail != nil {
		return false, m.Fail
	}
	txn, ok := m.Transactions[checkoutRequestID]
	if !ok || txn.Status != types.PAYMENT_PENDING {
		return false, nil
	}
	txn.Status = t.Status
	if t.ResultCode != "" {
		code := t.ResultCode
		txn.ResultCode = &code
	}
	if t.ResultDesc != "" {
		desc := t.ResultDesc
		txn.ResultDesc = &desc
	}
	if t.TransactionID != "" {
		receipt := t.TransactionID
		txn.ReceiptNumber = &receipt
	}
	txn.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) TransitionPayment(ctx context.Context, id uuid.UUID, t db.Transition) (bool, error) {
	defer m.lock()()
	if m.Fail != nil {
		return false, m.Fail
	}
	p, ok := m.Payments[id]
	if !ok || p.Status != types.PAYMENT_PENDING {
		return false, nil
	}
	p.Status = t.Status
	if t.TransactionID != "" {
		txID := t.TransactionID
		p.TransactionID = &txID
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) MarkJobPaid(ctx context.Context, jobID uuid.UUID) error {
	defer m.lock()()
	if m.Fail != nil {
		return m.Fail
	}
	if j, ok := m.Jobs[jobID]; ok {
		j.Status = types.JOB_COMPLETED
		j.PaymentStatus = types.JOB_PAYMENT_PAID
	}
	return nil
}

func (m *MemoryStore) CompleteApplication(ctx context.Context, jobID, workerID uuid.UUID) error {
	defer m.lock()()
	if m.Fail != nil {
		return m.Fail
	}
	for _, a := range m.Applications {
		if a.JobID == jobID && a.WorkerID == workerID && a.Status == types.APPLICATION_ACCEPTED {
			a.Status = types.APPLICATION_COMPLETED
		}
	}
	return nil
}

// Transaction holds the store lock for the whole of fn. Writes made before fn fails are not undone.
func (m *MemoryStore) Transaction(ctx context.Context, fn func(db.Store) error) error {
	if m.held {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&MemoryStore{memState: m.memState, held: true})
}
