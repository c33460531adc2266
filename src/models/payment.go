package models

import (
	"connectwork/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment is the marketplace's view of a customer paying a worker for a job.
type Payment struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`

	JobID             uuid.UUID           `gorm:"type:uuid;index" json:"job_id"`
	CustomerID        uuid.UUID           `gorm:"type:uuid;index" json:"customer_id"`
	WorkerID          uuid.UUID           `gorm:"type:uuid;index" json:"worker_id"`
	Amount            decimal.Decimal     `gorm:"type:numeric(12,2)" json:"amount"`
	PaymentMethod     string              `json:"payment_method"`
	Status            types.PaymentStatus `gorm:"size:16;index" json:"status"`
	PaymentDate       time.Time           `json:"payment_date"`
	TransactionID     *string             `gorm:"size:32" json:"transaction_id,omitempty"`
	CheckoutRequestID string              `gorm:"size:64;uniqueIndex" json:"checkout_request_id"`

	types.Timestamps

	Job *Job `gorm:"foreignKey:JobID" json:"job,omitempty"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = types.PAYMENT_PENDING
	}
	return nil
}
