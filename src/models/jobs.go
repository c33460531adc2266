package models

import (
	"connectwork/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Job is owned by the marketplace; payments only read it and flip its status once paid.
type Job struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`

	CustomerID    uuid.UUID              `gorm:"type:uuid;index" json:"customer_id"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description,omitempty"`
	Budget        decimal.Decimal        `gorm:"type:numeric(12,2)" json:"budget"`
	Status        types.JobStatus        `gorm:"size:16;index" json:"status"`
	PaymentStatus types.JobPaymentStatus `gorm:"size:16" json:"payment_status"`

	types.Timestamps
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

type JobApplication struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`

	JobID        uuid.UUID               `gorm:"type:uuid;uniqueIndex:idx_job_worker" json:"job_id"`
	WorkerID     uuid.UUID               `gorm:"type:uuid;uniqueIndex:idx_job_worker" json:"worker_id"`
	Status       types.ApplicationStatus `gorm:"size:16" json:"status"`
	ProposedRate decimal.NullDecimal     `gorm:"type:numeric(12,2)" json:"proposed_rate,omitempty"`

	types.Timestamps
}

func (a *JobApplication) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
