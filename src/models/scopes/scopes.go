package scopes

import (
	"connectwork/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func WithID(id uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}
}

func WithCheckoutID(checkoutRequestID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("checkout_request_id = ?", checkoutRequestID)
	}
}

func WithJob(jobID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("job_id = ?", jobID)
	}
}

// WithPendingStatus guards every transition out of pending.
func WithPendingStatus(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", types.PAYMENT_PENDING)
}

func CreatedBefore(t time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("created_at < ?", t)
	}
}
