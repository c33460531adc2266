package models

import (
	"connectwork/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CallbackLog keeps every raw provider callback, processed or not.
type CallbackLog struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`

	CheckoutRequestID string      `gorm:"size:64;index" json:"checkout_request_id"`
	ResultCode        string      `gorm:"size:32" json:"result_code"`
	Payload           types.JSONB `gorm:"type:jsonb" json:"payload"`
	ProcessedAt       *time.Time  `json:"processed_at,omitempty"`
	Error             *string     `json:"error,omitempty"`

	types.Timestamps
}

func (c *CallbackLog) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
