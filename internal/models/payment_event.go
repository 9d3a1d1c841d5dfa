package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentEvent is one append-only audit row per gateway action taken on a
// payment record. Rows are never updated or deleted.
type PaymentEvent struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	PaymentRecordID uint           `gorm:"index" json:"payment_record_id"`
	Action          string         `gorm:"type:varchar(50);not null" json:"action"`
	AmountCents     int64          `json:"amount_cents"`
	Metadata        datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}
