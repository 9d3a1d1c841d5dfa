package models

import (
	"time"

	"gorm.io/gorm"
)

// CustomerToken holds the tokenization identity of a repeat customer: the
// gateway tokenize token captured at session creation and the customer
// UUID it was exchanged for. A valid UUID lets checkout skip the
// redirect/re-authentication flow entirely.
type CustomerToken struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	CustomerRef     string     `gorm:"type:varchar(100);uniqueIndex" json:"customer_ref"`
	Token           string     `gorm:"type:varchar(120)" json:"token"`
	TokenExpiration *time.Time `json:"token_expiration,omitempty"`

	CustomerUUID   string     `gorm:"type:varchar(64);index" json:"customer_uuid"`
	UUIDExpiration *time.Time `json:"uuid_expiration,omitempty"`
}
