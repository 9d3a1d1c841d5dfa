package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"sezzlepay_echo/internal/sezzle"
)

// OrderType tags which gateway API version handled an order. Fixed at the
// first successful session creation and never changed afterwards.
type OrderType string

const (
	OrderTypeV1 OrderType = "v1"
	OrderTypeV2 OrderType = "v2"
)

// PaymentStatus is the local lifecycle state of a payment record.
type PaymentStatus string

const (
	PaymentStatusNew               PaymentStatus = "new"
	PaymentStatusAuthorized        PaymentStatus = "authorized"
	PaymentStatusCaptured          PaymentStatus = "captured"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusVoided            PaymentStatus = "voided"
	PaymentStatusAuthExpired       PaymentStatus = "auth_expired"
)

// Payment actions configured for the method instance.
const (
	PaymentActionAuthorize        = "authorize"
	PaymentActionAuthorizeCapture = "authorize_capture"
)

// PaymentRecord is the per-order payment metadata. One row per order,
// mutated by every lifecycle transition and never deleted; it doubles as
// the permanent audit trail of what happened against the gateway.
// All amounts are integer cents.
type PaymentRecord struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	OrderID     string    `gorm:"type:varchar(100);uniqueIndex" json:"order_id"`
	ReferenceID string    `gorm:"type:varchar(120);index" json:"reference_id"`
	OrderUUID   string    `gorm:"type:varchar(64);index" json:"order_uuid"`
	OrderType   OrderType `gorm:"type:varchar(10)" json:"order_type"`

	Status      PaymentStatus `gorm:"type:varchar(30);default:'new'" json:"status"`
	PaymentType string        `gorm:"type:varchar(30)" json:"payment_type"`

	TransactionID   string `gorm:"type:varchar(120)" json:"transaction_id"`
	TransactionOpen bool   `json:"transaction_open"`

	// Hypermedia action URLs returned by the V2 session; reused verbatim
	// for later calls because the gateway may rotate paths per order.
	Links datatypes.JSONType[sezzle.LinkMap] `gorm:"type:jsonb" json:"links"`

	Currency        string `gorm:"type:varchar(8)" json:"currency"`
	OrderTotalCents int64  `json:"order_total_cents"`
	AuthorizedCents int64  `json:"authorized_cents"`
	CapturedCents   int64  `json:"captured_cents"`
	RefundedCents   int64  `json:"refunded_cents"`
	ReleasedCents   int64  `json:"released_cents"`

	AuthExpiry    *time.Time `json:"auth_expiry,omitempty"`
	CaptureExpiry *time.Time `json:"capture_expiry,omitempty"`

	// Tokenization identity, owned by the customer record and only
	// referenced here.
	CustomerUUID string `gorm:"type:varchar(64)" json:"customer_uuid,omitempty"`

	Events []PaymentEvent `gorm:"foreignKey:PaymentRecordID" json:"events,omitempty"`
}

// Link returns the stored URL for a relation, or "" when absent.
func (r *PaymentRecord) Link(rel sezzle.LinkRelation) string {
	links := r.Links.Data()
	if links == nil {
		return ""
	}
	return links[rel]
}

// SetLinks replaces the stored link map from a gateway link list.
func (r *PaymentRecord) SetLinks(links []sezzle.Link) {
	if len(links) == 0 {
		return
	}
	r.Links = datatypes.NewJSONType(sezzle.BuildLinkMap(links))
}
