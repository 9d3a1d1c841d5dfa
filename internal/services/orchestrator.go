package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"sezzlepay_echo/internal/models"
	"sezzlepay_echo/internal/sezzle"
)

// V2Gateway is the contract of the current hypermedia API client.
// Implemented by *sezzle.V2Client; faked in tests.
type V2Gateway interface {
	CreateSession(ctx context.Context, req sezzle.SessionRequest) (*sezzle.Session, error)
	GetOrder(ctx context.Context, selfLink, orderUUID string) (*sezzle.GatewayOrder, error)
	CaptureByOrderUUID(ctx context.Context, captureLink, orderUUID string, amountCents int64, isPartial bool) error
	RefundByOrderUUID(ctx context.Context, refundLink, orderUUID string, amountCents int64) error
	ReleaseByOrderUUID(ctx context.Context, releaseLink, orderUUID string, amountCents int64) error
	GetCustomerUUID(ctx context.Context, token string) (*sezzle.TokenSession, error)
	CreateOrderByCustomerUUID(ctx context.Context, customerUUID, referenceID string, amountCents int64) (*sezzle.GatewayOrder, error)
}

// V1Gateway is the contract of the legacy API client, retained only for
// orders created before the V2 migration.
type V1Gateway interface {
	GetOrder(ctx context.Context, referenceID string) (*sezzle.GatewayOrder, error)
	Capture(ctx context.Context, referenceID string) error
	Refund(ctx context.Context, referenceID string, amountCents int64) error
}

// Capabilities are the lifecycle actions enabled for this payment method
// instance.
type Capabilities struct {
	Authorize bool
	Capture   bool
	Refund    bool
	Void      bool
}

// Orchestrator drives the payment state machine. Every transition loads
// the record, re-validates against the gateway, invokes the matching
// client and persists the updated bookkeeping. Version dispatch always
// follows the stored order type, never which client happens to be
// configured.
type Orchestrator struct {
	db     *gorm.DB
	v1     V1Gateway
	v2     V2Gateway
	tokens *TokenizeManager
	caps   Capabilities
}

func NewOrchestrator(db *gorm.DB, v1 V1Gateway, v2 V2Gateway, tokens *TokenizeManager) *Orchestrator {
	return &Orchestrator{
		db:     db,
		v1:     v1,
		v2:     v2,
		tokens: tokens,
		caps:   Capabilities{Authorize: true, Capture: true, Refund: true, Void: true},
	}
}

// Record loads the payment record for an order id.
func (o *Orchestrator) Record(orderID string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	if err := o.db.Where("order_id = ?", orderID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecordByReference loads the payment record for a checkout reference id.
func (o *Orchestrator) RecordByReference(referenceID string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	if err := o.db.Where("reference_id = ?", referenceID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// Authorize runs the authorize transition for the order.
func (o *Orchestrator) Authorize(ctx context.Context, orderID string, amount float64) (*models.PaymentRecord, error) {
	rec, err := o.Record(orderID)
	if err != nil {
		return nil, err
	}
	if err := o.authorizeRecord(ctx, rec, amount); err != nil {
		return nil, err
	}
	if err := o.saveWithEvent(rec, "authorize", AmountToCents(amount)); err != nil {
		return nil, err
	}
	return rec, nil
}

// Capture runs the capture transition for the order.
func (o *Orchestrator) Capture(ctx context.Context, orderID string, amount float64) (*models.PaymentRecord, error) {
	rec, err := o.Record(orderID)
	if err != nil {
		return nil, err
	}
	if err := o.captureRecord(ctx, rec, amount); err != nil {
		return nil, err
	}
	if err := o.saveWithEvent(rec, "capture", AmountToCents(amount)); err != nil {
		return nil, err
	}
	return rec, nil
}

// Refund runs the refund transition for the order.
func (o *Orchestrator) Refund(ctx context.Context, orderID string, amount float64) (*models.PaymentRecord, error) {
	rec, err := o.Record(orderID)
	if err != nil {
		return nil, err
	}
	if err := o.refundRecord(ctx, rec, amount); err != nil {
		return nil, err
	}
	if err := o.saveWithEvent(rec, "refund", AmountToCents(amount)); err != nil {
		return nil, err
	}
	return rec, nil
}

// Void releases the full authorized, uncaptured order amount.
func (o *Orchestrator) Void(ctx context.Context, orderID string) (*models.PaymentRecord, error) {
	rec, err := o.Record(orderID)
	if err != nil {
		return nil, err
	}
	if err := o.voidRecord(ctx, rec); err != nil {
		return nil, err
	}
	if err := o.saveWithEvent(rec, "void", rec.OrderTotalCents); err != nil {
		return nil, err
	}
	return rec, nil
}

func (o *Orchestrator) authorizeRecord(ctx context.Context, rec *models.PaymentRecord, amount float64) error {
	if !o.caps.Authorize {
		return fmt.Errorf("%w: authorize", ErrCapabilityDisabled)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: authorize", ErrInvalidAmount)
	}
	cents := AmountToCents(amount)
	log.Printf("authorize start: order=%s reference=%s amount_cents=%d", rec.OrderID, rec.ReferenceID, cents)

	// Tokenized path: the order has to be created against the stored
	// customer UUID first, there was no session checkout to create one.
	if rec.CustomerUUID != "" && rec.OrderUUID == "" {
		if err := o.tokens.CreateOrder(ctx, rec, cents); err != nil {
			return err
		}
	}

	// The gateway order must already exist at this point; authorize never
	// creates a session order on its own.
	if !o.ValidateOrder(ctx, rec) {
		return ErrOrderValidationFailed
	}

	rec.AuthorizedCents += cents
	rec.TransactionID = rec.ReferenceID
	rec.TransactionOpen = true
	rec.Status = models.PaymentStatusAuthorized

	log.Printf("authorize done: order=%s uuid=%s authorized_cents=%d", rec.OrderID, rec.OrderUUID, rec.AuthorizedCents)
	return nil
}

func (o *Orchestrator) captureRecord(ctx context.Context, rec *models.PaymentRecord, amount float64) error {
	if !o.caps.Capture {
		return fmt.Errorf("%w: capture", ErrCapabilityDisabled)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: capture", ErrInvalidAmount)
	}
	cents := AmountToCents(amount)
	log.Printf("capture start: order=%s type=%s reference=%s amount_cents=%d", rec.OrderID, rec.OrderType, rec.ReferenceID, cents)

	var err error
	switch rec.OrderType {
	case models.OrderTypeV1:
		err = o.captureV1(ctx, rec, cents)
	default:
		err = o.captureV2(ctx, rec, cents)
	}
	if err != nil {
		return err
	}

	rec.CapturedCents += cents
	if rec.AuthorizedCents == 0 {
		// Combined authorize-and-capture flow skipped the amount-based
		// authorize; backfill so the books stay consistent.
		rec.AuthorizedCents = rec.CapturedCents
	}
	rec.TransactionID = rec.ReferenceID
	rec.TransactionOpen = false
	rec.Status = models.PaymentStatusCaptured

	log.Printf("capture done: order=%s uuid=%s captured_cents=%d", rec.OrderID, rec.OrderUUID, rec.CapturedCents)
	return nil
}

func (o *Orchestrator) captureV2(ctx context.Context, rec *models.PaymentRecord, cents int64) error {
	if rec.CustomerUUID != "" && rec.OrderUUID == "" {
		if err := o.tokens.CreateOrder(ctx, rec, cents); err != nil {
			return err
		}
	}
	if !o.ValidateOrder(ctx, rec) {
		return ErrOrderValidationFailed
	}
	if !o.CanInvoice(rec, time.Now()) {
		return ErrExpiredAuthorization
	}
	if rec.AuthorizedCents > 0 && rec.CapturedCents+cents > rec.AuthorizedCents {
		return fmt.Errorf("%w: capture exceeds authorized amount", ErrInvalidAmount)
	}

	isPartial := cents < rec.OrderTotalCents
	return o.v2.CaptureByOrderUUID(ctx, rec.Link(sezzle.LinkCapture), rec.OrderUUID, cents, isPartial)
}

func (o *Orchestrator) captureV1(ctx context.Context, rec *models.PaymentRecord, cents int64) error {
	if rec.ReferenceID == "" {
		return fmt.Errorf("%w: reference id", ErrMissingIdentifier)
	}
	order, err := o.v1.GetOrder(ctx, rec.ReferenceID)
	if err != nil {
		return err
	}
	if order.CaptureExpiration == nil {
		return ErrOrderValidationFailed
	}
	rec.CaptureExpiry = order.CaptureExpiration
	if !o.CanInvoice(rec, time.Now()) {
		return ErrExpiredAuthorization
	}
	return o.v1.Capture(ctx, rec.ReferenceID)
}

func (o *Orchestrator) refundRecord(ctx context.Context, rec *models.PaymentRecord, amount float64) error {
	if !o.caps.Refund {
		return fmt.Errorf("%w: refund", ErrCapabilityDisabled)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: refund", ErrInvalidAmount)
	}
	cents := AmountToCents(amount)
	log.Printf("refund start: order=%s type=%s reference=%s amount_cents=%d", rec.OrderID, rec.OrderType, rec.ReferenceID, cents)

	switch {
	case rec.CapturedCents == 0 && rec.OrderType == models.OrderTypeV1:
		// Legacy orders may have been captured before the local books
		// existed; the cap cannot be enforced for them.
	case rec.RefundedCents+cents > rec.CapturedCents:
		return fmt.Errorf("%w: refund exceeds captured amount", ErrInvalidAmount)
	}

	switch rec.OrderType {
	case models.OrderTypeV1:
		if rec.ReferenceID == "" {
			return fmt.Errorf("%w: reference id", ErrMissingIdentifier)
		}
		if err := o.v1.Refund(ctx, rec.ReferenceID, cents); err != nil {
			return err
		}
	default:
		if rec.OrderUUID == "" {
			return fmt.Errorf("%w: order uuid", ErrMissingIdentifier)
		}
		if !o.ValidateOrder(ctx, rec) {
			return ErrOrderValidationFailed
		}
		if err := o.v2.RefundByOrderUUID(ctx, rec.Link(sezzle.LinkRefund), rec.OrderUUID, cents); err != nil {
			return err
		}
	}

	rec.RefundedCents += cents
	if rec.CapturedCents > 0 && rec.RefundedCents >= rec.CapturedCents {
		rec.Status = models.PaymentStatusRefunded
	} else {
		rec.Status = models.PaymentStatusPartiallyRefunded
	}

	log.Printf("refund done: order=%s refunded_cents=%d", rec.OrderID, rec.RefundedCents)
	return nil
}

func (o *Orchestrator) voidRecord(ctx context.Context, rec *models.PaymentRecord) error {
	// The identifier check comes first: a record without a gateway order
	// UUID cannot be voided no matter what the capability flags say.
	if rec.OrderUUID == "" {
		return fmt.Errorf("%w: order uuid", ErrMissingIdentifier)
	}
	if !o.caps.Void {
		return fmt.Errorf("%w: void", ErrCapabilityDisabled)
	}
	if !o.ValidateOrder(ctx, rec) {
		return ErrOrderValidationFailed
	}

	cents := rec.OrderTotalCents
	log.Printf("void start: order=%s uuid=%s amount_cents=%d", rec.OrderID, rec.OrderUUID, cents)
	if err := o.v2.ReleaseByOrderUUID(ctx, rec.Link(sezzle.LinkRelease), rec.OrderUUID, cents); err != nil {
		return err
	}

	rec.ReleasedCents += cents
	rec.TransactionOpen = false
	rec.Status = models.PaymentStatusVoided
	log.Printf("void done: order=%s released_cents=%d", rec.OrderID, rec.ReleasedCents)
	return nil
}

// ValidateOrder re-fetches the gateway order and checks it still matches
// the stored identity and carries a usable authorization (V2) or capture
// expiration (V1). Returns false on any mismatch or gateway failure; the
// calling transition turns that into a user-facing error.
func (o *Orchestrator) ValidateOrder(ctx context.Context, rec *models.PaymentRecord) bool {
	switch rec.OrderType {
	case models.OrderTypeV1:
		if rec.ReferenceID == "" {
			return false
		}
		order, err := o.v1.GetOrder(ctx, rec.ReferenceID)
		if err != nil {
			log.Printf("order validation failed: order=%s: %v", rec.OrderID, err)
			return false
		}
		return order.CaptureExpiration != nil
	default:
		if rec.OrderUUID == "" {
			return false
		}
		order, err := o.v2.GetOrder(ctx, rec.Link(sezzle.LinkSelf), rec.OrderUUID)
		if err != nil {
			log.Printf("order validation failed: order=%s: %v", rec.OrderID, err)
			return false
		}
		if order.UUID != rec.OrderUUID {
			log.Printf("order validation failed: order=%s stored uuid=%s gateway uuid=%s", rec.OrderID, rec.OrderUUID, order.UUID)
			return false
		}
		return order.Authorization != nil
	}
}

// CanInvoice reports whether invoicing is still inside the authorization
// window (V2) or capture window (V1). Pure time comparison; no network.
func (o *Orchestrator) CanInvoice(rec *models.PaymentRecord, now time.Time) bool {
	var expiry *time.Time
	if rec.OrderType == models.OrderTypeV1 {
		expiry = rec.CaptureExpiry
	} else {
		expiry = rec.AuthExpiry
	}
	if expiry == nil {
		return true
	}
	return now.Before(*expiry)
}

// RefreshAuthExpiry fetches the gateway order and persists its
// authorization expiration, which CanInvoice checks locally from then on.
func (o *Orchestrator) RefreshAuthExpiry(ctx context.Context, rec *models.PaymentRecord) error {
	if rec.OrderUUID == "" {
		return fmt.Errorf("%w: order uuid", ErrMissingIdentifier)
	}
	order, err := o.v2.GetOrder(ctx, rec.Link(sezzle.LinkSelf), rec.OrderUUID)
	if err != nil {
		return err
	}
	if order.Authorization != nil && order.Authorization.Expiration != nil {
		rec.AuthExpiry = order.Authorization.Expiration
		return o.db.Save(rec).Error
	}
	return nil
}

// saveWithEvent persists the record and appends an audit event. A failed
// event write is logged but never blocks the operation.
func (o *Orchestrator) saveWithEvent(rec *models.PaymentRecord, action string, amountCents int64) error {
	if err := o.db.Save(rec).Error; err != nil {
		return err
	}

	meta, _ := json.Marshal(map[string]string{
		"reference_id": rec.ReferenceID,
		"order_uuid":   rec.OrderUUID,
		"order_type":   string(rec.OrderType),
		"status":       string(rec.Status),
	})
	event := models.PaymentEvent{
		PaymentRecordID: rec.ID,
		Action:          action,
		AmountCents:     amountCents,
		Metadata:        meta,
	}
	if err := o.db.Create(&event).Error; err != nil {
		log.Printf("failed to record payment event: order=%s action=%s: %v", rec.OrderID, action, err)
	}
	return nil
}
