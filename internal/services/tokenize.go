package services

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"sezzlepay_echo/internal/models"
	"sezzlepay_echo/internal/sezzle"
)

// TokenizeManager owns the repeat-customer identity: the tokenize token
// captured at session creation, its exchange for a customer UUID, and
// order creation directly against that UUID.
type TokenizeManager struct {
	db *gorm.DB
	v2 V2Gateway
}

func NewTokenizeManager(db *gorm.DB, v2 V2Gateway) *TokenizeManager {
	return &TokenizeManager{db: db, v2: v2}
}

// IsCustomerUUIDValid reports whether the stored customer UUID can still
// be used for tokenized checkout.
func (m *TokenizeManager) IsCustomerUUIDValid(tok *models.CustomerToken) bool {
	if tok == nil || tok.CustomerUUID == "" || tok.UUIDExpiration == nil {
		return false
	}
	return time.Now().Before(*tok.UUIDExpiration)
}

// ValidCustomerToken returns a usable token record for the customer, or
// nil. A stored tokenize token that has not been exchanged yet is
// exchanged for a customer UUID on the way.
func (m *TokenizeManager) ValidCustomerToken(ctx context.Context, customerRef string) *models.CustomerToken {
	if customerRef == "" {
		return nil
	}
	var tok models.CustomerToken
	if err := m.db.Where("customer_ref = ?", customerRef).First(&tok).Error; err != nil {
		return nil
	}
	if m.IsCustomerUUIDValid(&tok) {
		return &tok
	}

	// Exchange a still-valid tokenize token for the customer UUID.
	if tok.Token == "" || tok.TokenExpiration == nil || !time.Now().Before(*tok.TokenExpiration) {
		return nil
	}
	session, err := m.v2.GetCustomerUUID(ctx, tok.Token)
	if err != nil {
		log.Printf("token exchange failed: customer=%s: %v", customerRef, err)
		return nil
	}
	tok.CustomerUUID = session.Customer.UUID
	tok.UUIDExpiration = session.Customer.Expiration
	if err := m.db.Save(&tok).Error; err != nil {
		log.Printf("failed to save customer token: customer=%s: %v", customerRef, err)
		return nil
	}
	if m.IsCustomerUUIDValid(&tok) {
		return &tok
	}
	return nil
}

// SaveTokenizeSession upserts the tokenize token a checkout session
// returned for the customer. The UUID exchange happens later, on first
// tokenized checkout.
func (m *TokenizeManager) SaveTokenizeSession(customerRef string, t *sezzle.SessionTokenize) error {
	if customerRef == "" || t == nil || t.Token == "" {
		return nil
	}
	var tok models.CustomerToken
	err := m.db.Where("customer_ref = ?", customerRef).First(&tok).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}
	tok.CustomerRef = customerRef
	tok.Token = t.Token
	tok.TokenExpiration = t.Expiration
	log.Printf("tokenize session stored: customer=%s", customerRef)
	return m.db.Save(&tok).Error
}

// CreateOrder creates a gateway order directly against the record's
// customer UUID, bypassing the session/redirect flow.
func (m *TokenizeManager) CreateOrder(ctx context.Context, rec *models.PaymentRecord, amountCents int64) error {
	if rec.CustomerUUID == "" {
		return ErrMissingIdentifier
	}
	order, err := m.v2.CreateOrderByCustomerUUID(ctx, rec.CustomerUUID, rec.ReferenceID, amountCents)
	if err != nil {
		return err
	}
	if order.UUID != "" {
		rec.OrderUUID = order.UUID
	}
	rec.SetLinks(order.Links)
	log.Printf("tokenized order created: order=%s uuid=%s", rec.OrderID, rec.OrderUUID)
	return nil
}
