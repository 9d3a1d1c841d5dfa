package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"sezzlepay_echo/internal/models"
	"sezzlepay_echo/internal/sezzle"
)

// customerTokens is the slice of TokenizeManager checkout depends on.
// Satisfied by *TokenizeManager; faked in tests.
type customerTokens interface {
	ValidCustomerToken(ctx context.Context, customerRef string) *models.CustomerToken
	SaveTokenizeSession(customerRef string, t *sezzle.SessionTokenize) error
}

// CheckoutService starts and completes gateway checkouts. Session-based
// checkout redirects the shopper to the gateway; tokenized checkout skips
// the redirect when the customer already has a valid UUID.
type CheckoutService struct {
	db     *gorm.DB
	v2     V2Gateway
	tokens customerTokens
	orch   *Orchestrator

	paymentAction       string
	currency            string
	minCheckoutAmount   float64
	tokenizeEnabled     bool
	completeURL         string
	cancelURL           string
	tokenizeCompleteURL string
}

func NewCheckoutService(db *gorm.DB, v2 V2Gateway, tokens *TokenizeManager, orch *Orchestrator) *CheckoutService {
	paymentAction := os.Getenv("SEZZLE_PAYMENT_ACTION")
	if paymentAction == "" {
		paymentAction = models.PaymentActionAuthorizeCapture
	}
	currency := os.Getenv("SEZZLE_CURRENCY")
	if currency == "" {
		currency = "USD"
	}
	minAmount, _ := strconv.ParseFloat(os.Getenv("SEZZLE_MIN_CHECKOUT_AMOUNT"), 64)

	return &CheckoutService{
		db:                  db,
		v2:                  v2,
		tokens:              tokens,
		orch:                orch,
		paymentAction:       paymentAction,
		currency:            currency,
		minCheckoutAmount:   minAmount,
		tokenizeEnabled:     os.Getenv("SEZZLE_TOKENIZE_ENABLED") == "true",
		completeURL:         os.Getenv("SEZZLE_COMPLETE_URL"),
		cancelURL:           os.Getenv("SEZZLE_CANCEL_URL"),
		tokenizeCompleteURL: os.Getenv("SEZZLE_TOKENIZE_COMPLETE_URL"),
	}
}

// StartCheckoutInput is one checkout attempt for an order.
type StartCheckoutInput struct {
	OrderID     string
	Amount      float64
	Currency    string
	CustomerRef string
}

// StartCheckoutResult carries where to send the shopper next.
type StartCheckoutResult struct {
	RedirectURL string `json:"redirect_url"`
	ReferenceID string `json:"reference_id"`
	Tokenized   bool   `json:"tokenized"`
}

// newReferenceID builds the merchant reference: a unique suffix plus the
// order id, so retries of the same attempt reuse one identifier while a
// fresh attempt gets a fresh one.
func newReferenceID(orderID string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s-%s", suffix, orderID)
}

// StartCheckout creates (or restarts) the gateway checkout for an order
// and returns the redirect URL.
func (s *CheckoutService) StartCheckout(ctx context.Context, in StartCheckoutInput) (*StartCheckoutResult, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: checkout", ErrInvalidAmount)
	}
	if in.Amount < s.minCheckoutAmount {
		return nil, ErrBelowMinimum
	}

	// One record per order; a new checkout attempt reassigns the
	// reference id on the existing row.
	var rec models.PaymentRecord
	err := s.db.Where("order_id = ?", in.OrderID).First(&rec).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}

	result, err := s.buildCheckout(ctx, &rec, in)
	if err != nil {
		return nil, err
	}

	if err := s.db.Save(&rec).Error; err != nil {
		return nil, err
	}
	s.appendEvent(&rec, "checkout_started")

	log.Printf("checkout ready: order=%s reference=%s tokenized=%v url=%s",
		in.OrderID, rec.ReferenceID, result.Tokenized, result.RedirectURL)
	return result, nil
}

// buildCheckout mutates the record for a fresh checkout attempt and
// resolves where to send the shopper. Database writes stay with the
// caller. A record that already moved past authorization keeps its
// lifecycle state and refuses a restart.
func (s *CheckoutService) buildCheckout(ctx context.Context, rec *models.PaymentRecord, in StartCheckoutInput) (*StartCheckoutResult, error) {
	switch rec.Status {
	case "", models.PaymentStatusNew, models.PaymentStatusAuthorized:
	default:
		return nil, fmt.Errorf("%w: payment is %s", ErrCheckoutClosed, rec.Status)
	}

	currency := in.Currency
	if currency == "" {
		currency = s.currency
	}
	referenceID := newReferenceID(in.OrderID)
	log.Printf("checkout start: order=%s reference=%s", in.OrderID, referenceID)

	rec.OrderID = in.OrderID
	rec.ReferenceID = referenceID
	rec.Currency = currency
	rec.OrderTotalCents = AmountToCents(in.Amount)
	rec.PaymentType = s.paymentAction
	rec.Status = models.PaymentStatusNew
	rec.OrderType = models.OrderTypeV2

	// Tokenized path: a valid customer UUID skips the gateway redirect.
	if s.tokenizeEnabled {
		if tok := s.tokens.ValidCustomerToken(ctx, in.CustomerRef); tok != nil {
			rec.CustomerUUID = tok.CustomerUUID
			log.Printf("checkout tokenized: order=%s customer_uuid=%s", in.OrderID, tok.CustomerUUID)
			return &StartCheckoutResult{
				RedirectURL: s.tokenizeCompleteURL,
				ReferenceID: referenceID,
				Tokenized:   true,
			}, nil
		}
	}

	session, err := s.v2.CreateSession(ctx, sezzle.SessionRequest{
		CancelURL:   sezzle.URLField{Href: s.cancelURL},
		CompleteURL: sezzle.URLField{Href: s.completeURL},
		Order: &sezzle.SessionOrderRequest{
			ReferenceID: referenceID,
			OrderAmount: &sezzle.Amount{AmountInCents: rec.OrderTotalCents, Currency: currency},
		},
		Tokenize: s.tokenizeEnabled,
	})
	if err != nil {
		return nil, err
	}

	redirectURL := ""
	if session.Order != nil {
		redirectURL = session.Order.CheckoutURL
		if session.Order.UUID != "" {
			rec.OrderUUID = session.Order.UUID
		}
		rec.SetLinks(session.Order.Links)
	}
	if session.Tokenize != nil {
		if err := s.tokens.SaveTokenizeSession(in.CustomerRef, session.Tokenize); err != nil {
			log.Printf("failed to save tokenize session: order=%s: %v", in.OrderID, err)
		}
	}
	if redirectURL == "" {
		log.Printf("checkout failed: order=%s: no checkout url in session response", in.OrderID)
		return nil, &sezzle.GatewayError{Message: "there is an issue processing your order"}
	}

	return &StartCheckoutResult{RedirectURL: redirectURL, ReferenceID: referenceID}, nil
}

// CompleteCheckout finishes the flow after the shopper returns from the
// gateway: capture for authorize_capture, authorize plus expiry refresh
// otherwise.
func (s *CheckoutService) CompleteCheckout(ctx context.Context, referenceID string) (*models.PaymentRecord, error) {
	rec, err := s.orch.RecordByReference(referenceID)
	if err != nil {
		return nil, err
	}
	amount := CentsToAmount(rec.OrderTotalCents)

	switch rec.PaymentType {
	case models.PaymentActionAuthorize:
		rec, err = s.orch.Authorize(ctx, rec.OrderID, amount)
		if err != nil {
			return nil, err
		}
		if err := s.orch.RefreshAuthExpiry(ctx, rec); err != nil {
			log.Printf("failed to refresh auth expiry: order=%s: %v", rec.OrderID, err)
		}
		return rec, nil
	default:
		return s.orch.Capture(ctx, rec.OrderID, amount)
	}
}

func (s *CheckoutService) appendEvent(rec *models.PaymentRecord, action string) {
	event := models.PaymentEvent{
		PaymentRecordID: rec.ID,
		Action:          action,
		AmountCents:     rec.OrderTotalCents,
	}
	if err := s.db.Create(&event).Error; err != nil {
		log.Printf("failed to record payment event: order=%s action=%s: %v", rec.OrderID, action, err)
	}
}

// CanStart reports whether checkout is available for the amount, without
// side effects. Mirrors the gateway-availability gate used by storefronts.
func (s *CheckoutService) CanStart(amount float64) bool {
	if amount <= 0 || amount < s.minCheckoutAmount {
		return false
	}
	return os.Getenv("SEZZLE_MERCHANT_UUID") != "" &&
		os.Getenv("SEZZLE_PUBLIC_KEY") != "" &&
		os.Getenv("SEZZLE_PRIVATE_KEY") != ""
}
