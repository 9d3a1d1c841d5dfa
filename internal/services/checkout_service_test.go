package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sezzlepay_echo/internal/models"
	"sezzlepay_echo/internal/sezzle"
)

// fakeTokens is an in-memory customerTokens for tests.
type fakeTokens struct {
	token       *models.CustomerToken
	savedTokens []string
}

func (f *fakeTokens) ValidCustomerToken(context.Context, string) *models.CustomerToken {
	return f.token
}

func (f *fakeTokens) SaveTokenizeSession(_ string, t *sezzle.SessionTokenize) error {
	f.savedTokens = append(f.savedTokens, t.Token)
	return nil
}

func TestBuildCheckoutStoresSessionOrder(t *testing.T) {
	v2 := &fakeV2{session: &sezzle.Session{
		Order: &sezzle.SessionOrder{
			UUID:        "U1",
			CheckoutURL: "https://checkout.example.com/u1",
			Links: []sezzle.Link{
				{Rel: sezzle.LinkCapture, Href: "https://gw/order/U1/capture", Method: "POST"},
			},
		},
	}}
	s := &CheckoutService{
		v2:            v2,
		tokens:        &fakeTokens{},
		paymentAction: models.PaymentActionAuthorizeCapture,
		currency:      "USD",
	}

	rec := &models.PaymentRecord{}
	result, err := s.buildCheckout(context.Background(), rec, StartCheckoutInput{OrderID: "100", Amount: 19.99})
	if err != nil {
		t.Fatalf("buildCheckout error = %v", err)
	}

	if rec.OrderUUID != "U1" {
		t.Errorf("OrderUUID = %q; want U1", rec.OrderUUID)
	}
	if rec.OrderType != models.OrderTypeV2 {
		t.Errorf("OrderType = %q; want v2", rec.OrderType)
	}
	if result.RedirectURL != "https://checkout.example.com/u1" {
		t.Errorf("RedirectURL = %q; want the session checkout url", result.RedirectURL)
	}
	if result.Tokenized {
		t.Error("Tokenized = true; want false for the session path")
	}
	if rec.OrderTotalCents != 1999 {
		t.Errorf("OrderTotalCents = %d; want 1999", rec.OrderTotalCents)
	}
	if rec.Status != models.PaymentStatusNew {
		t.Errorf("Status = %q; want new", rec.Status)
	}
	if !strings.HasSuffix(rec.ReferenceID, "-100") {
		t.Errorf("ReferenceID = %q; want order id suffix", rec.ReferenceID)
	}
	if rec.Link(sezzle.LinkCapture) != "https://gw/order/U1/capture" {
		t.Errorf("stored capture link = %q", rec.Link(sezzle.LinkCapture))
	}
}

func TestBuildCheckoutWithoutRedirectFails(t *testing.T) {
	v2 := &fakeV2{session: &sezzle.Session{
		Order: &sezzle.SessionOrder{UUID: "U1"},
	}}
	s := &CheckoutService{v2: v2, tokens: &fakeTokens{}, currency: "USD"}

	_, err := s.buildCheckout(context.Background(), &models.PaymentRecord{}, StartCheckoutInput{OrderID: "100", Amount: 19.99})
	if err == nil {
		t.Fatal("buildCheckout error = nil; want GatewayError")
	}
	var gwErr *sezzle.GatewayError
	if !errors.As(err, &gwErr) {
		t.Errorf("buildCheckout error = %T; want *sezzle.GatewayError", err)
	}
}

func TestBuildCheckoutTokenizedShortcut(t *testing.T) {
	v2 := &fakeV2{}
	s := &CheckoutService{
		v2:                  v2,
		tokens:              &fakeTokens{token: &models.CustomerToken{CustomerUUID: "customer-uuid-1"}},
		currency:            "USD",
		tokenizeEnabled:     true,
		tokenizeCompleteURL: "https://shop.example.com/tokenized-complete",
	}

	rec := &models.PaymentRecord{}
	result, err := s.buildCheckout(context.Background(), rec, StartCheckoutInput{
		OrderID:     "100",
		Amount:      19.99,
		CustomerRef: "cust-1",
	})
	if err != nil {
		t.Fatalf("buildCheckout error = %v", err)
	}

	if !result.Tokenized {
		t.Error("Tokenized = false; want true")
	}
	if result.RedirectURL != "https://shop.example.com/tokenized-complete" {
		t.Errorf("RedirectURL = %q; want the tokenized complete url", result.RedirectURL)
	}
	if rec.CustomerUUID != "customer-uuid-1" {
		t.Errorf("CustomerUUID = %q; want customer-uuid-1", rec.CustomerUUID)
	}
	if v2.sessionCalls != 0 {
		t.Errorf("session creations = %d; want 0 on the tokenized path", v2.sessionCalls)
	}
}

func TestBuildCheckoutSavesTokenizeSession(t *testing.T) {
	v2 := &fakeV2{session: &sezzle.Session{
		Order:    &sezzle.SessionOrder{UUID: "U1", CheckoutURL: "https://checkout.example.com/u1"},
		Tokenize: &sezzle.SessionTokenize{Token: "tok-9"},
	}}
	tokens := &fakeTokens{}
	s := &CheckoutService{v2: v2, tokens: tokens, currency: "USD", tokenizeEnabled: true}

	_, err := s.buildCheckout(context.Background(), &models.PaymentRecord{}, StartCheckoutInput{
		OrderID:     "100",
		Amount:      19.99,
		CustomerRef: "cust-1",
	})
	if err != nil {
		t.Fatalf("buildCheckout error = %v", err)
	}
	if len(tokens.savedTokens) != 1 || tokens.savedTokens[0] != "tok-9" {
		t.Errorf("saved tokenize tokens = %v; want [tok-9]", tokens.savedTokens)
	}
}

func TestBuildCheckoutRefusesClosedRecords(t *testing.T) {
	closed := []models.PaymentStatus{
		models.PaymentStatusCaptured,
		models.PaymentStatusPartiallyRefunded,
		models.PaymentStatusRefunded,
		models.PaymentStatusVoided,
		models.PaymentStatusAuthExpired,
	}
	for _, status := range closed {
		v2 := &fakeV2{}
		s := &CheckoutService{v2: v2, tokens: &fakeTokens{}, currency: "USD"}
		rec := &models.PaymentRecord{OrderID: "100", Status: status, ReferenceID: "keep-me"}

		_, err := s.buildCheckout(context.Background(), rec, StartCheckoutInput{OrderID: "100", Amount: 19.99})
		if !errors.Is(err, ErrCheckoutClosed) {
			t.Errorf("buildCheckout on %s record: error = %v; want ErrCheckoutClosed", status, err)
		}
		if rec.Status != status || rec.ReferenceID != "keep-me" {
			t.Errorf("record mutated on refused restart: status=%q reference=%q", rec.Status, rec.ReferenceID)
		}
		if v2.sessionCalls != 0 {
			t.Errorf("session creations = %d on %s record; want 0", v2.sessionCalls, status)
		}
	}
}

func TestBuildCheckoutAllowsRestartWhileAuthorized(t *testing.T) {
	v2 := &fakeV2{session: &sezzle.Session{
		Order: &sezzle.SessionOrder{UUID: "U2", CheckoutURL: "https://checkout.example.com/u2"},
	}}
	s := &CheckoutService{v2: v2, tokens: &fakeTokens{}, currency: "USD"}
	rec := &models.PaymentRecord{OrderID: "100", Status: models.PaymentStatusAuthorized, ReferenceID: "old-ref"}

	result, err := s.buildCheckout(context.Background(), rec, StartCheckoutInput{OrderID: "100", Amount: 19.99})
	if err != nil {
		t.Fatalf("buildCheckout error = %v", err)
	}
	if rec.ReferenceID == "old-ref" {
		t.Error("restart did not assign a fresh reference id")
	}
	if result.RedirectURL != "https://checkout.example.com/u2" {
		t.Errorf("RedirectURL = %q", result.RedirectURL)
	}
}

func TestNewReferenceID(t *testing.T) {
	ref := newReferenceID("order-100")

	parts := strings.SplitN(ref, "-", 2)
	if len(parts) != 2 {
		t.Fatalf("reference id %q has no suffix separator", ref)
	}
	if len(parts[0]) != 12 {
		t.Errorf("unique suffix %q has length %d; want 12", parts[0], len(parts[0]))
	}
	for _, r := range parts[0] {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Errorf("unique suffix %q contains non-hex rune %q", parts[0], r)
		}
	}
	if parts[1] != "order-100" {
		t.Errorf("reference id %q does not end with the order id", ref)
	}

	if other := newReferenceID("order-100"); other == ref {
		t.Errorf("two reference ids for the same order collide: %q", ref)
	}
}

func TestCanStart(t *testing.T) {
	t.Setenv("SEZZLE_MERCHANT_UUID", "merchant-uuid")
	t.Setenv("SEZZLE_PUBLIC_KEY", "pub")
	t.Setenv("SEZZLE_PRIVATE_KEY", "priv")

	s := &CheckoutService{minCheckoutAmount: 5}

	tests := []struct {
		name     string
		amount   float64
		expected bool
	}{
		{name: "above minimum", amount: 19.99, expected: true},
		{name: "at minimum", amount: 5, expected: true},
		{name: "below minimum", amount: 4.99, expected: false},
		{name: "zero", amount: 0, expected: false},
		{name: "negative", amount: -1, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.CanStart(tt.amount); got != tt.expected {
				t.Errorf("CanStart(%v) = %v; want %v", tt.amount, got, tt.expected)
			}
		})
	}
}

func TestCanStartWithoutCredentials(t *testing.T) {
	t.Setenv("SEZZLE_MERCHANT_UUID", "")
	t.Setenv("SEZZLE_PUBLIC_KEY", "")
	t.Setenv("SEZZLE_PRIVATE_KEY", "")

	s := &CheckoutService{}
	if s.CanStart(19.99) {
		t.Error("CanStart() = true without gateway credentials; want false")
	}
}
