package sezzle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const v2AuthCacheKey = "sezzle:v2:auth"

// TokenCache caches gateway bearer tokens between requests. Satisfied by
// services.RedisCache; a nil cache means every call re-authenticates.
type TokenCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

type bearerToken struct {
	Token          string    `json:"token"`
	ExpirationDate time.Time `json:"expiration_date"`
}

// V2Client talks to the current hypermedia-driven Sezzle API. Orders are
// identified by gateway-assigned UUIDs and follow-up actions use the links
// returned at session-creation time.
type V2Client struct {
	baseURL    string
	publicKey  string
	privateKey string
	currency   string
	client     *http.Client
	cache      TokenCache
}

// NewV2Client builds a client from environment configuration.
func NewV2Client(cache TokenCache) *V2Client {
	url := os.Getenv("SEZZLE_V2_BASE_URL")
	if url == "" {
		url = "https://gateway.sezzle.com/v2"
	}
	currency := os.Getenv("SEZZLE_CURRENCY")
	if currency == "" {
		currency = "USD"
	}
	return &V2Client{
		baseURL:    url,
		publicKey:  os.Getenv("SEZZLE_PUBLIC_KEY"),
		privateKey: os.Getenv("SEZZLE_PRIVATE_KEY"),
		currency:   currency,
		client:     &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
	}
}

// request performs one JSON round trip. Any transport error or non-2xx
// status surfaces as *GatewayError; nothing is retried.
func (c *V2Client) request(ctx context.Context, method, url string, payload, out interface{}, authed bool) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if authed {
		token, err := c.authToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &GatewayError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &GatewayError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &GatewayError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", err)}
		}
	}
	return nil
}

// authToken returns a bearer token, reusing the cached one while it is
// still comfortably inside its validity window.
func (c *V2Client) authToken(ctx context.Context) (string, error) {
	if c.cache != nil {
		var cached bearerToken
		if err := c.cache.Get(ctx, v2AuthCacheKey, &cached); err == nil &&
			cached.Token != "" && time.Until(cached.ExpirationDate) > time.Minute {
			return cached.Token, nil
		}
	}

	var tok bearerToken
	payload := map[string]string{
		"public_key":  c.publicKey,
		"private_key": c.privateKey,
	}
	if err := c.request(ctx, http.MethodPost, c.baseURL+"/authentication", payload, &tok, false); err != nil {
		return "", err
	}
	if tok.Token == "" {
		return "", &GatewayError{Message: "authentication returned no token"}
	}

	if c.cache != nil {
		if ttl := time.Until(tok.ExpirationDate) - time.Minute; ttl > 0 {
			_ = c.cache.Set(ctx, v2AuthCacheKey, tok, ttl)
		}
	}
	return tok.Token, nil
}

// CreateSession opens a checkout session for the given reference id. The
// returned order links must be persisted by the caller.
func (c *V2Client) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	var session Session
	if err := c.request(ctx, http.MethodPost, c.baseURL+"/session", req, &session, true); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetOrder fetches the gateway order, preferring the stored self link over
// the derived path.
func (c *V2Client) GetOrder(ctx context.Context, selfLink, orderUUID string) (*GatewayOrder, error) {
	url := selfLink
	if url == "" {
		url = fmt.Sprintf("%s/order/%s", c.baseURL, orderUUID)
	}
	var order GatewayOrder
	if err := c.request(ctx, http.MethodGet, url, nil, &order, true); err != nil {
		return nil, err
	}
	return &order, nil
}

// CaptureByOrderUUID captures amountCents of the order. isPartial must be
// true whenever the captured amount is below the order total.
func (c *V2Client) CaptureByOrderUUID(ctx context.Context, captureLink, orderUUID string, amountCents int64, isPartial bool) error {
	url := captureLink
	if url == "" {
		url = fmt.Sprintf("%s/order/%s/capture", c.baseURL, orderUUID)
	}
	payload := map[string]interface{}{
		"capture_amount":  Amount{AmountInCents: amountCents, Currency: c.currency},
		"partial_capture": isPartial,
	}
	return c.request(ctx, http.MethodPost, url, payload, nil, true)
}

// RefundByOrderUUID refunds amountCents of the captured order amount.
func (c *V2Client) RefundByOrderUUID(ctx context.Context, refundLink, orderUUID string, amountCents int64) error {
	url := refundLink
	if url == "" {
		url = fmt.Sprintf("%s/order/%s/refund", c.baseURL, orderUUID)
	}
	return c.request(ctx, http.MethodPost, url, Amount{AmountInCents: amountCents, Currency: c.currency}, nil, true)
}

// ReleaseByOrderUUID releases amountCents of the authorized, uncaptured
// order amount (void).
func (c *V2Client) ReleaseByOrderUUID(ctx context.Context, releaseLink, orderUUID string, amountCents int64) error {
	url := releaseLink
	if url == "" {
		url = fmt.Sprintf("%s/order/%s/release", c.baseURL, orderUUID)
	}
	return c.request(ctx, http.MethodPost, url, Amount{AmountInCents: amountCents, Currency: c.currency}, nil, true)
}

// GetCustomerUUID exchanges a tokenize token for the customer it belongs to.
func (c *V2Client) GetCustomerUUID(ctx context.Context, token string) (*TokenSession, error) {
	var session TokenSession
	url := fmt.Sprintf("%s/token/%s/session", c.baseURL, token)
	if err := c.request(ctx, http.MethodGet, url, nil, &session, true); err != nil {
		return nil, err
	}
	if session.Customer == nil || session.Customer.UUID == "" {
		return nil, &GatewayError{Message: "token session has no customer"}
	}
	return &session, nil
}

// CreateOrderByCustomerUUID creates an order directly against a tokenized
// customer, bypassing the session/redirect flow.
func (c *V2Client) CreateOrderByCustomerUUID(ctx context.Context, customerUUID, referenceID string, amountCents int64) (*GatewayOrder, error) {
	payload := map[string]interface{}{
		"intent":       "AUTH",
		"reference_id": referenceID,
		"order_amount": Amount{AmountInCents: amountCents, Currency: c.currency},
	}
	url := fmt.Sprintf("%s/customer/%s/order", c.baseURL, customerUUID)
	var order GatewayOrder
	if err := c.request(ctx, http.MethodPost, url, payload, &order, true); err != nil {
		return nil, err
	}
	return &order, nil
}
