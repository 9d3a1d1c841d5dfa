package sezzle

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
)

const v1AuthCacheKey = "sezzle:v1:auth"

// V1Client talks to the legacy Sezzle API. Endpoints are fixed and orders
// are keyed by the merchant reference id. Kept only for orders created
// before the V2 migration; dispatch happens on the stored order type.
type V1Client struct {
	baseURL    string
	publicKey  string
	privateKey string
	currency   string
	client     *http.Client
	cache      TokenCache
}

// NewV1Client builds a client from environment configuration.
func NewV1Client(cache TokenCache) *V1Client {
	url := os.Getenv("SEZZLE_V1_BASE_URL")
	if url == "" {
		url = "https://gateway.sezzle.com/v1"
	}
	currency := os.Getenv("SEZZLE_CURRENCY")
	if currency == "" {
		currency = "USD"
	}
	return &V1Client{
		baseURL:    url,
		publicKey:  os.Getenv("SEZZLE_PUBLIC_KEY"),
		privateKey: os.Getenv("SEZZLE_PRIVATE_KEY"),
		currency:   currency,
		client:     &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
	}
}

func (c *V1Client) request(ctx context.Context, method, url string, payload, out interface{}, authed bool) error {
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

func (c *V1Client) authToken(ctx context.Context) (string, error) {
	if c.cache != nil {
		var cached bearerToken
		if err := c.cache.Get(ctx, v1AuthCacheKey, &cached); err == nil &&
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
			_ = c.cache.Set(ctx, v1AuthCacheKey, tok, ttl)
		}
	}
	return tok.Token, nil
}

// GetOrder fetches a legacy order by reference id. The response carries the
// captured amount and the capture expiration window.
func (c *V1Client) GetOrder(ctx context.Context, referenceID string) (*GatewayOrder, error) {
	var order GatewayOrder
	url := fmt.Sprintf("%s/orders/%s", c.baseURL, referenceID)
	if err := c.request(ctx, http.MethodGet, url, nil, &order, true); err != nil {
		return nil, err
	}
	if order.ReferenceID == "" {
		order.ReferenceID = referenceID
	}
	return &order, nil
}

// Capture completes a legacy checkout. The full checkout amount is
// captured; V1 has no partial capture.
func (c *V1Client) Capture(ctx context.Context, referenceID string) error {
	url := fmt.Sprintf("%s/checkouts/%s/complete", c.baseURL, referenceID)
	return c.request(ctx, http.MethodPost, url, nil, nil, true)
}

// Refund refunds amountCents of a legacy order.
func (c *V1Client) Refund(ctx context.Context, referenceID string, amountCents int64) error {
	url := fmt.Sprintf("%s/orders/%s/refund", c.baseURL, referenceID)
	return c.request(ctx, http.MethodPost, url, Amount{AmountInCents: amountCents, Currency: c.currency}, nil, true)
}

// CheckoutRequest carries the fields of a legacy signed checkout form.
type CheckoutRequest struct {
	OrderID       string
	Amount        string
	Currency      string
	CustomerEmail string
	FirstName     string
	LastName      string
	Phone         string
	ShopName      string
	ShopCountry   string
	CompleteURL   string
	CancelURL     string
	TransactionID string
	Test          bool
}

// BuildCheckoutRequest assembles and signs the legacy x_-prefixed checkout
// form. Returns the signed form and the gateway URL to post it to.
func (c *V1Client) BuildCheckoutRequest(req CheckoutRequest) (map[string]string, string) {
	test := "0"
	if req.Test {
		test = "1"
	}
	data := map[string]string{
		"x_account_id":          c.publicKey,
		"x_amount":              req.Amount,
		"x_currency":            req.Currency,
		"x_customer_email":      req.CustomerEmail,
		"x_customer_first_name": req.FirstName,
		"x_customer_last_name":  req.LastName,
		"x_customer_phone":      req.Phone,
		"x_reference":           req.OrderID,
		"x_shop_country":        req.ShopCountry,
		"x_shop_name":           req.ShopName,
		"x_test":                test,
		"x_url_complete":        req.CompleteURL,
		"x_url_cancel":          req.CancelURL,
	}
	return SignCheckoutRequest(data, c.privateKey), c.baseURL
}

// signatureMessage concatenates key+value pairs in case-insensitive key
// order, the exact message the legacy gateway verifies.
func signatureMessage(data map[string]string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := strings.ToLower(keys[i]), strings.ToLower(keys[j])
		if li == lj {
			return keys[i] < keys[j]
		}
		return li < lj
	})

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(data[k])
	}
	return b.String()
}

// SignCheckoutRequest appends x_signature, the hex HMAC-SHA256 of the
// sorted key+value message under the merchant private key.
func SignCheckoutRequest(data map[string]string, privateKey string) map[string]string {
	signed := make(map[string]string, len(data)+1)
	for k, v := range data {
		signed[k] = v
	}

	mac := hmac.New(sha256.New, []byte(privateKey))
	mac.Write([]byte(signatureMessage(data)))
	signed["x_signature"] = hex.EncodeToString(mac.Sum(nil))
	return signed
}
