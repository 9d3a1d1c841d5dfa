package sezzle

import (
	"fmt"
	"time"
)

// LinkRelation names a hypermedia action the gateway exposes on an order.
// The V2 API may rotate the underlying URLs per order, so links returned at
// session-creation time must be stored and reused as-is.
type LinkRelation string

const (
	LinkSelf     LinkRelation = "self"
	LinkCapture  LinkRelation = "capture"
	LinkRefund   LinkRelation = "refund"
	LinkRelease  LinkRelation = "release"
	LinkOrder    LinkRelation = "order"
	LinkCheckout LinkRelation = "checkout"
)

// Link is a single hypermedia link as returned by the V2 API.
type Link struct {
	Href   string       `json:"href"`
	Method string       `json:"method"`
	Rel    LinkRelation `json:"rel"`
}

// LinkMap maps a relation to its URL. Unknown relations are kept so the
// stored record stays a faithful copy of what the gateway returned, but
// only the named constants above are ever dereferenced.
type LinkMap map[LinkRelation]string

// BuildLinkMap collapses a link list into a relation -> URL map.
func BuildLinkMap(links []Link) LinkMap {
	m := make(LinkMap, len(links))
	for _, l := range links {
		if l.Rel == "" || l.Href == "" {
			continue
		}
		m[l.Rel] = l.Href
	}
	return m
}

// Amount is the wire representation of a money amount.
type Amount struct {
	AmountInCents int64  `json:"amount_in_cents"`
	Currency      string `json:"currency"`
}

// Authorization is the authorization block of a V2 order.
type Authorization struct {
	ApprovedAmount *Amount    `json:"approved_amount,omitempty"`
	Expiration     *time.Time `json:"expiration,omitempty"`
}

// GatewayOrder is the gateway's view of an order. V2 orders are identified
// by UUID, V1 legacy orders by the merchant reference id.
type GatewayOrder struct {
	UUID              string         `json:"uuid,omitempty"`
	ReferenceID       string         `json:"reference_id,omitempty"`
	Intent            string         `json:"intent,omitempty"`
	Description       string         `json:"description,omitempty"`
	CheckoutURL       string         `json:"checkout_url,omitempty"`
	AmountInCents     int64          `json:"amount_in_cents,omitempty"`
	Currency          string         `json:"currency,omitempty"`
	Authorization     *Authorization `json:"authorization,omitempty"`
	CaptureExpiration *time.Time     `json:"capture_expiration,omitempty"`
	Links             []Link         `json:"links,omitempty"`
}

// SessionOrder is the order block of a checkout-session response.
type SessionOrder struct {
	UUID        string `json:"uuid"`
	CheckoutURL string `json:"checkout_url"`
	Links       []Link `json:"links,omitempty"`
}

// SessionTokenize is the tokenize block of a checkout-session response.
// The token is later exchanged for a reusable customer UUID.
type SessionTokenize struct {
	Token       string     `json:"token"`
	Expiration  *time.Time `json:"expiration,omitempty"`
	ApprovalURL string     `json:"approval_url,omitempty"`
}

// Session is the response of a V2 checkout-session creation.
type Session struct {
	UUID     string           `json:"uuid,omitempty"`
	Order    *SessionOrder    `json:"order,omitempty"`
	Tokenize *SessionTokenize `json:"tokenize,omitempty"`
	Links    []Link           `json:"links,omitempty"`
}

// SessionRequest is the payload of a V2 checkout-session creation.
type SessionRequest struct {
	CancelURL   URLField             `json:"cancel_url"`
	CompleteURL URLField             `json:"complete_url"`
	Order       *SessionOrderRequest `json:"order,omitempty"`
	Tokenize    bool                 `json:"tokenize,omitempty"`
}

// URLField wraps a redirect URL the way the V2 API expects it.
type URLField struct {
	Href   string `json:"href"`
	Method string `json:"method,omitempty"`
}

// SessionOrderRequest is the order block of a session-creation payload.
type SessionOrderRequest struct {
	Intent      string  `json:"intent,omitempty"`
	ReferenceID string  `json:"reference_id"`
	Description string  `json:"description,omitempty"`
	OrderAmount *Amount `json:"order_amount,omitempty"`
}

// TokenSession is the response of exchanging a tokenize token for the
// customer it belongs to.
type TokenSession struct {
	Token      string           `json:"token,omitempty"`
	Expiration *time.Time       `json:"expiration,omitempty"`
	Customer   *SessionCustomer `json:"customer,omitempty"`
}

// SessionCustomer is the customer block of a token-session response.
type SessionCustomer struct {
	UUID       string     `json:"uuid"`
	Expiration *time.Time `json:"expiration,omitempty"`
	Links      []Link     `json:"links,omitempty"`
}

// GatewayError is returned for any non-success HTTP response or transport
// failure while talking to the gateway. Calls are never retried here;
// callers must reuse the same reference id / order UUID when they retry.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("sezzle gateway: %s", e.Message)
	}
	return fmt.Sprintf("sezzle gateway: status %d: %s", e.StatusCode, e.Message)
}
