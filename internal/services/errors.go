package services

import "errors"

// Domain errors surfaced by the payment lifecycle. Each maps to one
// user-facing failure; none is ever retried internally.
var (
	// ErrInvalidAmount rejects zero or negative amounts before any
	// gateway call is made.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrCapabilityDisabled means the requested action is not enabled
	// for this payment method instance.
	ErrCapabilityDisabled = errors.New("the action is not available")

	// ErrOrderValidationFailed means the gateway order no longer matches
	// the stored identity or lacks a usable authorization.
	ErrOrderValidationFailed = errors.New("unable to validate the order")

	// ErrMissingIdentifier means a required reference id, order UUID or
	// hypermedia link is absent for the requested operation.
	ErrMissingIdentifier = errors.New("missing gateway identifier")

	// ErrExpiredAuthorization blocks invoicing once the authorization or
	// capture window has passed.
	ErrExpiredAuthorization = errors.New("the authorization has expired")

	// ErrBelowMinimum rejects checkouts under the configured minimum.
	ErrBelowMinimum = errors.New("order total is below the minimum checkout amount")

	// ErrCheckoutClosed refuses a new checkout attempt once the payment
	// has moved past authorization.
	ErrCheckoutClosed = errors.New("checkout is no longer available for this order")
)
