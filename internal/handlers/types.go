package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// RequestValidator wires go-playground/validator as echo's Validator.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

// Validate implements echo.Validator
func (v *RequestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// StartCheckoutRequest starts a gateway checkout for an order.
type StartCheckoutRequest struct {
	OrderID     string  `json:"order_id" validate:"required"`
	Amount      float64 `json:"amount" validate:"required"`
	Currency    string  `json:"currency" validate:"omitempty,len=3"`
	CustomerRef string  `json:"customer_ref"`
}

// CompleteCheckoutRequest finishes a checkout after the gateway redirect.
type CompleteCheckoutRequest struct {
	ReferenceID string `json:"reference_id" validate:"required"`
}

// AmountRequest carries the amount of an authorize/capture/refund call.
// Amount semantics (<= 0 rejected before any gateway call) are enforced by
// the orchestrator, not here.
type AmountRequest struct {
	Amount float64 `json:"amount"`
}
