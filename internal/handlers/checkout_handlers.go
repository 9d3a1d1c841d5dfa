package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"sezzlepay_echo/internal/services"
)

type CheckoutHandler struct {
	checkout *services.CheckoutService
}

func NewCheckoutHandler(checkout *services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// StartCheckout creates a gateway checkout session (or takes the tokenized
// shortcut) and returns where to send the shopper.
func (h *CheckoutHandler) StartCheckout(c echo.Context) error {
	var req StartCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.checkout.StartCheckout(c.Request().Context(), services.StartCheckoutInput{
		OrderID:     req.OrderID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		CustomerRef: req.CustomerRef,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// CompleteCheckout runs the configured payment action once the shopper
// returns from the gateway.
func (h *CheckoutHandler) CompleteCheckout(c echo.Context) error {
	var req CompleteCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	rec, err := h.checkout.CompleteCheckout(c.Request().Context(), req.ReferenceID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"order_id":     rec.OrderID,
		"reference_id": rec.ReferenceID,
		"status":       rec.Status,
	})
}
