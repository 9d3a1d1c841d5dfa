package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"sezzlepay_echo/internal/models"
	"sezzlepay_echo/internal/services"
)

type PaymentHandler struct {
	db   *gorm.DB
	orch *services.Orchestrator
}

func NewPaymentHandler(db *gorm.DB, orch *services.Orchestrator) *PaymentHandler {
	return &PaymentHandler{db: db, orch: orch}
}

// Authorize authorizes an amount against the gateway order.
func (h *PaymentHandler) Authorize(c echo.Context) error {
	return h.runAmountAction(c, h.orch.Authorize)
}

// Capture captures an amount, dispatching to V1 or V2 by the stored order
// type.
func (h *PaymentHandler) Capture(c echo.Context) error {
	return h.runAmountAction(c, h.orch.Capture)
}

// Refund refunds an amount of the captured total.
func (h *PaymentHandler) Refund(c echo.Context) error {
	return h.runAmountAction(c, h.orch.Refund)
}

func (h *PaymentHandler) runAmountAction(
	c echo.Context,
	action func(ctx context.Context, orderID string, amount float64) (*models.PaymentRecord, error),
) error {
	var req AmountRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	rec, err := action(c.Request().Context(), c.Param("id"), req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, paymentInfo(rec))
}

// Void releases the full uncaptured order amount.
func (h *PaymentHandler) Void(c echo.Context) error {
	rec, err := h.orch.Void(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, paymentInfo(rec))
}

// GetPayment renders the stored payment metadata read-only, for support
// staff.
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	rec, err := h.orch.Record(c.Param("id"))
	if err != nil {
		return err
	}

	var events []models.PaymentEvent
	h.db.Where("payment_record_id = ?", rec.ID).Order("created_at asc").Find(&events)

	info := paymentInfo(rec)
	info["events"] = events
	return c.JSON(http.StatusOK, info)
}

// Invoiceable reports whether invoicing is still inside the authorization
// window. Pure local comparison, no gateway call.
func (h *PaymentHandler) Invoiceable(c echo.Context) error {
	rec, err := h.orch.Record(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"order_id":    rec.OrderID,
		"invoiceable": h.orch.CanInvoice(rec, time.Now()),
	})
}

func paymentInfo(rec *models.PaymentRecord) map[string]interface{} {
	return map[string]interface{}{
		"order_id":          rec.OrderID,
		"reference_id":      rec.ReferenceID,
		"order_uuid":        rec.OrderUUID,
		"order_type":        rec.OrderType,
		"status":            rec.Status,
		"payment_type":      rec.PaymentType,
		"currency":          rec.Currency,
		"order_total":       services.CentsToAmount(rec.OrderTotalCents),
		"authorized_amount": services.CentsToAmount(rec.AuthorizedCents),
		"captured_amount":   services.CentsToAmount(rec.CapturedCents),
		"refunded_amount":   services.CentsToAmount(rec.RefundedCents),
		"released_amount":   services.CentsToAmount(rec.ReleasedCents),
		"auth_expiry":       rec.AuthExpiry,
		"capture_expiry":    rec.CaptureExpiry,
		"customer_uuid":     rec.CustomerUUID,
	}
}
