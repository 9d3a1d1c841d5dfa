package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"sezzlepay_echo/internal/services"
	"sezzlepay_echo/internal/sezzle"
)

// CustomErrorHandler maps domain errors onto JSON responses. Every failure
// is surfaced to the caller as-is; nothing is retried here.
func CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "something went wrong"

	var he *echo.HTTPError
	var gwErr *sezzle.GatewayError

	switch {
	case errors.As(err, &he):
		code = he.Code
		if msg, ok := he.Message.(string); ok && msg != "" {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	case errors.As(err, &gwErr):
		// Upstream gateway failure, including timeouts. The original
		// status travels in the body for support staff.
		code = http.StatusBadGateway
		message = gwErr.Error()
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrCapabilityDisabled),
		errors.Is(err, services.ErrBelowMinimum):
		code = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, services.ErrMissingIdentifier),
		errors.Is(err, services.ErrCheckoutClosed):
		code = http.StatusConflict
		message = err.Error()
	case errors.Is(err, services.ErrOrderValidationFailed),
		errors.Is(err, services.ErrExpiredAuthorization):
		code = http.StatusUnprocessableEntity
		message = err.Error()
	case errors.Is(err, gorm.ErrRecordNotFound):
		code = http.StatusNotFound
		message = "payment record not found"
	}

	c.Logger().Error(err)

	if jsonErr := c.JSON(code, map[string]string{"error": message}); jsonErr != nil {
		c.Logger().Error(jsonErr)
	}
}
