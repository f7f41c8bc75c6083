package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/muluken16/E-liberary/internal/repository"
	"github.com/muluken16/E-liberary/internal/service"
	"github.com/muluken16/E-liberary/internal/validation"
)

var errBadBody = errors.New("invalid body")

// badRequest errors carry a message that is safe to show to clients.
var badRequest = []error{
	errBadBody,
	service.ErrHardNotAvailable,
	service.ErrSoftNotAvailable,
	service.ErrRentalNotAvailable,
	service.ErrRentalTooLong,
	service.ErrInvalidPaymentType,
	service.ErrInvalidMethod,
	service.ErrInvalidBookType,
	service.ErrNotRefundable,
	service.ErrPaymentNotCompleted,
}

var notFound = []error{
	repository.ErrBookNotFound,
	repository.ErrPaymentNotFound,
	repository.ErrSubjectNotFound,
	repository.ErrUserNotFound,
}

func isAny(err error, targets []error) (error, bool) {
	for _, t := range targets {
		if errors.Is(err, t) {
			return t, true
		}
	}
	return nil, false
}

// respondError maps service and repository errors onto HTTP responses.
// Unknown errors are logged and answered with a generic 500.
func respondError(c echo.Context, log zerolog.Logger, err error) error {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": verr.Fields})
	}
	if t, ok := isAny(err, badRequest); ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": t.Error()})
	}
	if t, ok := isAny(err, notFound); ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": t.Error()})
	}
	var gw *service.GatewayError
	switch {
	case errors.As(err, &gw):
		msg := gw.Message
		if msg == "" {
			msg = "payment provider error"
		}
		return c.JSON(gatewayStatus(gw.StatusCode), echo.Map{"error": msg})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	case errors.Is(err, repository.ErrForbidden), errors.Is(err, service.ErrDemoDisabled):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// gatewayStatus passes provider 4xx answers through.  Credential and
// throttling failures are ours, not the caller's, and become 502 like any
// other upstream error.
func gatewayStatus(code int) int {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden, code == http.StatusTooManyRequests:
		return http.StatusBadGateway
	case code >= 400 && code < 500:
		return code
	}
	return http.StatusBadGateway
}

// bindValid binds the request body into req and runs the echo validator.
func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return errBadBody
	}
	return c.Validate(req)
}
