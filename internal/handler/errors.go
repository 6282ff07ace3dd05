package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-marketplace/internal/service"
)

// statusFor maps a service error code to its HTTP status.
func statusFor(code service.ErrorCode) int {
	switch code {
	case service.CodeInvalidCredentials, service.CodeTokenInvalid, service.CodeTokenExpired,
		service.CodePrincipalNotFound, service.CodePrincipalMismatch:
		return http.StatusUnauthorized
	case service.CodeForbidden:
		return http.StatusForbidden
	case service.CodeDuplicateAccount:
		return http.StatusConflict
	case service.CodeValidation, service.CodeInvalidRole:
		return http.StatusBadRequest
	case service.CodeMergeIncomplete:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders every error that reaches Echo as
// {"error": code, "message": text}.  Service errors use their code;
// Echo's own errors (404, 405, bind failures) keep their status.
// Internal causes are logged and never sent to the client.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := echo.Map{"error": string(service.CodeInternal), "message": service.ErrInternal.Message}

		var se *service.Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &se):
			status = statusFor(se.Code)
			body = echo.Map{"error": string(se.Code), "message": se.Message}
		case errors.As(err, &he):
			status = he.Code
			body = echo.Map{"error": http.StatusText(he.Code), "message": he.Message}
		}

		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"status", status,
				"error", err,
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Warn("write error response", "error", err)
		}
	}
}

// badRequest is the response for bodies that fail to bind.
func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": string(service.CodeValidation), "message": msg})
}
