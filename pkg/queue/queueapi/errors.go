package queueapi

import (
	"errors"

	"github.com/Abraxas-365/workq/pkg/errx"
	"github.com/Abraxas-365/workq/pkg/logx"
	"github.com/gofiber/fiber/v2"
)

var apiErrors = errx.NewRegistry("API")

var (
	ErrBadBody   = apiErrors.Register("BAD_BODY", errx.TypeValidation, 400, "Request body is not a job document")
	ErrBadFilter = apiErrors.Register("BAD_FILTER", errx.TypeValidation, 400, "Invalid list filter")
)

// ErrorHandler renders errors as JSON. Coded errors keep their status;
// anything else is a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	requestID := c.Get(fiber.HeaderXRequestID)

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"error":      fe.Message,
			"code":       "HTTP_ERROR",
			"status":     fe.Code,
			"request_id": requestID,
		})
	}

	var e *errx.Error
	if errors.As(err, &e) {
		entry := logx.WithFields(logx.Fields{
			"path":       c.Path(),
			"method":     c.Method(),
			"request_id": requestID,
			"code":       e.Code,
		}).WithError(err)
		if e.HTTPStatus >= 500 {
			entry.Error("api: request failed")
		} else {
			entry.Debug("api: request rejected")
		}

		body := fiber.Map{
			"error":      e.Message,
			"code":       e.Code,
			"type":       string(e.Type),
			"status":     e.HTTPStatus,
			"request_id": requestID,
		}
		if len(e.Details) > 0 {
			body["details"] = e.Details
		}
		return c.Status(e.HTTPStatus).JSON(body)
	}

	logx.WithFields(logx.Fields{
		"path":       c.Path(),
		"method":     c.Method(),
		"request_id": requestID,
	}).WithError(err).Error("api: unexpected error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":      "Internal Server Error",
		"code":       "INTERNAL_ERROR",
		"type":       string(errx.TypeInternal),
		"status":     fiber.StatusInternalServerError,
		"request_id": requestID,
	})
}
