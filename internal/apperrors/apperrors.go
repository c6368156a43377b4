// Package apperrors defines the typed error taxonomy shared by the service
// layer and the HTTP boundary. Services return these instead of ad-hoc error
// strings so handlers never have to match on message text.
package apperrors

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Kind classifies an error for HTTP translation.
type Kind int

const (
	Internal Kind = iota
	Validation
	Conflict
	Authentication
	Authorization
	NotFound
	Upstream
)

// Status returns the HTTP status an error of this kind maps to.
func (k Kind) Status() int {
	switch k {
	case Validation, Conflict:
		return fiber.StatusBadRequest
	case Authentication:
		return fiber.StatusUnauthorized
	case Authorization:
		return fiber.StatusForbidden
	case NotFound:
		return fiber.StatusNotFound
	case Upstream:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// Error is a kind-classified error with a client-safe message. The wrapped
// cause, if any, is for logs only and never reaches the response body.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind with a client-safe message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a cause to a new kind-classified error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from an error chain, defaulting to Internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// FiberHandler returns the app-wide fiber error handler. Typed errors are
// translated 1:1 to their status with their client-safe message; anything
// else is logged with full context and surfaced as a generic 500.
func FiberHandler(log *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var ae *Error
		if errors.As(err, &ae) {
			if ae.Kind == Internal || ae.Kind == Upstream {
				log.WithError(err).WithFields(logrus.Fields{
					"method": c.Method(),
					"path":   c.Path(),
				}).Error("request failed")
			}
			return c.Status(ae.Kind.Status()).JSON(fiber.Map{"detail": ae.Message})
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"detail": fe.Message})
		}

		log.WithError(err).WithFields(logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
		}).Error("unhandled error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"detail": "internal server error"})
	}
}
