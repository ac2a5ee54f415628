package server

import (
	"errors"
	"time"

	"cargo-backend/internal/apperr"
	"cargo-backend/internal/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an id, stores a request logger in the
// user context and logs the outcome. Errors are rendered here so the logged
// status is the one sent.
func RequestLogger(log *zap.Logger, errHandler fiber.ErrorHandler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)

		ctx, reqLog := logger.WithRequestID(c.UserContext(), log, id)
		c.SetUserContext(ctx)

		start := time.Now()
		if chainErr := c.Next(); chainErr != nil {
			if err := errHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			reqLog.Error("request", fields...)
		case status >= fiber.StatusBadRequest:
			reqLog.Warn("request", fields...)
		default:
			reqLog.Info("request", fields...)
		}
		return nil
	}
}

// ErrorHandler renders every error as {success:false, message}. Typed
// service errors pick the status code; persistence causes are logged and
// never sent.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var (
			fe *fiber.Error
			ve *apperr.ValidationError
			nf *apperr.NotFoundError
			ri *apperr.ReferentialIntegrityError
			pe *apperr.PersistenceError
		)

		switch {
		case errors.As(err, &ve):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": ve.Message,
				"field":   ve.Field,
			})
		case errors.As(err, &nf):
			return fail(c, fiber.StatusNotFound, nf.Error())
		case errors.As(err, &ri):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"message": ri.Error(),
				"count":   ri.Count,
			})
		case errors.As(err, &pe):
			logger.FromContext(c.UserContext(), log).Error("persistence failure",
				zap.String("op", pe.Op),
				zap.Error(pe.Err))
			return fail(c, fiber.StatusInternalServerError, pe.Error())
		case errors.As(err, &fe):
			return fail(c, fe.Code, fe.Message)
		}

		logger.FromContext(c.UserContext(), log).Error("unexpected error", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "Error inesperado del servidor")
	}
}

func fail(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
