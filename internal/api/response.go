package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mroshb/reward_engine/pkg/errors"
	"github.com/mroshb/reward_engine/pkg/logger"
)

var statusByCode = map[string]int{
	errors.ErrCodeValidation:          fiber.StatusBadRequest,
	errors.ErrCodeNotFound:            fiber.StatusNotFound,
	errors.ErrCodeUnauthorized:        fiber.StatusUnauthorized,
	errors.ErrCodeForbidden:           fiber.StatusForbidden,
	errors.ErrCodeAlreadyExists:       fiber.StatusConflict,
	errors.ErrCodeRateLimitExceeded:   fiber.StatusTooManyRequests,
	errors.ErrCodeInsufficientFunds:   fiber.StatusPaymentRequired,
	errors.ErrCodeQuotaExceeded:       fiber.StatusTooManyRequests,
	errors.ErrCodeNoEligiblePrizes:    fiber.StatusConflict,
	errors.ErrCodeStockExhausted:      fiber.StatusConflict,
	errors.ErrCodeMarketNotOpen:       fiber.StatusConflict,
	errors.ErrCodeAlreadySettled:      fiber.StatusConflict,
	errors.ErrCodeInvalidState:        fiber.StatusConflict,
	errors.ErrCodeAlreadyClaimed:      fiber.StatusConflict,
	errors.ErrCodeTaskNotCompleted:    fiber.StatusConflict,
	errors.ErrCodeIdempotencyConflict: fiber.StatusConflict,
	errors.ErrCodeInvariantViolation:  fiber.StatusInternalServerError,
	errors.ErrCodeInternalError:       fiber.StatusInternalServerError,
}

// StatusOf maps an error code to its HTTP status.
func StatusOf(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

func JSONSuccess(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

// configErrors point at reward configuration an admin has to fix.
var configErrors = map[string]string{
	errors.ErrCodeNoEligiblePrizes: "no prizes are available right now",
	errors.ErrCodeStockExhausted:   "sold out",
}

// JSONError writes err with its code. Internal and configuration failures
// are logged and answered with a generic message.
func JSONError(c *fiber.Ctx, err error) error {
	code := errors.CodeOf(err)
	status := StatusOf(code)

	message := err.Error()
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if generic, ok := configErrors[code]; ok {
		logger.Error("Reward configuration exhausted", "path", c.Path(), "code", code, "error", err)
		message = generic
	} else if status >= fiber.StatusInternalServerError {
		logger.Error("Request failed", "path", c.Path(), "code", code, "error", err)
		message = "internal error"
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"code":    code,
		"message": message,
		"data":    nil,
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return JSONError(c, errors.New(errors.ErrCodeValidation, message))
}
