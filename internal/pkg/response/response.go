package response

import "github.com/gofiber/fiber/v2"

// Response is the envelope every endpoint returns
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func send(c *fiber.Ctx, statusCode int, body Response) error {
	return c.Status(statusCode).JSON(body)
}

// Success sends a 200 response with a payload
func Success(c *fiber.Ctx, message string, data interface{}) error {
	return send(c, fiber.StatusOK, Response{Success: true, Message: message, Data: data})
}

// Created sends a 201 response for newly written ledger rows and tier
// changes
func Created(c *fiber.Ctx, message string, data interface{}) error {
	return send(c, fiber.StatusCreated, Response{Success: true, Message: message, Data: data})
}

// Error sends an error response with the given status code
func Error(c *fiber.Ctx, statusCode int, message string) error {
	return send(c, statusCode, Response{Success: false, Error: message})
}

// BadRequest sends a 400 response
func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

// Unauthorized sends a 401 response
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, message)
}

// Forbidden sends a 403 response
func Forbidden(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusForbidden, message)
}

// NotFound sends a 404 response
func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, message)
}

// Conflict sends a 409 response, used for duplicate idempotency keys
// and double reversals
func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, message)
}

// InternalServerError sends a 500 response
func InternalServerError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, message)
}
