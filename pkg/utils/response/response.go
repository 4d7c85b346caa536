// Package response contains response utility functions and types
package response

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Error codes returned in the error envelope
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeIllegalState    = "ILLEGAL_STATE"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Envelope represents the standard API error envelope
type Envelope struct {
	Status    string      `json:"status"`
	ErrorCode string      `json:"errorCode,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data"`
}

// BadRequest sends an INVALID_ARGUMENT error response
func BadRequest(c echo.Context, message string) error {
	return errorResponse(c, http.StatusBadRequest, CodeInvalidArgument, message)
}

// Conflict sends an ILLEGAL_STATE error response
func Conflict(c echo.Context, message string) error {
	return errorResponse(c, http.StatusConflict, CodeIllegalState, message)
}

// InternalError sends an INTERNAL_ERROR error response
func InternalError(c echo.Context, message string) error {
	return errorResponse(c, http.StatusInternalServerError, CodeInternalError, message)
}

func errorResponse(c echo.Context, httpStatus int, errorCode, message string) error {
	return c.JSON(httpStatus, Envelope{
		Status:    "ERROR",
		ErrorCode: errorCode,
		Message:   message,
		Data:      nil,
	})
}
