package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"volt/internal/shared/errors"
)

// APIResponse is the envelope for successful JSON responses.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorBody is the envelope for error responses. InvalidFields maps
// field names to human-readable reasons and is only present on
// validation failures.
type ErrorBody struct {
	Error         string            `json:"error"`
	InvalidFields map[string]string `json:"invalid_fields,omitempty"`
}

// SuccessResponse sends a successful response with custom status code.
func SuccessResponse(c *gin.Context, statusCode int, message string, data any) {
	c.JSON(statusCode, APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// OKResponse sends a plain 200 with a message and no data.
func OKResponse(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// CreatedResponse sends a created response.
func CreatedResponse(c *gin.Context, data any, message ...string) {
	response := APIResponse{
		Success: true,
		Data:    data,
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(http.StatusCreated, response)
}

// ErrorResponse sends an error body with a custom status code.
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, ErrorBody{Error: message})
}

// ErrorResponseWithError maps an error to its HTTP status. Non-AppError
// values collapse to an opaque 500 so internals never leak.
func ErrorResponseWithError(c *gin.Context, err error) {
	if appErr, ok := errors.AsAppError(err); ok {
		c.JSON(appErr.Code, ErrorBody{
			Error:         appErr.Message,
			InvalidFields: appErr.InvalidFields,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: "internal server error"})
}

// NoContentResponse sends a no content response.
func NoContentResponse(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
