package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pulsefeed/pulsefeed/feederr"
)

// JSONResponse defines the uniform structure for API responses.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusOK, 0, "success", data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	Respond(ctx, status, code, message, nil)
}

// FromError maps an engine/repository failure onto the response envelope.
// Failures reach this point as feederr values; anything unclassified is
// reported as an internal error without leaking the cause.
func FromError(ctx *gin.Context, err error) {
	switch feederr.KindOf(err) {
	case feederr.Validation:
		Error(ctx, http.StatusBadRequest, 40001, feederr.MessageOf(err))
	case feederr.NotFound:
		Error(ctx, http.StatusNotFound, 40401, feederr.MessageOf(err))
	case feederr.Forbidden:
		Error(ctx, http.StatusForbidden, 40301, feederr.MessageOf(err))
	case feederr.Unavailable:
		Error(ctx, http.StatusServiceUnavailable, 50301, "store unavailable")
	default:
		Error(ctx, http.StatusInternalServerError, 50001, "internal error")
	}
}
