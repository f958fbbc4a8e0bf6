package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/tmarchal/authcore/pkg/errors"
)

// ErrorBody is the wire shape for every failed request: a stable "error" field
// carrying a human-readable message.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON writes a success payload as-is. Handlers own their payload shapes; this
// exists mainly for symmetry with Error.
func JSON(c *gin.Context, statusCode int, payload any) {
	c.JSON(statusCode, payload)
}

// Error renders an error response derived from an AppError. Unknown errors are
// collapsed into a generic 500 so internal details never reach the client.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	c.JSON(status, ErrorBody{Error: appErr.Message})
}

// AbortError renders an error response and aborts the handler chain.
func AbortError(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}
