package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tmarchal/authcore/internal/services"
	apperrors "github.com/tmarchal/authcore/pkg/errors"
	"github.com/tmarchal/authcore/pkg/response"
	"github.com/tmarchal/authcore/pkg/validator"
)

// bindAndValidate decodes the JSON body into req and runs struct validation,
// writing the 400 response itself on failure.
func bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperrors.NewBadRequest("Invalid request body"))
		return false
	}
	if err := validator.ValidateStruct(req); err != nil {
		response.Error(c, apperrors.NewBadRequest(err.Error()))
		return false
	}
	return true
}

// eventContext builds the audit context for the current request.
func eventContext(c *gin.Context, email string) services.EventContext {
	return services.EventContext{
		Email:     email,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
