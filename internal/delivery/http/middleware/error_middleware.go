package middleware

import (
	"errors"
	"net/http"

	"go-ats-backend/internal/delivery/http/response"
	"go-ats-backend/pkg/apperror"
	"go-ats-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			if appErr.Err != nil {
				logger.Log.Error("Request failed", "path", c.FullPath(), "status", appErr.Code, "error", appErr.Err)
			}
			response.Error(c, appErr.Code, appErr.Message, appErr.Errors)
			return
		}

		// Internal details stay in the server log
		logger.Log.Error("Internal server error", "path", c.FullPath(), "method", c.Request.Method, "error", err)
		response.Error(c, http.StatusInternalServerError, "An unexpected error occurred. Please try again later.", nil)
	}
}
