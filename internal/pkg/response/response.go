// internal/pkg/response/response.go
package response

import (
	"errors"
	"net/http"

	xerrors "policy-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const internalErrorMessage = "internal server error"

// JSON sends data as the bare response body.
func JSON(c *gin.Context, status int, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}
	c.JSON(status, data)
}

// Created sends a 201 with a Location header pointing at the new resource.
func Created(c *gin.Context, location string, data interface{}) {
	c.Header("Location", location)
	c.JSON(http.StatusCreated, data)
}

// Error sends a plain-text error body.
func Error(c *gin.Context, code int, message string) {
	// Abort before writing so later handlers don't add to the body
	c.Abort()
	c.String(code, message)
}

// ValidationError sends a 400 Bad Request response for invalid input.
func ValidationError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// FromError maps err to its status code. Domain errors carry a client-safe message;
// anything else is logged and answered with a generic 500.
func FromError(c *gin.Context, logger *zap.Logger, err error) {
	var de *xerrors.Error
	if !errors.As(err, &de) {
		logger.Error("unhandled error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		Error(c, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	status := xerrors.StatusCode(err)
	if status >= http.StatusInternalServerError && de.Err != nil {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(de.Err),
		)
	}
	Error(c, status, de.Message)
}
