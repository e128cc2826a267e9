// internal/middleware/helpers.go
package middleware

import "github.com/gin-gonic/gin"

// GetRequestID returns the request ID set by RequestIDMiddleware, or "".
func GetRequestID(c *gin.Context) string {
	id, exists := c.Get(requestIDKey)
	if !exists {
		return ""
	}

	s, ok := id.(string)
	if !ok {
		return ""
	}
	return s
}
