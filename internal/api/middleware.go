package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger is a Gin middleware for logging HTTP requests and responses.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		latency := time.Since(startTime)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("uri", c.Request.RequestURI),
		}
		// Errors recorded by handlers through c.Error
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			fields = append(fields, zap.String("errors", errs))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Debug("request", fields...)
		}
	}
}

// Cors is a Gin middleware for Cross-Origin Resource Sharing (CORS).
// Only the listed origins are answered with CORS headers; a request that
// carries any other Origin is refused with 403. Requests without an Origin
// header (curl, the CLI, other local tools) pass through.
func Cors(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimRight(origin, "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		c.Writer.Header().Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		if _, ok := allowed[origin]; !ok {
			sendJSONError(c, http.StatusForbidden, "origin not allowed", nil)
			return
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE, PATCH")

		// Handle preflight requests
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequireJSON rejects requests that carry a body in anything but
// application/json with 415. Forms and text/plain bodies are what a browser
// may send cross-site without a preflight.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}
		if c.Request.ContentLength != 0 && c.ContentType() != gin.MIMEJSON {
			sendJSONError(c, http.StatusUnsupportedMediaType, "content type must be application/json", nil)
			return
		}
		c.Next()
	}
}

// sendJSONError writes a {"error": ...} body. For 5xx responses the caller's
// message is replaced with a generic one; the internal error is attached to
// the context so the Logger middleware records it.
func sendJSONError(c *gin.Context, statusCode int, publicMsg string, internalError error) {
	if internalError != nil {
		_ = c.Error(internalError)
	}
	if statusCode >= http.StatusInternalServerError {
		publicMsg = "internal server error"
	}
	c.AbortWithStatusJSON(statusCode, gin.H{"error": publicMsg})
}
