package middleware

import (
	"net/http"
	"strings"

	"eventhub/internal/config"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowMethods = "GET,PUT,POST,DELETE,OPTIONS,PATCH"
	corsAllowHeaders = "Content-Type, Authorization, Content-Length, X-Requested-With, X-Authorization, X-Request-ID"
)

// CORS answers preflights and sets the allow headers for permitted origins.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case cfg.AllowAll():
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && originAllowed(origin, cfg.AllowedOrigins):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", corsAllowMethods)
		c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
		c.Header("Access-Control-Expose-Headers", RequestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), origin) {
			return true
		}
	}
	return false
}
