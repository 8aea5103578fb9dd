package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware allows browser clients on other origins to call the API and
// read the request id and replay marker headers.
func CORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", idempotencyHeader, requestIDHeader},
		ExposeHeaders:   []string{requestIDHeader, replayedHeader},
		MaxAge:          12 * time.Hour,
	})
}
