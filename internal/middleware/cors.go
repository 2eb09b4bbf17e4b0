package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/covenant/internal/config"
)

// CORS creates a middleware that handles Cross-Origin Resource Sharing for the
// admin dashboard and tenant portal. An origin of "*" allows every origin
// without credentials.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", RequestIDHeader},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	for _, origin := range cfg.Origins {
		if origin == "*" {
			corsConfig.AllowAllOrigins = true
			corsConfig.AllowCredentials = false
			return cors.New(corsConfig)
		}
	}
	corsConfig.AllowOrigins = cfg.Origins

	return cors.New(corsConfig)
}
