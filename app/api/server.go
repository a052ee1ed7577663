package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer builds the HTTP surface: public read endpoints plus an
// authenticated /api group for operator actions.
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	r.GET("/health", handler.HealthCheck)
	r.GET("/stats", handler.GetStats)
	r.GET("/articles", handler.ListArticles)
	r.GET("/articles/:id", handler.GetArticle)

	if apiAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(apiAccessKey))
		{
			api.POST("/articles/:id/reset", handler.ResetArticle)
			api.POST("/enrich", handler.TriggerEnrich)
			api.POST("/reap", handler.TriggerReap)
			api.POST("/newsletter", handler.TriggerNewsletter)
		}
		slog.Info("Operator API endpoints enabled")
	} else {
		slog.Info("Operator API endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"health":   "/health",
			"stats":    "/stats",
			"articles": "/articles",
			"article":  "/articles/<id>",
		}

		if apiAccessKey != "" {
			endpoints["reset"] = "/api/articles/<id>/reset (POST, requires X-API-Key header)"
			endpoints["enrich"] = "/api/enrich (POST, requires X-API-Key header)"
			endpoints["reap"] = "/api/reap (POST, requires X-API-Key header)"
			endpoints["newsletter"] = "/api/newsletter (POST, requires X-API-Key header)"
		}

		c.JSON(http.StatusOK, gin.H{
			"service":     "LexFeed",
			"description": "Graded news reading pipeline",
			"endpoints":   endpoints,
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
