package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stake-plus/govcurator/src/archive"
	"github.com/stake-plus/govcurator/src/curation"
)

// NewRouter builds the read-only HTTP API.
func NewRouter(origins []string, limiter *RateLimiter, store *archive.Store, repo *curation.Repository) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  []string{"GET", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	entriesH := NewEntries(store)
	msgH := NewMessages(repo)

	v1 := r.Group("/v1")
	if limiter != nil {
		v1.Use(RateLimitMiddleware(limiter))
	}
	{
		v1.GET("/entries", entriesH.List)
		v1.GET("/entries/:channel/:message", entriesH.Get)
		v1.GET("/messages/:channel/:message", msgH.Status)
	}
	return r
}
