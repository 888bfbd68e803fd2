package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/slidecoffee/brew-service/internal/quota"
)

// Readiness reports whether each named dependency is usable.
type Readiness func() map[string]bool

// RegisterHealth mounts /health, /ready and the public plan catalogue.
func RegisterHealth(r *gin.Engine, started time.Time, ready Readiness) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// 200 only when every critical dependency is available
	r.GET("/ready", func(c *gin.Context) {
		deps := map[string]bool{}
		if ready != nil {
			deps = ready()
		}
		status, code := "ready", http.StatusOK
		for _, ok := range deps {
			if !ok {
				status, code = "not_ready", http.StatusServiceUnavailable
				break
			}
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(started).String()})
	})

	r.GET("/api/plans", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"plans": quota.Plans()})
	})
}
