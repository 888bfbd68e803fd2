package workspaces

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slidecoffee/brew-service/pkg/logger"
	"github.com/slidecoffee/brew-service/pkg/middleware"
)

const principalKey = "principal"

// PrincipalMiddleware resolves the verified claims set by
// middleware.AuthMiddleware into a *Principal.
func PrincipalMiddleware(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.ResolvePrincipal(c.Request.Context(), middleware.Claims(c))
		if err != nil {
			if errors.Is(err, ErrNoSubject) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": "Authentication required"})
				return
			}
			logger.Errorf("resolve principal: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error", "message": "Could not resolve workspace"})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// PrincipalFrom returns the principal set by PrincipalMiddleware.
func PrincipalFrom(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok
}

// WithPrincipal stores p on the context. Used by tests and trusted callers.
func WithPrincipal(c *gin.Context, p *Principal) {
	c.Set(principalKey, p)
}
