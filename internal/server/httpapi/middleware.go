package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/auth"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/services"
)

const principalKey = "principal"

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// accessToken reads "Authorization: Bearer" or, failing that, the
// access_token query parameter.
func accessToken(c *gin.Context) string {
	if token := auth.BearerToken(c.GetHeader("Authorization")); token != "" {
		return token
	}
	return c.Query(common.AccessTokenHeaderName)
}

func setPrincipal(c *gin.Context, p *services.Principal) {
	c.Set(principalKey, p)
	c.Request = c.Request.WithContext(services.WithPrincipal(c.Request.Context(), p))
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := s.gate.Authenticate(c.Request.Context(), accessToken(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		setPrincipal(c, p)
		c.Next()
	}
}

// authorize authenticates the request and checks role against the live
// roles of the principal.
func (s *Server) authorize(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := s.gate.Authorize(c.Request.Context(), accessToken(c), role)
		if err != nil {
			abortWithError(c, err)
			return
		}
		setPrincipal(c, p)
		c.Next()
	}
}

func principal(c *gin.Context) *services.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*services.Principal)
	return p
}
