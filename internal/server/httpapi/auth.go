package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/auth"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/services"
)

func requestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	}
}

func (s *Server) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(s.cookie.SameSite)
	c.SetCookie(s.cookie.Name, token, int(s.cookie.MaxAge.Seconds()), s.cookie.Path, "", s.cookie.Secure, true)
}

func (s *Server) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(s.cookie.SameSite)
	c.SetCookie(s.cookie.Name, "", -1, s.cookie.Path, "", s.cookie.Secure, true)
}

// refreshToken returns the refresh token from the Authorization header or,
// when the header carries none, from the cookie.
func (s *Server) refreshToken(c *gin.Context) string {
	if token := auth.BearerToken(c.GetHeader("Authorization")); token != "" {
		return token
	}
	token, err := c.Cookie(s.cookie.Name)
	if err != nil {
		return ""
	}
	return token
}

func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	pair, err := s.users.Login(c.Request.Context(), req.Email, req.Password, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}

	s.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusOK, TokenResponse{Access: pair.AccessToken, Refresh: pair.RefreshToken})
}

func (s *Server) refresh(c *gin.Context) {
	token := s.refreshToken(c)
	if token == "" {
		writeError(c, common.ErrMissingToken)
		return
	}

	pair, err := s.tokens.Rotate(c.Request.Context(), token, requestMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}

	s.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusOK, TokenResponse{Access: pair.AccessToken, Refresh: pair.RefreshToken})
}

func (s *Server) logout(c *gin.Context) {
	token := s.refreshToken(c)
	if token == "" {
		badRequest(c, "Missing refresh token")
		return
	}

	if err := s.tokens.Revoke(c.Request.Context(), token, common.RevokeReasonLogout); err != nil {
		writeError(c, err)
		return
	}

	s.clearRefreshCookie(c)
	c.JSON(http.StatusOK, DetailResponse{Detail: "logged_out"})
}

func (s *Server) logoutAll(c *gin.Context) {
	p := principal(c)
	if _, err := s.tokens.RevokeAllForUser(c.Request.Context(), p.User.ID, common.RevokeReasonLogoutAll); err != nil {
		writeError(c, err)
		return
	}

	s.clearRefreshCookie(c)
	c.JSON(http.StatusOK, DetailResponse{Detail: "logged_out_all"})
}
