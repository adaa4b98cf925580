package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
)

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// public routes
	auth := r.Group("/auth")
	auth.POST("/login", s.login)
	auth.POST("/refresh", s.refresh)
	auth.POST("/logout", s.logout)

	// private routes
	authed := r.Group("/")
	authed.Use(s.authenticate())

	authed.POST("/auth/logout_all", s.logoutAll)
	authed.GET("/me", s.getMe)
	authed.PATCH("/me", s.patchMe)

	authed.GET("/buildings", s.listBuildings)
	authed.POST("/buildings", s.createBuilding)
	authed.GET("/buildings/:id", s.getBuilding)
	authed.DELETE("/buildings/:id", s.deleteBuilding)
	authed.POST("/buildings/:id/uploaded", s.markUploaded)

	admin := r.Group("/admin/users")
	admin.Use(s.authorize(common.RoleAdmin))

	admin.GET("", s.listUsers)
	admin.POST("", s.createUser)
	admin.GET("/:id", s.getUser)
	admin.PATCH("/:id", s.patchUser)
	admin.POST("/:id/ban", s.banUser)
	admin.POST("/:id/unban", s.unbanUser)

	return r
}
