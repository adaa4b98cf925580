package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/buildingkeeper/internal/server/services"
)

func (s *Server) getMe(c *gin.Context) {
	u, err := s.users.Get(c.Request.Context(), principal(c).User.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userOut(u))
}

func (s *Server) patchMe(c *gin.Context) {
	var in ProfileIn
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	ctx := c.Request.Context()
	id := principal(c).User.ID
	if _, err := s.users.UpdateProfile(ctx, id, in.toModel()); err != nil {
		writeError(c, err)
		return
	}

	u, err := s.users.Get(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userOut(u))
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.users.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	out := UserList{Items: make([]UserOut, 0, len(users)), Total: len(users)}
	for _, u := range users {
		out.Items = append(out.Items, userOut(u))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createUser(c *gin.Context) {
	var in AdminUserCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	nu := services.NewUser{Email: in.Email, TempPassword: in.TempPassword, Roles: in.Roles}
	if in.Profile != nil {
		upd := in.Profile.toModel()
		nu.Profile = &upd
	}

	u, password, err := s.users.CreateUser(c.Request.Context(), nu)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreatedUserOut{UserOut: userOut(u), TempPassword: password})
}

func (s *Server) getUser(c *gin.Context) {
	u, err := s.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userOut(u))
}

func (s *Server) patchUser(c *gin.Context) {
	var in AdminUserUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	u, err := s.users.AdminUpdate(c.Request.Context(), c.Param("id"), in.toService())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userOut(u))
}

func (s *Server) banUser(c *gin.Context) {
	var in BanRequest
	// the body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
	}

	u, err := s.users.Ban(c.Request.Context(), principal(c).User.ID, c.Param("id"), in.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, DetailResponse{Detail: "user_banned", UserID: u.ID})
}

func (s *Server) unbanUser(c *gin.Context) {
	u, err := s.users.Unban(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, DetailResponse{Detail: "user_unbanned", UserID: u.ID})
}

