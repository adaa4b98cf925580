package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) listBuildings(c *gin.Context) {
	list, err := s.buildings.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]BuildingOut, 0, len(list))
	for _, b := range list {
		out = append(out, buildingOut(b))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createBuilding(c *gin.Context) {
	var in BuildingCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	up, err := s.buildings.Create(c.Request.Context(), principal(c).User.ID, in.Name)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, BuildingUploadOut{
		Building: buildingOut(up.Building),
		GML:      UploadTaskOut{Key: up.GML.Key, URL: up.GML.URL},
		Texture:  UploadTaskOut{Key: up.Texture.Key, URL: up.Texture.URL},
	})
}

func (s *Server) getBuilding(c *gin.Context) {
	view, err := s.buildings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	out := buildingOut(view.Building)
	out.GMLURL = view.GMLURL
	out.TextureURL = view.TextureURL
	c.JSON(http.StatusOK, out)
}

func (s *Server) markUploaded(c *gin.Context) {
	if err := s.buildings.MarkUploaded(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteBuilding(c *gin.Context) {
	if err := s.buildings.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
