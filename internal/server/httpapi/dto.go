package httpapi

import (
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/services"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type DetailResponse struct {
	Detail string `json:"detail"`
	UserID string `json:"user_id,omitempty"`
}

// ProfileIn is the body of PATCH /me. Absent fields are left unchanged.
type ProfileIn struct {
	DisplayName *string         `json:"display_name"`
	FirstName   *string         `json:"first_name"`
	LastName    *string         `json:"last_name"`
	Phone       *string         `json:"phone"`
	AvatarURL   *string         `json:"avatar_url"`
	Timezone    *string         `json:"timezone"`
	Meta        json.RawMessage `json:"meta"`
}

func (p ProfileIn) toModel() models.ProfileUpdate {
	return models.ProfileUpdate{
		DisplayName: p.DisplayName,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Phone:       p.Phone,
		AvatarURL:   p.AvatarURL,
		Timezone:    p.Timezone,
		Meta:        p.Meta,
	}
}

type ProfileOut struct {
	DisplayName *string         `json:"display_name"`
	FirstName   *string         `json:"first_name"`
	LastName    *string         `json:"last_name"`
	Phone       *string         `json:"phone"`
	AvatarURL   *string         `json:"avatar_url"`
	Timezone    *string         `json:"timezone"`
	Meta        json.RawMessage `json:"meta"`
}

func profileOut(p *models.Profile) *ProfileOut {
	if p == nil {
		return nil
	}
	meta := p.Meta
	if len(meta) == 0 {
		meta = json.RawMessage(`{}`)
	}
	return &ProfileOut{
		DisplayName: p.DisplayName,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Phone:       p.Phone,
		AvatarURL:   p.AvatarURL,
		Timezone:    p.Timezone,
		Meta:        meta,
	}
}

type UserOut struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	IsActive  bool        `json:"is_active"`
	IsBanned  bool        `json:"is_banned"`
	Roles     []string    `json:"roles"`
	Profile   *ProfileOut `json:"profile"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func userOut(u *models.User) UserOut {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return UserOut{
		ID:        u.ID,
		Email:     u.Email,
		IsActive:  u.IsActive,
		IsBanned:  u.IsBanned,
		Roles:     roles,
		Profile:   profileOut(u.Profile),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type UserList struct {
	Items []UserOut `json:"items"`
	Total int       `json:"total"`
}

type AdminUserCreate struct {
	Email        string     `json:"email" binding:"required"`
	TempPassword string     `json:"temp_password"`
	Roles        []string   `json:"roles"`
	Profile      *ProfileIn `json:"profile"`
}

// CreatedUserOut returns the temporary password once so the admin can hand
// it over.
type CreatedUserOut struct {
	UserOut
	TempPassword string `json:"temp_password"`
}

type AdminUserUpdate struct {
	Email    *string  `json:"email"`
	Roles    []string `json:"roles"`
	IsActive *bool    `json:"is_active"`
}

func (u AdminUserUpdate) toService() services.AdminUserUpdate {
	return services.AdminUserUpdate{Email: u.Email, Roles: u.Roles, IsActive: u.IsActive}
}

type BanRequest struct {
	Reason string `json:"reason"`
}

type BuildingCreate struct {
	Name string `json:"name" binding:"required"`
}

type UploadTaskOut struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type BuildingOut struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	OwnerID      string    `json:"owner_id"`
	UploadStatus string    `json:"upload_status"`
	GMLURL       string    `json:"gml_url,omitempty"`
	TextureURL   string    `json:"texture_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func buildingOut(b *models.Building) BuildingOut {
	return BuildingOut{
		ID:           b.ID,
		Name:         b.Name,
		OwnerID:      b.OwnerID,
		UploadStatus: b.UploadStatus,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

type BuildingUploadOut struct {
	Building BuildingOut   `json:"building"`
	GML      UploadTaskOut `json:"gml"`
	Texture  UploadTaskOut `json:"texture"`
}
