package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

var errorTable = []struct {
	err    error
	status int
	code   string
	detail string
}{
	{common.ErrMissingToken, http.StatusUnauthorized, "missing_token", "Missing auth token"},
	{common.ErrRefreshTokenReuse, http.StatusUnauthorized, "refresh_token_reuse", "Refresh token reuse detected"},
	{common.ErrInvalidRefreshToken, http.StatusUnauthorized, "invalid_refresh_token", "Invalid refresh token"},
	{common.ErrInvalidToken, http.StatusUnauthorized, "invalid_token", "Invalid token"},
	{common.ErrPrincipalNotFound, http.StatusUnauthorized, "user_not_found", "User not found"},
	{common.ErrorUnauthorized, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials"},
	{common.ErrUserNotAllowed, http.StatusForbidden, "user_not_allowed", "User not allowed"},
	{common.ErrPrincipalBanned, http.StatusForbidden, "user_banned", "User is banned"},
	{common.ErrPrincipalInactive, http.StatusForbidden, "user_inactive", "User inactive"},
	{common.ErrInsufficientPrivileges, http.StatusForbidden, "insufficient_privileges", "Insufficient privileges"},
	{common.ErrorNotFound, http.StatusNotFound, "not_found", "Not found"},
	{common.ErrorAlreadyExists, http.StatusConflict, "already_exists", "Already exists"},
	{common.ErrorValidation, http.StatusUnprocessableEntity, "validation_error", ""},
	{common.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable", "Service temporarily unavailable"},
}

// statusFor maps a service error to a status code and response body.
// Order matters: reuse is checked before the generic refresh token error.
func statusFor(err error) (int, ErrorResponse) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			detail := e.detail
			if detail == "" {
				detail = err.Error()
			}
			return e.status, ErrorResponse{Detail: detail, Code: e.code}
		}
	}
	return http.StatusInternalServerError, ErrorResponse{Detail: "Internal server error", Code: "internal_error"}
}

func writeError(c *gin.Context, err error) {
	status, body := statusFor(err)
	c.JSON(status, body)
}

func abortWithError(c *gin.Context, err error) {
	status, body := statusFor(err)
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Detail: detail, Code: "bad_request"})
}
