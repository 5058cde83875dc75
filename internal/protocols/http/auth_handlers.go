package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mangahub/internal/core"
	"mangahub/internal/gateway"
	"mangahub/pkg/models"
)

// AuthHandlers serves /auth and /users/profile endpoints.
type AuthHandlers struct {
	auth  core.AuthService
	users *gateway.UserManager
}

// NewAuthHandlers creates the identity handlers. users may be nil when
// no TCP user manager runs in-process.
func NewAuthHandlers(auth core.AuthService, users *gateway.UserManager) *AuthHandlers {
	return &AuthHandlers{auth: auth, users: users}
}

func (h *AuthHandlers) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Fail("invalid request body"))
		return
	}
	profile, err := h.auth.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.OK("account created", profile))
}

// Login exchanges credentials for a token and opens the caller's
// progress-bus session. The session open is best-effort.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Fail("invalid request body"))
		return
	}
	resp, err := h.auth.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.users != nil {
		go h.users.ConnectUser(resp.User.ID)
	}
	c.JSON(http.StatusOK, models.OK("login successful", resp))
}

// Logout drops the caller's progress-bus session. Tokens are stateless;
// the client discards its copy.
func (h *AuthHandlers) Logout(c *gin.Context) {
	if h.users != nil {
		h.users.DisconnectUser(c.GetString(ctxUserID))
	}
	c.JSON(http.StatusOK, models.OK("logged out", nil))
}

func (h *AuthHandlers) GetProfile(c *gin.Context) {
	profile, err := h.auth.GetProfile(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("profile", profile))
}

func (h *AuthHandlers) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Fail("invalid request body"))
		return
	}
	profile, err := h.auth.UpdateProfile(c.Request.Context(), c.GetString(ctxUserID), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("profile updated", profile))
}

func (h *AuthHandlers) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Fail("invalid request body"))
		return
	}
	if err := h.auth.ChangePassword(c.Request.Context(), c.GetString(ctxUserID), &req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.OK("password changed", nil))
}
