package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/stratahq/strata/internal/apiserver/database"
	"github.com/stratahq/strata/internal/apiserver/middleware"
	"github.com/stratahq/strata/internal/common/cnst"
	"github.com/stratahq/strata/internal/common/dto"
)

// Login handles user login
func (h *Handler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.db.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "user is disabled"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	token, err := h.jwtService.GenerateToken(user.ID, user.TenantID, user.Username, string(user.Role))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		Token: token,
		User:  userInfo(user),
	})
}

// ChangePassword handles password change requests
func (h *Handler) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	claims := middleware.ClaimsFromContext(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.db.GetUserByUsername(c.Request.Context(), claims.Username)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect password"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.writeError(c, err)
		return
	}
	user.Password = string(hashed)
	if err := h.db.UpdateUser(c.Request.Context(), user); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CurrentUser returns the account behind the presented token.
func (h *Handler) CurrentUser(c *gin.Context) {
	claims := middleware.ClaimsFromContext(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.db.GetUserByUsername(c.Request.Context(), claims.Username)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userInfo(user))
}

// CreateUser creates a new account. Only admins reach this route.
func (h *Handler) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.writeError(c, err)
		return
	}

	user := &database.User{
		Username: req.Username,
		Password: string(hashed),
		Role:     cnst.Role(req.Role),
		TenantID: req.TenantID,
		IsActive: true,
	}
	if err := h.db.CreateUser(c.Request.Context(), user); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, userInfo(user))
}

// ListUsers lists all accounts. Only admins reach this route.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.db.ListUsers(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]dto.UserInfo, 0, len(users))
	for _, u := range users {
		out = append(out, userInfo(u))
	}
	c.JSON(http.StatusOK, out)
}

func userInfo(u *database.User) dto.UserInfo {
	return dto.UserInfo{
		ID:       u.ID,
		Username: u.Username,
		Role:     string(u.Role),
		TenantID: u.TenantID,
		IsActive: u.IsActive,
	}
}
