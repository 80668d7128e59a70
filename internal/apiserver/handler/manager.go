package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stratahq/strata/internal/apiserver/database"
	"github.com/stratahq/strata/internal/common/dto"
	"github.com/stratahq/strata/internal/core/capability"
)

// AssignManager grants a staff user a capability set on the caller's
// tenant. Re-assigning replaces the capability set.
func (h *Handler) AssignManager(c *gin.Context) {
	tenantID, err := tenantFromClaims(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req dto.AssignManagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.db.GetUser(c.Request.Context(), req.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	// An omitted capability list falls back to the user's role defaults.
	caps := capability.DefaultsForRole(user.Role)
	if len(req.Capabilities) > 0 {
		caps, err = capability.Parse(req.Capabilities)
		if err != nil {
			h.writeError(c, err)
			return
		}
	}

	m := &database.Manager{TenantID: tenantID, UserID: req.UserID, Capabilities: caps}
	if err := h.db.AssignManager(c.Request.Context(), m); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ManagerInfo{
		TenantID:     tenantID,
		UserID:       req.UserID,
		Username:     user.Username,
		Capabilities: caps.Names(),
	})
}

// ListManagers lists the caller's tenant staff assignments
func (h *Handler) ListManagers(c *gin.Context) {
	tenantID, err := tenantFromClaims(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	managers, err := h.db.ListManagers(c.Request.Context(), tenantID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]dto.ManagerInfo, 0, len(managers))
	for _, m := range managers {
		out = append(out, dto.ManagerInfo{
			TenantID:     m.TenantID,
			UserID:       m.UserID,
			Capabilities: m.Capabilities.Names(),
		})
	}
	c.JSON(http.StatusOK, out)
}

// RemoveManager revokes a staff assignment
func (h *Handler) RemoveManager(c *gin.Context) {
	tenantID, err := tenantFromClaims(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	userID, err := pathID(c, "user_id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.db.RemoveManager(c.Request.Context(), tenantID, userID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
