package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stratahq/strata/internal/apiserver/database"
	"github.com/stratahq/strata/internal/common/dto"
	"github.com/stratahq/strata/internal/common/errorx"
)

// CreateTenant onboards a tenant. The QR secret is generated here and
// never leaves the database.
func (h *Handler) CreateTenant(c *gin.Context) {
	var req dto.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenant := &database.Tenant{
		Name:          req.Name,
		Code:          req.Code,
		LicensedUnits: req.LicensedUnits,
		QRSecret:      uuid.New().String(),
		IsActive:      true,
	}
	if err := h.db.CreateTenant(c.Request.Context(), tenant); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tenantInfo(tenant))
}

// GetTenant returns one tenant
func (h *Handler) GetTenant(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	tenant, err := h.db.GetTenant(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tenantInfo(tenant))
}

// ListTenants lists all tenants
func (h *Handler) ListTenants(c *gin.Context) {
	tenants, err := h.db.ListTenants(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]dto.TenantInfo, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, tenantInfo(t))
	}
	c.JSON(http.StatusOK, out)
}

// UpdateTenant updates a tenant's name, plan capacity or active flag
func (h *Handler) UpdateTenant(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req dto.UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenant, err := h.db.GetTenant(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if req.Name != "" {
		tenant.Name = req.Name
	}
	planChanged := false
	if req.LicensedUnits != nil && *req.LicensedUnits != tenant.LicensedUnits {
		tenant.LicensedUnits = *req.LicensedUnits
		planChanged = true
	}
	if req.IsActive != nil {
		tenant.IsActive = *req.IsActive
	}
	if err := h.db.UpdateTenant(c.Request.Context(), tenant); err != nil {
		h.writeError(c, err)
		return
	}
	if planChanged && h.invalidate != nil {
		if err := h.invalidate.Invalidate(c.Request.Context(), tenant.ID); err != nil {
			h.logger.Warn("failed to invalidate capacity cache", zap.Uint("tenant_id", tenant.ID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, tenantInfo(tenant))
}

func tenantInfo(t *database.Tenant) dto.TenantInfo {
	return dto.TenantInfo{
		ID:            t.ID,
		Name:          t.Name,
		Code:          t.Code,
		LicensedUnits: t.LicensedUnits,
		IsActive:      t.IsActive,
		CreatedAt:     t.CreatedAt,
	}
}

// pathID parses a numeric path parameter
func pathID(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errorx.Validation("invalid %s %q", name, raw)
	}
	return uint(id), nil
}
