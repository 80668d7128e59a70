package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stratahq/strata/internal/apiserver/middleware"
	"github.com/stratahq/strata/internal/common/cnst"
	"github.com/stratahq/strata/internal/common/dto"
	"github.com/stratahq/strata/internal/common/errorx"
	"github.com/stratahq/strata/internal/core/topology"
)

// tenantFromClaims resolves the caller's tenant. A platform admin has no
// tenant of its own and scopes the call with the X-Tenant-ID header;
// everyone else acts in the tenant bound to their account.
func tenantFromClaims(c *gin.Context) (uint, error) {
	claims := middleware.ClaimsFromContext(c)
	if claims == nil {
		return 0, errorx.Forbidden("unauthorized")
	}
	if claims.TenantID != 0 {
		return claims.TenantID, nil
	}
	if claims.Role == string(cnst.RoleAdmin) {
		if raw := c.GetHeader(cnst.XTenantID); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || id == 0 {
				return 0, errorx.Validation("invalid %s header %q", cnst.XTenantID, raw)
			}
			return uint(id), nil
		}
	}
	return 0, errorx.Validation("caller is not bound to a tenant")
}

// GenerateTopology expands the submitted config into units. Re-running
// with the same config is a no-op; a grown config fills in only the
// missing slots.
func (h *Handler) GenerateTopology(c *gin.Context) {
	tenantID, err := tenantFromClaims(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req dto.GenerateTopologyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := topologyConfig(req)
	result, err := h.topo.Generate(c.Request.Context(), tenantID, cfg)
	if err != nil {
		h.countTopologyFailure(c, err)
		h.writeError(c, err)
		return
	}

	if h.metrics != nil && result.Created > 0 {
		h.metrics.UnitsGenerated(tenantLabel(c), result.Created)
	}
	c.JSON(http.StatusOK, dto.GenerateTopologyResponse{
		Created: result.Created,
		Total:   result.Total,
	})
}

// ToggleExclusion flips units in or out of the licensed capacity count
func (h *Handler) ToggleExclusion(c *gin.Context) {
	tenantID, err := tenantFromClaims(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req dto.ToggleExclusionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.topo.ToggleExclusion(c.Request.Context(), tenantID, req.UnitIDs, *req.Excluded); err != nil {
		h.countTopologyFailure(c, err)
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// BulkSetUnitType reassigns the unit type for a batch of units
func (h *Handler) BulkSetUnitType(c *gin.Context) {
	tenantID, err := tenantFromClaims(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req dto.BulkSetTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.topo.BulkSetUnitType(c.Request.Context(), tenantID, req.UnitIDs, topology.UnitType(req.Type)); err != nil {
		h.countTopologyFailure(c, err)
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// LinkResidents attaches resident emails to a unit
func (h *Handler) LinkResidents(c *gin.Context) {
	tenantID, err := tenantFromClaims(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req dto.LinkResidentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.topo.LinkResidents(c.Request.Context(), tenantID, req.UnitID, req.Emails, req.PrimaryEmail); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UnlinkResident detaches one resident email from a unit
func (h *Handler) UnlinkResident(c *gin.Context) {
	tenantID, err := tenantFromClaims(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req dto.UnlinkResidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.topo.UnlinkResident(c.Request.Context(), tenantID, req.UnitID, req.Email, req.NewPrimaryEmail); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SearchUnits filters and pages a tenant's units
func (h *Handler) SearchUnits(c *gin.Context) {
	tenantID, err := tenantFromClaims(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req dto.SearchUnitsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	topo, err := h.db.LoadTopology(c.Request.Context(), tenantID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	page, err := topology.Search(topo.Units, topology.Query{
		NumberContains: req.NumberContains,
		Status:         topology.UnitStatus(req.Status),
		Type:           topology.UnitType(req.Type),
		Excluded:       req.Excluded,
		PageSize:       req.PageSize,
		PageToken:      req.PageToken,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// topologyConfig converts the request body into the core config
func topologyConfig(req dto.GenerateTopologyRequest) topology.Config {
	enabled := make([]topology.UnitType, 0, len(req.EnabledTypes))
	for _, t := range req.EnabledTypes {
		enabled = append(enabled, topology.UnitType(t))
	}
	var special map[topology.SpecialFloor][]int
	if len(req.SpecialFloors) > 0 {
		special = make(map[topology.SpecialFloor][]int, len(req.SpecialFloors))
		for name, floors := range req.SpecialFloors {
			special[topology.SpecialFloor(name)] = floors
		}
	}
	return topology.Config{
		Blocks:         req.Blocks,
		FloorsPerBlock: req.FloorsPerBlock,
		UnitsPerFloor:  req.UnitsPerFloor,
		Scheme: topology.NamingScheme{
			BlockPrefix: req.Scheme.BlockPrefix,
			FloorPrefix: req.Scheme.FloorPrefix,
			UnitPrefix:  req.Scheme.UnitPrefix,
			BlockWidth:  req.Scheme.BlockWidth,
			FloorWidth:  req.Scheme.FloorWidth,
			UnitWidth:   req.Scheme.UnitWidth,
			StartFloor:  req.Scheme.StartFloor,
			StartUnit:   req.Scheme.StartUnit,
		},
		EnabledTypes:  enabled,
		DefaultType:   topology.UnitType(req.DefaultType),
		SpecialFloors: special,
	}
}

// countTopologyFailure records capacity and conflict rejections
func (h *Handler) countTopologyFailure(c *gin.Context, err error) {
	if h.metrics == nil {
		return
	}
	switch {
	case errorx.HasCode(err, errorx.CodeCapacityExceeded):
		h.metrics.CapacityRejected(tenantLabel(c))
	case errorx.IsConflict(err):
		h.metrics.TopologyConflict(tenantLabel(c))
	}
}

// tenantLabel is the low-cardinality tenant label used on metrics
func tenantLabel(c *gin.Context) string {
	claims := middleware.ClaimsFromContext(c)
	if claims == nil || claims.TenantID == 0 {
		return "unknown"
	}
	return "t" + strconv.FormatUint(uint64(claims.TenantID), 10)
}
