package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stratahq/strata/internal/apiserver/middleware"
	"github.com/stratahq/strata/internal/common/cnst"
)

// Register wires every API route onto the engine. Route groups are
// gated by role; capability checks inside a tenant happen in the
// handlers themselves.
func (h *Handler) Register(r *gin.Engine) {
	if h.metrics != nil {
		r.Use(h.metrics.Middleware())
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/api/auth/login", h.Login)

	auth := r.Group("/api", middleware.JWTAuthMiddleware(h.jwtService))
	auth.GET("/auth/me", h.CurrentUser)
	auth.POST("/auth/change-password", h.ChangePassword)

	admin := auth.Group("", middleware.RequireRole(cnst.RoleAdmin))
	admin.POST("/users", h.CreateUser)
	admin.GET("/users", h.ListUsers)
	admin.POST("/tenants", h.CreateTenant)
	admin.GET("/tenants", h.ListTenants)
	admin.GET("/tenants/:id", h.GetTenant)
	admin.PUT("/tenants/:id", h.UpdateTenant)
	admin.POST("/managers", h.AssignManager)
	admin.GET("/managers", h.ListManagers)
	admin.DELETE("/managers/:user_id", h.RemoveManager)

	staff := auth.Group("", middleware.RequireRole(cnst.RoleAdmin, cnst.RoleManager))
	staff.POST("/topology/generate", h.GenerateTopology)
	staff.POST("/units/exclusion", h.ToggleExclusion)
	staff.POST("/units/type", h.BulkSetUnitType)
	staff.POST("/units/residents", h.LinkResidents)
	staff.DELETE("/units/residents", h.UnlinkResident)
	staff.GET("/units", h.SearchUnits)

	residents := auth.Group("", middleware.RequireRole(cnst.RoleAdmin, cnst.RoleResident))
	residents.POST("/visitors", h.CreateVisitorRequest)

	visitors := auth.Group("", middleware.RequireRole(cnst.RoleAdmin, cnst.RoleSecurity, cnst.RoleResident))
	visitors.GET("/visitors", h.ListVisitorRequests)
	visitors.GET("/visitors/:id", h.GetVisitorRequest)

	security := auth.Group("", middleware.RequireRole(cnst.RoleAdmin, cnst.RoleSecurity))
	security.POST("/visitors/:id/approve", h.ApproveVisitorRequest)
	security.POST("/visitors/:id/deny", h.DenyVisitorRequest)
	security.POST("/visitors/:id/complete", h.CompleteVisitorRequest)
	security.POST("/visitors/validate", h.ValidateToken)
}
