package dto

import "time"

// CreateTenantRequest represents a request to onboard a tenant
type CreateTenantRequest struct {
	Name          string `json:"name" binding:"required"`
	Code          string `json:"code" binding:"required"`
	LicensedUnits int    `json:"licensed_units" binding:"required,gt=0"`
}

// UpdateTenantRequest represents a request to update a tenant's plan
type UpdateTenantRequest struct {
	Name          string `json:"name,omitempty"`
	LicensedUnits *int   `json:"licensed_units,omitempty" binding:"omitempty,gt=0"`
	IsActive      *bool  `json:"is_active,omitempty"`
}

// TenantInfo represents a tenant in API responses
type TenantInfo struct {
	ID            uint      `json:"id"`
	Name          string    `json:"name"`
	Code          string    `json:"code"`
	LicensedUnits int       `json:"licensed_units"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}
