package dto

// AssignManagerRequest grants a staff user capabilities on a tenant
type AssignManagerRequest struct {
	UserID       uint     `json:"user_id" binding:"required"`
	Capabilities []string `json:"capabilities"`
}

// ManagerInfo represents one staff assignment in API responses
type ManagerInfo struct {
	TenantID     uint     `json:"tenant_id"`
	UserID       uint     `json:"user_id"`
	Username     string   `json:"username,omitempty"`
	Capabilities []string `json:"capabilities"`
}
