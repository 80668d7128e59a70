package cnst

const (
	// AppName is the service name used in logs and metrics namespaces
	AppName = "strata"

	// XTenantID is the header carrying an explicit tenant scope for
	// platform-admin calls
	XTenantID = "X-Tenant-ID"

	// ApiServerYaml is the default apiserver configuration file name
	ApiServerYaml = "apiserver.yaml"
)

// Role represents the role resolved for an authenticated caller
type Role string

const (
	// RoleAdmin is the tenant administrator role
	RoleAdmin Role = "admin"
	// RoleSecurity is the security-console staff role
	RoleSecurity Role = "security"
	// RoleResident is the resident-portal role
	RoleResident Role = "resident"
	// RoleManager is the property-manager staff role
	RoleManager Role = "manager"
)

// Valid reports whether the role is one of the closed set
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSecurity, RoleResident, RoleManager:
		return true
	}
	return false
}
