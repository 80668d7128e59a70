package database

import (
	"context"
	"time"

	"github.com/stratahq/strata/internal/core/topology"
	"github.com/stratahq/strata/internal/core/visitor"
)

// Database defines the persistence operations the apiserver needs. The
// topology and visitor method sets satisfy topology.Store,
// topology.CapacitySource and visitor.Store, so the core engines work
// against any of the backends.
type Database interface {
	// Init migrates the schema
	Init(ctx context.Context) error
	// Close closes the database connection
	Close() error

	// CreateUser creates a new user account
	CreateUser(ctx context.Context, user *User) error
	// GetUser fetches a user by id
	GetUser(ctx context.Context, id uint) (*User, error)
	// GetUserByUsername fetches a user by its unique username
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	// UpdateUser persists changes to a user account
	UpdateUser(ctx context.Context, user *User) error
	// ListUsers lists all user accounts
	ListUsers(ctx context.Context) ([]*User, error)

	// CreateTenant creates a tenant
	CreateTenant(ctx context.Context, tenant *Tenant) error
	// GetTenant fetches a tenant by id
	GetTenant(ctx context.Context, id uint) (*Tenant, error)
	// ListTenants lists all tenants
	ListTenants(ctx context.Context) ([]*Tenant, error)
	// UpdateTenant persists changes to a tenant
	UpdateTenant(ctx context.Context, tenant *Tenant) error

	// AssignManager creates or updates a staff assignment for a tenant
	AssignManager(ctx context.Context, m *Manager) error
	// GetManager fetches one staff assignment
	GetManager(ctx context.Context, tenantID, userID uint) (*Manager, error)
	// ListManagers lists a tenant's staff assignments
	ListManagers(ctx context.Context, tenantID uint) ([]*Manager, error)
	// RemoveManager deletes a staff assignment
	RemoveManager(ctx context.Context, tenantID, userID uint) error

	// LoadTopology loads a tenant's units and generation config
	LoadTopology(ctx context.Context, tenantID uint) (*topology.Topology, error)
	// SaveTopology applies a topology write atomically under the
	// version guard, failing with errorx.Conflict on a stale version
	SaveTopology(ctx context.Context, tenantID uint, version int64, cfg *topology.Config, create []topology.UnitDraft, update []topology.Unit) error
	// LicensedUnits returns the tenant's plan capacity
	LicensedUnits(ctx context.Context, tenantID uint) (int, error)

	// CreateRequest persists a new visitor request
	CreateRequest(ctx context.Context, req *visitor.Request) error
	// GetRequest fetches a visitor request by id
	GetRequest(ctx context.Context, id string) (*visitor.Request, error)
	// ListRequests lists a tenant's visitor requests
	ListRequests(ctx context.Context, tenantID uint) ([]*visitor.Request, error)
	// UpdateState applies a state transition keyed on (id, expected),
	// failing with errorx.Conflict when the stored state moved on
	UpdateState(ctx context.Context, req *visitor.Request, expected visitor.State) error
	// ExpireOverdueRequests persists the derived expired state for
	// requests whose window has closed; advisory only
	ExpireOverdueRequests(ctx context.Context, now time.Time) (int64, error)

	// TenantSecret returns the tenant's QR signing nonce
	TenantSecret(ctx context.Context, tenantID uint) (string, error)
}
