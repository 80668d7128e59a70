package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stratahq/strata/internal/common/errorx"
	"github.com/stratahq/strata/internal/core/topology"
	"github.com/stratahq/strata/internal/core/visitor"
)

// store implements Database on top of gorm. The SQLite, MySQL and
// Postgres types only differ in how they open the connection.
type store struct {
	db *gorm.DB
}

// Init migrates the schema
func (s *store) Init(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&Tenant{},
		&User{},
		&Manager{},
		&TopologyConfig{},
		&Unit{},
		&UnitResident{},
		&VisitorRequest{},
	)
}

// Close closes the database connection
func (s *store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *store) CreateUser(ctx context.Context, user *User) error {
	return getDBFromContext(ctx, s.db).Create(user).Error
}

func (s *store) GetUser(ctx context.Context, id uint) (*User, error) {
	var user User
	err := getDBFromContext(ctx, s.db).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errorx.NotFound("user %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := getDBFromContext(ctx, s.db).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errorx.NotFound("user %q not found", username)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *store) UpdateUser(ctx context.Context, user *User) error {
	return getDBFromContext(ctx, s.db).Save(user).Error
}

func (s *store) ListUsers(ctx context.Context) ([]*User, error) {
	var users []*User
	err := getDBFromContext(ctx, s.db).Order("id asc").Find(&users).Error
	return users, err
}

func (s *store) CreateTenant(ctx context.Context, tenant *Tenant) error {
	return getDBFromContext(ctx, s.db).Create(tenant).Error
}

func (s *store) GetTenant(ctx context.Context, id uint) (*Tenant, error) {
	var tenant Tenant
	err := getDBFromContext(ctx, s.db).First(&tenant, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errorx.NotFound("tenant %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (s *store) ListTenants(ctx context.Context) ([]*Tenant, error) {
	var tenants []*Tenant
	err := getDBFromContext(ctx, s.db).Order("id asc").Find(&tenants).Error
	return tenants, err
}

func (s *store) UpdateTenant(ctx context.Context, tenant *Tenant) error {
	return getDBFromContext(ctx, s.db).Save(tenant).Error
}

func (s *store) AssignManager(ctx context.Context, m *Manager) error {
	return getDBFromContext(ctx, s.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"capabilities", "updated_at"}),
	}).Create(m).Error
}

func (s *store) GetManager(ctx context.Context, tenantID, userID uint) (*Manager, error) {
	var m Manager
	err := getDBFromContext(ctx, s.db).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errorx.NotFound("manager assignment not found")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *store) ListManagers(ctx context.Context, tenantID uint) ([]*Manager, error) {
	var managers []*Manager
	err := getDBFromContext(ctx, s.db).
		Where("tenant_id = ?", tenantID).
		Order("user_id asc").
		Find(&managers).Error
	return managers, err
}

func (s *store) RemoveManager(ctx context.Context, tenantID, userID uint) error {
	return getDBFromContext(ctx, s.db).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Delete(&Manager{}).Error
}

// LoadTopology loads a tenant's units and generation config. A tenant
// that has never generated gets an empty topology at version 0.
func (s *store) LoadTopology(ctx context.Context, tenantID uint) (*topology.Topology, error) {
	db := getDBFromContext(ctx, s.db)

	var row TopologyConfig
	err := db.Where("tenant_id = ?", tenantID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &topology.Topology{Version: 0}, nil
	}
	if err != nil {
		return nil, err
	}
	cfg, err := row.toCore()
	if err != nil {
		return nil, fmt.Errorf("failed to decode topology config: %w", err)
	}

	var rows []Unit
	if err := db.Preload("Residents").
		Where("tenant_id = ?", tenantID).
		Order("block_index asc, floor_index asc, slot_index asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	units := make([]topology.Unit, 0, len(rows))
	for i := range rows {
		units = append(units, rows[i].toCore())
	}

	return &topology.Topology{Config: cfg, Units: units, Version: row.Version}, nil
}

// SaveTopology applies one topology write in a transaction. The version
// guard is a conditional UPDATE on the config row; zero rows affected
// means another writer got there first and the whole write rolls back
// with errorx.Conflict.
func (s *store) SaveTopology(ctx context.Context, tenantID uint, version int64, cfg *topology.Config, create []topology.UnitDraft, update []topology.Unit) error {
	if cfg == nil {
		return fmt.Errorf("topology config is required")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := TopologyConfig{TenantID: tenantID, Version: 1}
		if err := row.applyCore(cfg); err != nil {
			return fmt.Errorf("failed to encode topology config: %w", err)
		}

		if version == 0 {
			// First generation: a unique-index violation on tenant_id
			// means a concurrent first write won.
			if err := tx.Create(&row).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return errorx.Conflict
				}
				return err
			}
		} else {
			res := tx.Model(&TopologyConfig{}).
				Where("tenant_id = ? AND version = ?", tenantID, version).
				Updates(map[string]any{
					"blocks":           row.Blocks,
					"floors_per_block": row.FloorsPerBlock,
					"units_per_floor":  row.UnitsPerFloor,
					"block_prefix":     row.BlockPrefix,
					"floor_prefix":     row.FloorPrefix,
					"unit_prefix":      row.UnitPrefix,
					"block_width":      row.BlockWidth,
					"floor_width":      row.FloorWidth,
					"unit_width":       row.UnitWidth,
					"start_floor":      row.StartFloor,
					"start_unit":       row.StartUnit,
					"default_type":     row.DefaultType,
					"enabled_types":    row.EnabledTypes,
					"special_floors":   row.SpecialFloors,
					"version":          version + 1,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errorx.Conflict
			}
		}

		for _, d := range create {
			u := Unit{
				TenantID:   tenantID,
				UnitNumber: d.UnitNumber,
				BlockIndex: d.BlockIndex,
				FloorIndex: d.FloorIndex,
				SlotIndex:  d.SlotIndex,
				UnitType:   string(d.Type),
				Status:     string(topology.StatusVacant),
				Tags:       joinList(d.Tags),
			}
			if err := tx.Create(&u).Error; err != nil {
				// A scheme edit can render a new triple onto a number an
				// existing unit already holds; that is a config problem,
				// not an internal failure.
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return errorx.Validation("unit number %q already exists", d.UnitNumber).
						WithDetail("unit_number", d.UnitNumber)
				}
				return err
			}
		}

		for _, u := range update {
			res := tx.Model(&Unit{}).
				Where("id = ? AND tenant_id = ?", u.ID, tenantID).
				Updates(map[string]any{
					"unit_type": string(u.Type),
					"status":    string(u.Status),
					"excluded":  u.Excluded,
					"tags":      joinList(u.Tags),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errorx.NotFound("unit %d not found", u.ID)
			}
			// Resident links are replaced wholesale; the engine always
			// passes the full set for an updated unit.
			if err := tx.Where("unit_id = ?", u.ID).Delete(&UnitResident{}).Error; err != nil {
				return err
			}
			for _, r := range u.Residents {
				link := UnitResident{UnitID: u.ID, Email: r.Email, IsPrimary: r.Primary}
				if err := tx.Create(&link).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})
}

// LicensedUnits returns the tenant's plan capacity
func (s *store) LicensedUnits(ctx context.Context, tenantID uint) (int, error) {
	tenant, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return tenant.LicensedUnits, nil
}

// TenantSecret returns the tenant's QR signing nonce
func (s *store) TenantSecret(ctx context.Context, tenantID uint) (string, error) {
	tenant, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return tenant.QRSecret, nil
}

func (s *store) CreateRequest(ctx context.Context, req *visitor.Request) error {
	return getDBFromContext(ctx, s.db).Create(fromCoreRequest(req)).Error
}

func (s *store) GetRequest(ctx context.Context, id string) (*visitor.Request, error) {
	var row VisitorRequest
	err := getDBFromContext(ctx, s.db).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errorx.NotFound("visitor request %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return row.toCore(), nil
}

func (s *store) ListRequests(ctx context.Context, tenantID uint) ([]*visitor.Request, error) {
	var rows []VisitorRequest
	err := getDBFromContext(ctx, s.db).
		Where("tenant_id = ?", tenantID).
		Order("created_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	reqs := make([]*visitor.Request, 0, len(rows))
	for i := range rows {
		reqs = append(reqs, rows[i].toCore())
	}
	return reqs, nil
}

// UpdateState writes the transitioned request, but only if the stored
// state still matches expected. Zero rows affected means a concurrent
// transition won and the caller must re-read.
func (s *store) UpdateState(ctx context.Context, req *visitor.Request, expected visitor.State) error {
	row := fromCoreRequest(req)
	res := getDBFromContext(ctx, s.db).Model(&VisitorRequest{}).
		Where("id = ? AND state = ?", req.ID, string(expected)).
		Updates(map[string]any{
			"state":        row.State,
			"approved_by":  row.ApprovedBy,
			"approved_at":  row.ApprovedAt,
			"denied_by":    row.DeniedBy,
			"denied_at":    row.DeniedAt,
			"completed_at": row.CompletedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errorx.Conflict
	}
	return nil
}

// ExpireOverdueRequests persists the expired state for pending and
// approved requests whose window has closed. Reads never depend on this
// having run; it only keeps the stored rows eventually consistent.
func (s *store) ExpireOverdueRequests(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&VisitorRequest{}).
		Where("state IN ? AND valid_until <= ?",
			[]string{string(visitor.StatePending), string(visitor.StateApproved)}, now).
		Update("state", string(visitor.StateExpired))
	return res.RowsAffected, res.Error
}
