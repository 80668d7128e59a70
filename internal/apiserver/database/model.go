package database

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/stratahq/strata/internal/common/cnst"
	"github.com/stratahq/strata/internal/core/capability"
	"github.com/stratahq/strata/internal/core/topology"
	"github.com/stratahq/strata/internal/core/visitor"
)

// Tenant is one property-management customer. LicensedUnits comes from the
// commercial plan and bounds the active unit count; QRSecret is the
// per-tenant nonce mixed into the visitor token signing key.
type Tenant struct {
	ID            uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Name          string    `json:"name" gorm:"type:varchar(100);uniqueIndex"`
	Code          string    `json:"code" gorm:"type:varchar(20);uniqueIndex"`
	LicensedUnits int       `json:"licensed_units" gorm:"not null;default:0"`
	QRSecret      string    `json:"-" gorm:"type:varchar(100);not null"`
	IsActive      bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// User is an account that can authenticate against the apiserver
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Username  string    `json:"username" gorm:"type:varchar(50);uniqueIndex"`
	Password  string    `json:"-" gorm:"not null"` // bcrypt hash, never exposed
	Role      cnst.Role `json:"role" gorm:"type:varchar(20);not null;default:'resident'"`
	TenantID  uint      `json:"tenant_id" gorm:"index"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Manager associates a staff user with a tenant and a capability bitset
type Manager struct {
	ID           uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	TenantID     uint           `json:"tenant_id" gorm:"uniqueIndex:uk_manager,priority:1"`
	UserID       uint           `json:"user_id" gorm:"uniqueIndex:uk_manager,priority:2"`
	Capabilities capability.Set `json:"capabilities" gorm:"not null;default:0"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TopologyConfig is the stored per-tenant generation config plus the
// optimistic-lock version every topology write is guarded by.
type TopologyConfig struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	TenantID       uint   `gorm:"uniqueIndex"`
	Blocks         int    `gorm:"not null"`
	FloorsPerBlock int    `gorm:"not null"`
	UnitsPerFloor  int    `gorm:"not null"`
	BlockPrefix    string `gorm:"type:varchar(10)"`
	FloorPrefix    string `gorm:"type:varchar(10)"`
	UnitPrefix     string `gorm:"type:varchar(10)"`
	BlockWidth     int
	FloorWidth     int
	UnitWidth      int
	StartFloor     int
	StartUnit      int
	DefaultType    string `gorm:"type:varchar(20)"`
	EnabledTypes   string `gorm:"type:varchar(100)"` // comma-separated
	SpecialFloors  string `gorm:"type:text"`         // JSON object of list name -> floor indexes
	Version        int64  `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Unit is one persisted unit slot. The structural position and the unit
// number are both unique per tenant; the number is assigned once and
// never rewritten.
type Unit struct {
	ID         uint           `gorm:"primaryKey;autoIncrement"`
	TenantID   uint           `gorm:"index;uniqueIndex:uk_unit_pos,priority:1;uniqueIndex:uk_unit_number,priority:1"`
	UnitNumber string         `gorm:"type:varchar(50);uniqueIndex:uk_unit_number,priority:2"`
	BlockIndex int            `gorm:"uniqueIndex:uk_unit_pos,priority:2"`
	FloorIndex int            `gorm:"uniqueIndex:uk_unit_pos,priority:3"`
	SlotIndex  int            `gorm:"uniqueIndex:uk_unit_pos,priority:4"`
	UnitType   string         `gorm:"type:varchar(20);not null"`
	Status     string         `gorm:"type:varchar(20);not null;default:'vacant'"`
	Excluded   bool           `gorm:"not null;default:false"`
	Tags       string         `gorm:"type:varchar(100)"` // comma-separated
	Residents  []UnitResident `gorm:"foreignKey:UnitID"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UnitResident links a resident email to a unit; at most one link per
// unit is primary. Emails are stored lowercased.
type UnitResident struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UnitID    uint   `gorm:"index;uniqueIndex:uk_unit_email,priority:1"`
	Email     string `gorm:"type:varchar(255);uniqueIndex:uk_unit_email,priority:2"`
	IsPrimary bool   `gorm:"not null;default:false"`
}

// VisitorRequest is the audit record of one visit
type VisitorRequest struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)"`
	TenantID    uint       `gorm:"index"`
	HostUserID  uint       `gorm:"index"`
	VisitorName string     `gorm:"type:varchar(100);not null"`
	Purpose     string     `gorm:"type:varchar(255);not null"`
	ValidFrom   time.Time  `gorm:"not null"`
	ValidUntil  time.Time  `gorm:"not null;index"`
	QRToken     string     `gorm:"type:varchar(512);not null"`
	State       string     `gorm:"type:varchar(20);not null;index"`
	ApprovedBy  uint       `gorm:"default:0"`
	ApprovedAt  *time.Time
	DeniedBy    uint       `gorm:"default:0"`
	DeniedAt    *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// toCore converts the stored unit to its core representation
func (u *Unit) toCore() topology.Unit {
	links := make([]topology.ResidentLink, 0, len(u.Residents))
	for _, r := range u.Residents {
		links = append(links, topology.ResidentLink{Email: r.Email, Primary: r.IsPrimary})
	}
	return topology.Unit{
		ID:         u.ID,
		UnitNumber: u.UnitNumber,
		BlockIndex: u.BlockIndex,
		FloorIndex: u.FloorIndex,
		SlotIndex:  u.SlotIndex,
		Type:       topology.UnitType(u.UnitType),
		Status:     topology.UnitStatus(u.Status),
		Excluded:   u.Excluded,
		Tags:       splitList(u.Tags),
		Residents:  links,
	}
}

// toCore converts the stored config to its core representation
func (c *TopologyConfig) toCore() (*topology.Config, error) {
	special := make(map[topology.SpecialFloor][]int)
	if c.SpecialFloors != "" {
		if err := json.Unmarshal([]byte(c.SpecialFloors), &special); err != nil {
			return nil, err
		}
	}
	enabled := make([]topology.UnitType, 0)
	for _, t := range splitList(c.EnabledTypes) {
		enabled = append(enabled, topology.UnitType(t))
	}
	return &topology.Config{
		Blocks:         c.Blocks,
		FloorsPerBlock: c.FloorsPerBlock,
		UnitsPerFloor:  c.UnitsPerFloor,
		Scheme: topology.NamingScheme{
			BlockPrefix: c.BlockPrefix,
			FloorPrefix: c.FloorPrefix,
			UnitPrefix:  c.UnitPrefix,
			BlockWidth:  c.BlockWidth,
			FloorWidth:  c.FloorWidth,
			UnitWidth:   c.UnitWidth,
			StartFloor:  c.StartFloor,
			StartUnit:   c.StartUnit,
		},
		EnabledTypes:  enabled,
		DefaultType:   topology.UnitType(c.DefaultType),
		SpecialFloors: special,
	}, nil
}

// applyCore copies the core config into the stored row
func (c *TopologyConfig) applyCore(cfg *topology.Config) error {
	special, err := json.Marshal(cfg.SpecialFloors)
	if err != nil {
		return err
	}
	types := make([]string, 0, len(cfg.EnabledTypes))
	for _, t := range cfg.EnabledTypes {
		types = append(types, string(t))
	}
	c.Blocks = cfg.Blocks
	c.FloorsPerBlock = cfg.FloorsPerBlock
	c.UnitsPerFloor = cfg.UnitsPerFloor
	c.BlockPrefix = cfg.Scheme.BlockPrefix
	c.FloorPrefix = cfg.Scheme.FloorPrefix
	c.UnitPrefix = cfg.Scheme.UnitPrefix
	c.BlockWidth = cfg.Scheme.BlockWidth
	c.FloorWidth = cfg.Scheme.FloorWidth
	c.UnitWidth = cfg.Scheme.UnitWidth
	c.StartFloor = cfg.Scheme.StartFloor
	c.StartUnit = cfg.Scheme.StartUnit
	c.DefaultType = string(cfg.DefaultType)
	c.EnabledTypes = strings.Join(types, ",")
	c.SpecialFloors = string(special)
	return nil
}

// toCore converts the stored visitor request to its core representation
func (v *VisitorRequest) toCore() *visitor.Request {
	return &visitor.Request{
		ID:          v.ID,
		TenantID:    v.TenantID,
		HostUserID:  v.HostUserID,
		VisitorName: v.VisitorName,
		Purpose:     v.Purpose,
		ValidFrom:   v.ValidFrom,
		ValidUntil:  v.ValidUntil,
		QRToken:     v.QRToken,
		State:       visitor.State(v.State),
		ApprovedBy:  v.ApprovedBy,
		ApprovedAt:  v.ApprovedAt,
		DeniedBy:    v.DeniedBy,
		DeniedAt:    v.DeniedAt,
		CompletedAt: v.CompletedAt,
		CreatedAt:   v.CreatedAt,
	}
}

func fromCoreRequest(req *visitor.Request) *VisitorRequest {
	return &VisitorRequest{
		ID:          req.ID,
		TenantID:    req.TenantID,
		HostUserID:  req.HostUserID,
		VisitorName: req.VisitorName,
		Purpose:     req.Purpose,
		ValidFrom:   req.ValidFrom,
		ValidUntil:  req.ValidUntil,
		QRToken:     req.QRToken,
		State:       string(req.State),
		ApprovedBy:  req.ApprovedBy,
		ApprovedAt:  req.ApprovedAt,
		DeniedBy:    req.DeniedBy,
		DeniedAt:    req.DeniedAt,
		CompletedAt: req.CompletedAt,
		CreatedAt:   req.CreatedAt,
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func joinList(items []string) string {
	return strings.Join(items, ",")
}
