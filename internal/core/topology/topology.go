package topology

import (
	"context"
)

// UnitType classifies what a generated unit slot is used for
type UnitType string

const (
	TypeResidential UnitType = "residential"
	TypeCommercial  UnitType = "commercial"
	TypeParking     UnitType = "parking"
	TypeStorage     UnitType = "storage"
)

// Valid reports whether the unit type is one of the closed set
func (t UnitType) Valid() bool {
	switch t {
	case TypeResidential, TypeCommercial, TypeParking, TypeStorage:
		return true
	}
	return false
}

// UnitStatus is the occupancy status of a unit, independent of exclusion
type UnitStatus string

const (
	StatusVacant      UnitStatus = "vacant"
	StatusOccupied    UnitStatus = "occupied"
	StatusMaintenance UnitStatus = "maintenance"
)

// Valid reports whether the status is one of the closed set
func (s UnitStatus) Valid() bool {
	switch s {
	case StatusVacant, StatusOccupied, StatusMaintenance:
		return true
	}
	return false
}

// SpecialFloor names a floor-override list in the topology config
type SpecialFloor string

const (
	FloorPenthouse  SpecialFloor = "penthouse"
	FloorMechanical SpecialFloor = "mechanical"
	FloorParking    SpecialFloor = "parking"
)

// NamingScheme holds the prefix/padding/start-index rules used to render a
// unit's canonical identifier. A level whose prefix is empty and whose
// width is zero is omitted from the rendered number entirely.
type NamingScheme struct {
	BlockPrefix string `json:"block_prefix" yaml:"block_prefix"`
	FloorPrefix string `json:"floor_prefix" yaml:"floor_prefix"`
	UnitPrefix  string `json:"unit_prefix" yaml:"unit_prefix"`
	BlockWidth  int    `json:"block_width" yaml:"block_width"`
	FloorWidth  int    `json:"floor_width" yaml:"floor_width"`
	UnitWidth   int    `json:"unit_width" yaml:"unit_width"`
	StartFloor  int    `json:"start_floor" yaml:"start_floor"`
	StartUnit   int    `json:"start_unit" yaml:"start_unit"`
}

// Config is the compact property description a tenant administrator
// submits. Generation expands it into concrete units.
type Config struct {
	Blocks         int                    `json:"blocks"`
	FloorsPerBlock int                    `json:"floors_per_block"`
	UnitsPerFloor  int                    `json:"units_per_floor"`
	Scheme         NamingScheme           `json:"scheme"`
	EnabledTypes   []UnitType             `json:"enabled_types"`
	DefaultType    UnitType               `json:"default_type"`
	SpecialFloors  map[SpecialFloor][]int `json:"special_floors,omitempty"`
}

// Key identifies a unit slot by its structural position. Re-generation
// diffs by Key, never by the rendered unit number.
type Key struct {
	Block int
	Floor int
	Slot  int
}

// UnitDraft is one expanded slot produced by the naming scheme engine,
// not yet persisted.
type UnitDraft struct {
	BlockIndex int      `json:"block_index"`
	FloorIndex int      `json:"floor_index"`
	SlotIndex  int      `json:"slot_index"`
	UnitNumber string   `json:"unit_number"`
	Type       UnitType `json:"type"`
	Tags       []string `json:"tags,omitempty"`
}

// Key returns the structural position of the draft
func (d UnitDraft) Key() Key {
	return Key{Block: d.BlockIndex, Floor: d.FloorIndex, Slot: d.SlotIndex}
}

// ResidentLink associates a resident email with a unit. At most one link
// per unit is primary.
type ResidentLink struct {
	Email   string `json:"email"`
	Primary bool   `json:"primary"`
}

// Unit is one persisted unit slot. ID and UnitNumber are assigned once
// and never change; exclusion is the deletion substitute.
type Unit struct {
	ID         uint           `json:"id"`
	UnitNumber string         `json:"unit_number"`
	BlockIndex int            `json:"block_index"`
	FloorIndex int            `json:"floor_index"`
	SlotIndex  int            `json:"slot_index"`
	Type       UnitType       `json:"type"`
	Status     UnitStatus     `json:"status"`
	Excluded   bool           `json:"excluded"`
	Tags       []string       `json:"tags,omitempty"`
	Residents  []ResidentLink `json:"residents,omitempty"`
}

// Key returns the structural position of the unit
func (u Unit) Key() Key {
	return Key{Block: u.BlockIndex, Floor: u.FloorIndex, Slot: u.SlotIndex}
}

// PrimaryEmail returns the primary resident email, or "" when none
func (u Unit) PrimaryEmail() string {
	for _, r := range u.Residents {
		if r.Primary {
			return r.Email
		}
	}
	return ""
}

// Topology is the stored state for one tenant: the config it was
// generated from, the concrete units, and the optimistic-lock version.
type Topology struct {
	Config  *Config
	Units   []Unit
	Version int64
}

// ActiveCount returns the number of non-excluded units
func (t *Topology) ActiveCount() int {
	n := 0
	for _, u := range t.Units {
		if !u.Excluded {
			n++
		}
	}
	return n
}

// Store is the narrow repository interface the engine reads and writes
// through. SaveTopology must apply the whole write atomically and return
// errorx.Conflict when version no longer matches the stored one.
type Store interface {
	LoadTopology(ctx context.Context, tenantID uint) (*Topology, error)
	SaveTopology(ctx context.Context, tenantID uint, version int64, cfg *Config, create []UnitDraft, update []Unit) error
}

// CapacitySource supplies the licensed unit count from the tenant's plan
type CapacitySource interface {
	LicensedUnits(ctx context.Context, tenantID uint) (int, error)
}
