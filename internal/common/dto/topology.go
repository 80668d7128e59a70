package dto

// NamingSchemeRequest carries the prefix/padding/start rules for
// rendering unit numbers.
type NamingSchemeRequest struct {
	BlockPrefix string `json:"block_prefix"`
	FloorPrefix string `json:"floor_prefix"`
	UnitPrefix  string `json:"unit_prefix"`
	BlockWidth  int    `json:"block_width" binding:"gte=0"`
	FloorWidth  int    `json:"floor_width" binding:"gte=0"`
	UnitWidth   int    `json:"unit_width" binding:"gte=0"`
	StartFloor  int    `json:"start_floor" binding:"gte=0"`
	StartUnit   int    `json:"start_unit" binding:"gte=0"`
}

// GenerateTopologyRequest represents a topology generation request
type GenerateTopologyRequest struct {
	Blocks         int                 `json:"blocks" binding:"required,gt=0"`
	FloorsPerBlock int                 `json:"floors_per_block" binding:"required,gt=0"`
	UnitsPerFloor  int                 `json:"units_per_floor" binding:"required,gt=0"`
	Scheme         NamingSchemeRequest `json:"scheme"`
	EnabledTypes   []string            `json:"enabled_types" binding:"required,min=1"`
	DefaultType    string              `json:"default_type"`
	SpecialFloors  map[string][]int    `json:"special_floors,omitempty"`
}

// GenerateTopologyResponse reports what one generation run did
type GenerateTopologyResponse struct {
	Created int `json:"created"`
	Total   int `json:"total"`
}

// ToggleExclusionRequest marks units counted or not counted against
// the licensed capacity.
type ToggleExclusionRequest struct {
	UnitIDs  []uint `json:"unit_ids" binding:"required,min=1"`
	Excluded *bool  `json:"excluded" binding:"required"`
}

// BulkSetTypeRequest reassigns the unit type for a batch of units
type BulkSetTypeRequest struct {
	UnitIDs []uint `json:"unit_ids" binding:"required,min=1"`
	Type    string `json:"type" binding:"required"`
}

// LinkResidentsRequest attaches resident emails to a unit
type LinkResidentsRequest struct {
	UnitID       uint     `json:"unit_id" binding:"required"`
	Emails       []string `json:"emails" binding:"required,min=1,dive,email"`
	PrimaryEmail string   `json:"primary_email" binding:"required,email"`
}

// UnlinkResidentRequest detaches one resident email from a unit
type UnlinkResidentRequest struct {
	UnitID          uint   `json:"unit_id" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	NewPrimaryEmail string `json:"new_primary_email,omitempty" binding:"omitempty,email"`
}

// SearchUnitsRequest represents a unit search query
type SearchUnitsRequest struct {
	NumberContains string `form:"number_contains"`
	Status         string `form:"status"`
	Type           string `form:"type"`
	Excluded       *bool  `form:"excluded"`
	PageSize       int    `form:"page_size" binding:"gte=0,lte=500"`
	PageToken      string `form:"page_token"`
}
