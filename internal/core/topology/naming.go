package topology

import (
	"fmt"

	"github.com/stratahq/strata/internal/common/errorx"
)

// overridePrecedence resolves a floor appearing in more than one special
// list: parking wins over mechanical, mechanical over penthouse.
var overridePrecedence = []SpecialFloor{FloorParking, FloorMechanical, FloorPenthouse}

// Validate checks the structural parameters and the naming scheme.
// Nothing is generated or persisted when it fails.
func (c *Config) Validate() error {
	if c.Blocks < 1 {
		return errorx.Validation("blocks must be at least 1, got %d", c.Blocks)
	}
	if c.FloorsPerBlock < 1 {
		return errorx.Validation("floors_per_block must be at least 1, got %d", c.FloorsPerBlock)
	}
	if c.UnitsPerFloor < 1 {
		return errorx.Validation("units_per_floor must be at least 1, got %d", c.UnitsPerFloor)
	}
	// An omitted block token cannot distinguish units across blocks.
	if c.Blocks > 1 && c.Scheme.BlockPrefix == "" && c.Scheme.BlockWidth == 0 {
		return errorx.Validation("block prefix or width is required when blocks > 1")
	}
	if len(c.EnabledTypes) == 0 {
		return errorx.Validation("at least one unit type must be enabled")
	}
	for _, t := range c.EnabledTypes {
		if !t.Valid() {
			return errorx.Validation("unknown unit type %q", t)
		}
	}
	if c.DefaultType == "" {
		c.DefaultType = c.EnabledTypes[0]
	}
	if !c.typeEnabled(c.DefaultType) {
		return errorx.Validation("default type %q is not among the enabled types", c.DefaultType)
	}
	for name := range c.SpecialFloors {
		switch name {
		case FloorPenthouse, FloorMechanical, FloorParking:
		default:
			return errorx.Validation("unknown special floor list %q", name)
		}
	}
	return nil
}

func (c *Config) typeEnabled(t UnitType) bool {
	for _, e := range c.EnabledTypes {
		if e == t {
			return true
		}
	}
	return false
}

// Generate expands the config into the full ordered draft sequence:
// blocks outermost, then floors, then slots. It is pure and deterministic;
// calling it twice with the same config yields the same sequence in the
// same order.
func Generate(cfg Config) ([]UnitDraft, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	startFloor := cfg.Scheme.StartFloor
	if startFloor == 0 {
		startFloor = 1
	}
	startUnit := cfg.Scheme.StartUnit
	if startUnit == 0 {
		startUnit = 1
	}

	drafts := make([]UnitDraft, 0, cfg.Blocks*cfg.FloorsPerBlock*cfg.UnitsPerFloor)
	for block := 1; block <= cfg.Blocks; block++ {
		for floor := startFloor; floor < startFloor+cfg.FloorsPerBlock; floor++ {
			unitType, tags := cfg.floorOverride(floor)
			for slot := startUnit; slot < startUnit+cfg.UnitsPerFloor; slot++ {
				drafts = append(drafts, UnitDraft{
					BlockIndex: block,
					FloorIndex: floor,
					SlotIndex:  slot,
					UnitNumber: cfg.Scheme.Render(block, floor, slot),
					Type:       unitType,
					Tags:       tags,
				})
			}
		}
	}
	return drafts, nil
}

// floorOverride resolves the unit type for a floor. Parking floors become
// parking units, mechanical floors storage units, penthouse floors stay
// residential; each carries its list name as a tag. A floor in several
// lists resolves by overridePrecedence.
func (c *Config) floorOverride(floor int) (UnitType, []string) {
	for _, name := range overridePrecedence {
		if !containsInt(c.SpecialFloors[name], floor) {
			continue
		}
		switch name {
		case FloorParking:
			return TypeParking, []string{string(FloorParking)}
		case FloorMechanical:
			return TypeStorage, []string{string(FloorMechanical)}
		case FloorPenthouse:
			return TypeResidential, []string{string(FloorPenthouse)}
		}
	}
	return c.DefaultType, nil
}

// Render builds the canonical unit number for a structural position by
// concatenating the block, floor and unit tokens in that order.
func (s NamingScheme) Render(block, floor, slot int) string {
	return s.token(s.BlockPrefix, s.BlockWidth, block) +
		s.token(s.FloorPrefix, s.FloorWidth, floor) +
		s.token(s.UnitPrefix, s.UnitWidth, slot)
}

// token renders one level: the prefix followed by the zero-padded index.
// A level with neither prefix nor padding width is omitted entirely.
func (s NamingScheme) token(prefix string, width, index int) string {
	if prefix == "" && width == 0 {
		return ""
	}
	if width > 0 {
		return fmt.Sprintf("%s%0*d", prefix, width, index)
	}
	return fmt.Sprintf("%s%d", prefix, index)
}

// Diff returns only the drafts whose structural key is not yet present
// among existing units. This is the idempotence guarantee: re-running
// generation never touches ids, exclusion flags or resident links of
// units that already exist.
func Diff(existing []Unit, drafts []UnitDraft) []UnitDraft {
	seen := make(map[Key]struct{}, len(existing))
	for _, u := range existing {
		seen[u.Key()] = struct{}{}
	}
	missing := make([]UnitDraft, 0)
	for _, d := range drafts {
		if _, ok := seen[d.Key()]; !ok {
			missing = append(missing, d)
		}
	}
	return missing
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
