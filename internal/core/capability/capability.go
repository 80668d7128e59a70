package capability

import (
	"github.com/stratahq/strata/internal/common/cnst"
	"github.com/stratahq/strata/internal/common/errorx"
)

// Set is a closed bitset of staff capabilities. Keeping the set closed
// (instead of an open-ended permissions map) means every combination can
// be validated and tested exhaustively.
type Set uint64

const (
	// ManageTopology allows generating and re-running the unit topology
	ManageTopology Set = 1 << iota
	// ManageUnits allows exclusion toggles and unit-type reassignment
	ManageUnits
	// LinkResidents allows resident link/unlink mutations
	LinkResidents
	// ApproveVisitors allows driving the visitor approval state machine
	ApproveVisitors
	// ManageManagers allows assigning staff to the tenant
	ManageManagers
	// ViewReports allows read access to dashboards and search
	ViewReports
)

// All is every capability combined
const All = ManageTopology | ManageUnits | LinkResidents | ApproveVisitors | ManageManagers | ViewReports

var names = map[Set]string{
	ManageTopology:  "manage_topology",
	ManageUnits:     "manage_units",
	LinkResidents:   "link_residents",
	ApproveVisitors: "approve_visitors",
	ManageManagers:  "manage_managers",
	ViewReports:     "view_reports",
}

// ordered keeps serialization deterministic
var ordered = []Set{ManageTopology, ManageUnits, LinkResidents, ApproveVisitors, ManageManagers, ViewReports}

// Has reports whether every capability in c is present in s
func (s Set) Has(c Set) bool { return s&c == c }

// With returns s plus the given capabilities
func (s Set) With(c Set) Set { return s | c }

// Without returns s minus the given capabilities
func (s Set) Without(c Set) Set { return s &^ c }

// Names renders the set as its sorted capability names
func (s Set) Names() []string {
	out := make([]string, 0)
	for _, c := range ordered {
		if s.Has(c) {
			out = append(out, names[c])
		}
	}
	return out
}

// Parse builds a Set from capability names, rejecting unknown ones
func Parse(in []string) (Set, error) {
	byName := make(map[string]Set, len(names))
	for c, n := range names {
		byName[n] = c
	}
	var s Set
	for _, n := range in {
		c, ok := byName[n]
		if !ok {
			return 0, errorx.Validation("unknown capability %q", n)
		}
		s = s.With(c)
	}
	return s, nil
}

// roleDefaults is the single central mapping from role to default
// capability set.
var roleDefaults = map[cnst.Role]Set{
	cnst.RoleAdmin:    All,
	cnst.RoleManager:  ManageUnits | LinkResidents | ViewReports,
	cnst.RoleSecurity: ApproveVisitors | ViewReports,
	cnst.RoleResident: 0,
}

// DefaultsForRole returns the default capability set for a role
func DefaultsForRole(role cnst.Role) Set {
	return roleDefaults[role]
}
