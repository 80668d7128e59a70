package topology

import (
	"context"
	"strings"

	"github.com/stratahq/strata/internal/common/errorx"
	"go.uber.org/zap"
)

// conflictRetries bounds how often a mutation re-runs its read-check-write
// cycle after an optimistic-concurrency collision before surfacing
// errorx.Conflict to the caller.
const conflictRetries = 3

// Service applies generation and incremental mutations to a tenant's
// topology. Every operation is atomic: the full requested set is applied
// or nothing is.
type Service struct {
	store    Store
	capacity CapacitySource
	logger   *zap.Logger
}

// NewService creates a topology mutation service
func NewService(store Store, capacity CapacitySource, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		capacity: capacity,
		logger:   logger.Named("core.topology"),
	}
}

// GenerateResult reports what a generation run changed
type GenerateResult struct {
	Created int `json:"created"`
	Total   int `json:"total"`
}

// mutate runs one read-check-write cycle against the tenant topology and
// retries it on version conflicts. op computes the write set from the
// freshly loaded topology; returning all-empty makes the call a no-op.
func (s *Service) mutate(ctx context.Context, tenantID uint, op func(topo *Topology) (cfg *Config, create []UnitDraft, update []Unit, err error)) error {
	var err error
	for attempt := 1; attempt <= conflictRetries; attempt++ {
		var topo *Topology
		topo, err = s.store.LoadTopology(ctx, tenantID)
		if err != nil {
			return err
		}
		cfg, create, update, opErr := op(topo)
		if opErr != nil {
			return opErr
		}
		if cfg == nil && len(create) == 0 && len(update) == 0 {
			return nil
		}
		if cfg == nil {
			// Incremental mutations keep the stored generation config;
			// the save rewrites every config column, so it must carry
			// the loaded one through.
			cfg = topo.Config
		}
		err = s.store.SaveTopology(ctx, tenantID, topo.Version, cfg, create, update)
		if err == nil || !errorx.IsConflict(err) {
			return err
		}
		s.logger.Debug("topology version conflict, retrying",
			zap.Uint("tenant_id", tenantID),
			zap.Int("attempt", attempt))
	}
	return err
}

// Generate expands the config and persists only the units whose
// structural key does not exist yet. Existing units keep their id,
// number, status, exclusion flag and resident links untouched, so
// generation is idempotent and safe to re-run after config edits.
func (s *Service) Generate(ctx context.Context, tenantID uint, cfg Config) (*GenerateResult, error) {
	// Validate first so the persisted config carries the filled-in
	// default type, not the raw submission.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	drafts, err := Generate(cfg)
	if err != nil {
		return nil, err
	}

	licensed, err := s.capacity.LicensedUnits(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var result GenerateResult
	err = s.mutate(ctx, tenantID, func(topo *Topology) (*Config, []UnitDraft, []Unit, error) {
		missing := Diff(topo.Units, drafts)
		if err := CheckCapacity(topo.ActiveCount(), len(missing), licensed); err != nil {
			return nil, nil, nil, err
		}
		result = GenerateResult{Created: len(missing), Total: len(topo.Units) + len(missing)}
		return &cfg, missing, nil, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("topology generated",
		zap.Uint("tenant_id", tenantID),
		zap.Int("created", result.Created),
		zap.Int("total", result.Total))
	return &result, nil
}

// ToggleExclusion flips the excluded flag on the given units. Re-including
// units passes through the capacity guard first; the whole batch is
// rejected when it would overshoot.
func (s *Service) ToggleExclusion(ctx context.Context, tenantID uint, unitIDs []uint, excluded bool) error {
	if len(unitIDs) == 0 {
		return errorx.Validation("unit id list must not be empty")
	}
	licensed := 0
	if !excluded {
		var err error
		licensed, err = s.capacity.LicensedUnits(ctx, tenantID)
		if err != nil {
			return err
		}
	}
	return s.mutate(ctx, tenantID, func(topo *Topology) (*Config, []UnitDraft, []Unit, error) {
		byID := indexByID(topo.Units)
		update := make([]Unit, 0, len(unitIDs))
		for _, id := range unitIDs {
			u, ok := byID[id]
			if !ok {
				return nil, nil, nil, errorx.NotFound("unit %d not found", id).WithDetail("unit_id", id)
			}
			if u.Excluded == excluded {
				continue
			}
			u.Excluded = excluded
			update = append(update, u)
		}
		if !excluded {
			if err := CheckCapacity(topo.ActiveCount(), len(update), licensed); err != nil {
				return nil, nil, nil, err
			}
		}
		return nil, nil, update, nil
	})
}

// BulkSetUnitType reassigns the unit type for the given units. The type
// must be among the tenant's enabled types.
func (s *Service) BulkSetUnitType(ctx context.Context, tenantID uint, unitIDs []uint, unitType UnitType) error {
	if len(unitIDs) == 0 {
		return errorx.Validation("unit id list must not be empty")
	}
	if !unitType.Valid() {
		return errorx.Validation("unknown unit type %q", unitType)
	}
	return s.mutate(ctx, tenantID, func(topo *Topology) (*Config, []UnitDraft, []Unit, error) {
		if topo.Config == nil {
			return nil, nil, nil, errorx.Validation("tenant has no generated topology")
		}
		if !topo.Config.typeEnabled(unitType) {
			return nil, nil, nil, errorx.Validation("unit type %q is not enabled for this tenant", unitType)
		}
		byID := indexByID(topo.Units)
		update := make([]Unit, 0, len(unitIDs))
		for _, id := range unitIDs {
			u, ok := byID[id]
			if !ok {
				return nil, nil, nil, errorx.NotFound("unit %d not found", id).WithDetail("unit_id", id)
			}
			if u.Type == unitType {
				continue
			}
			u.Type = unitType
			update = append(update, u)
		}
		return nil, nil, update, nil
	})
}

// LinkResidents merges emails into the unit's resident set with
// case-insensitive de-duplication and marks primaryEmail as the primary.
// primaryEmail must be a member of the resulting set.
func (s *Service) LinkResidents(ctx context.Context, tenantID, unitID uint, emails []string, primaryEmail string) error {
	primary := normalizeEmail(primaryEmail)
	return s.mutate(ctx, tenantID, func(topo *Topology) (*Config, []UnitDraft, []Unit, error) {
		byID := indexByID(topo.Units)
		u, ok := byID[unitID]
		if !ok {
			return nil, nil, nil, errorx.NotFound("unit %d not found", unitID).WithDetail("unit_id", unitID)
		}

		merged := make([]ResidentLink, len(u.Residents))
		copy(merged, u.Residents)
		for _, raw := range emails {
			email := normalizeEmail(raw)
			if email == "" {
				return nil, nil, nil, errorx.Validation("resident email must not be empty")
			}
			if !containsEmail(merged, email) {
				merged = append(merged, ResidentLink{Email: email})
			}
		}
		if !containsEmail(merged, primary) {
			return nil, nil, nil, errorx.InvalidPrimary
		}
		for i := range merged {
			merged[i].Primary = merged[i].Email == primary
		}

		u.Residents = merged
		return nil, nil, []Unit{u}, nil
	})
}

// UnlinkResident removes one resident email from the unit. Removing the
// primary while other residents remain requires an explicit newPrimary;
// the engine never silently picks one.
func (s *Service) UnlinkResident(ctx context.Context, tenantID, unitID uint, email, newPrimary string) error {
	target := normalizeEmail(email)
	replacement := normalizeEmail(newPrimary)
	return s.mutate(ctx, tenantID, func(topo *Topology) (*Config, []UnitDraft, []Unit, error) {
		byID := indexByID(topo.Units)
		u, ok := byID[unitID]
		if !ok {
			return nil, nil, nil, errorx.NotFound("unit %d not found", unitID).WithDetail("unit_id", unitID)
		}

		removedPrimary := false
		remaining := make([]ResidentLink, 0, len(u.Residents))
		found := false
		for _, r := range u.Residents {
			if r.Email == target {
				found = true
				removedPrimary = r.Primary
				continue
			}
			remaining = append(remaining, r)
		}
		if !found {
			return nil, nil, nil, errorx.NotFound("resident %s is not linked to unit %d", target, unitID)
		}

		if removedPrimary && len(remaining) > 0 {
			if replacement == "" {
				return nil, nil, nil, errorx.PrimaryRequired
			}
			if !containsEmail(remaining, replacement) {
				return nil, nil, nil, errorx.InvalidPrimary
			}
			for i := range remaining {
				remaining[i].Primary = remaining[i].Email == replacement
			}
		}

		u.Residents = remaining
		return nil, nil, []Unit{u}, nil
	})
}

func indexByID(units []Unit) map[uint]Unit {
	byID := make(map[uint]Unit, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}
	return byID
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func containsEmail(links []ResidentLink, email string) bool {
	for _, l := range links {
		if l.Email == email {
			return true
		}
	}
	return false
}
