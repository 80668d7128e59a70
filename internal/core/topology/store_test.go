package topology

import (
	"context"
	"fmt"

	"github.com/stratahq/strata/internal/common/errorx"
)

// fakeStore is an in-memory Store with optimistic-lock semantics matching
// the database implementation: a save with a stale version fails with
// errorx.Conflict and nothing is applied.
type fakeStore struct {
	topo   Topology
	nextID uint

	// forceConflicts makes the next n saves fail after simulating a
	// concurrent writer bumping the version.
	forceConflicts int
	saves          int
}

func (f *fakeStore) LoadTopology(_ context.Context, _ uint) (*Topology, error) {
	units := make([]Unit, len(f.topo.Units))
	for i, u := range f.topo.Units {
		links := make([]ResidentLink, len(u.Residents))
		copy(links, u.Residents)
		u.Residents = links
		units[i] = u
	}
	cfg := f.topo.Config
	if cfg != nil {
		c := *cfg
		cfg = &c
	}
	return &Topology{Config: cfg, Units: units, Version: f.topo.Version}, nil
}

func (f *fakeStore) SaveTopology(_ context.Context, _ uint, version int64, cfg *Config, create []UnitDraft, update []Unit) error {
	// the database store rewrites every config column on save, so a
	// save without a config is a caller bug
	if cfg == nil {
		return fmt.Errorf("topology config is required")
	}
	if f.forceConflicts > 0 {
		f.forceConflicts--
		f.topo.Version++
		return errorx.Conflict
	}
	if version != f.topo.Version {
		return errorx.Conflict
	}
	f.saves++
	if cfg != nil {
		c := *cfg
		f.topo.Config = &c
	}
	for _, u := range update {
		for i := range f.topo.Units {
			if f.topo.Units[i].ID == u.ID {
				f.topo.Units[i] = u
			}
		}
	}
	for _, d := range create {
		f.nextID++
		f.topo.Units = append(f.topo.Units, Unit{
			ID:         f.nextID,
			UnitNumber: d.UnitNumber,
			BlockIndex: d.BlockIndex,
			FloorIndex: d.FloorIndex,
			SlotIndex:  d.SlotIndex,
			Type:       d.Type,
			Status:     StatusVacant,
			Tags:       d.Tags,
		})
	}
	f.topo.Version++
	return nil
}

type fakeCapacity struct {
	licensed int
}

func (f *fakeCapacity) LicensedUnits(_ context.Context, _ uint) (int, error) {
	return f.licensed, nil
}
