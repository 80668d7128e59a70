package topology

import (
	"context"
	"testing"

	"github.com/stratahq/strata/internal/common/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testTenant uint = 1

func newTestService(store *fakeStore, licensed int) *Service {
	return NewService(store, &fakeCapacity{licensed: licensed}, zap.NewNop())
}

func generated(t *testing.T, svc *Service, cfg Config) {
	t.Helper()
	_, err := svc.Generate(context.Background(), testTenant, cfg)
	require.NoError(t, err)
}

func TestService_Generate(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, 10)

	res, err := svc.Generate(context.Background(), testTenant, baseConfig())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Created)
	assert.Equal(t, 4, res.Total)
	assert.Len(t, store.topo.Units, 4)
	assert.Equal(t, StatusVacant, store.topo.Units[0].Status)
	require.NotNil(t, store.topo.Config)
}

func TestService_Generate_Idempotent(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, 10)
	generated(t, svc, baseConfig())

	// Mark up existing state that a re-run must not disturb.
	store.topo.Units[0].Excluded = true
	store.topo.Units[1].Residents = []ResidentLink{{Email: "ann@example.com", Primary: true}}
	firstID := store.topo.Units[0].ID

	res, err := svc.Generate(context.Background(), testTenant, baseConfig())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, firstID, store.topo.Units[0].ID)
	assert.True(t, store.topo.Units[0].Excluded)
	assert.Equal(t, "ann@example.com", store.topo.Units[1].Residents[0].Email)
}

func TestService_Generate_GrowsOnlyMissing(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, 20)
	generated(t, svc, baseConfig())

	cfg := baseConfig()
	cfg.FloorsPerBlock = 3
	res, err := svc.Generate(context.Background(), testTenant, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 6, res.Total)
}

func TestService_Generate_CapacityExceeded(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, 3)

	_, err := svc.Generate(context.Background(), testTenant, baseConfig())
	assert.True(t, errorx.HasCode(err, errorx.CodeCapacityExceeded))
	assert.Equal(t, 1, errorx.ExcessBy(err))
	// Rejection is atomic: nothing was persisted.
	assert.Empty(t, store.topo.Units)
	assert.Equal(t, 0, store.saves)
}

func TestService_Generate_RetriesOnConflict(t *testing.T) {
	store := &fakeStore{forceConflicts: 2}
	svc := newTestService(store, 10)

	res, err := svc.Generate(context.Background(), testTenant, baseConfig())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Created)
	assert.Equal(t, 1, store.saves)
}

func TestService_Generate_SurfacesConflictAfterRetries(t *testing.T) {
	store := &fakeStore{forceConflicts: 3}
	svc := newTestService(store, 10)

	_, err := svc.Generate(context.Background(), testTenant, baseConfig())
	assert.True(t, errorx.IsConflict(err))
	assert.Equal(t, 0, store.saves)
}

func TestService_ToggleExclusion(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, 10)
	generated(t, svc, baseConfig())

	err := svc.ToggleExclusion(context.Background(), testTenant, []uint{1, 2}, true)
	require.NoError(t, err)
	assert.True(t, store.topo.Units[0].Excluded)
	assert.True(t, store.topo.Units[1].Excluded)
	assert.False(t, store.topo.Units[2].Excluded)
	// the stored generation config rides along untouched
	require.NotNil(t, store.topo.Config)
	assert.Equal(t, baseConfig().FloorsPerBlock, store.topo.Config.FloorsPerBlock)
}

func TestService_ToggleExclusion_ReIncludePassesGuard(t *testing.T) {
	// licensed=4, all 4 generated, one excluded then re-included.
	store := &fakeStore{}
	svc := newTestService(store, 4)
	generated(t, svc, baseConfig())

	require.NoError(t, svc.ToggleExclusion(context.Background(), testTenant, []uint{3}, true))
	require.NoError(t, svc.ToggleExclusion(context.Background(), testTenant, []uint{3}, false))
	assert.False(t, store.topo.Units[2].Excluded)
}

func TestService_ToggleExclusion_ReIncludeOverCapacity(t *testing.T) {
	// Generate 4 of 4, exclude one, shrink the license to 3 by using a
	// service bound to the smaller plan: re-inclusion must fail by exactly 1.
	store := &fakeStore{}
	generated(t, newTestService(store, 4), baseConfig())
	require.NoError(t, newTestService(store, 4).ToggleExclusion(context.Background(), testTenant, []uint{4}, true))

	svc := newTestService(store, 3)
	err := svc.ToggleExclusion(context.Background(), testTenant, []uint{4}, false)
	assert.True(t, errorx.HasCode(err, errorx.CodeCapacityExceeded))
	assert.Equal(t, 1, errorx.ExcessBy(err))
	assert.True(t, store.topo.Units[3].Excluded)
}

func TestService_ToggleExclusion_AtomicOnUnknownID(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, 10)
	generated(t, svc, baseConfig())

	err := svc.ToggleExclusion(context.Background(), testTenant, []uint{1, 99}, true)
	assert.True(t, errorx.HasCode(err, errorx.CodeNotFound))
	assert.False(t, store.topo.Units[0].Excluded, "batch must not be partially applied")
}

func TestService_BulkSetUnitType(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, 10)
	cfg := baseConfig()
	cfg.EnabledTypes = []UnitType{TypeResidential, TypeStorage}
	generated(t, svc, cfg)

	require.NoError(t, svc.BulkSetUnitType(context.Background(), testTenant, []uint{1, 2}, TypeStorage))
	assert.Equal(t, TypeStorage, store.topo.Units[0].Type)
	assert.Equal(t, TypeStorage, store.topo.Units[1].Type)
	assert.Equal(t, TypeResidential, store.topo.Units[2].Type)
}

func TestService_BulkSetUnitType_RejectsDisabledType(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, 10)
	generated(t, svc, baseConfig())

	err := svc.BulkSetUnitType(context.Background(), testTenant, []uint{1}, TypeCommercial)
	assert.True(t, errorx.HasCode(err, errorx.CodeValidation))
	assert.Equal(t, TypeResidential, store.topo.Units[0].Type)
}

func TestService_LinkResidents(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, 10)
	generated(t, svc, baseConfig())

	err := svc.LinkResidents(context.Background(), testTenant, 1,
		[]string{"Ann@Example.com", "bob@example.com", "ann@example.com"}, "bob@example.com")
	require.NoError(t, err)

	u := store.topo.Units[0]
	require.Len(t, u.Residents, 2, "case-insensitive de-duplication")
	assert.Equal(t, "ann@example.com", u.Residents[0].Email)
	assert.Equal(t, "bob@example.com", u.PrimaryEmail())
}

func TestService_LinkResidents_MergesWithExisting(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, 10)
	generated(t, svc, baseConfig())
	require.NoError(t, svc.LinkResidents(context.Background(), testTenant, 1, []string{"ann@example.com"}, "ann@example.com"))

	// Second link keeps ann and moves primary to carol.
	require.NoError(t, svc.LinkResidents(context.Background(), testTenant, 1, []string{"carol@example.com"}, "carol@example.com"))
	u := store.topo.Units[0]
	require.Len(t, u.Residents, 2)
	assert.Equal(t, "carol@example.com", u.PrimaryEmail())
}

func TestService_LinkResidents_InvalidPrimary(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, 10)
	generated(t, svc, baseConfig())

	err := svc.LinkResidents(context.Background(), testTenant, 1, []string{"ann@example.com"}, "stranger@example.com")
	assert.True(t, errorx.HasCode(err, errorx.CodeInvalidPrimary))
	assert.Empty(t, store.topo.Units[0].Residents)
}

func TestService_UnlinkResident(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, 10)
	generated(t, svc, baseConfig())
	require.NoError(t, svc.LinkResidents(context.Background(), testTenant, 1,
		[]string{"ann@example.com", "bob@example.com"}, "ann@example.com"))

	// Removing a non-primary needs no replacement.
	require.NoError(t, svc.UnlinkResident(context.Background(), testTenant, 1, "bob@example.com", ""))
	u := store.topo.Units[0]
	require.Len(t, u.Residents, 1)
	assert.Equal(t, "ann@example.com", u.PrimaryEmail())
}

func TestService_UnlinkResident_PrimaryRequiresReplacement(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, 10)
	generated(t, svc, baseConfig())
	require.NoError(t, svc.LinkResidents(context.Background(), testTenant, 1,
		[]string{"ann@example.com", "bob@example.com"}, "ann@example.com"))

	err := svc.UnlinkResident(context.Background(), testTenant, 1, "ann@example.com", "")
	assert.True(t, errorx.HasCode(err, errorx.CodePrimaryRequired))

	err = svc.UnlinkResident(context.Background(), testTenant, 1, "ann@example.com", "stranger@example.com")
	assert.True(t, errorx.HasCode(err, errorx.CodeInvalidPrimary))

	require.NoError(t, svc.UnlinkResident(context.Background(), testTenant, 1, "ann@example.com", "bob@example.com"))
	u := store.topo.Units[0]
	require.Len(t, u.Residents, 1)
	assert.Equal(t, "bob@example.com", u.PrimaryEmail())
}

func TestService_UnlinkResident_LastLinkNeedsNoPrimary(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, 10)
	generated(t, svc, baseConfig())
	require.NoError(t, svc.LinkResidents(context.Background(), testTenant, 1, []string{"ann@example.com"}, "ann@example.com"))

	require.NoError(t, svc.UnlinkResident(context.Background(), testTenant, 1, "ann@example.com", ""))
	assert.Empty(t, store.topo.Units[0].Residents)
}
