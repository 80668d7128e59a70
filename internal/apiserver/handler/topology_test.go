package handler

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratahq/strata/internal/common/cnst"
	"github.com/stratahq/strata/internal/common/dto"
	"github.com/stratahq/strata/internal/common/errorx"
	"github.com/stratahq/strata/internal/core/topology"
)

func generateRequest() dto.GenerateTopologyRequest {
	return dto.GenerateTopologyRequest{
		Blocks:         1,
		FloorsPerBlock: 3,
		UnitsPerFloor:  4,
		Scheme: dto.NamingSchemeRequest{
			FloorPrefix: "F",
			UnitPrefix:  "U",
		},
		EnabledTypes: []string{"residential", "parking"},
		DefaultType:  "residential",
	}
}

func TestGenerateTopology(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(20)
	admin := env.seedUser("alice", cnst.RoleAdmin, tenant.ID)

	w := env.do("POST", "/api/topology/generate", admin, generateRequest())
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[dto.GenerateTopologyResponse](t, w)
	assert.Equal(t, 12, resp.Created)
	assert.Equal(t, 12, resp.Total)

	// re-running the same config creates nothing new
	w = env.do("POST", "/api/topology/generate", admin, generateRequest())
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[dto.GenerateTopologyResponse](t, w)
	assert.Equal(t, 0, resp.Created)
	assert.Equal(t, 12, resp.Total)
}

func TestGenerateTopology_CapacityExceeded(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(10)
	admin := env.seedUser("alice", cnst.RoleAdmin, tenant.ID)

	w := env.do("POST", "/api/topology/generate", admin, generateRequest())
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), errorx.CodeCapacityExceeded)
	assert.Contains(t, w.Body.String(), `"excess_by":2`)

	// nothing was persisted
	units := env.searchUnits(admin, "")
	assert.Empty(t, units.Units)
}

func TestGenerateTopology_GrowsExistingLayout(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(30)
	admin := env.seedUser("alice", cnst.RoleAdmin, tenant.ID)

	w := env.do("POST", "/api/topology/generate", admin, generateRequest())
	require.Equal(t, http.StatusOK, w.Code)

	grown := generateRequest()
	grown.FloorsPerBlock = 4
	w = env.do("POST", "/api/topology/generate", admin, grown)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[dto.GenerateTopologyResponse](t, w)
	assert.Equal(t, 4, resp.Created)
	assert.Equal(t, 16, resp.Total)
}

func TestGenerateTopology_RequiresTenantBinding(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser("alice", cnst.RoleAdmin, 0)

	w := env.do("POST", "/api/topology/generate", admin, generateRequest())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateTopology_PlatformAdminHeaderScope(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(20)
	admin := env.seedUser("root", cnst.RoleAdmin, 0)

	headers := map[string]string{cnst.XTenantID: strconv.FormatUint(uint64(tenant.ID), 10)}
	w := env.doWithHeaders("POST", "/api/topology/generate", admin, headers, generateRequest())
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[dto.GenerateTopologyResponse](t, w)
	assert.Equal(t, 12, resp.Created)

	// a garbage header never falls back to some other tenant
	w = env.doWithHeaders("POST", "/api/topology/generate", admin, map[string]string{cnst.XTenantID: "zero"}, generateRequest())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToggleExclusionAndSearch(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(20)
	admin := env.seedUser("alice", cnst.RoleAdmin, tenant.ID)

	w := env.do("POST", "/api/topology/generate", admin, generateRequest())
	require.Equal(t, http.StatusOK, w.Code)

	page := env.searchUnits(admin, "")
	require.Len(t, page.Units, 12)
	first := page.Units[0]

	excluded := true
	w = env.do("POST", "/api/units/exclusion", admin, dto.ToggleExclusionRequest{
		UnitIDs:  []uint{first.ID},
		Excluded: &excluded,
	})
	require.Equal(t, http.StatusOK, w.Code)

	page = env.searchUnits(admin, "?excluded=true")
	require.Len(t, page.Units, 1)
	assert.Equal(t, first.ID, page.Units[0].ID)
}

func TestBulkSetUnitType(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(20)
	admin := env.seedUser("alice", cnst.RoleAdmin, tenant.ID)

	w := env.do("POST", "/api/topology/generate", admin, generateRequest())
	require.Equal(t, http.StatusOK, w.Code)

	page := env.searchUnits(admin, "")
	ids := []uint{page.Units[0].ID, page.Units[1].ID}

	w = env.do("POST", "/api/units/type", admin, dto.BulkSetTypeRequest{UnitIDs: ids, Type: "parking"})
	require.Equal(t, http.StatusOK, w.Code)

	page = env.searchUnits(admin, "?type=parking")
	assert.Len(t, page.Units, 2)

	// commercial is not among the enabled types
	w = env.do("POST", "/api/units/type", admin, dto.BulkSetTypeRequest{UnitIDs: ids, Type: "commercial"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLinkAndUnlinkResidents(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(20)
	admin := env.seedUser("alice", cnst.RoleAdmin, tenant.ID)

	w := env.do("POST", "/api/topology/generate", admin, generateRequest())
	require.Equal(t, http.StatusOK, w.Code)
	unitID := env.searchUnits(admin, "").Units[0].ID

	w = env.do("POST", "/api/units/residents", admin, dto.LinkResidentsRequest{
		UnitID:       unitID,
		Emails:       []string{"res@example.com", "partner@example.com"},
		PrimaryEmail: "res@example.com",
	})
	require.Equal(t, http.StatusOK, w.Code)

	unit := env.searchUnits(admin, "").Units[0]
	require.Len(t, unit.Residents, 2)
	assert.Equal(t, "res@example.com", unit.PrimaryEmail())

	// removing the primary without a replacement fails while others remain
	w = env.do("DELETE", "/api/units/residents", admin, dto.UnlinkResidentRequest{
		UnitID: unitID,
		Email:  "res@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), errorx.CodePrimaryRequired)

	w = env.do("DELETE", "/api/units/residents", admin, dto.UnlinkResidentRequest{
		UnitID:          unitID,
		Email:           "res@example.com",
		NewPrimaryEmail: "partner@example.com",
	})
	require.Equal(t, http.StatusOK, w.Code)

	unit = env.searchUnits(admin, "").Units[0]
	require.Len(t, unit.Residents, 1)
	assert.Equal(t, "partner@example.com", unit.PrimaryEmail())
}

func TestSearchUnits_Paging(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(20)
	admin := env.seedUser("alice", cnst.RoleAdmin, tenant.ID)

	w := env.do("POST", "/api/topology/generate", admin, generateRequest())
	require.Equal(t, http.StatusOK, w.Code)

	page := env.searchUnits(admin, "?page_size=5")
	assert.Len(t, page.Units, 5)
	assert.Equal(t, 12, page.Total)
	require.NotEmpty(t, page.NextToken)

	page = env.searchUnits(admin, "?page_size=5&page_token="+page.NextToken)
	assert.Len(t, page.Units, 5)
}

// searchUnits fetches /api/units with the given raw query string
func (e *testEnv) searchUnits(token, query string) *topology.Page {
	e.t.Helper()
	w := e.do("GET", "/api/units"+query, token, nil)
	require.Equal(e.t, http.StatusOK, w.Code)
	page := decode[topology.Page](e.t, w)
	return &page
}
