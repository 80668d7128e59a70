package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratahq/strata/internal/common/cnst"
	"github.com/stratahq/strata/internal/common/dto"
	"github.com/stratahq/strata/internal/common/errorx"
	"github.com/stratahq/strata/internal/core/visitor"
)

func visitRequest() dto.CreateVisitorRequest {
	now := time.Now()
	return dto.CreateVisitorRequest{
		VisitorName: "Jordan Reyes",
		Purpose:     "dinner",
		ValidFrom:   now.Add(time.Hour),
		ValidUntil:  now.Add(3 * time.Hour),
	}
}

func (e *testEnv) createVisit(residentToken string) *visitor.Request {
	e.t.Helper()
	w := e.do("POST", "/api/visitors", residentToken, visitRequest())
	require.Equal(e.t, http.StatusCreated, w.Code)
	req := decode[visitor.Request](e.t, w)
	return &req
}

func TestCreateVisitorRequest(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(10)
	resident := env.seedUser("bob", cnst.RoleResident, tenant.ID)

	req := env.createVisit(resident)
	assert.Equal(t, visitor.StatePending, req.State)
	assert.NotEmpty(t, req.ID)
	assert.NotEmpty(t, req.QRToken)
}

func TestCreateVisitorRequest_RejectsBadWindow(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(10)
	resident := env.seedUser("bob", cnst.RoleResident, tenant.ID)

	in := visitRequest()
	in.ValidUntil = in.ValidFrom.Add(-time.Minute)
	w := env.do("POST", "/api/visitors", resident, in)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApproveVisitorRequest_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(10)
	resident := env.seedUser("bob", cnst.RoleResident, tenant.ID)
	security := env.seedUser("guard", cnst.RoleSecurity, tenant.ID)

	req := env.createVisit(resident)

	w := env.do("POST", "/api/visitors/"+req.ID+"/approve", security, nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode[visitor.Request](t, w)
	assert.Equal(t, visitor.StateApproved, first.State)
	require.NotNil(t, first.ApprovedAt)

	// approving again returns the same record, same timestamp
	w = env.do("POST", "/api/visitors/"+req.ID+"/approve", security, nil)
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[visitor.Request](t, w)
	assert.True(t, first.ApprovedAt.Equal(*second.ApprovedAt))
}

func TestDenyThenApproveFails(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(10)
	resident := env.seedUser("bob", cnst.RoleResident, tenant.ID)
	security := env.seedUser("guard", cnst.RoleSecurity, tenant.ID)

	req := env.createVisit(resident)

	w := env.do("POST", "/api/visitors/"+req.ID+"/deny", security, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("POST", "/api/visitors/"+req.ID+"/approve", security, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), errorx.CodeInvalidState)
}

func TestCompleteVisitorRequest(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(10)
	resident := env.seedUser("bob", cnst.RoleResident, tenant.ID)
	security := env.seedUser("guard", cnst.RoleSecurity, tenant.ID)

	req := env.createVisit(resident)

	// completing a pending request is not a valid transition
	w := env.do("POST", "/api/visitors/"+req.ID+"/complete", security, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do("POST", "/api/visitors/"+req.ID+"/approve", security, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do("POST", "/api/visitors/"+req.ID+"/complete", security, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, visitor.StateCompleted, decode[visitor.Request](t, w).State)
}

func TestValidateToken(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(10)
	resident := env.seedUser("bob", cnst.RoleResident, tenant.ID)
	security := env.seedUser("guard", cnst.RoleSecurity, tenant.ID)

	req := env.createVisit(resident)
	w := env.do("POST", "/api/visitors/"+req.ID+"/approve", security, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("POST", "/api/visitors/validate", security, dto.ValidateTokenRequest{Token: req.QRToken})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[dto.ValidateTokenResponse](t, w)
	assert.Equal(t, req.ID, resp.RequestID)
	assert.Equal(t, string(visitor.StateApproved), resp.State)
	assert.Equal(t, req.VisitorName, resp.VisitorName)
}

func TestValidateToken_Garbage(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(10)
	security := env.seedUser("guard", cnst.RoleSecurity, tenant.ID)

	w := env.do("POST", "/api/visitors/validate", security, dto.ValidateTokenRequest{Token: "not.a.token"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), errorx.CodeTokenInvalid)
}

func TestVisitorRequestTenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(10)
	resident := env.seedUser("bob", cnst.RoleResident, tenant.ID)
	otherSecurity := env.seedUser("guard", cnst.RoleSecurity, tenant.ID+100)

	req := env.createVisit(resident)

	w := env.do("GET", "/api/visitors/"+req.ID, otherSecurity, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do("POST", "/api/visitors/"+req.ID+"/approve", otherSecurity, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVisitorRequestHostScoping(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(10)
	bob := env.seedUser("bob", cnst.RoleResident, tenant.ID)
	carol := env.seedUser("carol", cnst.RoleResident, tenant.ID)
	security := env.seedUser("guard", cnst.RoleSecurity, tenant.ID)

	req := env.createVisit(bob)

	// another resident in the same tenant sees neither the record nor
	// its existence
	w := env.do("GET", "/api/visitors/"+req.ID, carol, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do("GET", "/api/visitors", carol, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]visitor.Request](t, w))

	// the host and the security console both do
	w = env.do("GET", "/api/visitors/"+req.ID, bob, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do("GET", "/api/visitors", security, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]visitor.Request](t, w), 1)
}

func TestListVisitorRequests(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(10)
	resident := env.seedUser("bob", cnst.RoleResident, tenant.ID)

	env.createVisit(resident)
	env.createVisit(resident)

	w := env.do("GET", "/api/visitors", resident, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]visitor.Request](t, w), 2)
}
