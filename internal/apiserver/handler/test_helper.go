package handler

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/stratahq/strata/internal/apiserver/database"
	"github.com/stratahq/strata/internal/auth/jwt"
	"github.com/stratahq/strata/internal/common/cnst"
	"github.com/stratahq/strata/internal/common/config"
)

// testEnv is a fully wired apiserver over a throwaway sqlite database
type testEnv struct {
	t      *testing.T
	db     database.Database
	jwtSvc *jwt.Service
	router *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.APIServerConfig{
		Database: config.DatabaseConfig{
			Type:   "sqlite",
			DBName: filepath.Join(t.TempDir(), "strata.db"),
		},
		JWT: config.JWTConfig{
			SecretKey: "this-is-a-very-long-secret-key-for-testing",
			Duration:  time.Hour,
		},
		QR: config.QRConfig{SecretKey: "qr-service-secret"},
	}

	db, err := database.NewSQLite(&cfg.Database)
	require.NoError(t, err)
	require.NoError(t, db.Init(t.Context()))
	t.Cleanup(func() { _ = db.Close() })

	jwtSvc, err := jwt.NewService(jwt.Config{SecretKey: cfg.JWT.SecretKey, Duration: cfg.JWT.Duration})
	require.NoError(t, err)

	h := NewHandler(Deps{
		DB:         db,
		JWTService: jwtSvc,
		Config:     cfg,
		Logger:     zap.NewNop(),
	})
	router := gin.New()
	h.Register(router)

	return &testEnv{t: t, db: db, jwtSvc: jwtSvc, router: router}
}

// seedTenant creates a tenant directly in the database
func (e *testEnv) seedTenant(licensed int) *database.Tenant {
	e.t.Helper()
	tenant := &database.Tenant{
		Name:          "Acme Towers",
		Code:          "acme",
		LicensedUnits: licensed,
		QRSecret:      "tenant-nonce",
		IsActive:      true,
	}
	require.NoError(e.t, e.db.CreateTenant(e.t.Context(), tenant))
	return tenant
}

// seedUser creates an account and returns a bearer token for it
func (e *testEnv) seedUser(username string, role cnst.Role, tenantID uint) string {
	e.t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("password-123"), bcrypt.MinCost)
	require.NoError(e.t, err)
	user := &database.User{
		Username: username,
		Password: string(hashed),
		Role:     role,
		TenantID: tenantID,
		IsActive: true,
	}
	require.NoError(e.t, e.db.CreateUser(e.t.Context(), user))

	token, err := e.jwtSvc.GenerateToken(user.ID, tenantID, username, string(role))
	require.NoError(e.t, err)
	return token
}

// do performs a request against the router, JSON-encoding body when set
func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	return e.doWithHeaders(method, path, token, nil, body)
}

func (e *testEnv) doWithHeaders(method, path, token string, headers map[string]string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// decode unmarshals a response body into out
func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
