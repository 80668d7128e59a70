package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stratahq/strata/internal/apiserver/database"
	"github.com/stratahq/strata/internal/auth/jwt"
	"github.com/stratahq/strata/internal/common/config"
	"github.com/stratahq/strata/internal/common/errorx"
	"github.com/stratahq/strata/internal/core/topology"
	"github.com/stratahq/strata/internal/core/visitor"
	"github.com/stratahq/strata/pkg/metrics"
)

// CapacityInvalidator drops a cached licensed-unit count after a plan
// change. Deployments without redis leave it nil.
type CapacityInvalidator interface {
	Invalidate(ctx context.Context, tenantID uint) error
}

// Handler carries the shared dependencies for all API handlers
type Handler struct {
	db         database.Database
	jwtService *jwt.Service
	cfg        *config.APIServerConfig
	topo       *topology.Service
	visitors   *visitor.Service
	metrics    *metrics.Metrics
	invalidate CapacityInvalidator
	logger     *zap.Logger
}

// Deps bundles what NewHandler needs
type Deps struct {
	DB          database.Database
	JWTService  *jwt.Service
	Config      *config.APIServerConfig
	Capacity    topology.CapacitySource
	Invalidator CapacityInvalidator
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// NewHandler creates the API handler set. The capacity source is
// injectable so a redis cache can sit in front of the database.
func NewHandler(d Deps) *Handler {
	capacity := d.Capacity
	if capacity == nil {
		capacity = d.DB
	}
	logger := d.Logger.Named("apiserver.handler")
	keys := newQRKeySource(d.DB, d.Config.QR.SecretKey)
	return &Handler{
		db:         d.DB,
		jwtService: d.JWTService,
		cfg:        d.Config,
		topo:       topology.NewService(d.DB, capacity, d.Logger),
		visitors:   visitor.NewService(d.DB, keys, d.Logger),
		metrics:    d.Metrics,
		invalidate: d.Invalidator,
		logger:     logger,
	}
}

// writeError maps domain errors onto HTTP responses. Anything that is
// not an APIError is an internal failure and stays opaque to clients.
func (h *Handler) writeError(c *gin.Context, err error) {
	var apiErr *errorx.APIError
	if errors.As(err, &apiErr) {
		body := gin.H{"code": apiErr.Code, "error": apiErr.Message}
		if len(apiErr.Details) > 0 {
			body["details"] = apiErr.Details
		}
		c.JSON(apiErr.HTTPStatus, body)
		return
	}
	h.logger.Error("request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"code": errorx.CodeInternal, "error": "internal error"})
}
