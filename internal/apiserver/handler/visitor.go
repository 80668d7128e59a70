package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stratahq/strata/internal/apiserver/middleware"
	"github.com/stratahq/strata/internal/common/cnst"
	"github.com/stratahq/strata/internal/common/dto"
	"github.com/stratahq/strata/internal/common/errorx"
	"github.com/stratahq/strata/internal/core/visitor"
)

// CreateVisitorRequest opens a visit request for the calling resident
// and returns it with the signed QR token.
func (h *Handler) CreateVisitorRequest(c *gin.Context) {
	tenantID, err := tenantFromClaims(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	claims := middleware.ClaimsFromContext(c)

	var req dto.CreateVisitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.visitors.Create(c.Request.Context(), tenantID, claims.UserID, visitor.CreateInput{
		VisitorName: req.VisitorName,
		Purpose:     req.Purpose,
		ValidFrom:   req.ValidFrom,
		ValidUntil:  req.ValidUntil,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.countTransition(created.State)
	c.JSON(http.StatusCreated, created)
}

// GetVisitorRequest returns one request with its live state. A resident
// only sees requests they host; existence of other hosts' requests is
// never revealed.
func (h *Handler) GetVisitorRequest(c *gin.Context) {
	tenantID, err := tenantFromClaims(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	req, err := h.visitors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if req.TenantID != tenantID || !callerMaySeeRequest(c, req) {
		h.writeError(c, errorx.NotFound("visitor request %s not found", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, req)
}

// ListVisitorRequests lists requests with live states: the full tenant
// set for security and admin callers, the caller's own for residents.
func (h *Handler) ListVisitorRequests(c *gin.Context) {
	tenantID, err := tenantFromClaims(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	reqs, err := h.visitors.List(c.Request.Context(), tenantID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	own := make([]*visitor.Request, 0, len(reqs))
	for _, r := range reqs {
		if callerMaySeeRequest(c, r) {
			own = append(own, r)
		}
	}
	c.JSON(http.StatusOK, own)
}

func callerMaySeeRequest(c *gin.Context, req *visitor.Request) bool {
	claims := middleware.ClaimsFromContext(c)
	if claims == nil {
		return false
	}
	if claims.Role == string(cnst.RoleResident) {
		return req.HostUserID == claims.UserID
	}
	return true
}

// ApproveVisitorRequest approves a pending request. Re-approving an
// approved request returns the existing record unchanged.
func (h *Handler) ApproveVisitorRequest(c *gin.Context) {
	h.transitionVisitorRequest(c, func(id string, approverID uint) (*visitor.Request, error) {
		return h.visitors.Approve(c.Request.Context(), id, approverID)
	})
}

// DenyVisitorRequest denies a pending request, idempotently
func (h *Handler) DenyVisitorRequest(c *gin.Context) {
	h.transitionVisitorRequest(c, func(id string, denierID uint) (*visitor.Request, error) {
		return h.visitors.Deny(c.Request.Context(), id, denierID)
	})
}

// CompleteVisitorRequest closes out an approved visit
func (h *Handler) CompleteVisitorRequest(c *gin.Context) {
	h.transitionVisitorRequest(c, func(id string, _ uint) (*visitor.Request, error) {
		return h.visitors.Complete(c.Request.Context(), id)
	})
}

func (h *Handler) transitionVisitorRequest(c *gin.Context, apply func(id string, actorID uint) (*visitor.Request, error)) {
	tenantID, err := tenantFromClaims(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	claims := middleware.ClaimsFromContext(c)

	id := c.Param("id")
	req, err := h.visitors.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if req.TenantID != tenantID {
		h.writeError(c, errorx.NotFound("visitor request %s not found", id))
		return
	}

	updated, err := apply(id, claims.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.countTransition(updated.State)
	c.JSON(http.StatusOK, updated)
}

// ValidateToken checks a scanned QR token and reports the live state.
// The response never leaks whether an invalid token ever existed.
func (h *Handler) ValidateToken(c *gin.Context) {
	var req dto.ValidateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.visitors.Validate(c.Request.Context(), req.Token)
	if err != nil {
		h.countValidation(err)
		h.writeError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.TokenValidated("valid")
	}
	c.JSON(http.StatusOK, dto.ValidateTokenResponse{
		RequestID:   result.RequestID,
		State:       string(result.State),
		VisitorName: result.VisitorName,
	})
}

func (h *Handler) countTransition(to visitor.State) {
	if h.metrics != nil {
		h.metrics.VisitorTransition(string(to))
	}
}

func (h *Handler) countValidation(err error) {
	if h.metrics == nil {
		return
	}
	switch {
	case errorx.HasCode(err, errorx.CodeTokenExpired):
		h.metrics.TokenValidated("expired")
	case errorx.HasCode(err, errorx.CodeTokenInvalid):
		h.metrics.TokenValidated("invalid")
	default:
		h.metrics.TokenValidated("error")
	}
}
