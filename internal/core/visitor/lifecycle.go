package visitor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stratahq/strata/internal/common/errorx"
	"go.uber.org/zap"
)

// State is the lifecycle state of a visitor request
type State string

const (
	StatePending   State = "pending"
	StateApproved  State = "approved"
	StateDenied    State = "denied"
	StateCompleted State = "completed"
	StateExpired   State = "expired"
)

// Request is one visit. It is an audit record: never deleted, only
// transitioned.
type Request struct {
	ID          string     `json:"id"`
	TenantID    uint       `json:"tenant_id"`
	HostUserID  uint       `json:"host_user_id"`
	VisitorName string     `json:"visitor_name"`
	Purpose     string     `json:"purpose"`
	ValidFrom   time.Time  `json:"valid_from"`
	ValidUntil  time.Time  `json:"valid_until"`
	QRToken     string     `json:"qr_token"`
	State       State      `json:"state"`
	ApprovedBy  uint       `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	DeniedBy    uint       `json:"denied_by,omitempty"`
	DeniedAt    *time.Time `json:"denied_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EffectiveState derives the state visible to callers at a point in time.
// A pending or approved request whose validity window has passed reads as
// expired whether or not the sweep has persisted the transition yet.
func (r *Request) EffectiveState(now time.Time) State {
	if (r.State == StatePending || r.State == StateApproved) && !now.Before(r.ValidUntil) {
		return StateExpired
	}
	return r.State
}

// Store is the narrow repository interface for visitor requests.
// UpdateState must be a compare-and-write keyed on (id, expectedState)
// and fail with errorx.Conflict when the stored state no longer matches,
// so a concurrent approve and deny cannot both succeed.
type Store interface {
	CreateRequest(ctx context.Context, req *Request) error
	GetRequest(ctx context.Context, id string) (*Request, error)
	ListRequests(ctx context.Context, tenantID uint) ([]*Request, error)
	UpdateState(ctx context.Context, req *Request, expected State) error
}

// stateRetries bounds the compare-and-write retry cycle for a transition
const stateRetries = 3

// Service drives a visitor request through its lifecycle
type Service struct {
	store  Store
	keys   KeySource
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a visitor lifecycle service
func NewService(store Store, keys KeySource, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		keys:   keys,
		logger: logger.Named("core.visitor"),
		now:    time.Now,
	}
}

// CreateInput is what a resident submits to open a request
type CreateInput struct {
	VisitorName string
	Purpose     string
	ValidFrom   time.Time
	ValidUntil  time.Time
}

// Create validates the input, issues the signed QR token and persists the
// request in the pending state.
func (s *Service) Create(ctx context.Context, tenantID, hostUserID uint, in CreateInput) (*Request, error) {
	now := s.now()
	if in.VisitorName == "" {
		return nil, errorx.Validation("visitor name is required")
	}
	if in.Purpose == "" {
		return nil, errorx.Validation("purpose is required")
	}
	if in.ValidFrom.IsZero() || in.ValidUntil.IsZero() {
		return nil, errorx.Validation("valid_from and valid_until are required")
	}
	if !in.ValidFrom.Before(in.ValidUntil) {
		return nil, errorx.Validation("valid_from must be before valid_until")
	}
	if in.ValidFrom.Before(now) {
		return nil, errorx.Validation("valid_from must not be in the past")
	}

	key, err := s.keys.SigningKey(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	req := &Request{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		HostUserID:  hostUserID,
		VisitorName: in.VisitorName,
		Purpose:     in.Purpose,
		ValidFrom:   in.ValidFrom,
		ValidUntil:  in.ValidUntil,
		State:       StatePending,
		CreatedAt:   now,
	}
	req.QRToken = NewTokenCodec(key).Sign(req.ID, req.ValidUntil, uuid.New().String())

	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	s.logger.Info("visitor request created",
		zap.String("request_id", req.ID),
		zap.Uint("tenant_id", tenantID),
		zap.Time("valid_until", req.ValidUntil))
	return req, nil
}

// Get returns the request with its lazily derived state applied
func (s *Service) Get(ctx context.Context, id string) (*Request, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	req.State = req.EffectiveState(s.now())
	return req, nil
}

// List returns a tenant's requests with derived states applied
func (s *Service) List(ctx context.Context, tenantID uint) ([]*Request, error) {
	reqs, err := s.store.ListRequests(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, r := range reqs {
		r.State = r.EffectiveState(now)
	}
	return reqs, nil
}

// Approve moves a pending request to approved, recording the approver and
// the timestamp. Approving an already-approved request returns the
// existing approval record unchanged. Approval is only possible while the
// validity window is open.
func (s *Service) Approve(ctx context.Context, id string, approverID uint) (*Request, error) {
	return s.transition(ctx, id, "approve", func(req *Request, now time.Time) (bool, error) {
		switch req.EffectiveState(now) {
		case StateApproved:
			return false, nil // idempotent
		case StatePending:
			req.State = StateApproved
			req.ApprovedBy = approverID
			req.ApprovedAt = &now
			return true, nil
		default:
			return false, errorx.InvalidState(string(req.EffectiveState(now)), "approve")
		}
	})
}

// Deny moves a pending request to denied; denying an already-denied
// request is a no-op returning the existing record.
func (s *Service) Deny(ctx context.Context, id string, denierID uint) (*Request, error) {
	return s.transition(ctx, id, "deny", func(req *Request, now time.Time) (bool, error) {
		switch req.EffectiveState(now) {
		case StateDenied:
			return false, nil // idempotent
		case StatePending:
			req.State = StateDenied
			req.DeniedBy = denierID
			req.DeniedAt = &now
			return true, nil
		default:
			return false, errorx.InvalidState(string(req.EffectiveState(now)), "deny")
		}
	})
}

// Complete marks an approved visit as departed; allowed from approved only
func (s *Service) Complete(ctx context.Context, id string) (*Request, error) {
	return s.transition(ctx, id, "complete", func(req *Request, now time.Time) (bool, error) {
		if req.EffectiveState(now) != StateApproved {
			return false, errorx.InvalidState(string(req.EffectiveState(now)), "complete")
		}
		req.State = StateCompleted
		req.CompletedAt = &now
		return true, nil
	})
}

// transition runs one compare-and-write cycle for a state change and
// retries on conflicts. apply reports whether a write is needed; returning
// false makes the call an idempotent read.
func (s *Service) transition(ctx context.Context, id, action string, apply func(req *Request, now time.Time) (bool, error)) (*Request, error) {
	var err error
	for attempt := 1; attempt <= stateRetries; attempt++ {
		var req *Request
		req, err = s.store.GetRequest(ctx, id)
		if err != nil {
			return nil, err
		}
		expected := req.State
		now := s.now()
		write, applyErr := apply(req, now)
		if applyErr != nil {
			return nil, applyErr
		}
		if !write {
			req.State = req.EffectiveState(now)
			return req, nil
		}
		err = s.store.UpdateState(ctx, req, expected)
		if err == nil {
			s.logger.Info("visitor request transitioned",
				zap.String("request_id", id),
				zap.String("action", action),
				zap.String("state", string(req.State)))
			return req, nil
		}
		if !errorx.IsConflict(err) {
			return nil, err
		}
		s.logger.Debug("visitor state conflict, retrying",
			zap.String("request_id", id),
			zap.Int("attempt", attempt))
	}
	return nil, err
}

// ValidationResult is what the security console receives for a scanned
// token: the request id and the live state at validation time. TokenExpired
// and a denied state are treated identically for access decisions.
type ValidationResult struct {
	RequestID   string `json:"request_id"`
	VisitorName string `json:"visitor_name"`
	State       State  `json:"state"`
}

// Validate checks a scanned QR token. The embedded expiry rejects an
// expired token before any store lookup; the signature is then verified
// against the owning tenant's current key, and the live state is returned.
func (s *Service) Validate(ctx context.Context, token string) (*ValidationResult, error) {
	now := s.now()
	claims, err := DecodeUnverified(token)
	if err != nil {
		return nil, err
	}
	if !now.Before(claims.ValidUntil) {
		return nil, errorx.TokenExpired
	}

	req, err := s.store.GetRequest(ctx, claims.RequestID)
	if err != nil {
		// An unknown request id on a well-formed token is indistinguishable
		// from a forgery to the caller.
		if errorx.HasCode(err, errorx.CodeNotFound) {
			return nil, errorx.TokenInvalid
		}
		return nil, err
	}
	key, err := s.keys.SigningKey(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	if _, err := NewTokenCodec(key).Verify(token, now); err != nil {
		return nil, err
	}
	return &ValidationResult{
		RequestID:   req.ID,
		VisitorName: req.VisitorName,
		State:       req.EffectiveState(now),
	}, nil
}
