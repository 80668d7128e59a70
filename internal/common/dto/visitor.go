package dto

import "time"

// CreateVisitorRequest represents a resident opening a visit request
type CreateVisitorRequest struct {
	VisitorName string    `json:"visitor_name" binding:"required"`
	Purpose     string    `json:"purpose" binding:"required"`
	ValidFrom   time.Time `json:"valid_from" binding:"required"`
	ValidUntil  time.Time `json:"valid_until" binding:"required"`
}

// ValidateTokenRequest represents a gate console scanning a QR token
type ValidateTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// ValidateTokenResponse reports the scan outcome
type ValidateTokenResponse struct {
	RequestID   string `json:"request_id"`
	State       string `json:"state"`
	VisitorName string `json:"visitor_name,omitempty"`
}
