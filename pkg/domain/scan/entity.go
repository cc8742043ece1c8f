// Package scan contains the investigation scan entity and its lifecycle.
package scan

import (
	"time"

	"github.com/leekyio/api/pkg/domain/shared"
)

// Scan represents one investigation run for one domain, owned by one user.
// The orchestrator is the only writer of its status once created; the
// entity methods enforce the legal transitions.
type Scan struct {
	ID      shared.ID
	OwnerID shared.ID
	Domain  string

	Status        Status
	FailureReason FailureReason

	// Derived aggregates, maintained by the result store as part of each
	// finding append. RiskScore is the maximum finding score, 0.0 when the
	// scan has no findings yet.
	FindingsCount int
	RiskScore     float64

	// CancelRequested is a request flag, not a state change. The
	// orchestrator consumes it at its per-query checkpoint.
	CancelRequested bool

	CreatedAt   time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// Status represents the scan lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsValid checks if the status is a valid status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if the status is a terminal (final) state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// FailureReason distinguishes why a scan failed so callers can react
// (prompt for credential setup vs. report a bug).
type FailureReason string

const (
	FailureNone              FailureReason = ""
	FailureNoCredential      FailureReason = "no_credential"
	FailureInvalidCredential FailureReason = "invalid_credential"
	FailureInternal          FailureReason = "internal"
)

// NewScan creates a new pending scan for a domain.
func NewScan(ownerID shared.ID, domain string) (*Scan, error) {
	if ownerID.IsZero() {
		return nil, shared.NewDomainError("VALIDATION", "owner is required", shared.ErrValidation)
	}
	if domain == "" {
		return nil, shared.NewDomainError("VALIDATION", "domain is required", shared.ErrValidation)
	}

	now := time.Now()
	return &Scan{
		ID:        shared.NewID(),
		OwnerID:   ownerID,
		Domain:    domain,
		Status:    StatusPending,
		RiskScore: 0.0,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Start transitions the scan from pending to running.
func (s *Scan) Start() error {
	if s.Status != StatusPending {
		return shared.NewDomainError("INVALID_STATE", "can only start a pending scan", shared.ErrValidation)
	}
	s.Status = StatusRunning
	s.UpdatedAt = time.Now()
	return nil
}

// Complete transitions a running scan to completed.
func (s *Scan) Complete() error {
	if s.Status != StatusRunning {
		return shared.NewDomainError("INVALID_STATE", "can only complete a running scan", shared.ErrValidation)
	}
	now := time.Now()
	s.Status = StatusCompleted
	s.CompletedAt = &now
	s.UpdatedAt = now
	return nil
}

// Fail transitions a pending or running scan to failed. Findings already
// persisted are retained, not rolled back.
func (s *Scan) Fail(reason FailureReason) error {
	if s.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "cannot fail a finished scan", shared.ErrAlreadyTerminal)
	}
	if reason == FailureNone {
		reason = FailureInternal
	}
	now := time.Now()
	s.Status = StatusFailed
	s.FailureReason = reason
	s.CompletedAt = &now
	s.UpdatedAt = now
	return nil
}

// Cancel transitions a pending or running scan to cancelled. This is the
// terminal transition the orchestrator performs after observing a cancel
// request at a checkpoint; callers request cancellation via RequestCancel
// on the repository, never by calling this directly.
func (s *Scan) Cancel() error {
	if s.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "cannot cancel a finished scan", shared.ErrAlreadyTerminal)
	}
	now := time.Now()
	s.Status = StatusCancelled
	s.CompletedAt = &now
	s.UpdatedAt = now
	return nil
}

// IsFinished returns true if the scan reached a terminal state.
func (s *Scan) IsFinished() bool {
	return s.Status.IsTerminal()
}
