package scan

import (
	"context"

	"github.com/leekyio/api/pkg/domain/shared"
	"github.com/leekyio/api/pkg/pagination"
)

// Repository defines the persistence contract for scans. All read and
// cancel operations are scoped to the owning user; a scan belonging to a
// different owner is indistinguishable from a missing one.
type Repository interface {
	// Create persists a new scan.
	Create(ctx context.Context, s *Scan) error

	// GetByID retrieves a scan by ID without owner scoping. Reserved for
	// the orchestrator and background workers.
	GetByID(ctx context.Context, id shared.ID) (*Scan, error)

	// GetByOwnerAndID retrieves a scan by owner and ID.
	GetByOwnerAndID(ctx context.Context, ownerID, id shared.ID) (*Scan, error)

	// ListByOwner lists an owner's scans ordered by created_at descending.
	ListByOwner(ctx context.Context, ownerID shared.ID, page pagination.Pagination) (pagination.Result[*Scan], error)

	// Update persists status, failure reason, and completion time. The
	// orchestrator is the only caller; derived aggregates are written by
	// the finding repository's append operation instead.
	Update(ctx context.Context, s *Scan) error

	// RequestCancel marks a non-terminal scan as cancel-requested, scoped
	// to the owner. Returns shared.ErrNotFound for unknown or foreign
	// scans and shared.ErrAlreadyTerminal for finished ones.
	RequestCancel(ctx context.Context, ownerID, id shared.ID) error

	// CancelRequested reports whether cancellation has been requested for
	// the scan. The orchestrator polls this at its per-query checkpoint.
	CancelRequested(ctx context.Context, id shared.ID) (bool, error)
}
