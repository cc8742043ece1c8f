package finding

import (
	"context"

	"github.com/leekyio/api/pkg/domain/shared"
)

// Repository defines the persistence contract for findings.
type Repository interface {
	// Append persists a finding and, in the same transaction, increments
	// the owning scan's findings_count and raises its risk_score to the
	// maximum of its current value and the new finding's score. This is
	// the single commit point for the scan aggregates: readers never
	// observe a count inconsistent with the finding rows.
	Append(ctx context.Context, f *Finding) error

	// ListByScan returns a scan's findings in insertion (discovery) order.
	ListByScan(ctx context.Context, scanID shared.ID) ([]*Finding, error)

	// CountByScan returns the number of findings persisted for a scan.
	CountByScan(ctx context.Context, scanID shared.ID) (int, error)
}
