package credential

import (
	"context"

	"github.com/leekyio/api/pkg/domain/shared"
)

// Repository defines the persistence contract for credentials.
type Repository interface {
	// Upsert creates the credential or replaces the active token for the
	// same owner and service.
	Upsert(ctx context.Context, c *Credential) error

	// GetActive returns the active credential for an owner and service,
	// or shared.ErrNotFound.
	GetActive(ctx context.Context, ownerID shared.ID, service string) (*Credential, error)

	// ListServices returns the service names with an active credential
	// for the owner. Tokens are never returned by this operation.
	ListServices(ctx context.Context, ownerID shared.ID) ([]string, error)

	// Deactivate soft-deletes the owner's credential for a service. It is
	// a no-op when none exists.
	Deactivate(ctx context.Context, ownerID shared.ID, service string) error
}
