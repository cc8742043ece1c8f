// Package credential contains per-user third-party service credentials.
package credential

import (
	"time"

	"github.com/leekyio/api/pkg/domain/shared"
)

// ServiceGitHub is the code-search provider service name.
const ServiceGitHub = "github"

// Credential is a per-owner, per-service opaque token. The token is stored
// encrypted; the scan engine only ever reads it.
type Credential struct {
	ID             shared.ID
	OwnerID        shared.ID
	Service        string
	EncryptedToken string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewCredential creates an active credential holding an already-encrypted
// token.
func NewCredential(ownerID shared.ID, service, encryptedToken string) (*Credential, error) {
	if ownerID.IsZero() {
		return nil, shared.NewDomainError("VALIDATION", "owner is required", shared.ErrValidation)
	}
	if service == "" {
		return nil, shared.NewDomainError("VALIDATION", "service is required", shared.ErrValidation)
	}
	if encryptedToken == "" {
		return nil, shared.NewDomainError("VALIDATION", "token is required", shared.ErrValidation)
	}

	now := time.Now()
	return &Credential{
		ID:             shared.NewID(),
		OwnerID:        ownerID,
		Service:        service,
		EncryptedToken: encryptedToken,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Deactivate soft-deletes the credential.
func (c *Credential) Deactivate() {
	c.IsActive = false
	c.UpdatedAt = time.Now()
}
